// insurance-portal/internal/grpcclient/client.go
package grpcclient

import (
	"context"
	"fmt"
	"net/url"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/insurance-portal/internal/grpcserver"
	"github.com/example/insurance-portal/internal/payment"
)

// Client talks to payments-grpc on behalf of one bearer token.
type Client struct {
	conn  *grpc.ClientConn
	token string
}

func Dial(addr, token string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(grpc_prometheus.UnaryClientInterceptor),
	}
	conn, err := grpc.NewClient(addr, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("dial payments %s: %w", addr, err)
	}
	return &Client{conn: conn, token: token}, nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePaymentURL(ctx context.Context, req payment.LinkRequest) (*payment.Link, error) {
	in := map[string]any{"contract_id": req.ContractID}
	if req.Amount > 0 {
		in["amount"] = float64(req.Amount)
	}
	if req.BankCode != "" {
		in["bank_code"] = req.BankCode
	}
	if req.Locale != "" {
		in["locale"] = req.Locale
	}
	if req.ClientIP != "" {
		in["client_ip"] = req.ClientIP
	}
	out, err := c.invoke(ctx, grpcserver.MethodCreatePaymentURL, in)
	if err != nil {
		return nil, err
	}
	f := out.GetFields()
	link := &payment.Link{
		URL:    f["payment_url"].GetStringValue(),
		TxnRef: f["txn_ref"].GetStringValue(),
	}
	if s := f["expires_at"].GetStringValue(); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			link.ExpiresAt = t
		}
	}
	return link, nil
}

// ProcessCallback replays a gateway callback. The token must carry the admin role.
func (c *Client) ProcessCallback(ctx context.Context, values url.Values) (payment.Outcome, error) {
	out, err := c.invoke(ctx, grpcserver.MethodProcessCallback, map[string]any{"query": values.Encode()})
	if err != nil {
		return payment.Outcome{}, err
	}
	f := out.GetFields()
	return payment.Outcome{
		Success:    f["success"].GetBoolValue(),
		Message:    payment.OutcomeMessage(f["message"].GetStringValue()),
		ContractID: f["contract_id"].GetStringValue(),
	}, nil
}
