package grpcserver

import (
	"context"
	"net/url"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/insurance-portal/internal/auth"
	"github.com/example/insurance-portal/internal/payment"
	perr "github.com/example/insurance-portal/pkg/errors"
	m "github.com/example/insurance-portal/pkg/metrics"
)

const serviceName = "payments-grpc"

type PaymentService interface {
	BuildPaymentURL(ctx context.Context, req payment.LinkRequest) (*payment.Link, error)
	HandleCallback(ctx context.Context, values url.Values) payment.Outcome
}

type PaymentsServer struct {
	Payments PaymentService
}

func (s *PaymentsServer) CreatePaymentURL(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	claims, ok := auth.ClaimsFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	f := in.GetFields()
	link, err := s.Payments.BuildPaymentURL(ctx, payment.LinkRequest{
		ContractID: f["contract_id"].GetStringValue(),
		UserID:     claims.UserID,
		Amount:     int64(f["amount"].GetNumberValue()),
		BankCode:   f["bank_code"].GetStringValue(),
		Locale:     f["locale"].GetStringValue(),
		ClientIP:   f["client_ip"].GetStringValue(),
	})
	if err != nil {
		m.IncRequest(serviceName, "FAILED", "CreatePaymentURL")
		return nil, toStatus(err)
	}
	m.IncRequest(serviceName, "SUCCESS", "CreatePaymentURL")

	out := map[string]any{
		"payment_url": link.URL,
		"txn_ref":     link.TxnRef,
	}
	if !link.ExpiresAt.IsZero() {
		out["expires_at"] = link.ExpiresAt.Format(time.RFC3339)
	}
	return structpb.NewStruct(out)
}

// ProcessCallback replays a raw gateway callback query. Admin only.
func (s *PaymentsServer) ProcessCallback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	claims, ok := auth.ClaimsFrom(ctx)
	if !ok || claims.Role != auth.RoleAdmin {
		return nil, status.Error(codes.PermissionDenied, "admin role required")
	}
	values, err := url.ParseQuery(in.GetFields()["query"].GetStringValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "parse query: %v", err)
	}
	out := s.Payments.HandleCallback(ctx, values)
	m.IncCallbackOutcome("grpc", string(out.Message))

	return structpb.NewStruct(map[string]any{
		"success":     out.Success,
		"message":     string(out.Message),
		"contract_id": out.ContractID,
	})
}

func toStatus(err error) error {
	msg := perr.MessageOf(err)
	switch perr.CodeOf(err) {
	case perr.CodeNotFound:
		return status.Error(codes.NotFound, msg)
	case perr.CodeConflict:
		return status.Error(codes.FailedPrecondition, msg)
	case perr.CodeInvalidInput:
		return status.Error(codes.InvalidArgument, msg)
	case perr.CodeUnauthorized:
		return status.Error(codes.Unauthenticated, msg)
	case perr.CodeConfig:
		return status.Error(codes.Unavailable, msg)
	default:
		return status.Error(codes.Internal, msg)
	}
}

// AuthInterceptor validates the "authorization: Bearer <jwt>" metadata.
func AuthInterceptor(jm *auth.JWTManager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		token, ok := strings.CutPrefix(values[0], "Bearer ")
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "malformed authorization metadata")
		}
		claims, err := jm.ValidateToken(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(auth.WithClaims(ctx, claims), req)
	}
}
