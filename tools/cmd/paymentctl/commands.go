package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/insurance-portal/internal/auth"
	"github.com/example/insurance-portal/internal/config"
	"github.com/example/insurance-portal/internal/grpcclient"
	"github.com/example/insurance-portal/internal/payment"
	"github.com/example/insurance-portal/pkg/vnpay"
)

func mintToken(cfg config.Config, user, role string, ttl time.Duration) (string, error) {
	jm, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return "", err
	}
	return jm.GenerateToken(user, role, ttl)
}

func tokenCmd(cfg config.Config) *cobra.Command {
	var (
		user, role string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := mintToken(cfg, user, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id")
	cmd.Flags().StringVarP(&role, "role", "r", "customer", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func linkCmd(cfg config.Config) *cobra.Command {
	var (
		user string
		req  payment.LinkRequest
	)
	cmd := &cobra.Command{
		Use:   "link [contract-id]",
		Short: "Request a payment URL for a contract over gRPC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := mintToken(cfg, user, "customer", 5*time.Minute)
			if err != nil {
				return err
			}
			addr, _ := cmd.Flags().GetString("addr")
			c, err := grpcclient.Dial(addr, tok)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			req.ContractID = args[0]
			link, err := c.CreatePaymentURL(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, link)
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "contract owner")
	cmd.Flags().Int64Var(&req.Amount, "amount", 0, "amount in VND (default: premium)")
	cmd.Flags().StringVar(&req.BankCode, "bank", "", "preselected bank code")
	cmd.Flags().StringVar(&req.Locale, "locale", "", "gateway page language (vn or en)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

type callbackInput struct {
	TxnRef        string
	Amount        int64 // VND
	ResponseCode  string
	TransactionNo string
	BankCode      string
}

// signCallback builds the query string the gateway would send back for in.
func signCallback(secret, tmnCode string, in callbackInput, now time.Time) (string, error) {
	minor, ok := vnpay.MinorUnits(in.Amount)
	if !ok {
		return "", fmt.Errorf("amount %d out of range", in.Amount)
	}
	p := vnpay.Params{
		"vnp_TmnCode":           tmnCode,
		"vnp_TxnRef":            in.TxnRef,
		"vnp_Amount":            fmt.Sprint(minor),
		"vnp_ResponseCode":      in.ResponseCode,
		"vnp_TransactionStatus": in.ResponseCode,
		"vnp_TransactionNo":     in.TransactionNo,
		"vnp_BankCode":          in.BankCode,
		"vnp_PayDate":           vnpay.FormatTime(now),
		"vnp_OrderInfo":         "Thanh toan " + in.TxnRef,
	}
	return vnpay.EncodeQuery(p, vnpay.Sign(secret, p)), nil
}

func signCallbackCmd(cfg config.Config) *cobra.Command {
	in := callbackInput{}
	cmd := &cobra.Command{
		Use:   "sign-callback [txn-ref]",
		Short: "Print a signed gateway callback query for sandbox testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.VNPay.HashSecret == "" {
				return fmt.Errorf("VNP_HASHSECRET is not set")
			}
			in.TxnRef = args[0]
			q, err := signCallback(cfg.VNPay.HashSecret, cfg.VNPay.TmnCode, in, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), q)
			return nil
		},
	}
	cmd.Flags().Int64Var(&in.Amount, "amount", 0, "amount in VND")
	cmd.Flags().StringVar(&in.ResponseCode, "code", vnpay.ResponseSuccess, "gateway response code")
	cmd.Flags().StringVar(&in.TransactionNo, "txn-no", "14000000", "gateway transaction number")
	cmd.Flags().StringVar(&in.BankCode, "bank", "NCB", "bank code")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func replayCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "replay [query]",
		Short: "Submit a raw callback query to payments-grpc as an admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := url.ParseQuery(args[0])
			if err != nil {
				return fmt.Errorf("parse query: %w", err)
			}
			tok, err := mintToken(cfg, "paymentctl", auth.RoleAdmin, 5*time.Minute)
			if err != nil {
				return err
			}
			addr, _ := cmd.Flags().GetString("addr")
			c, err := grpcclient.Dial(addr, tok)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			out, err := c.ProcessCallback(ctx, values)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
