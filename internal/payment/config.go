package payment

import (
	"strings"
	"time"

	"github.com/example/insurance-portal/internal/config"
	perr "github.com/example/insurance-portal/pkg/errors"
)

// Config is the merchant configuration, built once at startup.
type Config struct {
	TmnCode     string
	HashSecret  string
	GatewayURL  string
	ReturnURL   string
	FrontendURL string
	PaymentTTL  time.Duration
}

func ConfigFrom(c config.Config) Config {
	return Config{
		TmnCode:     c.VNPay.TmnCode,
		HashSecret:  c.VNPay.HashSecret,
		GatewayURL:  c.VNPay.URL,
		ReturnURL:   c.VNPay.ReturnURL,
		FrontendURL: c.FrontendURL,
		PaymentTTL:  c.VNPay.PaymentTTL,
	}
}

// Validate reports which merchant settings are missing.
func (c Config) Validate() error {
	var missing []string
	if c.TmnCode == "" {
		missing = append(missing, "VNP_TMNCODE")
	}
	if c.HashSecret == "" {
		missing = append(missing, "VNP_HASHSECRET")
	}
	if c.GatewayURL == "" {
		missing = append(missing, "VNP_URL")
	}
	if c.ReturnURL == "" {
		missing = append(missing, "VNP_RETURN_URL")
	}
	if len(missing) > 0 {
		return perr.New(perr.CodeConfig, "payment gateway is not configured: missing "+strings.Join(missing, ", "))
	}
	return nil
}
