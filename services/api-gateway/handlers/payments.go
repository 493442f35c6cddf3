// services/api-gateway/handlers/payments.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/insurance-portal/internal/auth"
	"github.com/example/insurance-portal/internal/payment"
	perr "github.com/example/insurance-portal/pkg/errors"
	m "github.com/example/insurance-portal/pkg/metrics"
)

const serviceName = "api-gateway"

type PaymentService interface {
	BuildPaymentURL(ctx context.Context, req payment.LinkRequest) (*payment.Link, error)
	HandleCallback(ctx context.Context, values url.Values) payment.Outcome
}

type Payments struct {
	Service     PaymentService
	FrontendURL string
	Log         log.FieldLogger
}

// CreatePaymentURL expects auth.Middleware upstream.
func (p *Payments) CreatePaymentURL(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { m.ObserveDuration(serviceName, "CREATE_PAYMENT_URL", time.Since(start).Seconds()) }()

	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, perr.New(perr.CodeUnauthorized, "missing bearer token"))
		return
	}

	var in CreatePaymentURLIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorOut{Status: "FAILED", Reason: "bad_json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	link, err := p.Service.BuildPaymentURL(ctx, payment.LinkRequest{
		ContractID: in.ContractID,
		UserID:     claims.UserID,
		Amount:     in.Amount,
		BankCode:   in.BankCode,
		Locale:     in.Language,
		ClientIP:   payment.ClientIP(r),
	})
	if err != nil {
		m.IncRequest(serviceName, "FAILED", "CREATE_PAYMENT_URL")
		if perr.CodeOf(err) == perr.CodeInternal {
			p.Log.WithError(err).WithField("contract_id", in.ContractID).Error("create payment url")
		}
		writeError(w, err)
		return
	}
	m.IncRequest(serviceName, "SUCCESS", "CREATE_PAYMENT_URL")
	writeJSON(w, http.StatusOK, link)
}

// Return handles the browser redirect back from the gateway.
func (p *Payments) Return(w http.ResponseWriter, r *http.Request) {
	out := p.Service.HandleCallback(r.Context(), r.URL.Query())
	m.IncCallbackOutcome("return", string(out.Message))
	http.Redirect(w, r, out.RedirectURL(p.FrontendURL), http.StatusFound)
}

// IPN handles the gateway's server-to-server notification.
func (p *Payments) IPN(w http.ResponseWriter, r *http.Request) {
	out := p.Service.HandleCallback(r.Context(), r.URL.Query())
	m.IncCallbackOutcome("ipn", string(out.Message))
	writeJSON(w, http.StatusOK, out.IPNResponse())
}
