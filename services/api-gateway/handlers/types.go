// services/api-gateway/handlers/types.go
package handlers

import (
	"encoding/json"
	"net/http"

	perr "github.com/example/insurance-portal/pkg/errors"
)

type CreatePaymentURLIn struct {
	ContractID string `json:"contractId"`
	Amount     int64  `json:"amount,omitempty"` // VND, 0 means the premium
	BankCode   string `json:"bankCode,omitempty"`
	Language   string `json:"language,omitempty"`
}

// ErrorOut is the envelope for every non-2xx JSON response.
type ErrorOut struct {
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, perr.HTTPStatus(err), ErrorOut{
		Status:  "FAILED",
		Reason:  reasonOf(err),
		Message: perr.MessageOf(err),
	})
}

func reasonOf(err error) string {
	switch perr.CodeOf(err) {
	case perr.CodeNotFound:
		return "not_found"
	case perr.CodeConflict:
		return "conflict"
	case perr.CodeInvalidInput:
		return "invalid_input"
	case perr.CodeUnauthorized:
		return "unauthorized"
	case perr.CodeConfig:
		return "payment_unavailable"
	default:
		return "internal_error"
	}
}
