package payment

import (
	"net/url"
	"strconv"
)

type OutcomeMessage string

const (
	MsgContractNotFound        OutcomeMessage = "ContractNotFound"
	MsgPaymentSuccess          OutcomeMessage = "PaymentSuccess"
	MsgPaymentFailed           OutcomeMessage = "PaymentFailed"
	MsgPaymentAlreadyConfirmed OutcomeMessage = "PaymentAlreadyConfirmed"
	MsgInvalidSignature        OutcomeMessage = "InvalidSignature"
	MsgInvalidContractState    OutcomeMessage = "InvalidContractState"
	MsgInvalidAmount           OutcomeMessage = "InvalidAmount"
	MsgServerError             OutcomeMessage = "ServerError"
)

// Outcome is the result of processing one gateway callback.
type Outcome struct {
	Success    bool           `json:"success"`
	Message    OutcomeMessage `json:"message"`
	ContractID string         `json:"contract_id,omitempty"`
}

func outcome(success bool, msg OutcomeMessage, contractID string) Outcome {
	return Outcome{Success: success, Message: msg, ContractID: contractID}
}

// RedirectURL points the browser at the front-end result page.
func (o Outcome) RedirectURL(frontendURL string) string {
	q := url.Values{}
	q.Set("success", strconv.FormatBool(o.Success))
	q.Set("message", string(o.Message))
	return frontendURL + "/payment-result?" + q.Encode()
}

// IPNResponse is the acknowledgement body the gateway expects on its
// server-to-server notification channel.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

func (o Outcome) IPNResponse() IPNResponse {
	switch o.Message {
	case MsgPaymentSuccess, MsgPaymentFailed:
		return IPNResponse{RspCode: "00", Message: "Confirm Success"}
	case MsgContractNotFound:
		return IPNResponse{RspCode: "01", Message: "Order not found"}
	case MsgPaymentAlreadyConfirmed, MsgInvalidContractState:
		return IPNResponse{RspCode: "02", Message: "Order already confirmed"}
	case MsgInvalidAmount:
		return IPNResponse{RspCode: "04", Message: "Invalid amount"}
	case MsgInvalidSignature:
		return IPNResponse{RspCode: "97", Message: "Invalid signature"}
	default:
		return IPNResponse{RspCode: "99", Message: "Unknown error"}
	}
}
