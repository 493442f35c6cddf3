package vnpay

import (
	"fmt"
	"net/url"
	"strconv"
)

// Callback is the typed view of an inbound return or IPN request.
// Only trust it after Verify has passed on Raw.
type Callback struct {
	TxnRef            string
	Amount            int64 // minor units
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
	PayDate           string
	OrderInfo         string
	SecureHash        string

	// Raw holds every received field including the hash fields.
	Raw Params
}

func ParseCallback(v url.Values) (*Callback, error) {
	raw := FromValues(v)
	cb := &Callback{
		TxnRef:            raw["vnp_TxnRef"],
		ResponseCode:      raw["vnp_ResponseCode"],
		TransactionStatus: raw["vnp_TransactionStatus"],
		TransactionNo:     raw["vnp_TransactionNo"],
		BankCode:          raw["vnp_BankCode"],
		PayDate:           raw["vnp_PayDate"],
		OrderInfo:         raw["vnp_OrderInfo"],
		SecureHash:        raw[FieldSecureHash],
		Raw:               raw,
	}
	if s := raw["vnp_Amount"]; s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return cb, fmt.Errorf("parse vnp_Amount %q: %w", s, err)
		}
		cb.Amount = n
	}
	return cb, nil
}

// Succeeded reports a "00" response code.
func (c *Callback) Succeeded() bool {
	return c.ResponseCode == ResponseSuccess
}

// Verify checks the callback signature with the shared secret.
func (c *Callback) Verify(secret string) bool {
	return Verify(secret, c.Raw)
}

// Details is the verified parameter set without the hash fields.
func (c *Callback) Details() map[string]string {
	return c.Raw.Clone()
}
