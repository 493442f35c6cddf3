package vnpay

import (
	"strconv"
	"time"
)

const (
	Version          = "2.1.0"
	CommandPay       = "pay"
	CurrencyVND      = "VND"
	OrderTypeBill    = "billpayment"
	DefaultLocale    = "vn"
	ResponseSuccess  = "00"
	timestampLayout  = "20060102150405"
	amountMultiplier = 100
)

// The gateway reads and writes timestamps in GMT+7.
var gatewayZone = time.FixedZone("ICT", 7*60*60)

func FormatTime(t time.Time) string {
	return t.In(gatewayZone).Format(timestampLayout)
}

func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, s, gatewayZone)
}

// MinorUnits converts a nominal amount into the gateway's x100 unit.
// ok is false when the result would overflow.
func MinorUnits(amount int64) (int64, bool) {
	if amount < 0 || amount > (1<<63-1)/amountMultiplier {
		return 0, false
	}
	return amount * amountMultiplier, true
}

// PaymentRequest is the outbound payment-initiation record.
type PaymentRequest struct {
	TmnCode    string
	Locale     string
	TxnRef     string
	OrderInfo  string
	OrderType  string
	Amount     int64 // minor units, already x100
	ReturnURL  string
	IPAddr     string
	CreateDate time.Time
	ExpireDate time.Time
	BankCode   string

	// Extra carries fields newer protocol versions may add.
	Extra map[string]string
}

// Params renders the request as the flat set the gateway signs.
func (r PaymentRequest) Params() Params {
	p := Params{
		"vnp_Version":    Version,
		"vnp_Command":    CommandPay,
		"vnp_TmnCode":    r.TmnCode,
		"vnp_Locale":     r.Locale,
		"vnp_CurrCode":   CurrencyVND,
		"vnp_TxnRef":     r.TxnRef,
		"vnp_OrderInfo":  r.OrderInfo,
		"vnp_OrderType":  r.OrderType,
		"vnp_Amount":     strconv.FormatInt(r.Amount, 10),
		"vnp_ReturnUrl":  r.ReturnURL,
		"vnp_IpAddr":     r.IPAddr,
		"vnp_CreateDate": FormatTime(r.CreateDate),
	}
	if p["vnp_Locale"] == "" {
		p["vnp_Locale"] = DefaultLocale
	}
	if p["vnp_OrderType"] == "" {
		p["vnp_OrderType"] = OrderTypeBill
	}
	if !r.ExpireDate.IsZero() {
		p["vnp_ExpireDate"] = FormatTime(r.ExpireDate)
	}
	if r.BankCode != "" {
		p["vnp_BankCode"] = r.BankCode
	}
	for k, v := range r.Extra {
		if _, taken := p[k]; taken || isHashField(k) {
			continue
		}
		p[k] = v
	}
	return p
}
