// insurance-portal/pkg/vnpay/params.go
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Hash fields are never part of the signed payload.
const (
	FieldSecureHash     = "vnp_SecureHash"
	FieldSecureHashType = "vnp_SecureHashType"
)

// Params is the flat parameter set exchanged with the gateway.
type Params map[string]string

func isHashField(k string) bool {
	return k == FieldSecureHash || k == FieldSecureHashType
}

// Clone returns a copy without the hash fields.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		if isHashField(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func (p Params) sortedKeys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if isHashField(k) {
			continue
		}
		keys = append(keys, k)
	}
	// ordinal byte order, not collation
	sort.Strings(keys)
	return keys
}

// Canonical renders key=value pairs sorted by key and joined with '&'.
// Values are raw, the gateway signs the unescaped string.
func (p Params) Canonical() string {
	var b strings.Builder
	for i, k := range p.sortedKeys() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p[k])
	}
	return b.String()
}

// Sign computes the lowercase hex HMAC-SHA512 of the canonical string.
func Sign(secret string, p Params) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(p.Canonical()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over p and compares it with the
// vnp_SecureHash value p carries.
func Verify(secret string, p Params) bool {
	got, ok := p[FieldSecureHash]
	if !ok || got == "" {
		return false
	}
	want := Sign(secret, p)
	return hmac.Equal([]byte(got), []byte(want))
}

// EncodeQuery percent-encodes p in canonical key order and appends the
// signature last.
func EncodeQuery(p Params, secureHash string) string {
	var b strings.Builder
	for i, k := range p.sortedKeys() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[k]))
	}
	if b.Len() > 0 {
		b.WriteByte('&')
	}
	b.WriteString(FieldSecureHash)
	b.WriteByte('=')
	b.WriteString(secureHash)
	return b.String()
}

// FromValues keeps the first value of every key.
func FromValues(v url.Values) Params {
	p := make(Params, len(v))
	for k, vals := range v {
		if len(vals) == 0 {
			continue
		}
		p[k] = vals[0]
	}
	return p
}

// SignedURL signs p and appends the encoded query to base.
func SignedURL(base, secret string, p Params) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + EncodeQuery(p, Sign(secret, p))
}
