package vnpay

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var combiningMarks = runes.Predicate(func(r rune) bool {
	return r >= 0x0300 && r <= 0x036F
})

// đ and Đ have no canonical decomposition.
var dStroke = runes.Map(func(r rune) rune {
	switch r {
	case 'đ':
		return 'd'
	case 'Đ':
		return 'D'
	}
	return r
})

// NormalizeOrderInfo strips Vietnamese diacritics so the description survives
// the gateway's restricted character set.
func NormalizeOrderInfo(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(combiningMarks), dStroke)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
