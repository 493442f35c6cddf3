package vnpay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeOrderInfo(t *testing.T) {
	cases := map[string]string{
		"Thanh toán hợp đồng HD-2024-001": "Thanh toan hop dong HD-2024-001",
		"Bảo hiểm sức khỏe Đặc biệt":      "Bao hiem suc khoe Dac biet",
		"đường Điện Biên Phủ":             "duong Dien Bien Phu",
		"plain ascii 123":                 "plain ascii 123",
	}
	for in, want := range cases {
		got := NormalizeOrderInfo(in)
		require.Equal(t, want, got)
		for _, r := range got {
			require.Less(t, r, rune(0x80), "non-ascii rune in %q", got)
		}
	}
}
