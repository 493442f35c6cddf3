package payment

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutcomeRedirectURL(t *testing.T) {
	u, err := url.Parse(Outcome{Success: true, Message: MsgPaymentSuccess}.RedirectURL("http://localhost:5173"))
	require.NoError(t, err)
	require.Equal(t, "/payment-result", u.Path)
	require.Equal(t, "true", u.Query().Get("success"))
	require.Equal(t, "PaymentSuccess", u.Query().Get("message"))

	u, err = url.Parse(Outcome{Message: MsgInvalidSignature}.RedirectURL("https://portal.example"))
	require.NoError(t, err)
	require.Equal(t, "false", u.Query().Get("success"))
	require.Equal(t, "InvalidSignature", u.Query().Get("message"))
}

func TestOutcomeIPNResponse(t *testing.T) {
	cases := map[OutcomeMessage]string{
		MsgPaymentSuccess:          "00",
		MsgPaymentFailed:           "00",
		MsgContractNotFound:        "01",
		MsgPaymentAlreadyConfirmed: "02",
		MsgInvalidContractState:    "02",
		MsgInvalidAmount:           "04",
		MsgInvalidSignature:        "97",
		MsgServerError:             "99",
	}
	for msg, code := range cases {
		require.Equal(t, code, Outcome{Message: msg}.IPNResponse().RspCode, msg)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "10.0.0.5:41000"
	require.Equal(t, "10.0.0.5", ClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.2")
	require.Equal(t, "198.51.100.2", ClientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	require.Equal(t, "203.0.113.7", ClientIP(r))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	err := Config{TmnCode: "X"}.Validate()
	require.ErrorContains(t, err, "VNP_HASHSECRET, VNP_URL, VNP_RETURN_URL")
}
