package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/insurance-portal/internal/store"
	perr "github.com/example/insurance-portal/pkg/errors"
	"github.com/example/insurance-portal/pkg/logging"
	"github.com/example/insurance-portal/pkg/vnpay"
)

const (
	testSecret  = "TESTSECRETTESTSECRET"
	testGateway = "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"
)

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

type fakeStore struct {
	mu        sync.Mutex
	contracts map[string]*store.Contract
	attempts  map[string]*store.Attempt
	err       error

	activations int
	failures    int
}

func newFakeStore(contracts ...*store.Contract) *fakeStore {
	f := &fakeStore{contracts: map[string]*store.Contract{}, attempts: map[string]*store.Attempt{}}
	for _, c := range contracts {
		f.contracts[c.ID] = c
	}
	return f
}

func (f *fakeStore) FindContract(ctx context.Context, id string) (*store.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.contracts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) FindContractForOwner(ctx context.Context, id, userID string) (*store.Contract, error) {
	c, err := f.FindContract(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) transition(id string, from, to store.ContractStatus, details map[string]string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contracts[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	if details != nil {
		c.PaymentDetails = details
	}
	return true, nil
}

func (f *fakeStore) ActivateContract(ctx context.Context, id string, details map[string]string) (bool, error) {
	ok, err := f.transition(id, store.StatusAwaitingPayment, store.StatusActive, details)
	if ok {
		f.mu.Lock()
		f.activations++
		f.mu.Unlock()
	}
	return ok, err
}

func (f *fakeStore) MarkPaymentFailed(ctx context.Context, id string) (bool, error) {
	ok, err := f.transition(id, store.StatusAwaitingPayment, store.StatusPaymentFailed, nil)
	if ok {
		f.mu.Lock()
		f.failures++
		f.mu.Unlock()
	}
	return ok, err
}

func (f *fakeStore) CreateAttempt(ctx context.Context, a *store.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.attempts[a.TxnRef] = &cp
	return nil
}

func (f *fakeStore) FindAttempt(ctx context.Context, txnRef string) (*store.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[txnRef]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) CompleteAttempt(ctx context.Context, txnRef, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.attempts[txnRef]; ok && a.CompletedAt == nil {
		now := fixedNow
		a.ResponseCode = code
		a.CompletedAt = &now
	}
	return nil
}

func (f *fakeStore) status(id string) store.ContractStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contracts[id].Status
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []store.Notification
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context, n store.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testConfig() Config {
	return Config{
		TmnCode:     "DEMO0001",
		HashSecret:  testSecret,
		GatewayURL:  testGateway,
		ReturnURL:   "https://portal.example/api/payment/vnpay_return",
		FrontendURL: "https://portal.example",
	}
}

func awaitingContract(id string) *store.Contract {
	return &store.Contract{
		ID:             id,
		ContractNumber: "HD-" + id,
		UserID:         "alice",
		ProductName:    "An Tâm Trọn Đời",
		Premium:        1_000_000,
		Status:         store.StatusAwaitingPayment,
	}
}

func newTestService(st Store, n Notifier, cfg Config) *Service {
	refs := 0
	return NewService(cfg, st, n, logging.Discard(),
		WithClock(func() time.Time { return fixedNow }),
		WithRefGenerator(func() string {
			refs++
			return fmt.Sprintf("ref%04d", refs)
		}),
	)
}

// signedCallback builds gateway callback values for txnRef signed with secret.
func signedCallback(txnRef, responseCode string, amountMinor string) url.Values {
	p := vnpay.Params{
		"vnp_TmnCode":           "DEMO0001",
		"vnp_TxnRef":            txnRef,
		"vnp_Amount":            amountMinor,
		"vnp_ResponseCode":      responseCode,
		"vnp_TransactionStatus": responseCode,
		"vnp_TransactionNo":     "14123456",
		"vnp_BankCode":          "NCB",
		"vnp_PayDate":           "20240506140900",
		"vnp_OrderInfo":         "Thanh toan hop dong HD-c1",
	}
	v := url.Values{}
	for k, val := range p {
		v.Set(k, val)
	}
	v.Set(vnpay.FieldSecureHashType, "HmacSHA512")
	v.Set(vnpay.FieldSecureHash, vnpay.Sign(testSecret, p))
	return v
}

func issueLink(t *testing.T, svc *Service, contractID string) *Link {
	t.Helper()
	link, err := svc.BuildPaymentURL(context.Background(), LinkRequest{
		ContractID: contractID,
		UserID:     "alice",
		Amount:     1_000_000,
		ClientIP:   "203.0.113.9",
	})
	require.NoError(t, err)
	return link
}

/******************** BuildPaymentURL ********************/

func TestBuildPaymentURL(t *testing.T) {
	st := newFakeStore(awaitingContract("c1"))
	svc := newTestService(st, &fakeNotifier{}, testConfig())

	link := issueLink(t, svc, "c1")

	require.True(t, strings.HasPrefix(link.URL, testGateway+"?"))
	u, err := url.Parse(link.URL)
	require.NoError(t, err)
	q := u.Query()

	require.Equal(t, "100000000", q.Get("vnp_Amount"))
	require.Len(t, q.Get("vnp_SecureHash"), 128)
	require.NotContains(t, q, "vnp_BankCode")
	require.Equal(t, link.TxnRef, q.Get("vnp_TxnRef"))
	require.Equal(t, "Thanh toan hop dong HD-c1", q.Get("vnp_OrderInfo"))
	require.Equal(t, "vn", q.Get("vnp_Locale"))
	require.Equal(t, "203.0.113.9", q.Get("vnp_IpAddr"))
	require.Equal(t, "20240506140809", q.Get("vnp_CreateDate"))
	require.Regexp(t, `&vnp_SecureHash=[0-9a-f]{128}$`, u.RawQuery)
	require.True(t, vnpay.Verify(testSecret, vnpay.FromValues(q)))

	a, err := st.FindAttempt(context.Background(), link.TxnRef)
	require.NoError(t, err)
	require.Equal(t, "c1", a.ContractID)
	require.Equal(t, int64(1_000_000), a.Amount)
	require.Equal(t, store.StatusAwaitingPayment, st.status("c1"))
}

func TestBuildPaymentURLScalesAmount(t *testing.T) {
	c := awaitingContract("c1")
	c.Premium = 500000
	svc := newTestService(newFakeStore(c), nil, testConfig())

	link, err := svc.BuildPaymentURL(context.Background(), LinkRequest{ContractID: "c1", UserID: "alice"})
	require.NoError(t, err)

	u, _ := url.Parse(link.URL)
	require.Equal(t, "50000000", u.Query().Get("vnp_Amount"))
}

func TestBuildPaymentURLOptionalFields(t *testing.T) {
	cfg := testConfig()
	cfg.PaymentTTL = 15 * time.Minute
	svc := newTestService(newFakeStore(awaitingContract("c1")), nil, cfg)

	link, err := svc.BuildPaymentURL(context.Background(), LinkRequest{
		ContractID: "c1", UserID: "alice", BankCode: "NCB", Locale: "en",
	})
	require.NoError(t, err)

	u, _ := url.Parse(link.URL)
	q := u.Query()
	require.Equal(t, "NCB", q.Get("vnp_BankCode"))
	require.Equal(t, "en", q.Get("vnp_Locale"))
	require.Equal(t, "20240506142309", q.Get("vnp_ExpireDate"))
	require.Equal(t, fixedNow.Add(15*time.Minute), link.ExpiresAt)
}

func TestBuildPaymentURLRequiresConfig(t *testing.T) {
	for _, drop := range []func(*Config){
		func(c *Config) { c.TmnCode = "" },
		func(c *Config) { c.HashSecret = "" },
		func(c *Config) { c.GatewayURL = "" },
		func(c *Config) { c.ReturnURL = "" },
	} {
		cfg := testConfig()
		drop(&cfg)
		st := newFakeStore(awaitingContract("c1"))
		svc := newTestService(st, nil, cfg)

		_, err := svc.BuildPaymentURL(context.Background(), LinkRequest{ContractID: "c1", UserID: "alice"})
		require.Error(t, err)
		require.Equal(t, perr.CodeConfig, perr.CodeOf(err))
		require.Empty(t, st.attempts)
	}
}

func TestBuildPaymentURLHidesForeignContracts(t *testing.T) {
	svc := newTestService(newFakeStore(awaitingContract("c1")), nil, testConfig())

	_, err := svc.BuildPaymentURL(context.Background(), LinkRequest{ContractID: "c1", UserID: "mallory"})
	require.Equal(t, perr.CodeNotFound, perr.CodeOf(err))

	_, err = svc.BuildPaymentURL(context.Background(), LinkRequest{ContractID: "nope", UserID: "alice"})
	require.Equal(t, perr.CodeNotFound, perr.CodeOf(err))
}

func TestBuildPaymentURLRejectsOtherStatuses(t *testing.T) {
	for _, status := range []store.ContractStatus{
		store.StatusActive, store.StatusPaymentFailed, store.StatusCancelled, store.StatusExpired,
	} {
		c := awaitingContract("c1")
		c.Status = status
		st := newFakeStore(c)
		svc := newTestService(st, nil, testConfig())

		_, err := svc.BuildPaymentURL(context.Background(), LinkRequest{ContractID: "c1", UserID: "alice"})
		require.Equal(t, perr.CodeConflict, perr.CodeOf(err), status)
		require.Empty(t, st.attempts)
	}
}

func TestBuildPaymentURLValidatesAmount(t *testing.T) {
	svc := newTestService(newFakeStore(awaitingContract("c1")), nil, testConfig())

	_, err := svc.BuildPaymentURL(context.Background(), LinkRequest{ContractID: "c1", UserID: "alice", Amount: 999})
	require.Equal(t, perr.CodeInvalidInput, perr.CodeOf(err))

	_, err = svc.BuildPaymentURL(context.Background(), LinkRequest{ContractID: "c1", UserID: "alice", Amount: -5})
	require.Equal(t, perr.CodeInvalidInput, perr.CodeOf(err))

	_, err = svc.BuildPaymentURL(context.Background(), LinkRequest{ContractID: "", UserID: "alice"})
	require.Equal(t, perr.CodeInvalidInput, perr.CodeOf(err))

	_, err = svc.BuildPaymentURL(context.Background(), LinkRequest{ContractID: "c1"})
	require.Equal(t, perr.CodeUnauthorized, perr.CodeOf(err))
}

func TestBuildPaymentURLMintsFreshReferences(t *testing.T) {
	st := newFakeStore(awaitingContract("c1"))
	svc := NewService(testConfig(), st, nil, logging.Discard())

	first := issueLink(t, svc, "c1")
	second := issueLink(t, svc, "c1")

	require.NotEqual(t, first.TxnRef, second.TxnRef)
	require.NotEqual(t, "c1", first.TxnRef)
	require.Len(t, first.TxnRef, 32)
}

/******************** HandleCallback ********************/

func TestHandleCallbackSuccess(t *testing.T) {
	st := newFakeStore(awaitingContract("c1"))
	n := &fakeNotifier{}
	svc := newTestService(st, n, testConfig())
	link := issueLink(t, svc, "c1")

	out := svc.HandleCallback(context.Background(), signedCallback(link.TxnRef, "00", "100000000"))

	require.Equal(t, Outcome{Success: true, Message: MsgPaymentSuccess, ContractID: "c1"}, out)
	require.Equal(t, store.StatusActive, st.status("c1"))
	require.Len(t, n.calls, 1)
	require.Equal(t, "alice", n.calls[0].UserID)
	require.Equal(t, "/my-contracts/c1", n.calls[0].Link)
	require.Contains(t, n.calls[0].Message, "An Tâm Trọn Đời")

	c, _ := st.FindContract(context.Background(), "c1")
	require.Equal(t, link.TxnRef, c.PaymentDetails["vnp_TxnRef"])
	require.NotContains(t, c.PaymentDetails, vnpay.FieldSecureHash)
	require.NotContains(t, c.PaymentDetails, vnpay.FieldSecureHashType)

	a, _ := st.FindAttempt(context.Background(), link.TxnRef)
	require.Equal(t, "00", a.ResponseCode)
}

func TestHandleCallbackFailureCode(t *testing.T) {
	st := newFakeStore(awaitingContract("c1"))
	n := &fakeNotifier{}
	svc := newTestService(st, n, testConfig())
	link := issueLink(t, svc, "c1")

	out := svc.HandleCallback(context.Background(), signedCallback(link.TxnRef, "07", "100000000"))

	require.Equal(t, Outcome{Success: false, Message: MsgPaymentFailed, ContractID: "c1"}, out)
	require.Equal(t, store.StatusPaymentFailed, st.status("c1"))
	require.Zero(t, n.count())
}

func TestHandleCallbackCorruptedSignature(t *testing.T) {
	st := newFakeStore(awaitingContract("c1"))
	n := &fakeNotifier{}
	svc := newTestService(st, n, testConfig())
	link := issueLink(t, svc, "c1")

	v := signedCallback(link.TxnRef, "00", "100000000")
	sig := []byte(v.Get(vnpay.FieldSecureHash))
	sig[0] ^= 0x01
	v.Set(vnpay.FieldSecureHash, string(sig))

	out := svc.HandleCallback(context.Background(), v)

	require.Equal(t, MsgInvalidSignature, out.Message)
	require.False(t, out.Success)
	require.Equal(t, store.StatusAwaitingPayment, st.status("c1"))
	require.Zero(t, st.activations+st.failures)
	require.Zero(t, n.count())
}

func TestHandleCallbackTamperedResponseCode(t *testing.T) {
	st := newFakeStore(awaitingContract("c1"))
	svc := newTestService(st, &fakeNotifier{}, testConfig())
	link := issueLink(t, svc, "c1")

	v := signedCallback(link.TxnRef, "07", "100000000")
	v.Set("vnp_ResponseCode", "00")

	out := svc.HandleCallback(context.Background(), v)
	require.Equal(t, MsgInvalidSignature, out.Message)
	require.Equal(t, store.StatusAwaitingPayment, st.status("c1"))
}

func TestHandleCallbackMissingSignature(t *testing.T) {
	svc := newTestService(newFakeStore(awaitingContract("c1")), nil, testConfig())
	v := signedCallback("ref", "00", "100000000")
	v.Del(vnpay.FieldSecureHash)

	require.Equal(t, MsgInvalidSignature, svc.HandleCallback(context.Background(), v).Message)
}

func TestHandleCallbackIsIdempotent(t *testing.T) {
	st := newFakeStore(awaitingContract("c1"))
	n := &fakeNotifier{}
	svc := newTestService(st, n, testConfig())
	link := issueLink(t, svc, "c1")
	cb := signedCallback(link.TxnRef, "00", "100000000")

	first := svc.HandleCallback(context.Background(), cb)
	second := svc.HandleCallback(context.Background(), cb)

	require.True(t, first.Success)
	require.True(t, second.Success)
	require.Equal(t, MsgPaymentSuccess, first.Message)
	require.Equal(t, MsgPaymentAlreadyConfirmed, second.Message)
	require.Equal(t, 1, st.activations)
	require.Equal(t, 1, n.count())
}

func TestHandleCallbackConcurrentDeliveries(t *testing.T) {
	st := newFakeStore(awaitingContract("c1"))
	n := &fakeNotifier{}
	svc := newTestService(st, n, testConfig())
	link := issueLink(t, svc, "c1")
	cb := signedCallback(link.TxnRef, "00", "100000000")

	var wg sync.WaitGroup
	outs := make([]Outcome, 10)
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i] = svc.HandleCallback(context.Background(), cb)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, o := range outs {
		require.True(t, o.Success)
		if o.Message == MsgPaymentSuccess {
			succeeded++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, st.activations)
	require.Equal(t, 1, n.count())
}

func TestHandleCallbackStateGuard(t *testing.T) {
	for _, status := range []store.ContractStatus{store.StatusCancelled, store.StatusExpired, store.StatusPaymentFailed} {
		st := newFakeStore(awaitingContract("c1"))
		n := &fakeNotifier{}
		svc := newTestService(st, n, testConfig())
		link := issueLink(t, svc, "c1")
		st.contracts["c1"].Status = status

		for _, code := range []string{"00", "24"} {
			out := svc.HandleCallback(context.Background(), signedCallback(link.TxnRef, code, "100000000"))
			require.Equal(t, MsgInvalidContractState, out.Message, status)
			require.False(t, out.Success)
		}
		require.Equal(t, status, st.status("c1"))
		require.Zero(t, st.activations+st.failures)
		require.Zero(t, n.count())
	}
}

func TestHandleCallbackUnknownReference(t *testing.T) {
	st := newFakeStore(awaitingContract("c1"))
	svc := newTestService(st, nil, testConfig())

	out := svc.HandleCallback(context.Background(), signedCallback("c1", "00", "100000000"))
	require.Equal(t, Outcome{Success: false, Message: MsgContractNotFound}, out)
	require.Equal(t, store.StatusAwaitingPayment, st.status("c1"))
}

func TestHandleCallbackAmountMismatch(t *testing.T) {
	st := newFakeStore(awaitingContract("c1"))
	svc := newTestService(st, &fakeNotifier{}, testConfig())
	link := issueLink(t, svc, "c1")

	out := svc.HandleCallback(context.Background(), signedCallback(link.TxnRef, "00", "100"))
	require.Equal(t, MsgInvalidAmount, out.Message)
	require.Equal(t, store.StatusAwaitingPayment, st.status("c1"))
}

func TestHandleCallbackStaleAttemptAfterReopen(t *testing.T) {
	st := newFakeStore(awaitingContract("c1"))
	svc := newTestService(st, &fakeNotifier{}, testConfig())
	old := issueLink(t, svc, "c1")

	out := svc.HandleCallback(context.Background(), signedCallback(old.TxnRef, "24", "100000000"))
	require.Equal(t, MsgPaymentFailed, out.Message)

	// back office reopens the contract and a new attempt starts
	st.contracts["c1"].Status = store.StatusAwaitingPayment
	issueLink(t, svc, "c1")

	out = svc.HandleCallback(context.Background(), signedCallback(old.TxnRef, "24", "100000000"))
	require.Equal(t, MsgPaymentFailed, out.Message)
	require.Equal(t, store.StatusAwaitingPayment, st.status("c1"))
	require.Equal(t, 1, st.failures)
}

func TestHandleCallbackNotifierFailureKeepsActivation(t *testing.T) {
	st := newFakeStore(awaitingContract("c1"))
	n := &fakeNotifier{err: errors.New("kafka down")}
	svc := newTestService(st, n, testConfig())
	link := issueLink(t, svc, "c1")

	out := svc.HandleCallback(context.Background(), signedCallback(link.TxnRef, "00", "100000000"))

	require.Equal(t, MsgPaymentSuccess, out.Message)
	require.Equal(t, store.StatusActive, st.status("c1"))
	require.Equal(t, 1, n.count())
}

func TestHandleCallbackStoreErrorIsServerError(t *testing.T) {
	st := newFakeStore(awaitingContract("c1"))
	svc := newTestService(st, nil, testConfig())
	link := issueLink(t, svc, "c1")
	st.err = errors.New("connection reset")

	out := svc.HandleCallback(context.Background(), signedCallback(link.TxnRef, "00", "100000000"))
	require.Equal(t, Outcome{Success: false, Message: MsgServerError}, out)
}

func TestHandleCallbackWithoutSecret(t *testing.T) {
	cfg := testConfig()
	cfg.HashSecret = ""
	svc := newTestService(newFakeStore(), nil, cfg)

	out := svc.HandleCallback(context.Background(), signedCallback("r", "00", "1"))
	require.Equal(t, MsgServerError, out.Message)
}
