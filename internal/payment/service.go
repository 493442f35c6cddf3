package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/example/insurance-portal/internal/store"
	perr "github.com/example/insurance-portal/pkg/errors"
	m "github.com/example/insurance-portal/pkg/metrics"
	"github.com/example/insurance-portal/pkg/vnpay"
)

const notifyTimeout = 5 * time.Second

// Store is the slice of the contract store the adapter needs.
type Store interface {
	FindContract(ctx context.Context, id string) (*store.Contract, error)
	FindContractForOwner(ctx context.Context, id, userID string) (*store.Contract, error)
	ActivateContract(ctx context.Context, id string, details map[string]string) (bool, error)
	MarkPaymentFailed(ctx context.Context, id string) (bool, error)
	CreateAttempt(ctx context.Context, a *store.Attempt) error
	FindAttempt(ctx context.Context, txnRef string) (*store.Attempt, error)
	CompleteAttempt(ctx context.Context, txnRef, responseCode string) error
}

// Service issues signed payment links and applies verified gateway callbacks.
type Service struct {
	cfg      Config
	store    Store
	notifier Notifier
	log      log.FieldLogger
	now      func() time.Time
	newRef   func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRefGenerator(fn func() string) Option {
	return func(s *Service) { s.newRef = fn }
}

func NewService(cfg Config, st Store, notifier Notifier, logger log.FieldLogger, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		store:    st,
		notifier: notifier,
		log:      logger,
		now:      time.Now,
		newRef:   func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Config() Config { return s.cfg }

// LinkRequest asks for a payment link. Amount is nominal (major units);
// zero means the contract premium.
type LinkRequest struct {
	ContractID string
	UserID     string
	Amount     int64
	BankCode   string
	Locale     string
	ClientIP   string
}

type Link struct {
	URL       string    `json:"paymentUrl"`
	TxnRef    string    `json:"txnRef"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// BuildPaymentURL signs a payment-initiation request for a contract that is
// awaiting payment. The contract itself is not modified.
func (s *Service) BuildPaymentURL(ctx context.Context, req LinkRequest) (*Link, error) {
	link, err := s.buildPaymentURL(ctx, req)
	if err != nil {
		m.IncPaymentLink(strings.ToLower(perr.CodeOf(err)))
		return nil, err
	}
	m.IncPaymentLink("ok")
	return link, nil
}

func (s *Service) buildPaymentURL(ctx context.Context, req LinkRequest) (*Link, error) {
	if err := s.cfg.Validate(); err != nil {
		s.log.WithError(err).Error("payment link requested without merchant configuration")
		return nil, err
	}
	if req.UserID == "" {
		return nil, perr.New(perr.CodeUnauthorized, "missing user identity")
	}
	if strings.TrimSpace(req.ContractID) == "" {
		return nil, perr.New(perr.CodeInvalidInput, "contractId is required")
	}

	c, err := s.store.FindContractForOwner(ctx, req.ContractID, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, perr.New(perr.CodeNotFound, "contract not found")
	}
	if err != nil {
		return nil, perr.Wrap(perr.CodeInternal, "load contract", err)
	}
	if c.Status != store.StatusAwaitingPayment {
		return nil, perr.New(perr.CodeConflict, "contract is not awaiting payment")
	}

	amount := req.Amount
	switch {
	case amount < 0:
		return nil, perr.New(perr.CodeInvalidInput, "amount must be positive")
	case amount == 0:
		amount = c.Premium
	case c.Premium > 0 && amount != c.Premium:
		return nil, perr.New(perr.CodeInvalidInput, "amount does not match contract premium")
	}
	minor, ok := vnpay.MinorUnits(amount)
	if !ok || amount == 0 {
		return nil, perr.New(perr.CodeInvalidInput, "amount out of range")
	}

	now := s.now()
	attempt := &store.Attempt{
		TxnRef:     s.newRef(),
		ContractID: c.ID,
		Amount:     amount,
		CreatedAt:  now.UTC(),
	}
	if err := s.store.CreateAttempt(ctx, attempt); err != nil {
		return nil, perr.Wrap(perr.CodeInternal, "record payment attempt", err)
	}

	pr := vnpay.PaymentRequest{
		TmnCode:    s.cfg.TmnCode,
		Locale:     req.Locale,
		TxnRef:     attempt.TxnRef,
		OrderInfo:  vnpay.NormalizeOrderInfo(fmt.Sprintf("Thanh toán hợp đồng %s", c.ContractNumber)),
		OrderType:  vnpay.OrderTypeBill,
		Amount:     minor,
		ReturnURL:  s.cfg.ReturnURL,
		IPAddr:     req.ClientIP,
		CreateDate: now,
		BankCode:   req.BankCode,
	}
	link := &Link{TxnRef: attempt.TxnRef}
	if s.cfg.PaymentTTL > 0 {
		pr.ExpireDate = now.Add(s.cfg.PaymentTTL)
		link.ExpiresAt = pr.ExpireDate.UTC()
	}
	link.URL = vnpay.SignedURL(s.cfg.GatewayURL, s.cfg.HashSecret, pr.Params())

	s.log.WithFields(log.Fields{
		"contract_id": c.ID,
		"txn_ref":     attempt.TxnRef,
		"amount":      amount,
	}).Info("payment link issued")

	return link, nil
}

// HandleCallback authenticates a gateway callback and applies the contract
// transition it carries at most once. It never returns an error: every
// failure is folded into the outcome.
func (s *Service) HandleCallback(ctx context.Context, values url.Values) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("callback handling panicked")
			out = outcome(false, MsgServerError, "")
		}
	}()

	if s.cfg.HashSecret == "" {
		s.log.Error("callback received without a configured hash secret")
		return outcome(false, MsgServerError, "")
	}

	cb, parseErr := vnpay.ParseCallback(values)
	if !cb.Verify(s.cfg.HashSecret) {
		s.log.WithField("txn_ref", cb.TxnRef).Warn("callback signature mismatch")
		return outcome(false, MsgInvalidSignature, "")
	}

	l := s.log.WithFields(log.Fields{"txn_ref": cb.TxnRef, "response_code": cb.ResponseCode})
	if parseErr != nil {
		l.WithError(parseErr).Error("verified callback is malformed")
		return outcome(false, MsgServerError, "")
	}

	attempt, err := s.store.FindAttempt(ctx, cb.TxnRef)
	if errors.Is(err, store.ErrNotFound) {
		l.Warn("callback for unknown transaction reference")
		return outcome(false, MsgContractNotFound, "")
	}
	if err != nil {
		l.WithError(err).Error("load payment attempt")
		return outcome(false, MsgServerError, "")
	}

	c, err := s.store.FindContract(ctx, attempt.ContractID)
	if errors.Is(err, store.ErrNotFound) {
		l.WithField("contract_id", attempt.ContractID).Warn("callback for missing contract")
		return outcome(false, MsgContractNotFound, "")
	}
	if err != nil {
		l.WithError(err).Error("load contract")
		return outcome(false, MsgServerError, "")
	}
	l = l.WithField("contract_id", c.ID)

	if c.Status == store.StatusActive {
		l.Info("callback for already active contract")
		return outcome(true, MsgPaymentAlreadyConfirmed, c.ID)
	}
	if attempt.CompletedAt != nil {
		// redelivery of an attempt that was already settled
		if attempt.ResponseCode == vnpay.ResponseSuccess {
			return outcome(true, MsgPaymentAlreadyConfirmed, c.ID)
		}
		return outcome(false, MsgPaymentFailed, c.ID)
	}
	if c.Status != store.StatusAwaitingPayment {
		l.WithField("status", c.Status).Warn("verified callback for contract not awaiting payment")
		return outcome(false, MsgInvalidContractState, c.ID)
	}

	want, _ := vnpay.MinorUnits(attempt.Amount)
	if cb.Amount != want {
		l.WithFields(log.Fields{"amount": cb.Amount, "expected": want}).Warn("callback amount mismatch")
		return outcome(false, MsgInvalidAmount, c.ID)
	}

	if cb.Succeeded() {
		won, err := s.store.ActivateContract(ctx, c.ID, cb.Details())
		if err != nil {
			l.WithError(err).Error("activate contract")
			return outcome(false, MsgServerError, c.ID)
		}
		if !won {
			return s.afterLostRace(ctx, l, c.ID)
		}
		s.completeAttempt(ctx, l, cb)
		l.Info("contract activated")
		s.notifyActivated(ctx, l, c)
		return outcome(true, MsgPaymentSuccess, c.ID)
	}

	won, err := s.store.MarkPaymentFailed(ctx, c.ID)
	if err != nil {
		l.WithError(err).Error("mark payment failed")
		return outcome(false, MsgServerError, c.ID)
	}
	if !won {
		return s.afterLostRace(ctx, l, c.ID)
	}
	s.completeAttempt(ctx, l, cb)
	l.Info("contract payment failed")
	return outcome(false, MsgPaymentFailed, c.ID)
}

// afterLostRace reports what a concurrent callback already did.
func (s *Service) afterLostRace(ctx context.Context, l log.FieldLogger, contractID string) Outcome {
	c, err := s.store.FindContract(ctx, contractID)
	if err != nil {
		l.WithError(err).Error("reload contract after conditional update")
		return outcome(false, MsgServerError, contractID)
	}
	switch c.Status {
	case store.StatusActive:
		return outcome(true, MsgPaymentAlreadyConfirmed, contractID)
	case store.StatusPaymentFailed:
		return outcome(false, MsgPaymentFailed, contractID)
	default:
		return outcome(false, MsgInvalidContractState, contractID)
	}
}

func (s *Service) completeAttempt(ctx context.Context, l log.FieldLogger, cb *vnpay.Callback) {
	if err := s.store.CompleteAttempt(ctx, cb.TxnRef, cb.ResponseCode); err != nil {
		l.WithError(err).Warn("record attempt result")
	}
}

// notifyActivated runs after the contract write; its failure is logged only.
func (s *Service) notifyActivated(ctx context.Context, l log.FieldLogger, c *store.Contract) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	n := store.Notification{
		ID:      uuid.NewString(),
		UserID:  c.UserID,
		Message: fmt.Sprintf("Thanh toán thành công cho hợp đồng \"%s\". Hợp đồng của bạn đã có hiệu lực.", c.ProductName),
		Link:    "/my-contracts/" + c.ID,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		m.IncNotificationFailed()
		l.WithError(err).Error("emit activation notification")
	}
}
