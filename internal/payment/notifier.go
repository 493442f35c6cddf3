package payment

import (
	"context"

	"github.com/example/insurance-portal/internal/store"
)

// Notifier records user-facing notification events.
type Notifier interface {
	Notify(ctx context.Context, n store.Notification) error
}

type notificationWriter interface {
	CreateNotification(ctx context.Context, n *store.Notification) error
}

// StoreNotifier writes notifications straight into the portal database.
type StoreNotifier struct {
	w notificationWriter
}

func NewStoreNotifier(w notificationWriter) *StoreNotifier {
	return &StoreNotifier{w: w}
}

func (s *StoreNotifier) Notify(ctx context.Context, n store.Notification) error {
	return s.w.CreateNotification(ctx, &n)
}
