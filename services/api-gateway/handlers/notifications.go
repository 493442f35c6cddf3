// services/api-gateway/handlers/notifications.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/example/insurance-portal/internal/auth"
	"github.com/example/insurance-portal/internal/store"
	perr "github.com/example/insurance-portal/pkg/errors"
)

type NotificationStore interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]*store.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
	DeleteNotification(ctx context.Context, id, userID string) error
}

type Notifications struct {
	Store NotificationStore
	Log   log.FieldLogger
}

func (n *Notifications) List(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 || v > 200 {
			writeError(w, perr.New(perr.CodeInvalidInput, "limit must be between 0 and 200"))
			return
		}
		limit = v
	}
	list, err := n.Store.ListNotifications(r.Context(), claims.UserID, limit)
	if err != nil {
		n.Log.WithError(err).Error("list notifications")
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*store.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (n *Notifications) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	if err := n.Store.MarkNotificationRead(r.Context(), mux.Vars(r)["id"], claims.UserID); err != nil {
		writeError(w, n.storeErr(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (n *Notifications) Delete(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	if err := n.Store.DeleteNotification(r.Context(), mux.Vars(r)["id"], claims.UserID); err != nil {
		writeError(w, n.storeErr(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (n *Notifications) storeErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return perr.New(perr.CodeNotFound, "notification not found")
	}
	n.Log.WithError(err).Error("notification store")
	return err
}
