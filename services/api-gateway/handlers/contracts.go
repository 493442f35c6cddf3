// services/api-gateway/handlers/contracts.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/example/insurance-portal/internal/auth"
	"github.com/example/insurance-portal/internal/store"
	perr "github.com/example/insurance-portal/pkg/errors"
)

type ContractStore interface {
	FindContract(ctx context.Context, id string) (*store.Contract, error)
	ListContractsByUser(ctx context.Context, userID string) ([]*store.Contract, error)
	ReopenPayment(ctx context.Context, id string) (bool, error)
}

type Contracts struct {
	Store ContractStore
	Log   log.FieldLogger
}

func (c *Contracts) Mine(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	list, err := c.Store.ListContractsByUser(r.Context(), claims.UserID)
	if err != nil {
		c.Log.WithError(err).Error("list contracts")
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*store.Contract{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ReopenPayment moves a PaymentFailed contract back to AwaitingPayment so
// the customer can start a new attempt.
func (c *Contracts) ReopenPayment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ok, err := c.Store.ReopenPayment(r.Context(), id)
	if err != nil {
		c.Log.WithError(err).WithField("contract_id", id).Error("reopen payment")
		writeError(w, err)
		return
	}
	if !ok {
		_, err := c.Store.FindContract(r.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, perr.New(perr.CodeNotFound, "contract not found"))
		case err != nil:
			writeError(w, err)
		default:
			writeError(w, perr.New(perr.CodeConflict, "contract is not in PaymentFailed state"))
		}
		return
	}

	claims, _ := auth.ClaimsFrom(r.Context())
	c.Log.WithFields(log.Fields{"contract_id": id, "admin": claims.UserID}).Info("payment reopened")

	contract, err := c.Store.FindContract(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contract)
}
