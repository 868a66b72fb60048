package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/actor"
	"github.com/mesa-pos/api/internal/middleware"
	"github.com/mesa-pos/api/internal/service"
	"github.com/shopspring/decimal"
)

// ActorResolver turns an authenticated user id into an Actor.
// Satisfied by *actor.Resolver; narrow interface for testability.
type ActorResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (actor.Actor, error)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Unknown errors are logged and reported as a plain 500 so store internals
// never leak to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrMenuItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrOrderClosed):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrDuplicateTable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrServerRequired),
		errors.Is(err, service.ErrInvalidShape),
		errors.Is(err, service.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrTableRelease):
		// Distinct from a clean failure: the payment is recorded, only the
		// table release needs manual attention.
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":            err.Error(),
			"payment_recorded": true,
		})
	default:
		log.Printf("handler: internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// numericToString renders a money column for JSON, "0.00" when null.
func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

// requireActor extracts claims and resolves the actor for a request. A
// resolver error logs and continues with the restricted actor it returned;
// a failed lookup narrows access, it never blocks or widens it.
func requireActor(w http.ResponseWriter, r *http.Request, resolver ActorResolver) (actor.Actor, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return actor.Actor{}, false
	}
	a, err := resolver.Resolve(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("handler: actor resolution degraded for %s: %v", claims.UserID, err)
	}
	return a, true
}
