package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesa-pos/api/internal/actor"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/service"
)

// BillingServicer defines the service methods needed by billing handlers.
type BillingServicer interface {
	PendingBills(ctx context.Context, a actor.Actor) ([]service.Bill, error)
	CompletedBills(ctx context.Context, a actor.Actor) ([]service.Bill, error)
	CompletePayment(ctx context.Context, a actor.Actor, tableID uuid.UUID, orderIDs []uuid.UUID) error
	UnreleasedTables(ctx context.Context, a actor.Actor) ([]database.Table, error)
}

// BillingHandler handles the cashier endpoints.
type BillingHandler struct {
	svc      BillingServicer
	resolver ActorResolver
}

func NewBillingHandler(svc BillingServicer, resolver ActorResolver) *BillingHandler {
	return &BillingHandler{svc: svc, resolver: resolver}
}

// RegisterRoutes registers billing endpoints on the given Chi router.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/pending", h.Pending)
	r.Get("/completed", h.Completed)
	r.Post("/payments", h.CompletePayment)
	r.Get("/unreleased-tables", h.UnreleasedTables)
}

type completePaymentRequest struct {
	TableID  string   `json:"table_id"`
	OrderIDs []string `json:"order_ids"`
}

type billResponse struct {
	TableID     uuid.UUID       `json:"table_id"`
	TableNumber int32           `json:"table_number"`
	Total       string          `json:"total"`
	Orders      []orderResponse `json:"orders"`
}

// Pending handles GET /billing/pending.
func (h *BillingHandler) Pending(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	bills, err := h.svc.PendingBills(r.Context(), a)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bills": toBillResponses(bills)})
}

// Completed handles GET /billing/completed.
func (h *BillingHandler) Completed(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	bills, err := h.svc.CompletedBills(r.Context(), a)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bills": toBillResponses(bills)})
}

// CompletePayment handles POST /billing/payments.
func (h *BillingHandler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	var req completePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
		return
	}
	orderIDs := make([]uuid.UUID, 0, len(req.OrderIDs))
	for _, raw := range req.OrderIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
			return
		}
		orderIDs = append(orderIDs, id)
	}

	if err := h.svc.CompletePayment(r.Context(), a, tableID, orderIDs); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Payment completed"})
}

// UnreleasedTables handles GET /billing/unreleased-tables. Lists occupied
// tables with no unpaid orders left, so a cashier can release them after a
// payment that failed to free the table.
func (h *BillingHandler) UnreleasedTables(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	tables, err := h.svc.UnreleasedTables(r.Context(), a)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]tableResponse, 0, len(tables))
	for _, t := range tables {
		resp = append(resp, toTableResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tables": resp})
}

func toBillResponses(bills []service.Bill) []billResponse {
	resp := make([]billResponse, 0, len(bills))
	for _, b := range bills {
		orders := make([]orderResponse, 0, len(b.Orders))
		for _, o := range b.Orders {
			orders = append(orders, toOrderResponse(o, nil))
		}
		resp = append(resp, billResponse{
			TableID:     b.TableID,
			TableNumber: b.TableNumber,
			Total:       b.Total.StringFixed(2),
			Orders:      orders,
		})
	}
	return resp
}
