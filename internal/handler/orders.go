package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesa-pos/api/internal/actor"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Create(ctx context.Context, a actor.Actor, req service.CreateOrderRequest) (*service.OrderWithItems, error)
	Advance(ctx context.Context, a actor.Actor, orderID uuid.UUID, newStatus string, expectedVersion int32) (*database.Order, error)
	AdvanceItem(ctx context.Context, a actor.Actor, itemID uuid.UUID, newStatus string) (*database.OrderItem, error)
	AddItem(ctx context.Context, a actor.Actor, orderID uuid.UUID, req service.CreateOrderItemRequest) (*service.OrderWithItems, error)
	RemoveItem(ctx context.Context, a actor.Actor, itemID uuid.UUID) (*service.OrderWithItems, error)
	ListVisible(ctx context.Context, a actor.Actor) ([]service.OrderWithItems, error)
	Get(ctx context.Context, a actor.Actor, orderID uuid.UUID) (*service.OrderWithItems, error)
}

// OrderHandler handles order and order-item endpoints.
type OrderHandler struct {
	svc      OrderServicer
	resolver ActorResolver
}

func NewOrderHandler(svc OrderServicer, resolver ActorResolver) *OrderHandler {
	return &OrderHandler{svc: svc, resolver: resolver}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/items", h.AddItem)
	r.Patch("/items/{id}/status", h.UpdateItemStatus)
	r.Delete("/items/{id}", h.RemoveItem)
}

// --- Request / Response types ---

type createOrderRequest struct {
	TableID string                   `json:"table_id"`
	Server  string                   `json:"server"`
	Notes   string                   `json:"notes"`
	Items   []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Notes      string `json:"notes"`
}

type updateOrderStatusRequest struct {
	Status          string `json:"status"`
	ExpectedVersion int32  `json:"expected_version"`
}

type updateItemStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	TableID       uuid.UUID           `json:"table_id"`
	Server        string              `json:"server"`
	Status        string              `json:"status"`
	Total         string              `json:"total"`
	Notes         *string             `json:"notes"`
	PaymentStatus string              `json:"payment_status"`
	PaidAt        *time.Time          `json:"paid_at"`
	Version       int32               `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Items         []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
	Quantity   int32     `json:"quantity"`
	Notes      *string   `json:"notes"`
	Status     string    `json:"status"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
		return
	}

	items := make([]service.CreateOrderItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu_item_id"})
			return
		}
		items = append(items, service.CreateOrderItemRequest{
			MenuItemID: menuItemID,
			Quantity:   item.Quantity,
			Notes:      item.Notes,
		})
	}

	result, err := h.svc.Create(r.Context(), a, service.CreateOrderRequest{
		TableID: tableID,
		Server:  req.Server,
		Notes:   req.Notes,
		Items:   items,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result.Order, result.Items))
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	orders, err := h.svc.ListVisible(r.Context(), a)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o.Order, o.Items))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": resp})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	result, err := h.svc.Get(r.Context(), a, orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result.Order, result.Items))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.svc.Advance(r.Context(), a, orderID, req.Status, req.ExpectedVersion)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(*order, nil))
}

// AddItem handles POST /orders/{id}/items.
func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req createOrderItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	menuItemID, err := uuid.Parse(req.MenuItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu_item_id"})
		return
	}

	result, err := h.svc.AddItem(r.Context(), a, orderID, service.CreateOrderItemRequest{
		MenuItemID: menuItemID,
		Quantity:   req.Quantity,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result.Order, result.Items))
}

// UpdateItemStatus handles PATCH /orders/items/{id}/status.
func (h *OrderHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req updateItemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	item, err := h.svc.AdvanceItem(r.Context(), a, itemID, req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderItemResponse(*item))
}

// RemoveItem handles DELETE /orders/items/{id}.
func (h *OrderHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	result, err := h.svc.RemoveItem(r.Context(), a, itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result.Order, result.Items))
}

// --- Helpers ---

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		TableID:       o.TableID,
		Server:        o.Server,
		Status:        o.Status,
		Total:         numericToString(o.Total),
		Notes:         textPtr(o.Notes),
		PaymentStatus: o.PaymentStatus,
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.PaidAt.Valid {
		resp.PaidAt = &o.PaidAt.Time
	}
	for _, item := range items {
		resp.Items = append(resp.Items, toOrderItemResponse(item))
	}
	return resp
}

func toOrderItemResponse(i database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:         i.ID,
		MenuItemID: i.MenuItemID,
		Name:       i.Name,
		Price:      numericToString(i.Price),
		Quantity:   i.Quantity,
		Notes:      textPtr(i.Notes),
		Status:     i.Status,
	}
}
