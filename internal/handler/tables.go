package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesa-pos/api/internal/actor"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/service"
)

// TableServicer defines the service methods needed by table handlers.
// Satisfied by *service.TableService; narrow interface for testability.
type TableServicer interface {
	Create(ctx context.Context, a actor.Actor, req service.CreateTableRequest) (*database.Table, error)
	Move(ctx context.Context, a actor.Actor, tableID uuid.UUID, x, y float64) (*database.Table, error)
	SetStatus(ctx context.Context, a actor.Actor, tableID uuid.UUID, status, server string) (*database.Table, error)
	ListVisible(ctx context.Context, a actor.Actor) ([]database.Table, error)
}

// TableHandler handles floor-plan table endpoints.
type TableHandler struct {
	svc      TableServicer
	resolver ActorResolver
}

func NewTableHandler(svc TableServicer, resolver ActorResolver) *TableHandler {
	return &TableHandler{svc: svc, resolver: resolver}
}

// RegisterRoutes registers table endpoints on the given Chi router.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Patch("/{id}/position", h.Move)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type createTableRequest struct {
	Number   int32   `json:"number"`
	Capacity int32   `json:"capacity"`
	Shape    string  `json:"shape"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

type moveTableRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type updateTableStatusRequest struct {
	Status string `json:"status"`
	Server string `json:"server"`
}

type tableResponse struct {
	ID            uuid.UUID  `json:"id"`
	Number        int32      `json:"number"`
	Capacity      int32      `json:"capacity"`
	Shape         string     `json:"shape"`
	X             float64    `json:"x"`
	Y             float64    `json:"y"`
	Width         float64    `json:"width"`
	Height        float64    `json:"height"`
	Status        string     `json:"status"`
	CurrentServer *string    `json:"current_server"`
	OccupiedSince *time.Time `json:"occupied_since"`
}

// moveTableResponse flags a reverted position so the floor plan can snap the
// table back instead of leaving it where the drag put it.
type moveTableResponse struct {
	Table    tableResponse `json:"table"`
	Reverted bool          `json:"reverted"`
}

// --- Handlers ---

// Create handles POST /tables.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Number <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "number must be positive"})
		return
	}
	if req.Capacity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "capacity must be positive"})
		return
	}

	table, err := h.svc.Create(r.Context(), a, service.CreateTableRequest{
		Number:   req.Number,
		Capacity: req.Capacity,
		Shape:    req.Shape,
		X:        req.X,
		Y:        req.Y,
		Width:    req.Width,
		Height:   req.Height,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTableResponse(*table))
}

// List handles GET /tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	tables, err := h.svc.ListVisible(r.Context(), a)
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

// Move handles PATCH /tables/{id}/position.
func (h *TableHandler) Move(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req moveTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	table, err := h.svc.Move(r.Context(), a, tableID, req.X, req.Y)
	if err != nil {
		if errors.Is(err, service.ErrRevert) && table != nil {
			// Position writes fail soft: 200 with the stored position.
			writeJSON(w, http.StatusOK, moveTableResponse{Table: toTableResponse(*table), Reverted: true})
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, moveTableResponse{Table: toTableResponse(*table)})
}

// UpdateStatus handles PATCH /tables/{id}/status.
func (h *TableHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}

	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req updateTableStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	table, err := h.svc.SetStatus(r.Context(), a, tableID, req.Status, req.Server)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTableResponse(*table))
}

// --- Helpers ---

func toTableResponse(t database.Table) tableResponse {
	resp := tableResponse{
		ID:            t.ID,
		Number:        t.Number,
		Capacity:      t.Capacity,
		Shape:         t.Shape,
		X:             t.X,
		Y:             t.Y,
		Width:         t.Width,
		Height:        t.Height,
		Status:        t.Status,
		CurrentServer: textPtr(t.CurrentServer),
	}
	if t.OccupiedSince.Valid {
		resp.OccupiedSince = &t.OccupiedSince.Time
	}
	return resp
}
