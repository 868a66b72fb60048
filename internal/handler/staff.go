package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

// StaffStore defines the database methods needed by staff handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type StaffStore interface {
	CreateProfile(ctx context.Context, arg database.CreateProfileParams) (database.UserProfile, error)
	ListStaffByAdmin(ctx context.Context, adminID uuid.UUID) ([]database.UserProfile, error)
	UpdateProfileStatus(ctx context.Context, arg database.UpdateProfileStatusParams) (database.UserProfile, error)
	GetProfileByUserID(ctx context.Context, userID uuid.UUID) (database.UserProfile, error)
}

// StaffHandler manages the staff roster. All routes are admin-only; the
// created staff inherit the admin's ownership scope and tenant key.
type StaffHandler struct {
	store    StaffStore
	resolver ActorResolver
}

func NewStaffHandler(store StaffStore, resolver ActorResolver) *StaffHandler {
	return &StaffHandler{store: store, resolver: resolver}
}

// RegisterRoutes registers staff endpoints on the given Chi router.
func (h *StaffHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type createStaffRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type staffResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type updateStaffStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /staff.
func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}
	if !a.IsAdmin() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin role required"})
		return
	}

	var req createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.FullName == "" || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "full_name, email and password are required"})
		return
	}
	if !isValidStaffRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// The staff member shares the admin's tenant key so tenant-wide
	// visibility extends to rows they create.
	adminProfile, err := h.store.GetProfileByUserID(r.Context(), a.ID)
	restaurantID := pgtype.UUID{}
	if err == nil {
		restaurantID = adminProfile.RestaurantID
	}

	profile, err := h.store.CreateProfile(r.Context(), database.CreateProfileParams{
		UserID:         uuid.New(),
		FullName:       req.FullName,
		Email:          req.Email,
		HashedPassword: string(hashed),
		Role:           req.Role,
		AdminID:        pgtype.UUID{Bytes: a.ID, Valid: true},
		RestaurantID:   restaurantID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toStaffResponse(profile))
}

// List handles GET /staff.
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}
	if !a.IsAdmin() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin role required"})
		return
	}

	staff, err := h.store.ListStaffByAdmin(r.Context(), a.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]staffResponse, 0, len(staff))
	for _, p := range staff {
		resp = append(resp, toStaffResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"staff": resp})
}

// UpdateStatus handles PATCH /staff/{id}/status.
func (h *StaffHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r, h.resolver)
	if !ok {
		return
	}
	if !a.IsAdmin() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin role required"})
		return
	}

	profileID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid staff ID"})
		return
	}

	var req updateStaffStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status != enum.StaffStatusActive && req.Status != enum.StaffStatusInactive {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	profile, err := h.store.UpdateProfileStatus(r.Context(), database.UpdateProfileStatusParams{
		ID:      profileID,
		AdminID: a.ID,
		Status:  req.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "staff member not found"})
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStaffResponse(profile))
}

// --- Helpers ---

func isValidStaffRole(role string) bool {
	switch role {
	case enum.RoleWaiter, enum.RoleCook, enum.RoleCashier:
		return true
	}
	return false
}

func toStaffResponse(p database.UserProfile) staffResponse {
	return staffResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		FullName:  p.FullName,
		Email:     p.Email,
		Role:      p.Role,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
}
