package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/actor"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
)

// TableStore defines the DB methods the table service needs.
// Satisfied by *database.Queries.
type TableStore interface {
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	GetTable(ctx context.Context, arg database.GetTableParams) (database.Table, error)
	ListTables(ctx context.Context, ownerIDs []uuid.UUID) ([]database.Table, error)
	UpdateTablePosition(ctx context.Context, arg database.UpdateTablePositionParams) (database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
}

// CreateTableRequest describes a new floor-plan table.
type CreateTableRequest struct {
	Number   int32
	Capacity int32
	Shape    string
	X        float64
	Y        float64
	Width    float64
	Height   float64
}

// TableService holds table records and enforces who may create or mutate
// them. Reads are filtered through the visibility scope; status writes are
// allowed on any visible table, layout writes only for the owning admin.
type TableService struct {
	store  TableStore
	scopes ScopeResolver
}

func NewTableService(store TableStore, scopes ScopeResolver) *TableService {
	return &TableService{store: store, scopes: scopes}
}

// Create adds a table to the floor plan. Admin only; the new row is owned by
// the creating admin.
func (s *TableService) Create(ctx context.Context, a actor.Actor, req CreateTableRequest) (*database.Table, error) {
	if !a.IsAdmin() {
		return nil, fmt.Errorf("create table requires admin role: %w", ErrPermissionDenied)
	}
	if !isValidShape(req.Shape) {
		return nil, fmt.Errorf("%q: %w", req.Shape, ErrInvalidShape)
	}

	table, err := s.store.CreateTable(ctx, database.CreateTableParams{
		OwnerID:   a.ID,
		Number:    req.Number,
		Capacity:  req.Capacity,
		Shape:     req.Shape,
		X:         req.X,
		Y:         req.Y,
		Width:     req.Width,
		Height:    req.Height,
		CreatedBy: a.ID,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("number %d: %w", req.Number, ErrDuplicateTable)
		}
		return nil, fmt.Errorf("create table: %w", err)
	}
	return &table, nil
}

// Move persists a floor-plan drag. Geometry writes go straight through; when
// persistence fails, the authoritative row is refetched and returned with
// ErrRevert so the caller restores the stored position instead of showing a
// stale one. Admin only: layout is not a staff-writable field.
func (s *TableService) Move(ctx context.Context, a actor.Actor, tableID uuid.UUID, x, y float64) (*database.Table, error) {
	if !a.IsAdmin() {
		return nil, fmt.Errorf("move table requires admin role: %w", ErrPermissionDenied)
	}

	table, err := s.store.UpdateTablePosition(ctx, database.UpdateTablePositionParams{
		ID:      tableID,
		OwnerID: a.ID,
		X:       x,
		Y:       y,
	})
	if err == nil {
		return &table, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("table %s: %w", tableID, ErrNotFound)
	}

	// Soft failure: surface the stored position so nothing stale stays
	// visible. The refetch itself failing is a hard store error.
	stored, refetchErr := s.store.GetTable(ctx, database.GetTableParams{ID: tableID, OwnerIDs: []uuid.UUID{a.ID}})
	if refetchErr != nil {
		return nil, fmt.Errorf("move table: %w", err)
	}
	return &stored, fmt.Errorf("%w: %v", ErrRevert, err)
}

// SetStatus transitions a visible table. Occupying requires a server
// assignment and stamps occupied_since; any transition to available clears
// both. Writes stay inside the actor's scope, never cross-tenant.
func (s *TableService) SetStatus(ctx context.Context, a actor.Actor, tableID uuid.UUID, status, server string) (*database.Table, error) {
	if !isValidTableStatus(status) {
		return nil, fmt.Errorf("%q: %w", status, ErrInvalidStatus)
	}

	scope, err := s.scopes.ScopeFor(ctx, a)
	if err != nil {
		return nil, err
	}

	table, err := s.store.GetTable(ctx, database.GetTableParams{ID: tableID, OwnerIDs: scope.Members})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("table %s: %w", tableID, ErrNotFound)
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	currentServer := table.CurrentServer
	occupiedSince := table.OccupiedSince
	switch status {
	case enum.TableStatusOccupied:
		if server == "" && !currentServer.Valid {
			return nil, ErrServerRequired
		}
		if server != "" {
			currentServer = pgtype.Text{String: server, Valid: true}
		}
		if table.Status != enum.TableStatusOccupied {
			occupiedSince = nowTimestamptz()
		}
	case enum.TableStatusAvailable:
		currentServer = pgtype.Text{}
		occupiedSince = pgtype.Timestamptz{}
	}

	updated, err := s.store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID:            table.ID,
		OwnerID:       table.OwnerID,
		Status:        status,
		CurrentServer: currentServer,
		OccupiedSince: occupiedSince,
	})
	if err != nil {
		return nil, fmt.Errorf("update table status: %w", err)
	}
	return &updated, nil
}

// ListVisible returns every table inside the actor's visibility scope.
func (s *TableService) ListVisible(ctx context.Context, a actor.Actor) ([]database.Table, error) {
	scope, err := s.scopes.ScopeFor(ctx, a)
	if err != nil {
		return nil, err
	}
	return s.store.ListTables(ctx, scope.Members)
}

// --- Helpers ---

func isValidShape(s string) bool {
	switch s {
	case enum.TableShapeRectangle, enum.TableShapeCircle, enum.TableShapeSquare:
		return true
	}
	return false
}

func isValidTableStatus(s string) bool {
	switch s {
	case enum.TableStatusAvailable, enum.TableStatusOccupied, enum.TableStatusReserved:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nowTimestamptz() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: time.Now(), Valid: true}
}
