package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// UserProfile links an authentication identity to a restaurant-scoped role.
// AdminID points at the admin (owner) account the staff member belongs to;
// it is null for admins themselves. RestaurantID is the shared tenant key
// that lets several legacy admin accounts of one physical restaurant see
// each other's data.
type UserProfile struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           string
	AdminID        pgtype.UUID
	RestaurantID   pgtype.UUID
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Table is a floor-plan table. Geometry is in floor-plan pixels.
type Table struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	Number        int32
	Capacity      int32
	Shape         string
	X             float64
	Y             float64
	Width         float64
	Height        float64
	Status        string
	CurrentServer pgtype.Text
	OccupiedSince pgtype.Timestamptz
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MenuItem is the read-only catalog entry consumed at order creation.
type MenuItem struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Price     pgtype.Numeric
	Available bool
	CreatedAt time.Time
}

// Order. Total is derived from the item set and never hand-set. Version is
// the optimistic concurrency token: every status/total mutation is a
// compare-and-swap against it.
type Order struct {
	ID            uuid.UUID
	TableID       uuid.UUID
	OwnerID       uuid.UUID
	CreatorID     uuid.UUID
	Server        string
	Status        string
	Total         pgtype.Numeric
	Notes         pgtype.Text
	PaymentStatus string
	PaidAt        pgtype.Timestamptz
	Version       int32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem snapshots name and price from the menu at order time so later
// menu edits never change a bill.
type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	Price      pgtype.Numeric
	Quantity   int32
	Notes      pgtype.Text
	Status     string
	CreatedAt  time.Time
}
