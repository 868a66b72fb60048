package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, owner_id, number, capacity, shape, x, y, width, height,
       status, current_server, occupied_since, created_by, created_at, updated_at`

func scanTable(row interface{ Scan(dest ...any) error }) (Table, error) {
	var t Table
	err := row.Scan(
		&t.ID, &t.OwnerID, &t.Number, &t.Capacity, &t.Shape,
		&t.X, &t.Y, &t.Width, &t.Height,
		&t.Status, &t.CurrentServer, &t.OccupiedSince,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

type CreateTableParams struct {
	OwnerID   uuid.UUID
	Number    int32
	Capacity  int32
	Shape     string
	X         float64
	Y         float64
	Width     float64
	Height    float64
	CreatedBy uuid.UUID
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	query := `
		INSERT INTO tables (owner_id, number, capacity, shape, x, y, width, height, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'AVAILABLE', $9)
		RETURNING ` + tableColumns
	return scanTable(q.db.QueryRow(ctx, query,
		arg.OwnerID, arg.Number, arg.Capacity, arg.Shape,
		arg.X, arg.Y, arg.Width, arg.Height, arg.CreatedBy,
	))
}

type GetTableParams struct {
	ID       uuid.UUID
	OwnerIDs []uuid.UUID
}

// GetTable fetches a table only if its owner is inside the caller's
// visibility scope. Out-of-scope rows read as absent.
func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (Table, error) {
	query := `SELECT ` + tableColumns + ` FROM tables WHERE id = $1 AND owner_id = ANY($2)`
	return scanTable(q.db.QueryRow(ctx, query, arg.ID, arg.OwnerIDs))
}

func (q *Queries) ListTables(ctx context.Context, ownerIDs []uuid.UUID) ([]Table, error) {
	query := `
		SELECT ` + tableColumns + `
		FROM tables
		WHERE owner_id = ANY($1)
		ORDER BY number
	`
	return q.listTables(ctx, query, ownerIDs)
}

// ListUnreleasedTables finds occupied tables with nothing left to pay or
// serve: every order at the table is either cancelled or already paid. These
// surface when the table release after a payment failed and needs the
// cashier's attention.
func (q *Queries) ListUnreleasedTables(ctx context.Context, ownerIDs []uuid.UUID) ([]Table, error) {
	query := `
		SELECT ` + tableColumns + `
		FROM tables t
		WHERE t.owner_id = ANY($1)
		  AND t.status = 'OCCUPIED'
		  AND NOT EXISTS (
			SELECT 1 FROM orders o
			WHERE o.table_id = t.id
			  AND o.status <> 'CANCELLED'
			  AND o.payment_status = 'UNPAID'
		  )
		ORDER BY t.number
	`
	return q.listTables(ctx, query, ownerIDs)
}

func (q *Queries) listTables(ctx context.Context, query string, ownerIDs []uuid.UUID) ([]Table, error) {
	rows, err := q.db.Query(ctx, query, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

type UpdateTablePositionParams struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	X       float64
	Y       float64
}

func (q *Queries) UpdateTablePosition(ctx context.Context, arg UpdateTablePositionParams) (Table, error) {
	query := `
		UPDATE tables
		SET x = $3, y = $4, updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + tableColumns
	return scanTable(q.db.QueryRow(ctx, query, arg.ID, arg.OwnerID, arg.X, arg.Y))
}

type UpdateTableStatusParams struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	Status        string
	CurrentServer pgtype.Text
	OccupiedSince pgtype.Timestamptz
}

// UpdateTableStatus writes status plus the server/occupancy pair in one
// statement so a table can never end up occupied without a server recorded.
func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (Table, error) {
	query := `
		UPDATE tables
		SET status = $3, current_server = $4, occupied_since = $5, updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + tableColumns
	return scanTable(q.db.QueryRow(ctx, query,
		arg.ID, arg.OwnerID, arg.Status, arg.CurrentServer, arg.OccupiedSince,
	))
}
