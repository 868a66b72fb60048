package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const menuItemColumns = `id, owner_id, name, price, available, created_at`

func scanMenuItem(row interface{ Scan(dest ...any) error }) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(&m.ID, &m.OwnerID, &m.Name, &m.Price, &m.Available, &m.CreatedAt)
	return m, err
}

type GetMenuItemForOrderParams struct {
	ID       uuid.UUID
	OwnerIDs []uuid.UUID
}

// GetMenuItemForOrder fetches the price/name snapshot source for a new order
// line. Only available items inside the caller's scope qualify.
func (q *Queries) GetMenuItemForOrder(ctx context.Context, arg GetMenuItemForOrderParams) (MenuItem, error) {
	query := `
		SELECT ` + menuItemColumns + `
		FROM menu_items
		WHERE id = $1 AND owner_id = ANY($2) AND available
	`
	return scanMenuItem(q.db.QueryRow(ctx, query, arg.ID, arg.OwnerIDs))
}

func (q *Queries) ListMenuItems(ctx context.Context, ownerIDs []uuid.UUID) ([]MenuItem, error) {
	query := `
		SELECT ` + menuItemColumns + `
		FROM menu_items
		WHERE owner_id = ANY($1) AND available
		ORDER BY name
	`
	rows, err := q.db.Query(ctx, query, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
