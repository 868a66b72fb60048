package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, table_id, owner_id, creator_id, server, status, total,
       notes, payment_status, paid_at, version, created_at, updated_at`

const orderItemColumns = `id, order_id, menu_item_id, name, price, quantity, notes, status, created_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.TableID, &o.OwnerID, &o.CreatorID, &o.Server, &o.Status, &o.Total,
		&o.Notes, &o.PaymentStatus, &o.PaidAt, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func scanOrderItem(row interface{ Scan(dest ...any) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID, &i.OrderID, &i.MenuItemID, &i.Name, &i.Price, &i.Quantity,
		&i.Notes, &i.Status, &i.CreatedAt,
	)
	return i, err
}

type CreateOrderParams struct {
	TableID   uuid.UUID
	OwnerID   uuid.UUID
	CreatorID uuid.UUID
	Server    string
	Total     pgtype.Numeric
	Notes     pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	query := `
		INSERT INTO orders (table_id, owner_id, creator_id, server, status, total, notes, payment_status, version)
		VALUES ($1, $2, $3, $4, 'PENDING', $5, $6, 'UNPAID', 1)
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, query,
		arg.TableID, arg.OwnerID, arg.CreatorID, arg.Server, arg.Total, arg.Notes,
	))
}

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	Price      pgtype.Numeric
	Quantity   int32
	Notes      pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	query := `
		INSERT INTO order_items (order_id, menu_item_id, name, price, quantity, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'PENDING')
		RETURNING ` + orderItemColumns
	return scanOrderItem(q.db.QueryRow(ctx, query,
		arg.OrderID, arg.MenuItemID, arg.Name, arg.Price, arg.Quantity, arg.Notes,
	))
}

type GetOrderParams struct {
	ID       uuid.UUID
	OwnerIDs []uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND owner_id = ANY($2)`
	return scanOrder(q.db.QueryRow(ctx, query, arg.ID, arg.OwnerIDs))
}

type GetOrderForUpdateParams struct {
	ID       uuid.UUID
	OwnerIDs []uuid.UUID
}

// GetOrderForUpdate locks the order row for the duration of the enclosing
// transaction. Status transitions read-modify-write under this lock.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderForUpdateParams) (Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND owner_id = ANY($2) FOR UPDATE`
	return scanOrder(q.db.QueryRow(ctx, query, arg.ID, arg.OwnerIDs))
}

func (q *Queries) ListOrders(ctx context.Context, ownerIDs []uuid.UUID) ([]Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE owner_id = ANY($1)
		ORDER BY created_at DESC
	`
	return q.listOrders(ctx, query, ownerIDs)
}

type ListBillableOrdersParams struct {
	OwnerIDs      []uuid.UUID
	PaymentStatus string
}

// ListBillableOrders feeds the cashier view: delivered-and-unpaid orders for
// pending bills, paid orders for completed bills.
func (q *Queries) ListBillableOrders(ctx context.Context, arg ListBillableOrdersParams) ([]Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE owner_id = ANY($1)
		  AND status = 'DELIVERED'
		  AND payment_status = $2
		ORDER BY table_id, created_at
	`
	rows, err := q.db.Query(ctx, query, arg.OwnerIDs, arg.PaymentStatus)
	if err != nil {
		return nil, fmt.Errorf("list billable orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (q *Queries) listOrders(ctx context.Context, query string, ownerIDs []uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, query, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Order, error) {
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	query := `
		SELECT ` + orderItemColumns + `
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at
	`
	rows, err := q.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type UpdateOrderStatusParams struct {
	ID      uuid.UUID
	Status  string
	Version int32
}

// UpdateOrderStatus is the version compare-and-swap. No row comes back when
// the caller's version is stale; the service reports that as a conflict.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	query := `
		UPDATE orders
		SET status = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, query, arg.ID, arg.Status, arg.Version))
}

// CascadeCancelItems force-cancels every item still in the kitchen pipeline.
// Items already ready or delivered keep their status: the food exists.
func (q *Queries) CascadeCancelItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	query := `
		UPDATE order_items
		SET status = 'CANCELLED'
		WHERE order_id = $1 AND status IN ('PENDING', 'PREPARING')
	`
	tag, err := q.db.Exec(ctx, query, orderID)
	if err != nil {
		return 0, fmt.Errorf("cascade cancel items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CascadeDeliverItems force-delivers every non-cancelled item when the order
// itself is delivered.
func (q *Queries) CascadeDeliverItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	query := `
		UPDATE order_items
		SET status = 'DELIVERED'
		WHERE order_id = $1 AND status <> 'CANCELLED' AND status <> 'DELIVERED'
	`
	tag, err := q.db.Exec(ctx, query, orderID)
	if err != nil {
		return 0, fmt.Errorf("cascade deliver items: %w", err)
	}
	return tag.RowsAffected(), nil
}

type GetOrderItemParams struct {
	ID       uuid.UUID
	OwnerIDs []uuid.UUID
}

// GetOrderItem resolves an item through its parent order so scope filtering
// applies to items exactly as it does to orders.
func (q *Queries) GetOrderItem(ctx context.Context, arg GetOrderItemParams) (OrderItem, error) {
	query := `
		SELECT i.id, i.order_id, i.menu_item_id, i.name, i.price, i.quantity, i.notes, i.status, i.created_at
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE i.id = $1 AND o.owner_id = ANY($2)
	`
	return scanOrderItem(q.db.QueryRow(ctx, query, arg.ID, arg.OwnerIDs))
}

type UpdateOrderItemStatusParams struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) UpdateOrderItemStatus(ctx context.Context, arg UpdateOrderItemStatusParams) (OrderItem, error) {
	query := `
		UPDATE order_items
		SET status = $2
		WHERE id = $1
		RETURNING ` + orderItemColumns
	return scanOrderItem(q.db.QueryRow(ctx, query, arg.ID, arg.Status))
}

func (q *Queries) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM order_items WHERE id = $1`
	tag, err := q.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete order item: no rows affected")
	}
	return nil
}

type UpdateOrderTotalParams struct {
	ID    uuid.UUID
	Total pgtype.Numeric
}

// UpdateOrderTotal persists a recomputed total. Bumps the version so a
// concurrent status CAS started against the old row fails cleanly.
func (q *Queries) UpdateOrderTotal(ctx context.Context, arg UpdateOrderTotalParams) (Order, error) {
	query := `
		UPDATE orders
		SET total = $2, version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, query, arg.ID, arg.Total))
}

type MarkOrderPaidParams struct {
	ID       uuid.UUID
	OwnerIDs []uuid.UUID
}

// MarkOrderPaid records payment on a delivered, still-unpaid order. The
// status guard makes a double payment read as not-found rather than a
// silent second write.
func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	query := `
		UPDATE orders
		SET payment_status = 'PAID', paid_at = now(), updated_at = now()
		WHERE id = $1
		  AND owner_id = ANY($2)
		  AND status = 'DELIVERED'
		  AND payment_status = 'UNPAID'
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, query, arg.ID, arg.OwnerIDs))
}
