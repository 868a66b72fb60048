package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/actor"
	"github.com/mesa-pos/api/internal/bus"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/policy"
	"github.com/shopspring/decimal"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ScopeResolver computes the visibility scope for an actor.
// Satisfied by *policy.Resolver.
type ScopeResolver interface {
	ScopeFor(ctx context.Context, a actor.Actor) (policy.Scope, error)
}

// EventPublisher receives status-change notifications. Satisfied by *bus.Bus.
type EventPublisher interface {
	Publish(ev bus.Event)
}

// OrderStore defines the DB methods the order lifecycle needs.
// Satisfied by *database.Queries (and its tx-scoped variant).
type OrderStore interface {
	GetMenuItemForOrder(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetTable(ctx context.Context, arg database.GetTableParams) (database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CascadeCancelItems(ctx context.Context, orderID uuid.UUID) (int64, error)
	CascadeDeliverItems(ctx context.Context, orderID uuid.UUID) (int64, error)
	GetOrderItem(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error)
	UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, id uuid.UUID) error
	ListOrders(ctx context.Context, ownerIDs []uuid.UUID) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	TableID uuid.UUID
	Server  string
	Notes   string
	Items   []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line in the order.
type CreateOrderItemRequest struct {
	MenuItemID uuid.UUID
	Quantity   int32
	Notes      string
}

// OrderWithItems is an order plus its line items.
type OrderWithItems struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService is the order lifecycle engine: creation, status transitions
// with cascades, line-item mutation with total recomputation, and
// scope-filtered reads.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	store    OrderStore
	scopes   ScopeResolver
	events   EventPublisher
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore, store OrderStore, scopes ScopeResolver, events EventPublisher) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, store: store, scopes: scopes, events: events}
}

// Create validates the request, snapshots menu prices, and inserts the order
// with its items in a single transaction. The table is occupied as a side
// effect when it was available or reserved. Either everything commits or
// nothing does; a half-created order is not a state this system has.
func (s *OrderService) Create(ctx context.Context, a actor.Actor, req CreateOrderRequest) (*OrderWithItems, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if req.Server == "" {
		return nil, ErrServerRequired
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	scope, err := s.scopes.ScopeFor(ctx, a)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTable(ctx, database.GetTableParams{ID: req.TableID, OwnerIDs: scope.Members})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("table %s: %w", req.TableID, ErrNotFound)
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	// Snapshot name and price per line, totalling as we go.
	total := decimal.Zero
	type line struct {
		menuItem database.MenuItem
		req      CreateOrderItemRequest
	}
	lines := make([]line, 0, len(req.Items))
	for i, item := range req.Items {
		mi, err := store.GetMenuItemForOrder(ctx, database.GetMenuItemForOrderParams{
			ID:       item.MenuItemID,
			OwnerIDs: scope.Members,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}
		total = total.Add(numericToDecimal(mi.Price).Mul(decimal.NewFromInt32(item.Quantity)))
		lines = append(lines, line{menuItem: mi, req: item})
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TableID:   req.TableID,
		OwnerID:   scope.Owner,
		CreatorID: a.ID,
		Server:    req.Server,
		Total:     decimalToNumeric(total),
		Notes:     textOrNull(req.Notes),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(lines))
	for _, l := range lines {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    order.ID,
			MenuItemID: l.menuItem.ID,
			Name:       l.menuItem.Name,
			Price:      l.menuItem.Price,
			Quantity:   l.req.Quantity,
			Notes:      textOrNull(l.req.Notes),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	if table.Status == enum.TableStatusAvailable || table.Status == enum.TableStatusReserved {
		_, err = store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:            table.ID,
			OwnerID:       table.OwnerID,
			Status:        enum.TableStatusOccupied,
			CurrentServer: pgtype.Text{String: req.Server, Valid: true},
			OccupiedSince: nowTimestamptz(),
		})
		if err != nil {
			return nil, fmt.Errorf("occupy table: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderWithItems{Order: order, Items: items}, nil
}

// Advance moves the order through the status machine. Same-status calls are
// idempotent no-ops so a retried request after a crash cannot double-apply a
// cascade. expectedVersion 0 skips the optimistic check; any other value must
// match the stored version or the call fails with ErrConflict.
//
// Terminal-adjacent transitions cascade onto items in the same transaction:
// cancelling stops pending/preparing items, delivering completes everything
// not already cancelled. A status_changed event goes out after commit.
func (s *OrderService) Advance(ctx context.Context, a actor.Actor, orderID uuid.UUID, newStatus string, expectedVersion int32) (*database.Order, error) {
	if !IsKnownOrderStatus(newStatus) {
		return nil, fmt.Errorf("%q: %w", newStatus, ErrInvalidStatus)
	}

	scope, err := s.scopes.ScopeFor(ctx, a)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{ID: orderID, OwnerIDs: scope.Members})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if order.Status == newStatus {
		// Retried transition: already applied, nothing to cascade.
		return &order, nil
	}

	if !ValidOrderTransition(order.Status, newStatus) {
		return nil, fmt.Errorf("%s -> %s: %w", order.Status, newStatus, ErrInvalidTransition)
	}

	if expectedVersion != 0 && expectedVersion != order.Version {
		return nil, fmt.Errorf("order %s at version %d, expected %d: %w", orderID, order.Version, expectedVersion, ErrConflict)
	}

	oldStatus := order.Status
	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:      orderID,
		Status:  newStatus,
		Version: order.Version,
	})
	if err != nil {
		// The row is locked, so a CAS miss here means something else is wrong.
		return nil, fmt.Errorf("update order status: %w", err)
	}

	switch newStatus {
	case enum.OrderStatusCancelled:
		if _, err := store.CascadeCancelItems(ctx, orderID); err != nil {
			return nil, err
		}
	case enum.OrderStatusDelivered:
		if _, err := store.CascadeDeliverItems(ctx, orderID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.events.Publish(bus.Event{
		Type:      enum.EventStatusChanged,
		OrderID:   updated.ID,
		TableID:   updated.TableID,
		OwnerID:   updated.OwnerID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	})

	return &updated, nil
}

// AdvanceItem moves a single line item through the item machine. The parent
// order's own status never ripples from item completion; order status is
// driven only by Advance, so kitchen pacing cannot race business status.
func (s *OrderService) AdvanceItem(ctx context.Context, a actor.Actor, itemID uuid.UUID, newStatus string) (*database.OrderItem, error) {
	if !IsKnownItemStatus(newStatus) {
		return nil, fmt.Errorf("%q: %w", newStatus, ErrInvalidStatus)
	}

	scope, err := s.scopes.ScopeFor(ctx, a)
	if err != nil {
		return nil, err
	}

	item, err := s.store.GetOrderItem(ctx, database.GetOrderItemParams{ID: itemID, OwnerIDs: scope.Members})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order item %s: %w", itemID, ErrNotFound)
		}
		return nil, fmt.Errorf("get order item: %w", err)
	}

	order, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: item.OrderID, OwnerIDs: scope.Members})
	if err != nil {
		return nil, fmt.Errorf("get parent order: %w", err)
	}
	if IsTerminalOrderStatus(order.Status) {
		return nil, fmt.Errorf("order is %s: %w", order.Status, ErrOrderClosed)
	}

	if item.Status == newStatus {
		return &item, nil
	}
	if !ValidItemTransition(item.Status, newStatus) {
		return nil, fmt.Errorf("%s -> %s: %w", item.Status, newStatus, ErrInvalidTransition)
	}

	updated, err := s.store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{ID: itemID, Status: newStatus})
	if err != nil {
		return nil, fmt.Errorf("update item status: %w", err)
	}
	return &updated, nil
}

// AddItem appends a line to an open order and recomputes the total from the
// authoritative item set.
func (s *OrderService) AddItem(ctx context.Context, a actor.Actor, orderID uuid.UUID, req CreateOrderItemRequest) (*OrderWithItems, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	scope, err := s.scopes.ScopeFor(ctx, a)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{ID: orderID, OwnerIDs: scope.Members})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if IsTerminalOrderStatus(order.Status) {
		return nil, fmt.Errorf("order is %s: %w", order.Status, ErrOrderClosed)
	}

	mi, err := store.GetMenuItemForOrder(ctx, database.GetMenuItemForOrderParams{
		ID:       req.MenuItemID,
		OwnerIDs: scope.Members,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("get menu item: %w", err)
	}

	if _, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
		OrderID:    orderID,
		MenuItemID: mi.ID,
		Name:       mi.Name,
		Price:      mi.Price,
		Quantity:   req.Quantity,
		Notes:      textOrNull(req.Notes),
	}); err != nil {
		return nil, fmt.Errorf("create order item: %w", err)
	}

	result, err := s.recomputeTotal(ctx, store, orderID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// RemoveItem deletes a line and recomputes the total, which floors at zero
// to tolerate any prior drift between the stored total and the item set.
func (s *OrderService) RemoveItem(ctx context.Context, a actor.Actor, itemID uuid.UUID) (*OrderWithItems, error) {
	scope, err := s.scopes.ScopeFor(ctx, a)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, err := store.GetOrderItem(ctx, database.GetOrderItemParams{ID: itemID, OwnerIDs: scope.Members})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order item %s: %w", itemID, ErrNotFound)
		}
		return nil, fmt.Errorf("get order item: %w", err)
	}

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{ID: item.OrderID, OwnerIDs: scope.Members})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if IsTerminalOrderStatus(order.Status) {
		return nil, fmt.Errorf("order is %s: %w", order.Status, ErrOrderClosed)
	}

	if err := store.DeleteOrderItem(ctx, itemID); err != nil {
		return nil, err
	}

	result, err := s.recomputeTotal(ctx, store, item.OrderID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// recomputeTotal derives the order total from the item set: price times
// quantity over every non-cancelled line, never negative.
func (s *OrderService) recomputeTotal(ctx context.Context, store OrderStore, orderID uuid.UUID) (*OrderWithItems, error) {
	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Status == enum.ItemStatusCancelled {
			continue
		}
		total = total.Add(numericToDecimal(item.Price).Mul(decimal.NewFromInt32(item.Quantity)))
	}
	if total.IsNegative() {
		total = decimal.Zero
	}

	order, err := store.UpdateOrderTotal(ctx, database.UpdateOrderTotalParams{ID: orderID, Total: decimalToNumeric(total)})
	if err != nil {
		return nil, fmt.Errorf("update order total: %w", err)
	}
	return &OrderWithItems{Order: order, Items: items}, nil
}

// ListVisible returns every order inside the actor's visibility scope with
// items attached. Legacy tenant-owned rows are covered because the tenant
// key itself is a scope member.
func (s *OrderService) ListVisible(ctx context.Context, a actor.Actor) ([]OrderWithItems, error) {
	scope, err := s.scopes.ScopeFor(ctx, a)
	if err != nil {
		return nil, err
	}

	orders, err := s.store.ListOrders(ctx, scope.Members)
	if err != nil {
		return nil, err
	}

	result := make([]OrderWithItems, 0, len(orders))
	for _, order := range orders {
		items, err := s.store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, OrderWithItems{Order: order, Items: items})
	}
	return result, nil
}

// Get fetches one visible order with items.
func (s *OrderService) Get(ctx context.Context, a actor.Actor, orderID uuid.UUID) (*OrderWithItems, error) {
	scope, err := s.scopes.ScopeFor(ctx, a)
	if err != nil {
		return nil, err
	}

	order, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, OwnerIDs: scope.Members})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := s.store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderWithItems{Order: order, Items: items}, nil
}

// --- Helpers ---

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
