package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/actor"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// BillingStore defines the DB methods the cashier view needs.
// Satisfied by *database.Queries (and its tx-scoped variant).
type BillingStore interface {
	ListBillableOrders(ctx context.Context, arg database.ListBillableOrdersParams) ([]database.Order, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	GetTable(ctx context.Context, arg database.GetTableParams) (database.Table, error)
	ListTables(ctx context.Context, ownerIDs []uuid.UUID) ([]database.Table, error)
	ListUnreleasedTables(ctx context.Context, ownerIDs []uuid.UUID) ([]database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
}

// NewBillingStore creates a BillingStore from a DBTX (pool or tx).
type NewBillingStore func(db database.DBTX) BillingStore

// Bill is a derived grouping of delivered orders at one table. It is a view,
// not a persisted entity.
type Bill struct {
	TableID     uuid.UUID
	TableNumber int32
	Orders      []database.Order
	Total       decimal.Decimal
}

// BillingService is the cashier view: pending and settled bills derived from
// order payment status, plus the payment operation itself.
type BillingService struct {
	pool     TxBeginner
	newStore NewBillingStore
	store    BillingStore
	scopes   ScopeResolver
}

func NewBillingService(pool TxBeginner, newStore NewBillingStore, store BillingStore, scopes ScopeResolver) *BillingService {
	return &BillingService{pool: pool, newStore: newStore, store: store, scopes: scopes}
}

// PendingBills groups delivered, unpaid orders by table.
func (s *BillingService) PendingBills(ctx context.Context, a actor.Actor) ([]Bill, error) {
	return s.bills(ctx, a, enum.PaymentStatusUnpaid)
}

// CompletedBills groups paid orders by table.
func (s *BillingService) CompletedBills(ctx context.Context, a actor.Actor) ([]Bill, error) {
	return s.bills(ctx, a, enum.PaymentStatusPaid)
}

func (s *BillingService) bills(ctx context.Context, a actor.Actor, paymentStatus string) ([]Bill, error) {
	scope, err := s.scopes.ScopeFor(ctx, a)
	if err != nil {
		return nil, err
	}

	orders, err := s.store.ListBillableOrders(ctx, database.ListBillableOrdersParams{
		OwnerIDs:      scope.Members,
		PaymentStatus: paymentStatus,
	})
	if err != nil {
		return nil, err
	}

	tables, err := s.store.ListTables(ctx, scope.Members)
	if err != nil {
		return nil, err
	}
	numbers := make(map[uuid.UUID]int32, len(tables))
	for _, t := range tables {
		numbers[t.ID] = t.Number
	}

	// Group by table, preserving first-seen table order.
	byTable := make(map[uuid.UUID]*Bill)
	var result []Bill
	var order []uuid.UUID
	for _, o := range orders {
		b, ok := byTable[o.TableID]
		if !ok {
			b = &Bill{TableID: o.TableID, TableNumber: numbers[o.TableID], Total: decimal.Zero}
			byTable[o.TableID] = b
			order = append(order, o.TableID)
		}
		b.Orders = append(b.Orders, o)
		b.Total = b.Total.Add(numericToDecimal(o.Total))
	}
	for _, id := range order {
		result = append(result, *byTable[id])
	}
	return result, nil
}

// CompletePayment marks every order of a bill paid in one transaction, then
// releases the table. Cashier or admin only.
//
// The two steps are deliberately not atomic with each other: once the
// payment commit succeeds the money is recorded, and a failing table release
// comes back as ErrTableRelease so the table resurfaces via
// UnreleasedTables instead of undoing a real payment.
func (s *BillingService) CompletePayment(ctx context.Context, a actor.Actor, tableID uuid.UUID, orderIDs []uuid.UUID) error {
	if a.Role != enum.RoleCashier && !a.IsAdmin() {
		return fmt.Errorf("complete payment requires cashier or admin role: %w", ErrPermissionDenied)
	}
	if len(orderIDs) == 0 {
		return fmt.Errorf("no orders in bill: %w", ErrNotFound)
	}

	scope, err := s.scopes.ScopeFor(ctx, a)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	for _, orderID := range orderIDs {
		if _, err := store.MarkOrderPaid(ctx, database.MarkOrderPaidParams{ID: orderID, OwnerIDs: scope.Members}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("order %s not payable: %w", orderID, ErrNotFound)
			}
			return fmt.Errorf("mark order paid: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	// Payment is recorded from here on; a release failure is partial, not
	// a rollback.
	table, err := s.store.GetTable(ctx, database.GetTableParams{ID: tableID, OwnerIDs: scope.Members})
	if err != nil {
		return fmt.Errorf("%w: get table: %v", ErrTableRelease, err)
	}
	_, err = s.store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID:            table.ID,
		OwnerID:       table.OwnerID,
		Status:        enum.TableStatusAvailable,
		CurrentServer: pgtype.Text{},
		OccupiedSince: pgtype.Timestamptz{},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTableRelease, err)
	}
	return nil
}

// UnreleasedTables is the reconciliation read: occupied tables whose orders
// are all settled or cancelled, left behind by a failed release.
func (s *BillingService) UnreleasedTables(ctx context.Context, a actor.Actor) ([]database.Table, error) {
	scope, err := s.scopes.ScopeFor(ctx, a)
	if err != nil {
		return nil, err
	}
	return s.store.ListUnreleasedTables(ctx, scope.Members)
}
