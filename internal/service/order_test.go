package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/actor"
	"github.com/mesa-pos/api/internal/bus"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/policy"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	committed   bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr == nil {
		m.committed = true
	}
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockScopes implements ScopeResolver with a fixed result.
type mockScopes struct {
	scope policy.Scope
	err   error
}

func (m *mockScopes) ScopeFor(ctx context.Context, a actor.Actor) (policy.Scope, error) {
	return m.scope, m.err
}

// mockBus records published events.
type mockBus struct {
	events []bus.Event
}

func (m *mockBus) Publish(ev bus.Event) {
	m.events = append(m.events, ev)
}

// mockOrderStore implements OrderStore with configurable behavior.
type mockOrderStore struct {
	getMenuItemForOrderFn   func(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error)
	createOrderFn           func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn       func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	getTableFn              func(ctx context.Context, arg database.GetTableParams) (database.Table, error)
	updateTableStatusFn     func(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	getOrderFn              func(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	getOrderForUpdateFn     func(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	updateOrderStatusFn     func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	cascadeCancelItemsFn    func(ctx context.Context, orderID uuid.UUID) (int64, error)
	cascadeDeliverItemsFn   func(ctx context.Context, orderID uuid.UUID) (int64, error)
	getOrderItemFn          func(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error)
	updateOrderItemStatusFn func(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	deleteOrderItemFn       func(ctx context.Context, id uuid.UUID) error
	listOrdersFn            func(ctx context.Context, ownerIDs []uuid.UUID) ([]database.Order, error)
	listOrderItemsFn        func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	updateOrderTotalFn      func(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error)
}

func (m *mockOrderStore) GetMenuItemForOrder(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error) {
	return m.getMenuItemForOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) GetTable(ctx context.Context, arg database.GetTableParams) (database.Table, error) {
	return m.getTableFn(ctx, arg)
}
func (m *mockOrderStore) UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error) {
	return m.updateTableStatusFn(ctx, arg)
}
func (m *mockOrderStore) GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	return m.getOrderFn(ctx, arg)
}
func (m *mockOrderStore) GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
	return m.getOrderForUpdateFn(ctx, arg)
}
func (m *mockOrderStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	return m.updateOrderStatusFn(ctx, arg)
}
func (m *mockOrderStore) CascadeCancelItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	return m.cascadeCancelItemsFn(ctx, orderID)
}
func (m *mockOrderStore) CascadeDeliverItems(ctx context.Context, orderID uuid.UUID) (int64, error) {
	return m.cascadeDeliverItemsFn(ctx, orderID)
}
func (m *mockOrderStore) GetOrderItem(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error) {
	return m.getOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error) {
	return m.updateOrderItemStatusFn(ctx, arg)
}
func (m *mockOrderStore) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	return m.deleteOrderItemFn(ctx, id)
}
func (m *mockOrderStore) ListOrders(ctx context.Context, ownerIDs []uuid.UUID) ([]database.Order, error) {
	return m.listOrdersFn(ctx, ownerIDs)
}
func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.listOrderItemsFn(ctx, orderID)
}
func (m *mockOrderStore) UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error) {
	return m.updateOrderTotalFn(ctx, arg)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func testActor() actor.Actor {
	id := uuid.New()
	return actor.Actor{ID: id, Role: enum.RoleWaiter, OwnerID: uuid.New()}
}

// newTestOrderService creates an OrderService with mocked dependencies.
// The same mock store backs both the pool-bound store and the tx-scoped one.
func newTestOrderService(store *mockOrderStore, a actor.Actor) (*OrderService, *mockTx, *mockBus) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	events := &mockBus{}
	scopes := &mockScopes{scope: policy.Scope{
		Members: []uuid.UUID{a.ID, a.OwnerID},
		Owner:   a.OwnerID,
	}}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(pool, newStore, store, scopes, events), tx, events
}

// defaultOrderStore returns a mockOrderStore pre-wired for the happy path of
// a two-line order against an available table. Individual tests override the
// functions they care about.
func defaultOrderStore(tableID, pizzaID, saladID uuid.UUID) *mockOrderStore {
	return &mockOrderStore{
		getTableFn: func(ctx context.Context, arg database.GetTableParams) (database.Table, error) {
			if arg.ID == tableID {
				return database.Table{ID: tableID, OwnerID: uuid.New(), Number: 4, Status: enum.TableStatusAvailable}, nil
			}
			return database.Table{}, pgx.ErrNoRows
		},
		getMenuItemForOrderFn: func(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error) {
			switch arg.ID {
			case pizzaID:
				return database.MenuItem{ID: pizzaID, Name: "Margherita", Price: makeNumeric("10.00"), Available: true}, nil
			case saladID:
				return database.MenuItem{ID: saladID, Name: "Caesar Salad", Price: makeNumeric("5.00"), Available: true}, nil
			}
			return database.MenuItem{}, pgx.ErrNoRows
		},
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:            uuid.New(),
				TableID:       arg.TableID,
				OwnerID:       arg.OwnerID,
				CreatorID:     arg.CreatorID,
				Server:        arg.Server,
				Status:        enum.OrderStatusPending,
				Total:         arg.Total,
				Notes:         arg.Notes,
				PaymentStatus: enum.PaymentStatusUnpaid,
				Version:       1,
			}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{
				ID:         uuid.New(),
				OrderID:    arg.OrderID,
				MenuItemID: arg.MenuItemID,
				Name:       arg.Name,
				Price:      arg.Price,
				Quantity:   arg.Quantity,
				Notes:      arg.Notes,
				Status:     enum.ItemStatusPending,
			}, nil
		},
		updateTableStatusFn: func(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error) {
			return database.Table{ID: arg.ID, OwnerID: arg.OwnerID, Status: arg.Status, CurrentServer: arg.CurrentServer}, nil
		},
	}
}

func basicCreateReq(tableID, pizzaID, saladID uuid.UUID) CreateOrderRequest {
	return CreateOrderRequest{
		TableID: tableID,
		Server:  "Dana",
		Items: []CreateOrderItemRequest{
			{MenuItemID: pizzaID, Quantity: 2}, // 10.00 * 2 = 20.00
			{MenuItemID: saladID, Quantity: 1}, // 5.00 * 1 = 5.00
		},
	}
}

// =====================
// Create validation tests
// =====================

func TestCreate_EmptyItems(t *testing.T) {
	store := defaultOrderStore(uuid.New(), uuid.New(), uuid.New())
	svc, _, _ := newTestOrderService(store, testActor())

	_, err := svc.Create(context.Background(), testActor(), CreateOrderRequest{
		TableID: uuid.New(),
		Server:  "Dana",
		Items:   nil,
	})
	if !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got: %v", err)
	}
}

func TestCreate_MissingServer(t *testing.T) {
	tableID, pizzaID, saladID := uuid.New(), uuid.New(), uuid.New()
	store := defaultOrderStore(tableID, pizzaID, saladID)
	svc, _, _ := newTestOrderService(store, testActor())

	req := basicCreateReq(tableID, pizzaID, saladID)
	req.Server = ""
	_, err := svc.Create(context.Background(), testActor(), req)
	if !errors.Is(err, ErrServerRequired) {
		t.Fatalf("expected ErrServerRequired, got: %v", err)
	}
}

func TestCreate_ZeroQuantity(t *testing.T) {
	tableID, pizzaID, saladID := uuid.New(), uuid.New(), uuid.New()
	store := defaultOrderStore(tableID, pizzaID, saladID)
	svc, _, _ := newTestOrderService(store, testActor())

	_, err := svc.Create(context.Background(), testActor(), CreateOrderRequest{
		TableID: tableID,
		Server:  "Dana",
		Items: []CreateOrderItemRequest{
			{MenuItemID: pizzaID, Quantity: 0},
		},
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestCreate_TableNotFound(t *testing.T) {
	store := defaultOrderStore(uuid.New(), uuid.New(), uuid.New()) // store knows a different table
	svc, _, _ := newTestOrderService(store, testActor())

	_, err := svc.Create(context.Background(), testActor(), basicCreateReq(uuid.New(), uuid.New(), uuid.New()))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestCreate_MenuItemNotFound(t *testing.T) {
	tableID := uuid.New()
	store := defaultOrderStore(tableID, uuid.New(), uuid.New())
	svc, _, _ := newTestOrderService(store, testActor())

	_, err := svc.Create(context.Background(), testActor(), CreateOrderRequest{
		TableID: tableID,
		Server:  "Dana",
		Items: []CreateOrderItemRequest{
			{MenuItemID: uuid.New(), Quantity: 1}, // unknown item
		},
	})
	if !errors.Is(err, ErrMenuItemNotFound) {
		t.Fatalf("expected ErrMenuItemNotFound, got: %v", err)
	}
}

// =====================
// Create happy-path tests
// =====================

func TestCreate_TotalFromPriceSnapshot(t *testing.T) {
	tableID, pizzaID, saladID := uuid.New(), uuid.New(), uuid.New()
	store := defaultOrderStore(tableID, pizzaID, saladID)

	var captured database.CreateOrderParams
	inner := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		captured = arg
		return inner(ctx, arg)
	}

	a := testActor()
	svc, tx, _ := newTestOrderService(store, a)
	result, err := svc.Create(context.Background(), a, basicCreateReq(tableID, pizzaID, saladID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// total = 10.00*2 + 5.00*1 = 25.00
	if !numericEquals(captured.Total, "25.00") {
		t.Errorf("order total: got %v, want 25.00", numericToDecimal(captured.Total))
	}
	if captured.OwnerID != a.OwnerID {
		t.Errorf("order owner: got %v, want scope owner %v", captured.OwnerID, a.OwnerID)
	}
	if captured.CreatorID != a.ID {
		t.Errorf("order creator: got %v, want actor %v", captured.CreatorID, a.ID)
	}
	if len(result.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(result.Items))
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}
}

func TestCreate_OccupiesAvailableTable(t *testing.T) {
	tableID, pizzaID, saladID := uuid.New(), uuid.New(), uuid.New()
	store := defaultOrderStore(tableID, pizzaID, saladID)

	var captured database.UpdateTableStatusParams
	store.updateTableStatusFn = func(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error) {
		captured = arg
		return database.Table{ID: arg.ID, Status: arg.Status}, nil
	}

	a := testActor()
	svc, _, _ := newTestOrderService(store, a)
	_, err := svc.Create(context.Background(), a, basicCreateReq(tableID, pizzaID, saladID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.Status != enum.TableStatusOccupied {
		t.Errorf("table status: got %v, want OCCUPIED", captured.Status)
	}
	if !captured.CurrentServer.Valid || captured.CurrentServer.String != "Dana" {
		t.Errorf("current server: got %v, want Dana", captured.CurrentServer)
	}
	if !captured.OccupiedSince.Valid {
		t.Error("occupied_since should be stamped")
	}
}

func TestCreate_OccupiedTableLeftAlone(t *testing.T) {
	tableID, pizzaID, saladID := uuid.New(), uuid.New(), uuid.New()
	store := defaultOrderStore(tableID, pizzaID, saladID)
	store.getTableFn = func(ctx context.Context, arg database.GetTableParams) (database.Table, error) {
		return database.Table{ID: tableID, Status: enum.TableStatusOccupied}, nil
	}
	store.updateTableStatusFn = func(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error) {
		t.Fatal("UpdateTableStatus should not be called for an occupied table")
		return database.Table{}, nil
	}

	a := testActor()
	svc, _, _ := newTestOrderService(store, a)
	if _, err := svc.Create(context.Background(), a, basicCreateReq(tableID, pizzaID, saladID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// =====================
// Advance (status machine) tests
// =====================

func advanceStore(orderID uuid.UUID, status string, version int32) *mockOrderStore {
	return &mockOrderStore{
		getOrderForUpdateFn: func(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
			if arg.ID == orderID {
				return database.Order{ID: orderID, TableID: uuid.New(), OwnerID: uuid.New(), Status: status, Version: version}, nil
			}
			return database.Order{}, pgx.ErrNoRows
		},
		updateOrderStatusFn: func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
			return database.Order{ID: arg.ID, TableID: uuid.New(), OwnerID: uuid.New(), Status: arg.Status, Version: arg.Version + 1}, nil
		},
		cascadeCancelItemsFn:  func(ctx context.Context, id uuid.UUID) (int64, error) { return 0, nil },
		cascadeDeliverItemsFn: func(ctx context.Context, id uuid.UUID) (int64, error) { return 0, nil },
	}
}

func TestAdvance_UnknownStatus(t *testing.T) {
	orderID := uuid.New()
	svc, _, _ := newTestOrderService(advanceStore(orderID, enum.OrderStatusPending, 1), testActor())

	_, err := svc.Advance(context.Background(), testActor(), orderID, "BOGUS", 0)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got: %v", err)
	}
}

func TestAdvance_IllegalTransition(t *testing.T) {
	orderID := uuid.New()
	svc, _, _ := newTestOrderService(advanceStore(orderID, enum.OrderStatusPending, 1), testActor())

	// pending can never jump straight to delivered
	_, err := svc.Advance(context.Background(), testActor(), orderID, enum.OrderStatusDelivered, 0)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got: %v", err)
	}
}

func TestAdvance_CancelFromReadyRejected(t *testing.T) {
	orderID := uuid.New()
	svc, _, _ := newTestOrderService(advanceStore(orderID, enum.OrderStatusReady, 1), testActor())

	_, err := svc.Advance(context.Background(), testActor(), orderID, enum.OrderStatusCancelled, 0)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got: %v", err)
	}
}

func TestAdvance_SameStatusIsNoOp(t *testing.T) {
	orderID := uuid.New()
	store := advanceStore(orderID, enum.OrderStatusPreparing, 3)
	store.updateOrderStatusFn = func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
		t.Fatal("UpdateOrderStatus should not be called for a same-status retry")
		return database.Order{}, nil
	}

	svc, _, events := newTestOrderService(store, testActor())
	order, err := svc.Advance(context.Background(), testActor(), orderID, enum.OrderStatusPreparing, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Version != 3 {
		t.Errorf("version: got %d, want unchanged 3", order.Version)
	}
	if len(events.events) != 0 {
		t.Errorf("no event expected for a no-op, got %d", len(events.events))
	}
}

func TestAdvance_VersionConflict(t *testing.T) {
	orderID := uuid.New()
	svc, _, _ := newTestOrderService(advanceStore(orderID, enum.OrderStatusPending, 5), testActor())

	_, err := svc.Advance(context.Background(), testActor(), orderID, enum.OrderStatusPreparing, 3)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got: %v", err)
	}
}

func TestAdvance_ZeroVersionSkipsCheck(t *testing.T) {
	orderID := uuid.New()
	svc, _, _ := newTestOrderService(advanceStore(orderID, enum.OrderStatusPending, 7), testActor())

	order, err := svc.Advance(context.Background(), testActor(), orderID, enum.OrderStatusPreparing, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != enum.OrderStatusPreparing {
		t.Errorf("status: got %v, want PREPARING", order.Status)
	}
}

func TestAdvance_CancelCascadesToItems(t *testing.T) {
	orderID := uuid.New()
	store := advanceStore(orderID, enum.OrderStatusPreparing, 1)

	cancelCalled := false
	store.cascadeCancelItemsFn = func(ctx context.Context, id uuid.UUID) (int64, error) {
		cancelCalled = true
		if id != orderID {
			t.Errorf("cascade target: got %v, want %v", id, orderID)
		}
		return 2, nil
	}

	svc, tx, events := newTestOrderService(store, testActor())
	_, err := svc.Advance(context.Background(), testActor(), orderID, enum.OrderStatusCancelled, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cancelCalled {
		t.Error("expected item cancel cascade")
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}
	if len(events.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.events))
	}
	ev := events.events[0]
	if ev.Type != enum.EventStatusChanged {
		t.Errorf("event type: got %v, want status_changed", ev.Type)
	}
	if ev.OldStatus != enum.OrderStatusPreparing || ev.NewStatus != enum.OrderStatusCancelled {
		t.Errorf("event statuses: got %s -> %s, want PREPARING -> CANCELLED", ev.OldStatus, ev.NewStatus)
	}
}

func TestAdvance_DeliverCascadesToItems(t *testing.T) {
	orderID := uuid.New()
	store := advanceStore(orderID, enum.OrderStatusReady, 1)

	deliverCalled := false
	store.cascadeDeliverItemsFn = func(ctx context.Context, id uuid.UUID) (int64, error) {
		deliverCalled = true
		return 3, nil
	}

	svc, _, events := newTestOrderService(store, testActor())
	order, err := svc.Advance(context.Background(), testActor(), orderID, enum.OrderStatusDelivered, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deliverCalled {
		t.Error("expected item deliver cascade")
	}
	if order.Status != enum.OrderStatusDelivered {
		t.Errorf("status: got %v, want DELIVERED", order.Status)
	}
	if len(events.events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events.events))
	}
}

func TestAdvance_NotFoundOutsideScope(t *testing.T) {
	svc, _, _ := newTestOrderService(advanceStore(uuid.New(), enum.OrderStatusPending, 1), testActor())

	_, err := svc.Advance(context.Background(), testActor(), uuid.New(), enum.OrderStatusPreparing, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

// =====================
// AdvanceItem tests
// =====================

func itemStore(itemID, orderID uuid.UUID, itemStatus, orderStatus string) *mockOrderStore {
	return &mockOrderStore{
		getOrderItemFn: func(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error) {
			if arg.ID == itemID {
				return database.OrderItem{ID: itemID, OrderID: orderID, Status: itemStatus}, nil
			}
			return database.OrderItem{}, pgx.ErrNoRows
		},
		getOrderFn: func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
			return database.Order{ID: orderID, Status: orderStatus}, nil
		},
		updateOrderItemStatusFn: func(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error) {
			return database.OrderItem{ID: arg.ID, OrderID: orderID, Status: arg.Status}, nil
		},
	}
}

func TestAdvanceItem_HappyPath(t *testing.T) {
	itemID, orderID := uuid.New(), uuid.New()
	store := itemStore(itemID, orderID, enum.ItemStatusPending, enum.OrderStatusPreparing)
	svc, _, events := newTestOrderService(store, testActor())

	item, err := svc.AdvanceItem(context.Background(), testActor(), itemID, enum.ItemStatusPreparing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Status != enum.ItemStatusPreparing {
		t.Errorf("item status: got %v, want PREPARING", item.Status)
	}
	// Item pacing never publishes order-level events.
	if len(events.events) != 0 {
		t.Errorf("expected no events, got %d", len(events.events))
	}
}

func TestAdvanceItem_ClosedOrder(t *testing.T) {
	itemID, orderID := uuid.New(), uuid.New()
	store := itemStore(itemID, orderID, enum.ItemStatusReady, enum.OrderStatusDelivered)
	svc, _, _ := newTestOrderService(store, testActor())

	_, err := svc.AdvanceItem(context.Background(), testActor(), itemID, enum.ItemStatusDelivered)
	if !errors.Is(err, ErrOrderClosed) {
		t.Fatalf("expected ErrOrderClosed, got: %v", err)
	}
}

func TestAdvanceItem_IllegalTransition(t *testing.T) {
	itemID, orderID := uuid.New(), uuid.New()
	store := itemStore(itemID, orderID, enum.ItemStatusPending, enum.OrderStatusPreparing)
	svc, _, _ := newTestOrderService(store, testActor())

	_, err := svc.AdvanceItem(context.Background(), testActor(), itemID, enum.ItemStatusDelivered)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got: %v", err)
	}
}

// =====================
// AddItem / RemoveItem total recomputation
// =====================

func TestAddItem_RecomputesTotal(t *testing.T) {
	orderID, pizzaID := uuid.New(), uuid.New()
	store := &mockOrderStore{
		getOrderForUpdateFn: func(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
			return database.Order{ID: orderID, Status: enum.OrderStatusPending, Version: 1}, nil
		},
		getMenuItemForOrderFn: func(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error) {
			return database.MenuItem{ID: pizzaID, Name: "Margherita", Price: makeNumeric("10.00"), Available: true}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{ID: uuid.New(), OrderID: orderID, Quantity: arg.Quantity, Price: arg.Price, Status: enum.ItemStatusPending}, nil
		},
		listOrderItemsFn: func(ctx context.Context, id uuid.UUID) ([]database.OrderItem, error) {
			return []database.OrderItem{
				{Price: makeNumeric("10.00"), Quantity: 2, Status: enum.ItemStatusPending},
				{Price: makeNumeric("10.00"), Quantity: 1, Status: enum.ItemStatusPending},
				{Price: makeNumeric("4.00"), Quantity: 1, Status: enum.ItemStatusCancelled}, // excluded
			}, nil
		},
		updateOrderTotalFn: func(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error) {
			return database.Order{ID: orderID, Total: arg.Total, Version: 2}, nil
		},
	}

	svc, _, _ := newTestOrderService(store, testActor())
	result, err := svc.AddItem(context.Background(), testActor(), orderID, CreateOrderItemRequest{MenuItemID: pizzaID, Quantity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 10.00*2 + 10.00*1, cancelled line excluded = 30.00
	if !numericEquals(result.Order.Total, "30.00") {
		t.Errorf("recomputed total: got %v, want 30.00", numericToDecimal(result.Order.Total))
	}
}

func TestAddItem_ClosedOrder(t *testing.T) {
	orderID := uuid.New()
	store := &mockOrderStore{
		getOrderForUpdateFn: func(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
			return database.Order{ID: orderID, Status: enum.OrderStatusCancelled}, nil
		},
	}
	svc, _, _ := newTestOrderService(store, testActor())

	_, err := svc.AddItem(context.Background(), testActor(), orderID, CreateOrderItemRequest{MenuItemID: uuid.New(), Quantity: 1})
	if !errors.Is(err, ErrOrderClosed) {
		t.Fatalf("expected ErrOrderClosed, got: %v", err)
	}
}

func TestRemoveItem_LastLineLeavesZeroTotal(t *testing.T) {
	itemID, orderID := uuid.New(), uuid.New()
	store := &mockOrderStore{
		getOrderItemFn: func(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{ID: itemID, OrderID: orderID, Status: enum.ItemStatusPending}, nil
		},
		getOrderForUpdateFn: func(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
			return database.Order{ID: orderID, Status: enum.OrderStatusPending, Version: 1}, nil
		},
		deleteOrderItemFn: func(ctx context.Context, id uuid.UUID) error { return nil },
		listOrderItemsFn: func(ctx context.Context, id uuid.UUID) ([]database.OrderItem, error) {
			return nil, nil // nothing left
		},
		updateOrderTotalFn: func(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error) {
			return database.Order{ID: orderID, Total: arg.Total, Version: 2}, nil
		},
	}

	svc, _, _ := newTestOrderService(store, testActor())
	result, err := svc.RemoveItem(context.Background(), testActor(), itemID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !numericEquals(result.Order.Total, "0.00") {
		t.Errorf("total after last removal: got %v, want 0.00", numericToDecimal(result.Order.Total))
	}
}

// =====================
// Scope propagation
// =====================

func TestListVisible_FiltersByScope(t *testing.T) {
	a := testActor()
	var capturedOwners []uuid.UUID
	store := &mockOrderStore{
		listOrdersFn: func(ctx context.Context, ownerIDs []uuid.UUID) ([]database.Order, error) {
			capturedOwners = ownerIDs
			return []database.Order{{ID: uuid.New()}}, nil
		},
		listOrderItemsFn: func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
			return nil, nil
		},
	}

	svc, _, _ := newTestOrderService(store, a)
	orders, err := svc.ListVisible(context.Background(), a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	if len(capturedOwners) != 2 {
		t.Fatalf("expected scope members passed through, got %v", capturedOwners)
	}
}

func TestCreate_ScopeErrorFailsClosed(t *testing.T) {
	tableID, pizzaID, saladID := uuid.New(), uuid.New(), uuid.New()
	store := defaultOrderStore(tableID, pizzaID, saladID)
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	scopes := &mockScopes{err: errors.New("directory down")}
	svc := NewOrderService(pool, func(db database.DBTX) OrderStore { return store }, store, scopes, &mockBus{})

	_, err := svc.Create(context.Background(), testActor(), basicCreateReq(tableID, pizzaID, saladID))
	if err == nil {
		t.Fatal("expected error when scope resolution fails")
	}
}
