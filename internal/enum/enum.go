package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// Order items share the order status set. Items pace through the kitchen
// independently; terminal order transitions force-cascade onto them.
const (
	ItemStatusPending   = "PENDING"
	ItemStatusPreparing = "PREPARING"
	ItemStatusReady     = "READY"
	ItemStatusDelivered = "DELIVERED"
	ItemStatusCancelled = "CANCELLED"
)

const (
	TableStatusAvailable = "AVAILABLE"
	TableStatusOccupied  = "OCCUPIED"
	TableStatusReserved  = "RESERVED"
)

const (
	PaymentStatusUnpaid = "UNPAID"
	PaymentStatusPaid   = "PAID"
)

// ── Roles (CHECK constrained in DB) ──

const (
	RoleAdmin   = "ADMIN"
	RoleWaiter  = "WAITER"
	RoleCook    = "COOK"
	RoleCashier = "CASHIER"
)

const (
	StaffStatusActive   = "ACTIVE"
	StaffStatusInactive = "INACTIVE"
)

// ── Configurable labels (no DB constraint) ──

const (
	TableShapeRectangle = "RECTANGLE"
	TableShapeCircle    = "CIRCLE"
	TableShapeSquare    = "SQUARE"
)

const (
	EventStatusChanged = "status_changed"
)
