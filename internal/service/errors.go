package service

import "errors"

// Errors returned by the POS services. PermissionDenied and
// InvalidTransition are contract violations surfaced to the caller as-is;
// TableRelease is the partial-failure case where a payment is recorded but
// the table stayed occupied.
var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyOrder        = errors.New("order must have at least one item")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("version conflict")
	ErrOrderClosed       = errors.New("order is closed")
	ErrMenuItemNotFound  = errors.New("menu item not found")
	ErrServerRequired    = errors.New("server assignment is required")
	ErrDuplicateTable    = errors.New("table number already in use")
	ErrInvalidShape      = errors.New("invalid table shape")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrTableRelease      = errors.New("payment recorded but table not released")
	ErrRevert            = errors.New("position not saved, reverted to stored value")
)
