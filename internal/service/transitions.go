package service

import "github.com/mesa-pos/api/internal/enum"

// orderTransitions maps a status to the statuses reachable from it.
// DELIVERED and CANCELLED are terminal; cancellation is only possible while
// the kitchen can still stop the work.
var orderTransitions = map[string][]string{
	enum.OrderStatusPending:   {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing: {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:     {enum.OrderStatusDelivered},
	enum.OrderStatusDelivered: {},
	enum.OrderStatusCancelled: {},
}

// Items walk the same machine as orders.
var itemTransitions = map[string][]string{
	enum.ItemStatusPending:   {enum.ItemStatusPreparing, enum.ItemStatusCancelled},
	enum.ItemStatusPreparing: {enum.ItemStatusReady, enum.ItemStatusCancelled},
	enum.ItemStatusReady:     {enum.ItemStatusDelivered},
	enum.ItemStatusDelivered: {},
	enum.ItemStatusCancelled: {},
}

func ValidOrderTransition(from, to string) bool {
	return validTransition(orderTransitions, from, to)
}

func ValidItemTransition(from, to string) bool {
	return validTransition(itemTransitions, from, to)
}

func validTransition(machine map[string][]string, from, to string) bool {
	for _, next := range machine[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsKnownOrderStatus reports whether the string is a member of the order
// status set at all, so unknown inputs fail before the transition check.
func IsKnownOrderStatus(s string) bool {
	_, ok := orderTransitions[s]
	return ok
}

func IsKnownItemStatus(s string) bool {
	_, ok := itemTransitions[s]
	return ok
}

// IsTerminalOrderStatus reports whether no further transitions exist.
func IsTerminalOrderStatus(s string) bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}
