// Package bus is the in-process event channel. A status change made by the
// kitchen is observed by the floor plan and the cashier view through a shared
// Bus instance; there is no module-level singleton and no network hop.
package bus

import (
	"sync"

	"github.com/google/uuid"
)

// Event is a terminal notification about one order's status change.
type Event struct {
	Type      string    `json:"type"`
	OrderID   uuid.UUID `json:"order_id"`
	TableID   uuid.UUID `json:"table_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
}

type subscriber struct {
	id    uint64
	scope map[uuid.UUID]struct{}
	fn    func(Event)
}

// Bus delivers events synchronously, in subscription order, to every
// subscriber whose scope contains the event's owner id. Events are terminal
// notifications, not a backpressured stream, so there is no buffering and no
// cancellation beyond unsubscribing.
type Bus struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers []subscriber
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers a callback for events whose owner id falls inside
// scope. The returned func removes the subscription; calling it more than
// once is harmless.
func (b *Bus) Subscribe(scope []uuid.UUID, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	scopeSet := make(map[uuid.UUID]struct{}, len(scope))
	for _, owner := range scope {
		scopeSet[owner] = struct{}{}
	}
	b.subscribers = append(b.subscribers, subscriber{id: id, scope: scopeSet, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subscribers {
			if s.id == id {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to matching subscribers before returning.
// Callbacks run on the publisher's goroutine; they must not block and must
// not call Subscribe/Publish re-entrantly while holding their own locks.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	matched := make([]func(Event), 0, len(b.subscribers))
	for _, s := range b.subscribers {
		if _, ok := s.scope[ev.OwnerID]; ok {
			matched = append(matched, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range matched {
		fn(ev)
	}
}
