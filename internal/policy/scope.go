// Package policy computes visibility scopes: the set of owner ids whose
// tables and orders a given actor may see. Every read issued by the services
// is parameterized by a Scope; every write is checked against Scope.Owner.
package policy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mesa-pos/api/internal/actor"
)

// Scope is the concrete result of the visibility rules for one actor.
// Members is the owner-id set reads filter on. Owner is the single owner id
// the actor's writes are scoped to; it is always an element of Members.
type Scope struct {
	Members []uuid.UUID
	Owner   uuid.UUID
}

// Contains reports whether the given owner id is visible in this scope.
func (s Scope) Contains(id uuid.UUID) bool {
	for _, m := range s.Members {
		if m == id {
			return true
		}
	}
	return false
}

// StaffDirectory is the slice of the query layer the policy needs.
// Satisfied by *database.Queries.
type StaffDirectory interface {
	ListUserIDsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]uuid.UUID, error)
	ListStaffUserIDsByAdmin(ctx context.Context, adminID uuid.UUID) ([]uuid.UUID, error)
}

// Resolver computes scopes against a staff directory.
type Resolver struct {
	dir StaffDirectory
}

func NewResolver(dir StaffDirectory) *Resolver {
	return &Resolver{dir: dir}
}

// ScopeFor applies the visibility rules in priority order:
//
//  1. Tenant grouping: every user sharing the actor's restaurant key, plus
//     the tenant key itself (orders written before per-user ownership carry
//     the tenant key as their owner id). A tenant grouping with no other
//     members falls through to rule 2/3 instead of narrowing.
//  2. Admin: the admin itself plus all of its staff.
//  3. Linked staff: the actor, its admin, and every colleague under that
//     admin.
//  4. Otherwise: the actor alone.
//
// A directory error fails closed to the self-only scope and surfaces the
// error; visibility never silently widens or empties.
func (r *Resolver) ScopeFor(ctx context.Context, a actor.Actor) (Scope, error) {
	self := Scope{Members: []uuid.UUID{a.ID}, Owner: a.OwnerID}

	if a.TenantID != uuid.Nil {
		members, err := r.dir.ListUserIDsByRestaurant(ctx, a.TenantID)
		if err != nil {
			return Scope{Members: []uuid.UUID{a.ID}, Owner: a.ID}, fmt.Errorf("scope tenant members: %w", err)
		}
		// More than just the actor shares the key: tenant scope wins.
		if hasOther(members, a.ID) {
			set := newIDSet(members...)
			set.add(a.ID)
			set.add(a.TenantID) // legacy rows owned by the key itself
			return Scope{Members: set.values(), Owner: a.OwnerID}, nil
		}
	}

	if a.IsAdmin() {
		staff, err := r.dir.ListStaffUserIDsByAdmin(ctx, a.ID)
		if err != nil {
			return Scope{Members: []uuid.UUID{a.ID}, Owner: a.ID}, fmt.Errorf("scope admin staff: %w", err)
		}
		set := newIDSet(staff...)
		set.add(a.ID)
		return Scope{Members: set.values(), Owner: a.ID}, nil
	}

	if a.OwnerID != uuid.Nil && a.OwnerID != a.ID {
		colleagues, err := r.dir.ListStaffUserIDsByAdmin(ctx, a.OwnerID)
		if err != nil {
			return Scope{Members: []uuid.UUID{a.ID}, Owner: a.OwnerID}, fmt.Errorf("scope colleagues: %w", err)
		}
		set := newIDSet(colleagues...)
		set.add(a.ID)
		set.add(a.OwnerID)
		return Scope{Members: set.values(), Owner: a.OwnerID}, nil
	}

	return self, nil
}

func hasOther(ids []uuid.UUID, self uuid.UUID) bool {
	for _, id := range ids {
		if id != self {
			return true
		}
	}
	return false
}

// idSet deduplicates while preserving insertion order, so scope membership
// is deterministic in tests and query plans.
type idSet struct {
	seen  map[uuid.UUID]struct{}
	order []uuid.UUID
}

func newIDSet(ids ...uuid.UUID) *idSet {
	s := &idSet{seen: make(map[uuid.UUID]struct{}, len(ids))}
	for _, id := range ids {
		s.add(id)
	}
	return s
}

func (s *idSet) add(id uuid.UUID) {
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *idSet) values() []uuid.UUID {
	return s.order
}
