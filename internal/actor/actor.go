// Package actor resolves an authenticated user id into the identity every
// table and order operation is authorized against: role plus ownership chain.
package actor

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
)

// Actor is the resolved identity for one request. OwnerID is the admin
// account the actor's restaurant data hangs under; an admin owns itself.
// TenantID is set when the actor's restaurant shares a tenant key across
// several admin accounts.
type Actor struct {
	ID       uuid.UUID
	Role     string
	OwnerID  uuid.UUID
	TenantID uuid.UUID // uuid.Nil when the actor has no tenant grouping
}

// IsAdmin reports whether the actor owns its own scope.
func (a Actor) IsAdmin() bool {
	return a.Role == enum.RoleAdmin
}

// ProfileStore is the slice of the query layer the resolver needs.
// Satisfied by *database.Queries.
type ProfileStore interface {
	GetProfileByUserID(ctx context.Context, userID uuid.UUID) (database.UserProfile, error)
}

// Resolver turns user ids into Actors.
type Resolver struct {
	store ProfileStore
}

func NewResolver(store ProfileStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks up the user's profile and derives role and ownership.
//
// A missing profile does not fail the request: the user gets a synthesized
// lowest-privilege actor scoped to itself, and the anomaly is logged. A store
// error also degrades to the self-only actor but surfaces the error, so a
// flaky lookup can never widen access.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (Actor, error) {
	profile, err := r.store.GetProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Printf("actor: no profile for user %s, defaulting to self-scoped waiter", userID)
			return selfScoped(userID), nil
		}
		return selfScoped(userID), fmt.Errorf("resolve actor %s: %w", userID, err)
	}

	if profile.Status != enum.StaffStatusActive {
		log.Printf("actor: profile for user %s is %s, defaulting to self-scoped waiter", userID, profile.Status)
		return selfScoped(userID), nil
	}

	a := Actor{
		ID:   userID,
		Role: profile.Role,
	}
	switch {
	case profile.Role == enum.RoleAdmin:
		a.OwnerID = userID
	case profile.AdminID.Valid:
		a.OwnerID = profile.AdminID.Bytes
	default:
		// Staff with no admin link falls back to owning itself; the
		// visibility policy then scopes it to self only.
		a.OwnerID = userID
	}
	if profile.RestaurantID.Valid {
		a.TenantID = profile.RestaurantID.Bytes
	}
	return a, nil
}

func selfScoped(userID uuid.UUID) Actor {
	return Actor{
		ID:      userID,
		Role:    enum.RoleWaiter,
		OwnerID: userID,
	}
}
