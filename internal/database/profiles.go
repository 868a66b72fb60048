package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const profileColumns = `id, user_id, full_name, email, hashed_password, role,
       admin_id, restaurant_id, status, created_at, updated_at`

func scanProfile(row interface{ Scan(dest ...any) error }) (UserProfile, error) {
	var p UserProfile
	err := row.Scan(
		&p.ID, &p.UserID, &p.FullName, &p.Email, &p.HashedPassword, &p.Role,
		&p.AdminID, &p.RestaurantID, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (q *Queries) GetProfileByUserID(ctx context.Context, userID uuid.UUID) (UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1`
	return scanProfile(q.db.QueryRow(ctx, query, userID))
}

func (q *Queries) GetProfileByEmail(ctx context.Context, email string) (UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE email = $1`
	return scanProfile(q.db.QueryRow(ctx, query, email))
}

// ListStaffUserIDsByAdmin returns the user ids of active staff linked to the
// given admin. The admin's own user id is not included.
func (q *Queries) ListStaffUserIDsByAdmin(ctx context.Context, adminID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT user_id FROM user_profiles
		WHERE admin_id = $1 AND status = 'ACTIVE'
	`
	return q.listUserIDs(ctx, query, adminID)
}

// ListUserIDsByRestaurant returns every active user id sharing the given
// tenant key, admins included.
func (q *Queries) ListUserIDsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT user_id FROM user_profiles
		WHERE restaurant_id = $1 AND status = 'ACTIVE'
	`
	return q.listUserIDs(ctx, query, restaurantID)
}

func (q *Queries) listUserIDs(ctx context.Context, query string, arg any) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *Queries) ListStaffByAdmin(ctx context.Context, adminID uuid.UUID) ([]UserProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM user_profiles
		WHERE admin_id = $1
		ORDER BY created_at
	`
	rows, err := q.db.Query(ctx, query, adminID)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var staff []UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		staff = append(staff, p)
	}
	return staff, rows.Err()
}

type CreateProfileParams struct {
	UserID         uuid.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           string
	AdminID        pgtype.UUID
	RestaurantID   pgtype.UUID
}

func (q *Queries) CreateProfile(ctx context.Context, arg CreateProfileParams) (UserProfile, error) {
	query := `
		INSERT INTO user_profiles (user_id, full_name, email, hashed_password, role, admin_id, restaurant_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'ACTIVE')
		RETURNING ` + profileColumns
	return scanProfile(q.db.QueryRow(ctx, query,
		arg.UserID, arg.FullName, arg.Email, arg.HashedPassword, arg.Role,
		arg.AdminID, arg.RestaurantID,
	))
}

type UpdateProfileStatusParams struct {
	ID      uuid.UUID
	AdminID uuid.UUID
	Status  string
}

// UpdateProfileStatus flips a staff member active/inactive. Scoped to the
// admin that owns the profile so one admin can never deactivate another's
// staff.
func (q *Queries) UpdateProfileStatus(ctx context.Context, arg UpdateProfileStatusParams) (UserProfile, error) {
	query := `
		UPDATE user_profiles
		SET status = $3, updated_at = now()
		WHERE id = $1 AND admin_id = $2
		RETURNING ` + profileColumns
	return scanProfile(q.db.QueryRow(ctx, query, arg.ID, arg.AdminID, arg.Status))
}
