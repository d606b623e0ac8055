package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newatumwa/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, name, role, password_hash, is_verified, is_online, is_suspended, is_banned, suspension_reason, ban_reason, rating, rating_count, completed_gigs, lat, lng, last_location_at, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.IsVerified, &u.IsOnline, &u.IsSuspended, &u.IsBanned, &u.SuspensionReason, &u.BanReason, &u.Rating, &u.RatingCount, &u.CompletedGigs, &u.Lat, &u.Lng, &u.LastLocationAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, role, password_hash, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.Name, u.Role, u.PasswordHash, u.IsVerified).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *UserRepo) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

func (r *UserRepo) Verify(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET is_verified = TRUE, updated_at = now() WHERE id = $1`, id)
	return err
}

// Suspend soft-disables the user. Users are never hard-deleted.
func (r *UserRepo) Suspend(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET is_suspended = TRUE, suspension_reason = $2, updated_at = now() WHERE id = $1`, id, reason)
	return err
}

func (r *UserRepo) Unsuspend(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET is_suspended = FALSE, suspension_reason = NULL, updated_at = now() WHERE id = $1`, id)
	return err
}

func (r *UserRepo) Ban(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET is_banned = TRUE, ban_reason = $2, updated_at = now() WHERE id = $1`, id, reason)
	return err
}

func (r *UserRepo) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET is_online = $2, updated_at = now() WHERE id = $1`, id, online)
	return err
}

// UpdateLocation stores the last-known coordinate from the location collaborator.
func (r *UserRepo) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET lat = $2, lng = $3, last_location_at = now(), updated_at = now() WHERE id = $1`, id, lat, lng)
	return err
}

// ApplyRating folds a new 1-5 rating into the user's running average and bumps
// the completed-gig counter. Runs inside the caller's rating transaction.
func (r *UserRepo) ApplyRating(ctx context.Context, tx pgx.Tx, id uuid.UUID, rating int) error {
	_, err := tx.Exec(ctx, `
		UPDATE users
		SET rating = ((rating * rating_count) + $2) / (rating_count + 1),
		    rating_count = rating_count + 1,
		    updated_at = now()
		WHERE id = $1
	`, id, rating)
	return err
}

func (r *UserRepo) IncrementCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE users SET completed_gigs = completed_gigs + 1, updated_at = now() WHERE id = $1`, id)
	return err
}
