package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"merchant-trust-platform/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, phone, name, role, COALESCE(pin_hash, ''), pin_failed_attempts, pin_locked_until, phone_verified, COALESCE(login_method, ''), created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByPhone returns the user for phone, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	return scanUser(row)
}

// Create persists the user and returns it with the generated id.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (phone, name, role, pin_hash, phone_verified, login_method, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $7)
		RETURNING `+userColumns,
		u.Phone, u.Name, u.Role, u.PinHash, u.PhoneVerified, u.LoginMethod, time.Now().UTC())
	return scanUser(row)
}

// SetPhoneVerified marks the user's phone as verified.
func (r *PostgresRepository) SetPhoneVerified(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET phone_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// UpdatePin replaces the PIN hash and clears the failure counter and lock.
func (r *PostgresRepository) UpdatePin(ctx context.Context, id int64, pinHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET pin_hash = $2, pin_failed_attempts = 0, pin_locked_until = NULL, updated_at = NOW()
		WHERE id = $1`, id, pinHash)
	return err
}

// IncrementPinFailures bumps the failure counter atomically and returns the new count.
func (r *PostgresRepository) IncrementPinFailures(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET pin_failed_attempts = pin_failed_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING pin_failed_attempts`, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errors.New("user not found")
		}
		return 0, err
	}
	return attempts, nil
}

// LockUntil sets the PIN lockout expiry for the user.
func (r *PostgresRepository) LockUntil(ctx context.Context, id int64, until time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET pin_locked_until = $2, updated_at = NOW() WHERE id = $1`, id, until)
	return err
}

// ResetPinFailures clears the failure counter and lockout.
func (r *PostgresRepository) ResetPinFailures(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET pin_failed_attempts = 0, pin_locked_until = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var lockedUntil sql.NullTime
	err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.Role, &u.PinHash, &u.PinFailedAttempts,
		&lockedUntil, &u.PhoneVerified, &u.LoginMethod, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lockedUntil.Valid {
		u.PinLockedUntil = &lockedUntil.Time
	}
	return &u, nil
}
