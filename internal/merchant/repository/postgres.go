package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"merchant-trust-platform/backend/internal/merchant/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a merchant repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const merchantColumns = `id, user_id, COALESCE(business_name, ''), usual_latitude, usual_longitude, created_at, updated_at`

// GetByID returns the merchant for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Merchant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE id = $1`, id)
	return scanMerchant(row)
}

// GetByUserID returns the merchant linked to userID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Merchant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE user_id = $1`, userID)
	return scanMerchant(row)
}

// Create persists the merchant and returns it with the generated id.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Merchant) (*domain.Merchant, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO merchants (user_id, business_name, usual_latitude, usual_longitude, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $5)
		RETURNING `+merchantColumns,
		m.UserID, m.BusinessName, m.UsualLatitude, m.UsualLongitude, time.Now().UTC())
	return scanMerchant(row)
}

func scanMerchant(row *sql.Row) (*domain.Merchant, error) {
	var m domain.Merchant
	var lat, lon sql.NullFloat64
	err := row.Scan(&m.ID, &m.UserID, &m.BusinessName, &lat, &lon, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lat.Valid {
		m.UsualLatitude = &lat.Float64
	}
	if lon.Valid {
		m.UsualLongitude = &lon.Float64
	}
	return &m, nil
}
