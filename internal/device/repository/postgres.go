package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"merchant-trust-platform/backend/internal/device/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const deviceColumns = `id, merchant_id, device_fingerprint, COALESCE(device_name, ''), times_used, is_trusted, first_seen, last_seen, created_at, updated_at`

// GetByMerchantAndFingerprint returns the device for the given merchant and fingerprint, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByMerchantAndFingerprint(ctx context.Context, merchantID int64, fingerprint string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+`
		FROM merchant_devices
		WHERE merchant_id = $1 AND device_fingerprint = $2`, merchantID, fingerprint)
	return scanDevice(row)
}

// ListByMerchant returns all devices for the given merchant, most recently seen first.
func (r *PostgresRepository) ListByMerchant(ctx context.Context, merchantID int64) ([]*domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deviceColumns+`
		FROM merchant_devices
		WHERE merchant_id = $1
		ORDER BY last_seen DESC`, merchantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Device
	for rows.Next() {
		d, err := scanDeviceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Upsert inserts the device with times_used=1, or increments times_used and
// refreshes last_seen when the (merchant, fingerprint) pair already exists.
// A provided name only applies on insert; renames are not a login concern.
func (r *PostgresRepository) Upsert(ctx context.Context, merchantID int64, fingerprint, name string) (*domain.Device, error) {
	if name == "" {
		name = "Appareil Inconnu"
	}
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO merchant_devices (merchant_id, device_fingerprint, device_name, times_used, is_trusted, first_seen, last_seen, created_at, updated_at)
		VALUES ($1, $2, $3, 1, FALSE, $4, $4, $4, $4)
		ON CONFLICT (merchant_id, device_fingerprint)
		DO UPDATE SET times_used = merchant_devices.times_used + 1, last_seen = $4, updated_at = $4
		RETURNING `+deviceColumns,
		merchantID, fingerprint, name, now)
	return scanDevice(row)
}

// SetTrusted marks the device as trusted. Trust is never revoked here.
func (r *PostgresRepository) SetTrusted(ctx context.Context, merchantID int64, fingerprint string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE merchant_devices
		SET is_trusted = TRUE, updated_at = NOW()
		WHERE merchant_id = $1 AND device_fingerprint = $2`, merchantID, fingerprint)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("device not found")
	}
	return nil
}

func scanDevice(row *sql.Row) (*domain.Device, error) {
	var d domain.Device
	err := row.Scan(&d.ID, &d.MerchantID, &d.Fingerprint, &d.Name, &d.TimesUsed, &d.Trusted,
		&d.FirstSeen, &d.LastSeen, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func scanDeviceRows(rows *sql.Rows) (*domain.Device, error) {
	var d domain.Device
	err := rows.Scan(&d.ID, &d.MerchantID, &d.Fingerprint, &d.Name, &d.TimesUsed, &d.Trusted,
		&d.FirstSeen, &d.LastSeen, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
