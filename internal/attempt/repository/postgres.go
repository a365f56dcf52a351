package repository

import (
	"context"
	"database/sql"
	"time"

	"merchant-trust-platform/backend/internal/attempt/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an attempt ledger that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const attemptColumns = `id, user_id, phone, device_fingerprint, trust_score, decision, latitude, longitude, challenge_id, challenge_passed, COALESCE(ip_address, ''), COALESCE(user_agent, ''), success, created_at`

// Create appends one attempt row and returns it with the generated id.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Attempt) (*domain.Attempt, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO auth_attempts (user_id, phone, device_fingerprint, trust_score, decision, latitude, longitude, challenge_id, challenge_passed, ip_address, user_agent, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12, $13)
		RETURNING `+attemptColumns,
		a.UserID, a.Phone, a.DeviceFingerprint, a.TrustScore, a.Decision,
		a.Latitude, a.Longitude, a.ChallengeID, a.ChallengePassed,
		a.IP, a.UserAgent, a.Success, time.Now().UTC())
	return scanAttempt(row)
}

// ListRecentByPhone returns attempts for phone at or after since, newest first.
func (r *PostgresRepository) ListRecentByPhone(ctx context.Context, phone string, since time.Time) ([]*domain.Attempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+attemptColumns+`
		FROM auth_attempts
		WHERE phone = $1 AND created_at >= $2
		ORDER BY created_at DESC`, phone, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		var userID, challengeID sql.NullInt64
		var lat, lon sql.NullFloat64
		var passed sql.NullBool
		if err := rows.Scan(&a.ID, &userID, &a.Phone, &a.DeviceFingerprint, &a.TrustScore,
			&a.Decision, &lat, &lon, &challengeID, &passed, &a.IP, &a.UserAgent,
			&a.Success, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignNullables(&a, userID, challengeID, lat, lon, passed)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// FailureCountByPhone counts failed attempts for phone since the given time.
func (r *PostgresRepository) FailureCountByPhone(ctx context.Context, phone string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM auth_attempts
		WHERE phone = $1 AND created_at >= $2 AND success = FALSE`, phone, since).Scan(&n)
	return n, err
}

// SuccessHoursByPhone returns the distinct hours (0-23, UTC) of successful
// logins for phone since the given time.
func (r *PostgresRepository) SuccessHoursByPhone(ctx context.Context, phone string, since time.Time) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT EXTRACT(HOUR FROM created_at AT TIME ZONE 'UTC')::int
		FROM auth_attempts
		WHERE phone = $1 AND created_at >= $2 AND success = TRUE
		ORDER BY 1`, phone, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var h int
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// StatsByMerchant aggregates attempt counts and average trust score for the
// merchant's phone since the given time.
func (r *PostgresRepository) StatsByMerchant(ctx context.Context, merchantID int64, since time.Time) (*domain.Stats, error) {
	var s domain.Stats
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN a.success THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN NOT a.success THEN 1 ELSE 0 END), 0),
		       AVG(a.trust_score)
		FROM auth_attempts a
		JOIN users u ON u.id = a.user_id
		JOIN merchants m ON m.user_id = u.id
		WHERE m.id = $1 AND a.created_at >= $2`, merchantID, since).
		Scan(&s.TotalAttempts, &s.SuccessfulAttempts, &s.FailedAttempts, &avg)
	if err != nil {
		return nil, err
	}
	if avg.Valid {
		s.AverageTrustScore = avg.Float64
	}
	return &s, nil
}

func scanAttempt(row *sql.Row) (*domain.Attempt, error) {
	var a domain.Attempt
	var userID, challengeID sql.NullInt64
	var lat, lon sql.NullFloat64
	var passed sql.NullBool
	err := row.Scan(&a.ID, &userID, &a.Phone, &a.DeviceFingerprint, &a.TrustScore,
		&a.Decision, &lat, &lon, &challengeID, &passed, &a.IP, &a.UserAgent,
		&a.Success, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	assignNullables(&a, userID, challengeID, lat, lon, passed)
	return &a, nil
}

func assignNullables(a *domain.Attempt, userID, challengeID sql.NullInt64, lat, lon sql.NullFloat64, passed sql.NullBool) {
	if userID.Valid {
		a.UserID = &userID.Int64
	}
	if challengeID.Valid {
		a.ChallengeID = &challengeID.Int64
	}
	if lat.Valid {
		a.Latitude = &lat.Float64
	}
	if lon.Valid {
		a.Longitude = &lon.Float64
	}
	if passed.Valid {
		a.ChallengePassed = &passed.Bool
	}
}
