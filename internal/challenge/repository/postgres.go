package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"merchant-trust-platform/backend/internal/challenge/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a challenge repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const challengeColumns = `id, question_fr, COALESCE(question_dioula, ''), category, difficulty, is_active, created_at, updated_at`

const enrolledColumns = `
	mc.id, mc.merchant_id, mc.challenge_id, mc.answer_hash, mc.is_primary, mc.created_at, mc.updated_at,
	sc.question_fr, COALESCE(sc.question_dioula, ''), sc.category, sc.difficulty`

// GetChallenge returns the catalog question for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetChallenge(ctx context.Context, id int64) (*domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM social_challenges WHERE id = $1`, id)
	c, err := scanChallenge(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ListActiveByCategory returns the active catalog questions for category.
func (r *PostgresRepository) ListActiveByCategory(ctx context.Context, category domain.Category) ([]*domain.Challenge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+challengeColumns+`
		FROM social_challenges
		WHERE category = $1 AND is_active = TRUE
		ORDER BY difficulty, id`, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Challenge
	for rows.Next() {
		var c domain.Challenge
		if err := rows.Scan(&c.ID, &c.QuestionFr, &c.QuestionDioula, &c.Category,
			&c.Difficulty, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// CreateChallenge persists a catalog question and returns it with the generated id.
func (r *PostgresRepository) CreateChallenge(ctx context.Context, c *domain.Challenge) (*domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO social_challenges (question_fr, question_dioula, category, difficulty, is_active, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $6)
		RETURNING `+challengeColumns,
		c.QuestionFr, c.QuestionDioula, string(c.Category), c.Difficulty, c.IsActive, time.Now().UTC())
	return scanChallenge(row)
}

// GetEnrollment returns the enrollment row (joined with its question) for the
// given merchant_challenges id, or nil if not found.
func (r *PostgresRepository) GetEnrollment(ctx context.Context, merchantChallengeID int64) (*domain.EnrolledChallenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+enrolledColumns+`
		FROM merchant_challenges mc
		JOIN social_challenges sc ON sc.id = mc.challenge_id
		WHERE mc.id = $1`, merchantChallengeID)
	return scanEnrolled(row)
}

// GetPrimaryForMerchant returns the merchant's primary enrollment (joined with
// its question), or nil if the merchant has none configured.
func (r *PostgresRepository) GetPrimaryForMerchant(ctx context.Context, merchantID int64) (*domain.EnrolledChallenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+enrolledColumns+`
		FROM merchant_challenges mc
		JOIN social_challenges sc ON sc.id = mc.challenge_id
		WHERE mc.merchant_id = $1 AND mc.is_primary = TRUE
		ORDER BY mc.id
		LIMIT 1`, merchantID)
	return scanEnrolled(row)
}

// CreateEnrollment stores the hashed answer. A primary enrollment demotes any
// existing primary row for the merchant in the same transaction.
func (r *PostgresRepository) CreateEnrollment(ctx context.Context, mc *domain.MerchantChallenge) (*domain.MerchantChallenge, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if mc.IsPrimary {
		if _, err := tx.ExecContext(ctx, `
			UPDATE merchant_challenges SET is_primary = FALSE, updated_at = NOW()
			WHERE merchant_id = $1 AND is_primary = TRUE`, mc.MerchantID); err != nil {
			return nil, err
		}
	}

	var out domain.MerchantChallenge
	err = tx.QueryRowContext(ctx, `
		INSERT INTO merchant_challenges (merchant_id, challenge_id, answer_hash, is_primary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, merchant_id, challenge_id, answer_hash, is_primary, created_at, updated_at`,
		mc.MerchantID, mc.ChallengeID, mc.AnswerHash, mc.IsPrimary, time.Now().UTC()).
		Scan(&out.ID, &out.MerchantID, &out.ChallengeID, &out.AnswerHash, &out.IsPrimary, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

func scanChallenge(row *sql.Row) (*domain.Challenge, error) {
	var c domain.Challenge
	err := row.Scan(&c.ID, &c.QuestionFr, &c.QuestionDioula, &c.Category,
		&c.Difficulty, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanEnrolled(row *sql.Row) (*domain.EnrolledChallenge, error) {
	var e domain.EnrolledChallenge
	err := row.Scan(&e.ID, &e.MerchantID, &e.ChallengeID, &e.AnswerHash, &e.IsPrimary,
		&e.CreatedAt, &e.UpdatedAt, &e.QuestionFr, &e.QuestionDioula, &e.Category, &e.Difficulty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}
