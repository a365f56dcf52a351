package repository

import (
	"context"

	"merchant-trust-platform/backend/internal/challenge/domain"
)

// Repository defines persistence for the challenge catalog and per-merchant
// enrollments.
type Repository interface {
	GetChallenge(ctx context.Context, id int64) (*domain.Challenge, error)
	ListActiveByCategory(ctx context.Context, category domain.Category) ([]*domain.Challenge, error)
	CreateChallenge(ctx context.Context, c *domain.Challenge) (*domain.Challenge, error)

	GetEnrollment(ctx context.Context, merchantChallengeID int64) (*domain.EnrolledChallenge, error)
	GetPrimaryForMerchant(ctx context.Context, merchantID int64) (*domain.EnrolledChallenge, error)
	// CreateEnrollment stores a merchant's hashed answer. When isPrimary is
	// true any previous primary row for the merchant is demoted first, so the
	// one-primary-per-merchant invariant holds.
	CreateEnrollment(ctx context.Context, mc *domain.MerchantChallenge) (*domain.MerchantChallenge, error)
}
