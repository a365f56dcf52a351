package repository

import (
	"context"
	"time"

	"merchant-trust-platform/backend/internal/attempt/domain"
)

// Repository defines persistence for the append-only attempt ledger.
type Repository interface {
	Create(ctx context.Context, a *domain.Attempt) (*domain.Attempt, error)
	// ListRecentByPhone returns attempts for phone created at or after since,
	// newest first.
	ListRecentByPhone(ctx context.Context, phone string, since time.Time) ([]*domain.Attempt, error)
	// FailureCountByPhone counts failed attempts for phone since the given time.
	FailureCountByPhone(ctx context.Context, phone string, since time.Time) (int, error)
	// SuccessHoursByPhone returns the distinct hours of day (0-23) at which the
	// phone logged in successfully since the given time.
	SuccessHoursByPhone(ctx context.Context, phone string, since time.Time) ([]int, error)
	// StatsByMerchant aggregates the merchant's attempts since the given time.
	StatsByMerchant(ctx context.Context, merchantID int64, since time.Time) (*domain.Stats, error)
}
