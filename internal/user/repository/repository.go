package repository

import (
	"context"
	"time"

	"merchant-trust-platform/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	SetPhoneVerified(ctx context.Context, id int64) error
	UpdatePin(ctx context.Context, id int64, pinHash string) error
	IncrementPinFailures(ctx context.Context, id int64) (int, error)
	LockUntil(ctx context.Context, id int64, until time.Time) error
	ResetPinFailures(ctx context.Context, id int64) error
}
