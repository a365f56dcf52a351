package repository

import (
	"context"

	"merchant-trust-platform/backend/internal/merchant/domain"
)

// Repository defines persistence for merchants. The authentication core only
// reads merchants; creation belongs to the enrollment tooling.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Merchant, error)
	GetByUserID(ctx context.Context, userID int64) (*domain.Merchant, error)
	Create(ctx context.Context, m *domain.Merchant) (*domain.Merchant, error)
}
