package repository

import (
	"context"

	"merchant-trust-platform/backend/internal/device/domain"
)

// Repository defines persistence for merchant devices.
type Repository interface {
	GetByMerchantAndFingerprint(ctx context.Context, merchantID int64, fingerprint string) (*domain.Device, error)
	ListByMerchant(ctx context.Context, merchantID int64) ([]*domain.Device, error)
	// Upsert inserts the device with times_used=1 or increments times_used and
	// refreshes last_seen for an existing (merchant, fingerprint) pair.
	Upsert(ctx context.Context, merchantID int64, fingerprint, name string) (*domain.Device, error)
	SetTrusted(ctx context.Context, merchantID int64, fingerprint string) error
}
