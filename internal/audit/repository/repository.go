package repository

import (
	"context"

	"merchant-trust-platform/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	ListByPhone(ctx context.Context, phone string, limit, offset int32) ([]*domain.AuditLog, error)
}
