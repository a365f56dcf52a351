package domain

import "time"

// AuditLog represents one audit event (enrollment, trust promotion, lockout).
// Login attempts themselves live in the attempt ledger; this log covers the
// administrative events around them.
type AuditLog struct {
	ID        string
	UserID    int64 // 0 when no user context is known
	Phone     string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
