// Package telemetry defines the authentication decision event stream emitted
// to observability backends.
package telemetry

import (
	"context"
	"time"
)

// DecisionEvent describes a single trust scoring decision.
type DecisionEvent struct {
	Phone             string
	MerchantID        int64
	DeviceFingerprint string
	TrustScore        int
	Decision          string
	RiskFlags         []string
	CreatedAt         time.Time
}

// EventEmitter emits decision events. Implementations must be best-effort:
// emission failures must not fail the login they describe.
type EventEmitter interface {
	Emit(ctx context.Context, event *DecisionEvent) error
}
