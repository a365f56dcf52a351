package engine

import (
	"context"

	devicedomain "merchant-trust-platform/backend/internal/device/domain"
)

// PromotionResult holds the result of device trust promotion policy evaluation.
type PromotionResult struct {
	Promote bool
}

// Evaluator evaluates device trust promotion policies using OPA or other engines.
type Evaluator interface {
	// EvaluatePromotion evaluates whether the device should be marked trusted
	// after the given authentication decision. usageThreshold is the minimum
	// number of successful uses before a device qualifies.
	EvaluatePromotion(
		ctx context.Context,
		device *devicedomain.Device,
		decision string,
		usageThreshold int,
	) (PromotionResult, error)
}
