package engine

import (
	"context"
	"testing"
	"time"

	devicedomain "merchant-trust-platform/backend/internal/device/domain"
)

func testDevice(timesUsed int, trusted bool) *devicedomain.Device {
	now := time.Now().UTC()
	return &devicedomain.Device{
		ID:          1,
		MerchantID:  1,
		Fingerprint: "fp1",
		Name:        "Tecno Spark",
		TimesUsed:   timesUsed,
		Trusted:     trusted,
		FirstSeen:   now.Add(-30 * 24 * time.Hour),
		LastSeen:    now,
	}
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e := NewOPAEvaluator("")
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_PromoteAtThreshold(t *testing.T) {
	e := NewOPAEvaluator("")
	ctx := context.Background()

	result, err := e.EvaluatePromotion(ctx, testDevice(5, false), "allow", 5)
	if err != nil {
		t.Fatalf("EvaluatePromotion: %v", err)
	}
	if !result.Promote {
		t.Error("device at usage threshold after allow should be promoted")
	}
}

func TestOPAEvaluator_NoPromoteBelowThreshold(t *testing.T) {
	e := NewOPAEvaluator("")
	ctx := context.Background()

	result, err := e.EvaluatePromotion(ctx, testDevice(4, false), "allow", 5)
	if err != nil {
		t.Fatalf("EvaluatePromotion: %v", err)
	}
	if result.Promote {
		t.Error("device below usage threshold should not be promoted")
	}
}

func TestOPAEvaluator_NoPromoteOnChallenge(t *testing.T) {
	e := NewOPAEvaluator("")
	ctx := context.Background()

	for _, decision := range []string{"challenge", "validate"} {
		result, err := e.EvaluatePromotion(ctx, testDevice(10, false), decision, 5)
		if err != nil {
			t.Fatalf("EvaluatePromotion(%s): %v", decision, err)
		}
		if result.Promote {
			t.Errorf("decision %q should not promote", decision)
		}
	}
}

func TestOPAEvaluator_NoPromoteAlreadyTrusted(t *testing.T) {
	e := NewOPAEvaluator("")
	ctx := context.Background()

	result, err := e.EvaluatePromotion(ctx, testDevice(10, true), "allow", 5)
	if err != nil {
		t.Fatalf("EvaluatePromotion: %v", err)
	}
	if result.Promote {
		t.Error("already trusted device should not be promoted again")
	}
}

func TestOPAEvaluator_NilDevice(t *testing.T) {
	e := NewOPAEvaluator("")
	ctx := context.Background()

	result, err := e.EvaluatePromotion(ctx, nil, "allow", 5)
	if err != nil {
		t.Fatalf("EvaluatePromotion: %v", err)
	}
	if result.Promote {
		t.Error("nil device should not be promoted")
	}
}

func TestOPAEvaluator_CustomPolicy(t *testing.T) {
	customPolicy := `package mtp.device_trust

default promote = false

promote if {
	input.decision == "allow"
	input.device.times_used >= 2
}
`
	e := NewOPAEvaluator(customPolicy)
	ctx := context.Background()

	result, err := e.EvaluatePromotion(ctx, testDevice(2, false), "allow", 5)
	if err != nil {
		t.Fatalf("EvaluatePromotion: %v", err)
	}
	if !result.Promote {
		t.Error("custom policy with lower threshold should promote")
	}
}

func TestOPAEvaluator_InvalidCustomPolicyFallsBack(t *testing.T) {
	e := NewOPAEvaluator("package mtp.device_trust\n\ninvalid syntax here\n")
	ctx := context.Background()

	result, err := e.EvaluatePromotion(ctx, testDevice(5, false), "allow", 5)
	if err != nil {
		t.Fatalf("EvaluatePromotion should not return error on invalid policy: %v", err)
	}
	if !result.Promote {
		t.Error("default policy should apply when custom policy fails to compile")
	}
}
