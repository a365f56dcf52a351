package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	devicedomain "merchant-trust-platform/backend/internal/device/domain"
)

const promotionQuery = "data.mtp.device_trust.promote"

// Default Rego policy: promote a device to trusted once it has been used
// enough times and the login was approved without a challenge.
const defaultRegoPolicy = `package mtp.device_trust

default promote = false

promote if {
	input.decision == "allow"
	not input.device.trusted
	input.device.times_used >= input.threshold.usage_count
}
`

// OPAEvaluator evaluates device trust promotion policies using OPA Rego.
// An operator-supplied policy source replaces the default policy; the default
// is used when the source is empty or fails to compile.
type OPAEvaluator struct {
	policySource string
}

// NewOPAEvaluator returns an OPA-based policy evaluator. policySource may be
// empty, in which case the built-in default policy is used.
func NewOPAEvaluator(policySource string) *OPAEvaluator {
	return &OPAEvaluator{policySource: policySource}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and
// evaluate the active policy. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := e.compile()
	if err != nil {
		return fmt.Errorf("compile policy: %w", err)
	}
	input := e.buildInput(nil, "allow", 5)
	q := rego.New(
		rego.Query(promotionQuery),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluatePromotion evaluates the trust promotion policy for the given device
// and decision. Falls back to not promoting when evaluation fails.
func (e *OPAEvaluator) EvaluatePromotion(
	ctx context.Context,
	device *devicedomain.Device,
	decision string,
	usageThreshold int,
) (PromotionResult, error) {
	compiler, err := e.compile()
	if err != nil {
		log.Printf("policy: compile failed: %v, using defaults", err)
		return PromotionResult{}, nil
	}

	input := e.buildInput(device, decision, usageThreshold)
	q := rego.New(
		rego.Query(promotionQuery),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		log.Printf("policy: evaluation failed: %v, using defaults", err)
		return PromotionResult{}, nil
	}

	out := PromotionResult{}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if v, ok := rs[0].Expressions[0].Value.(bool); ok {
			out.Promote = v
		}
	}
	return out, nil
}

func (e *OPAEvaluator) compile() (*ast.Compiler, error) {
	source := e.policySource
	if source == "" {
		source = defaultRegoPolicy
	}
	modules := map[string]string{"policy_0.rego": source}
	compiler, err := ast.CompileModules(modules)
	if err != nil && e.policySource != "" {
		log.Printf("policy: custom policy failed to compile: %v, using default", err)
		return ast.CompileModules(map[string]string{"policy_0.rego": defaultRegoPolicy})
	}
	return compiler, err
}

func (e *OPAEvaluator) buildInput(device *devicedomain.Device, decision string, usageThreshold int) map[string]interface{} {
	deviceMap := map[string]interface{}{
		"id":          int64(0),
		"fingerprint": "",
		"times_used":  0,
		"trusted":     false,
	}
	if device != nil {
		deviceMap["id"] = device.ID
		deviceMap["fingerprint"] = device.Fingerprint
		deviceMap["times_used"] = device.TimesUsed
		deviceMap["trusted"] = device.Trusted
	}
	return map[string]interface{}{
		"decision": decision,
		"device":   deviceMap,
		"threshold": map[string]interface{}{
			"usage_count": usageThreshold,
		},
	}
}
