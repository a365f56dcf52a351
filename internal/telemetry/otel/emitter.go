package otel

import (
	"context"
	"strings"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"merchant-trust-platform/backend/internal/telemetry"
)

// NewEventEmitter returns an EventEmitter that sends decision events as OTel
// log records via the given LoggerProvider. If provider is nil, returns a
// no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("mtp.auth")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.DecisionEvent) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the decision event to an OTel log record and emits it.
// Best-effort; never returns an error for malformed events.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.DecisionEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	}
	rec.SetBody(otellog.StringValue("auth decision"))
	if event.Phone != "" {
		rec.AddAttributes(otellog.String("phone", event.Phone))
	}
	if event.MerchantID != 0 {
		rec.AddAttributes(otellog.Int64("merchant_id", event.MerchantID))
	}
	if event.DeviceFingerprint != "" {
		rec.AddAttributes(otellog.String("device_fingerprint", event.DeviceFingerprint))
	}
	rec.AddAttributes(otellog.Int("trust_score", event.TrustScore))
	if event.Decision != "" {
		rec.AddAttributes(otellog.String("decision", event.Decision))
	}
	if len(event.RiskFlags) > 0 {
		rec.AddAttributes(otellog.String("risk_flags", strings.Join(event.RiskFlags, ",")))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
