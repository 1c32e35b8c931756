package events

import (
	"context"
	"encoding/json"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// recordEmitter is the part of otellog.Logger the producer uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// OTelProducer sends events as OTel log records.
type OTelProducer struct {
	logger recordEmitter
}

// NewOTelProducer returns a producer over provider's logger. If provider is nil, returns Noop.
func NewOTelProducer(provider *sdklog.LoggerProvider) Producer {
	if provider == nil {
		return Noop{}
	}
	return NewOTelProducerWithLogger(provider.Logger("identity.events"))
}

// NewOTelProducerWithLogger returns a producer that emits to logger.
func NewOTelProducerWithLogger(logger recordEmitter) *OTelProducer {
	return &OTelProducer{logger: logger}
}

func (p *OTelProducer) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	var rec otellog.Record
	rec.SetTimestamp(e.OccurredAt)
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.BytesValue(body))
	rec.AddAttributes(
		otellog.String("event_id", e.ID),
		otellog.String("event_type", e.Type),
		otellog.String("public_id", e.PublicID),
		otellog.Int64("account_id", e.AccountID),
	)
	if e.Provider != "" {
		rec.AddAttributes(otellog.String("provider", e.Provider))
	}
	p.logger.Emit(ctx, rec)
	return nil
}

// Close is a no-op; the LoggerProvider is shut down with the other telemetry providers.
func (p *OTelProducer) Close() error { return nil }
