package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// publishTimeout is the max time allowed for a single async publish.
const publishTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the servers stop before closing producers,
// so in-flight async publishes have time to complete. Must be >= publishTimeout.
const ShutdownDrainDuration = publishTimeout

// PublishAsync runs Publish in a goroutine with a short timeout so the caller is not blocked.
// The goroutine detaches from ctx cancellation but keeps its values. Errors are logged.
func PublishAsync(ctx context.Context, p Producer, logger *zap.Logger, evs ...Event) {
	if p == nil || len(evs) == 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := context.WithoutCancel(ctx)
	go func() {
		for _, e := range evs {
			pubCtx, cancel := context.WithTimeout(base, publishTimeout)
			if err := p.Publish(pubCtx, e); err != nil {
				logger.Warn("event publish failed",
					zap.String("event_type", e.Type),
					zap.String("public_id", e.PublicID),
					zap.Error(err))
			}
			cancel()
		}
	}()
}
