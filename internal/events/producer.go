package events

import (
	"context"
	"errors"
)

// Producer publishes events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Publish sends a single event. Returns an error only on write failure.
	Publish(ctx context.Context, e Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Multi fans an event out to every producer and joins their errors.
type Multi []Producer

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
