package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// deliverTimeout bounds a single Sink.Deliver call.
const deliverTimeout = 10 * time.Second

// Consecutive read failures back off exponentially from readRetryBase up to readRetryMax.
const (
	readRetryBase = 100 * time.Millisecond
	readRetryMax  = 5 * time.Second
)

// messageReader is the subset of *kafka.Reader used by Consumer.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Sink receives consumed events. raw is the message value as read; e is its decoding, or the
// zero Event when the value is not an event.
type Sink interface {
	Deliver(ctx context.Context, e Event, raw []byte) error
}

// Consumer reads account events from Kafka and hands each one to a Sink.
type Consumer struct {
	reader     messageReader
	sink       Sink
	logger     *zap.Logger
	newBackoff func() retry.Backoff
}

// NewKafkaConsumer returns a Consumer reading topic as consumer group groupID.
func NewKafkaConsumer(brokers []string, topic, groupID string, sink Sink, logger *zap.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("events: kafka brokers are required")
	}
	if topic == "" || groupID == "" {
		return nil, errors.New("events: topic and group id are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
	return newConsumer(reader, sink, logger), nil
}

func newConsumer(reader messageReader, sink Sink, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		reader: reader,
		sink:   sink,
		logger: logger,
		newBackoff: func() retry.Backoff {
			return retry.WithCappedDuration(readRetryMax, retry.NewExponential(readRetryBase))
		},
	}
}

// Run consumes until ctx is done. Read failures are logged and retried with backoff; delivery
// failures are logged and skipped. Run returns nil once ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := c.newBackoff()
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait, _ := backoff.Next()
			c.logger.Warn("kafka read failed", zap.Duration("retry_in", wait), zap.Error(err))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
			continue
		}
		backoff = c.newBackoff()
		c.deliver(ctx, msg)
	}
}

func (c *Consumer) deliver(ctx context.Context, msg kafka.Message) {
	var e Event
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		c.logger.Warn("undecodable event", zap.Int64("offset", msg.Offset), zap.Error(err))
		e = Event{}
	}
	deliverCtx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	if err := c.sink.Deliver(deliverCtx, e, msg.Value); err != nil {
		c.logger.Warn("event delivery failed",
			zap.String("event_id", e.ID),
			zap.String("event_type", e.Type),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
