package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// scriptedReader returns its messages in order and then blocks until ctx is canceled.
type scriptedReader struct {
	msgs   []kafka.Message
	errs   []error
	closed bool
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		return m, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

type captureSink struct {
	mu     sync.Mutex
	events []Event
	raws   []string
	err    error
	done   chan struct{}
}

func (s *captureSink) Deliver(ctx context.Context, e Event, raw []byte) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.raws = append(s.raws, string(raw))
	s.mu.Unlock()
	s.done <- struct{}{}
	return s.err
}

func TestConsumer_Run(t *testing.T) {
	defer goleak.VerifyNone(t)

	payload, err := json.Marshal(sampleEvent())
	if err != nil {
		t.Fatal(err)
	}
	reader := &scriptedReader{
		errs: []error{errors.New("broker unavailable")},
		msgs: []kafka.Message{{Value: payload, Offset: 1}, {Value: []byte("not json"), Offset: 2}},
	}
	sink := &captureSink{done: make(chan struct{}, 2), err: errors.New("sink down")}
	core, logs := observer.New(zapcore.DebugLevel)
	c := newConsumer(reader, sink, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- c.Run(ctx) }()
	<-sink.done
	<-sink.done
	cancel()
	if err := <-result; err != nil {
		t.Fatalf("Run returned %v after cancel, want nil", err)
	}

	if sink.events[0].Type != TypeAccountRegistered {
		t.Errorf("first event type = %q", sink.events[0].Type)
	}
	if sink.events[1] != (Event{}) || sink.raws[1] != "not json" {
		t.Errorf("undecodable message delivered as %+v / %q", sink.events[1], sink.raws[1])
	}
	// read failure, undecodable value, and two delivery failures
	if logs.Len() != 4 {
		t.Errorf("logged %d warnings, want 4", logs.Len())
	}

	if err := c.Close(); err != nil || !reader.closed {
		t.Errorf("Close: err=%v closed=%v", err, reader.closed)
	}
}

// brokenReader fails every read immediately, like a closed reader.
type brokenReader struct{ reads atomic.Int32 }

func (r *brokenReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.reads.Add(1)
	return kafka.Message{}, errors.New("reader closed")
}

func (r *brokenReader) Close() error { return nil }

func TestConsumer_Run_BacksOffOnReadErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	reader := &brokenReader{}
	c := newConsumer(reader, &captureSink{}, nil)
	c.newBackoff = func() retry.Backoff { return retry.NewConstant(50 * time.Millisecond) }

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
	// 200ms at one read per 50ms; without backoff this spins millions of times.
	if n := reader.reads.Load(); n > 6 {
		t.Errorf("read %d times in 200ms, want backoff between failed reads", n)
	}
}

func TestNewKafkaConsumer_Validation(t *testing.T) {
	if _, err := NewKafkaConsumer(nil, "t", "g", &captureSink{}, nil); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaConsumer([]string{"localhost:9092"}, "", "g", &captureSink{}, nil); err == nil {
		t.Error("expected error without topic")
	}
}
