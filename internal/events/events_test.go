package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed int
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

func sampleEvent() Event {
	return New(TypeAccountRegistered, 7, "10191025"+"7", 10, time.Date(2025, 10, 19, 10, 0, 0, 0, time.UTC))
}

func TestNew_AssignsIDAndUTC(t *testing.T) {
	loc := time.FixedZone("x", 3600)
	a := New(TypeAccountLogin, 1, "p", 20, time.Date(2025, 1, 1, 1, 0, 0, 0, loc))
	b := New(TypeAccountLogin, 1, "p", 20, time.Now())
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids should be unique and non-empty: %q %q", a.ID, b.ID)
	}
	if a.OccurredAt.Location() != time.UTC {
		t.Errorf("OccurredAt should be UTC, got %v", a.OccurredAt.Location())
	}
}

func TestNewKafkaProducer_NoBrokers(t *testing.T) {
	if p := NewKafkaProducer(nil, "topic"); p != nil {
		t.Error("expected nil producer without brokers")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Error("expected nil producer without topic")
	}
	var p *KafkaProducer
	if err := p.Publish(context.Background(), sampleEvent()); err != nil {
		t.Errorf("nil producer Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil producer Close: %v", err)
	}
}

func TestKafkaProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "identity-events"}
	e := sampleEvent()
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != e.PublicID {
		t.Errorf("key = %q, want %q", msg.Key, e.PublicID)
	}
	var got Event
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != e.ID || got.Type != e.Type || got.AccountID != 7 {
		t.Errorf("payload = %+v, want %+v", got, e)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != TypeAccountRegistered {
		t.Errorf("headers = %+v", msg.Headers)
	}
	if err := p.Close(); err != nil || w.closed != 1 {
		t.Errorf("Close: err=%v closed=%d", err, w.closed)
	}
}

func TestKafkaProducer_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaProducer{writer: w, topic: "t"}
	if err := p.Publish(context.Background(), sampleEvent()); err == nil {
		t.Error("expected write error")
	}
}

type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func TestOTelProducer_Publish(t *testing.T) {
	rc := &recordCapture{}
	p := NewOTelProducerWithLogger(rc)
	e := sampleEvent()
	e.Provider = "google"
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if rc.rec.Body().Empty() {
		t.Fatal("body should hold the JSON event")
	}
	attrs := make(map[string]string)
	rc.rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	for k, want := range map[string]string{"event_type": e.Type, "public_id": e.PublicID, "provider": "google", "event_id": e.ID} {
		if attrs[k] != want {
			t.Errorf("attr %s = %q, want %q", k, attrs[k], want)
		}
	}
	if !rc.rec.Timestamp().Equal(e.OccurredAt) {
		t.Errorf("timestamp = %v, want %v", rc.rec.Timestamp(), e.OccurredAt)
	}
}

func TestNewOTelProducer_NilProvider(t *testing.T) {
	if _, ok := NewOTelProducer(nil).(Noop); !ok {
		t.Error("nil provider should give Noop")
	}
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	if err := NewOTelProducer(provider).Publish(context.Background(), sampleEvent()); err != nil {
		t.Errorf("Publish: %v", err)
	}
}

type recordingProducer struct {
	mu     sync.Mutex
	events []Event
	err    error
	done   chan struct{}
}

func (r *recordingProducer) Publish(ctx context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	return r.err
}

func (r *recordingProducer) Close() error { return r.err }

func TestMulti(t *testing.T) {
	a := &recordingProducer{}
	b := &recordingProducer{err: errors.New("b failed")}
	m := Multi{a, b, Noop{}}
	err := m.Publish(context.Background(), sampleEvent())
	if err == nil {
		t.Error("expected joined error")
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("fan-out: a=%d b=%d", len(a.events), len(b.events))
	}
	if err := m.Close(); err == nil {
		t.Error("expected Close error from b")
	}
}

func TestPublishAsync(t *testing.T) {
	p := &recordingProducer{done: make(chan struct{}, 2), err: errors.New("ignored")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	PublishAsync(ctx, p, zap.NewNop(), sampleEvent(), sampleEvent())
	for i := 0; i < 2; i++ {
		select {
		case <-p.done:
		case <-time.After(2 * time.Second):
			t.Fatal("async publish did not run")
		}
	}
	PublishAsync(context.Background(), nil, nil, sampleEvent())
	PublishAsync(context.Background(), p, nil)
}
