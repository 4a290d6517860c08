package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mqttap/mqttap/core/model"
	"github.com/mqttap/mqttap/infra/logger"
	"github.com/mqttap/mqttap/internal/eventbus"
)

type recordingSink struct {
	mu     sync.Mutex
	stored []model.Message
	fail   bool
}

func (s *recordingSink) Store(_ context.Context, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store failed")
	}
	s.stored = append(s.stored, msg)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

type countingRecorder struct {
	mu       sync.Mutex
	messages int
	errors   int
}

func (r *countingRecorder) RecordMessage(model.Message) {
	r.mu.Lock()
	r.messages++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordSinkError(string) {
	r.mu.Lock()
	r.errors++
	r.mu.Unlock()
}

func (r *countingRecorder) SetConnected(bool) {}

func (r *countingRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages, r.errors
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestConsumerStoresAndRecords(t *testing.T) {
	s := &recordingSink{}
	rec := &countingRecorder{}
	c := New(Config{}, s, nil, rec, logger.NopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	c.Handle(model.Message{Topic: "sensors/temp", Payload: []byte("21.5")})
	c.Handle(model.Message{Topic: "sensors/hum", Payload: []byte("40")})

	waitFor(t, func() bool { return s.count() == 2 })
	msgs, errs := rec.counts()
	if msgs != 2 || errs != 0 {
		t.Fatalf("recorder counts = (%d, %d), want (2, 0)", msgs, errs)
	}

	cancel()
	<-done
}

func TestConsumerSinkErrorIsNotFatal(t *testing.T) {
	s := &recordingSink{fail: true}
	rec := &countingRecorder{}
	c := New(Config{}, s, nil, rec, logger.NopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	c.Handle(model.Message{Topic: "a", Payload: []byte("x")})
	c.Handle(model.Message{Topic: "b", Payload: []byte("y")})

	waitFor(t, func() bool {
		msgs, errs := rec.counts()
		return msgs == 2 && errs == 2
	})
}

func TestConsumerPublishesOnBus(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe()
	c := New(Config{}, nil, bus, nil, logger.NopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	c.Handle(model.Message{Topic: "sensors/temp", Payload: []byte("21.5")})
	select {
	case m := <-sub:
		if m.Topic != "sensors/temp" {
			t.Fatalf("unexpected topic %s", m.Topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not published on bus")
	}
}

func TestConsumerDrainsOnCancel(t *testing.T) {
	s := &recordingSink{}
	c := New(Config{BufferSize: 8}, s, nil, nil, logger.NopLogger{})

	// Queue messages before the workers start, cancel immediately: the
	// drain pass must still flush them to the sink.
	for i := 0; i < 4; i++ {
		c.Handle(model.Message{Topic: "t", Payload: []byte("p")})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Run(ctx)

	if s.count() != 4 {
		t.Fatalf("expected 4 drained messages, got %d", s.count())
	}
}

func TestHandleReturnsAfterClose(t *testing.T) {
	c := New(Config{BufferSize: 1}, nil, nil, nil, logger.NopLogger{})
	c.Handle(model.Message{Topic: "fills/buffer"})
	c.Close()

	done := make(chan struct{})
	go func() {
		c.Handle(model.Message{Topic: "blocked"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handle blocked after Close")
	}
}
