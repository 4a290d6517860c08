package eventbus

import (
	"testing"

	"github.com/mqttap/mqttap/core/model"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Publish(model.Message{Topic: "sensors/temp", Payload: []byte("21.5")})
	m := <-ch
	if m.Topic != "sensors/temp" || m.PayloadString() != "21.5" {
		t.Fatalf("unexpected message: %+v", m)
	}
	bus.Unsubscribe(ch)
}

func TestBusClose(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
}

func TestBusUnsubscribeAfterClose(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}

func TestBusSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	// Fill the buffer past capacity; Publish must not block.
	for i := 0; i < 128; i++ {
		bus.Publish(model.Message{Topic: "t"})
	}
	bus.Unsubscribe(ch)
}
