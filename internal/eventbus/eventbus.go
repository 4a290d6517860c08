// Package eventbus implements a simple fan-out bus for broker messages.
// It decouples the consumer pipeline from optional observers such as the
// traffic statistics collector.
package eventbus

import (
	"sync"

	"github.com/mqttap/mqttap/core/model"
)

// Bus fans out messages to all subscribers. Delivery is non-blocking: a
// subscriber that falls behind loses messages rather than stalling the
// pipeline.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan model.Message
	closed bool
}

// New creates a new Bus.
func New() *Bus { return &Bus{} }

// Publish sends the message to all subscribers.
func (b *Bus) Publish(m model.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- m:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan model.Message {
	ch := make(chan model.Message, 64)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan model.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes all subscriber channels and clears the list.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
