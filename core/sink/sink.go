// Package sink defines the interface for persisting broker messages. An
// implementation backed by InfluxDB lives in infra/store; NopSink is used
// when no store is configured.
package sink

import (
	"context"

	"github.com/mqttap/mqttap/core/model"
)

// Sink persists messages received from the broker.
type Sink interface {
	Store(ctx context.Context, msg model.Message) error
	Close() error
}

// NopSink discards all messages.
type NopSink struct{}

func (NopSink) Store(context.Context, model.Message) error { return nil }
func (NopSink) Close() error                               { return nil }
