// Package metrics defines the instrumentation interface for the message
// pipeline. The Prometheus implementation lives in infra/metrics.
package metrics

import "github.com/mqttap/mqttap/core/model"

// Recorder receives pipeline events worth counting.
type Recorder interface {
	// RecordMessage is called for every message taken off the broker.
	RecordMessage(msg model.Message)
	// RecordSinkError is called when a store write fails.
	RecordSinkError(topic string)
	// SetConnected tracks the broker connection state.
	SetConnected(connected bool)
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) RecordMessage(model.Message) {}
func (NopRecorder) RecordSinkError(string)      {}
func (NopRecorder) SetConnected(bool)           {}
