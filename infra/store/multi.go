package store

import (
	"context"
	"errors"

	"github.com/mqttap/mqttap/core/model"
	coresink "github.com/mqttap/mqttap/core/sink"
)

// MultiSink forwards each message to every underlying sink and joins the
// errors.
type MultiSink struct {
	sinks []coresink.Sink
}

// NewMultiSink creates a MultiSink.
func NewMultiSink(sinks ...coresink.Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Store writes the message to all sinks. Every sink is attempted even when
// an earlier one fails.
func (m *MultiSink) Store(ctx context.Context, msg model.Message) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Store(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all sinks.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
