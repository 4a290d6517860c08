package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mqttap/mqttap/core/model"
)

// jsonlRecord is the on-disk form of a message. The payload is written as
// text rather than base64 so the file stays greppable.
type jsonlRecord struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id"`
	Topic      string    `json:"topic"`
	Payload    string    `json:"payload"`
	QoS        byte      `json:"qos"`
	Retained   bool      `json:"retained"`
	ReceivedAt time.Time `json:"received_at"`
}

// JSONLSink appends messages to a local file, one JSON object per line.
type JSONLSink struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewJSONLSink opens (or creates) the file in append mode.
func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open jsonl store: %w", err)
	}
	return &JSONLSink{f: f, enc: json.NewEncoder(f)}, nil
}

// Store appends the message as one line.
func (s *JSONLSink) Store(_ context.Context, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(jsonlRecord{
		ID:         msg.ID,
		ClientID:   msg.ClientID,
		Topic:      msg.Topic,
		Payload:    msg.PayloadString(),
		QoS:        msg.QoS,
		Retained:   msg.Retained,
		ReceivedAt: msg.ReceivedAt,
	})
}

// Close flushes and closes the file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
