package model

import "time"

// Message is a broker message as received by the client. ReceivedAt is
// always recorded in UTC.
type Message struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id"`
	Topic      string    `json:"topic"`
	Payload    []byte    `json:"payload"`
	QoS        byte      `json:"qos"`
	Retained   bool      `json:"retained"`
	Duplicate  bool      `json:"duplicate"`
	ReceivedAt time.Time `json:"received_at"`
}

// PayloadString returns the payload decoded as UTF-8 text.
func (m Message) PayloadString() string { return string(m.Payload) }

// Size returns the payload length in bytes.
func (m Message) Size() int { return len(m.Payload) }
