// Package store persists broker messages. The InfluxDB sink writes one
// point per message; MultiSink fans a message out to several sinks.
package store

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/mqttap/mqttap/core/model"
	coresink "github.com/mqttap/mqttap/core/sink"
	"github.com/mqttap/mqttap/infra/logger"
)

// Config describes the configured stores. Both backends are optional; when
// several are set, messages go to all of them.
type Config struct {
	URL         string `json:"url"`
	Token       string `json:"token"`
	Org         string `json:"org"`
	Bucket      string `json:"bucket"`
	Measurement string `json:"measurement"`
	// JSONLPath appends messages to a local file, one JSON object per line.
	JSONLPath string `json:"jsonl_path"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Measurement == "" {
		c.Measurement = "mqtt_message"
	}
}

// Validate checks mandatory fields. An empty config is valid and means no
// store is configured.
func (c Config) Validate() error {
	if c.InfluxEnabled() && (c.Org == "" || c.Bucket == "") {
		return fmt.Errorf("influx store requires org and bucket")
	}
	return nil
}

// InfluxEnabled reports whether an InfluxDB endpoint is configured.
func (c Config) InfluxEnabled() bool { return c.URL != "" }

// JSONLEnabled reports whether a JSONL file store is configured.
func (c Config) JSONLEnabled() bool { return c.JSONLPath != "" }

// InfluxSink writes messages to an InfluxDB instance using the official
// client.
type InfluxSink struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
	log         logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(cfg Config) *InfluxSink {
	cfg.SetDefaults()
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: cfg.Measurement,
		log:         logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails, so an unreachable store never stops
// message consumption.
func NewInfluxSinkWithFallback(cfg Config) coresink.Sink {
	s := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := s.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			s.log.Errorf("influx health check error: %v", err)
		} else {
			s.log.Errorf("influx health status: %s", health.Status)
		}
		s.client.Close()
		return coresink.NopSink{}
	}
	return s
}

// Store writes the message as a single point.
func (s *InfluxSink) Store(ctx context.Context, msg model.Message) error {
	p := write.NewPointWithMeasurement(s.measurement).
		AddTag("topic", msg.Topic).
		AddTag("client_id", msg.ClientID).
		AddTag("qos", strconv.Itoa(int(msg.QoS))).
		AddTag("retained", strconv.FormatBool(msg.Retained)).
		AddField("payload", msg.PayloadString()).
		AddField("size_bytes", msg.Size()).
		SetTime(msg.ReceivedAt)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}
