// Package metrics implements the core metrics.Recorder on Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/mqttap/mqttap/core/metrics"
	"github.com/mqttap/mqttap/core/model"
)

// Config enables the Prometheus endpoint.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PrometheusPort == "" {
		c.PrometheusPort = ":2112"
	}
}

// PromRecorder records pipeline events as Prometheus metrics.
type PromRecorder struct {
	messages  *prometheus.CounterVec
	payload   prometheus.Histogram
	sinkErrs  *prometheus.CounterVec
	connected prometheus.Gauge
}

// NewPromRecorder registers the metrics on the default Prometheus
// registerer.
func NewPromRecorder() (coremetrics.Recorder, error) {
	return NewPromRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromRecorderWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromRecorderWithRegistry(reg prometheus.Registerer) (coremetrics.Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mqttap_messages_received_total",
		Help: "Total number of messages received from the broker",
	}, []string{"topic", "qos"})
	payload := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mqttap_payload_bytes",
		Help:    "Payload size of received messages",
		Buckets: prometheus.ExponentialBuckets(16, 4, 8),
	})
	sinkErrs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mqttap_sink_errors_total",
		Help: "Total number of failed store writes",
	}, []string{"topic"})
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mqttap_broker_connected",
		Help: "Whether the client currently holds a broker connection",
	})

	if err := reg.Register(messages); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			messages = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(payload); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			payload = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(sinkErrs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			sinkErrs = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(connected); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			connected = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromRecorder{messages: messages, payload: payload, sinkErrs: sinkErrs, connected: connected}, nil
}

// RecordMessage counts the message and observes its payload size.
func (r *PromRecorder) RecordMessage(msg model.Message) {
	r.messages.WithLabelValues(msg.Topic, strconv.Itoa(int(msg.QoS))).Inc()
	r.payload.Observe(float64(msg.Size()))
}

// RecordSinkError counts a failed store write.
func (r *PromRecorder) RecordSinkError(topic string) {
	r.sinkErrs.WithLabelValues(topic).Inc()
}

// SetConnected sets the connection gauge.
func (r *PromRecorder) SetConnected(connected bool) {
	if connected {
		r.connected.Set(1)
		return
	}
	r.connected.Set(0)
}
