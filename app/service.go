// Package app wires the configuration into a running client service.
package app

import (
	"context"
	"fmt"

	"github.com/mqttap/mqttap/config"
	"github.com/mqttap/mqttap/core/consumer"
	coremetrics "github.com/mqttap/mqttap/core/metrics"
	coresink "github.com/mqttap/mqttap/core/sink"
	"github.com/mqttap/mqttap/core/stats"
	"github.com/mqttap/mqttap/infra/logger"
	"github.com/mqttap/mqttap/infra/metrics"
	"github.com/mqttap/mqttap/infra/mqtt"
	"github.com/mqttap/mqttap/infra/store"
	"github.com/mqttap/mqttap/internal/eventbus"
)

// Service owns the MQTT client, the message pipeline and the optional
// observers.
type Service struct {
	client   *mqtt.PahoClient
	consumer *consumer.Consumer
	sink     coresink.Sink
	bus      *eventbus.Bus
	stats    *stats.Collector
	topics   []config.TopicConfig
	log      logger.Logger

	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration and connects to the broker.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var rec coremetrics.Recorder = coremetrics.NopRecorder{}
	if cfg.Metrics.PrometheusEnabled {
		r, err := metrics.NewPromRecorder()
		if err != nil {
			return nil, fmt.Errorf("prom recorder: %w", err)
		}
		rec = r
	}

	brokerCfg := cfg.Broker
	brokerCfg.OnConnectionChange = rec.SetConnected
	client, err := mqtt.NewPahoClient(brokerCfg)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	s, err := buildSink(cfg.Store)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	cons := consumer.New(cfg.Consumer, s, bus, rec, logger.New("consumer"))

	svc := &Service{
		client:      client,
		consumer:    cons,
		sink:        s,
		bus:         bus,
		topics:      cfg.Topics,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}
	if cfg.Stats.Enabled {
		svc.stats = stats.NewCollector(cfg.Stats, logger.New("stats"))
	}
	return svc, nil
}

// buildSink composes the configured store backends into a single sink. With
// no backend configured messages are dropped; with several, each message is
// written to all of them.
func buildSink(cfg store.Config) (coresink.Sink, error) {
	var sinks []coresink.Sink
	if cfg.InfluxEnabled() {
		sinks = append(sinks, store.NewInfluxSinkWithFallback(cfg))
	}
	if cfg.JSONLEnabled() {
		js, err := store.NewJSONLSink(cfg.JSONLPath)
		if err != nil {
			return nil, fmt.Errorf("jsonl sink: %w", err)
		}
		sinks = append(sinks, js)
	}
	switch len(sinks) {
	case 0:
		return coresink.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return store.NewMultiSink(sinks...), nil
	}
}

// Run subscribes the configured topics and blocks until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	for _, t := range s.topics {
		if err := s.client.Subscribe(t.Name, t.QoS, s.consumer.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t.Name, err)
		}
	}
	go s.consumer.Run(ctx)
	if s.stats != nil {
		go s.stats.Run(ctx, s.bus)
	}
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	<-ctx.Done()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.consumer.Close()
	s.client.Disconnect()
	s.bus.Close()
	return s.sink.Close()
}
