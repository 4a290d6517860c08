// Package consumer implements the message pipeline between the MQTT client
// and the configured sinks. Incoming messages are queued on a bounded
// buffer; a full buffer blocks the paho handler so broker flow control
// applies instead of silent drops.
package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/mqttap/mqttap/core/logger"
	"github.com/mqttap/mqttap/core/metrics"
	"github.com/mqttap/mqttap/core/model"
	"github.com/mqttap/mqttap/core/sink"
	"github.com/mqttap/mqttap/internal/eventbus"
)

const storeTimeout = 5 * time.Second

// Config tunes the pipeline.
type Config struct {
	// BufferSize is the capacity of the message queue.
	BufferSize int `json:"buffer_size"`
	// Workers is the number of goroutines draining the queue. One worker
	// preserves per-connection message order.
	Workers int `json:"workers"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
}

// Consumer drains queued messages, logs them and forwards them to the sink,
// the event bus and the metrics recorder.
type Consumer struct {
	ch      chan model.Message
	sink    sink.Sink
	bus     *eventbus.Bus
	rec     metrics.Recorder
	log     logger.Logger
	workers int

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a Consumer. A nil recorder defaults to NopRecorder and a nil
// sink to NopSink.
func New(cfg Config, s sink.Sink, bus *eventbus.Bus, rec metrics.Recorder, log logger.Logger) *Consumer {
	cfg.SetDefaults()
	if s == nil {
		s = sink.NopSink{}
	}
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &Consumer{
		ch:      make(chan model.Message, cfg.BufferSize),
		sink:    s,
		bus:     bus,
		rec:     rec,
		log:     log,
		workers: cfg.Workers,
		done:    make(chan struct{}),
	}
}

// Handle enqueues a message. It blocks while the buffer is full and returns
// immediately once the consumer has been closed.
func (c *Consumer) Handle(msg model.Message) {
	select {
	case c.ch <- msg:
	case <-c.done:
	}
}

// Run processes messages with the configured number of workers until the
// context is cancelled, then drains whatever is still buffered.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					c.drain()
					return
				case msg := <-c.ch:
					c.process(msg)
				}
			}
		}()
	}
	wg.Wait()
}

func (c *Consumer) drain() {
	for {
		select {
		case msg := <-c.ch:
			c.process(msg)
		default:
			return
		}
	}
}

func (c *Consumer) process(msg model.Message) {
	c.log.Infof("message received on %s: %s", msg.Topic, msg.PayloadString())
	c.log.Debugw("message", map[string]any{
		"id":          msg.ID,
		"topic":       msg.Topic,
		"qos":         msg.QoS,
		"retained":    msg.Retained,
		"size_bytes":  msg.Size(),
		"received_at": msg.ReceivedAt,
	})

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	if err := c.sink.Store(ctx, msg); err != nil {
		c.log.Errorf("store message from %s: %v", msg.Topic, err)
		c.rec.RecordSinkError(msg.Topic)
	}
	cancel()

	if c.bus != nil {
		c.bus.Publish(msg)
	}
	c.rec.RecordMessage(msg)
}

// Close unblocks pending Handle calls. It is safe to call multiple times.
func (c *Consumer) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
