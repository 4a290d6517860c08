// Package stats keeps rolling statistics over the message stream and logs a
// periodic traffic summary. It observes messages through the event bus so
// it never sits on the hot path.
package stats

import (
	"context"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/mqttap/mqttap/core/logger"
	"github.com/mqttap/mqttap/core/model"
	"github.com/mqttap/mqttap/internal/eventbus"
)

// Config tunes the collector.
type Config struct {
	Enabled bool `json:"enabled"`
	// IntervalSeconds is the period between summary logs.
	IntervalSeconds int `json:"interval_seconds"`
	// Window is the number of most recent messages kept for quantiles.
	Window int `json:"window"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 60
	}
	if c.Window <= 0 {
		c.Window = 1024
	}
}

// Collector accumulates payload sizes and inter-arrival gaps over a sliding
// window.
type Collector struct {
	mu       sync.Mutex
	sizes    []float64
	gaps     []float64
	last     time.Time
	total    uint64
	window   int
	interval time.Duration
	log      logger.Logger
}

// NewCollector creates a Collector from the configuration.
func NewCollector(cfg Config, log logger.Logger) *Collector {
	cfg.SetDefaults()
	return &Collector{
		window:   cfg.Window,
		interval: time.Duration(cfg.IntervalSeconds) * time.Second,
		log:      log,
	}
}

// Observe records one message.
func (c *Collector) Observe(msg model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	c.sizes = appendWindow(c.sizes, float64(msg.Size()), c.window)
	if !c.last.IsZero() {
		c.gaps = appendWindow(c.gaps, msg.ReceivedAt.Sub(c.last).Seconds(), c.window)
	}
	c.last = msg.ReceivedAt
}

func appendWindow(s []float64, v float64, window int) []float64 {
	s = append(s, v)
	if len(s) > window {
		s = s[len(s)-window:]
	}
	return s
}

// Summary is a snapshot of the rolling window.
type Summary struct {
	Total      uint64
	SizeMean   float64
	SizeStdDev float64
	SizeP50    float64
	SizeP95    float64
	// RatePerSec is derived from the mean inter-arrival gap.
	RatePerSec float64
}

// Snapshot computes the current summary. The second return value is false
// when no messages have been observed yet.
func (c *Collector) Snapshot() (Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sizes) == 0 {
		return Summary{}, false
	}
	sorted := make([]float64, len(c.sizes))
	copy(sorted, c.sizes)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	s := Summary{
		Total:    c.total,
		SizeMean: mean,
		SizeP50:  stat.Quantile(0.5, stat.Empirical, sorted, nil),
		SizeP95:  stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	// StdDev is NaN for a single sample.
	if len(sorted) > 1 {
		s.SizeStdDev = std
	}
	if len(c.gaps) > 0 {
		if gap := stat.Mean(c.gaps, nil); gap > 0 {
			s.RatePerSec = 1 / gap
		}
	}
	return s, true
}

// Run consumes messages from the bus and logs a summary every interval
// until the context is cancelled.
func (c *Collector) Run(ctx context.Context, bus *eventbus.Bus) {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub:
			if !ok {
				return
			}
			c.Observe(msg)
		case <-ticker.C:
			s, ok := c.Snapshot()
			if !ok {
				continue
			}
			c.log.Debugw("traffic summary", map[string]any{
				"total":        s.Total,
				"size_mean":    s.SizeMean,
				"size_stddev":  s.SizeStdDev,
				"size_p50":     s.SizeP50,
				"size_p95":     s.SizeP95,
				"rate_per_sec": s.RatePerSec,
			})
		}
	}
}
