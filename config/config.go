// Package config loads and validates the service configuration from a JSON
// or YAML file, with environment variable overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/mqttap/mqttap/core/consumer"
	"github.com/mqttap/mqttap/core/stats"
	"github.com/mqttap/mqttap/infra/metrics"
	"github.com/mqttap/mqttap/infra/mqtt"
	"github.com/mqttap/mqttap/infra/store"
)

// TopicConfig declares a subscription.
type TopicConfig struct {
	Name string `json:"name"`
	QoS  byte   `json:"qos"`
}

// Validate checks the topic declaration.
func (t TopicConfig) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("topic name is required")
	}
	if t.QoS > 2 {
		return fmt.Errorf("topic %s: qos %d out of range", t.Name, t.QoS)
	}
	return nil
}

// Config is the root configuration.
type Config struct {
	Broker   mqtt.Config     `json:"broker"`
	Topics   []TopicConfig   `json:"topics"`
	Store    store.Config    `json:"store"`
	Metrics  metrics.Config  `json:"metrics"`
	Stats    stats.Config    `json:"stats"`
	Consumer consumer.Config `json:"consumer"`
}

// Load reads the configuration file, applies MQTTAP_ environment overrides,
// fills defaults and validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, e.g. MQTTAP_BROKER__PASSWORD.
	if err := k.Load(env.Provider("MQTTAP_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "mqttap_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Broker.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Stats.SetDefaults()
	cfg.Consumer.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if err := c.Broker.Validate(); err != nil {
		return err
	}
	if len(c.Topics) == 0 {
		return fmt.Errorf("at least one topic is required")
	}
	for _, t := range c.Topics {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return c.Store.Validate()
}
