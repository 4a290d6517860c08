package mqtt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigSetDefaults(t *testing.T) {
	cfg := Config{Host: "broker.local", Port: 1883}
	cfg.SetDefaults()
	assert.True(t, strings.HasPrefix(cfg.ClientID, "mqttap-"), "generated client id")
	assert.Equal(t, 60, cfg.KeepAliveSeconds)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 100, cfg.BackoffMS)

	cfg = Config{Host: "broker.local", Port: 1883, ClientID: "fixed", KeepAliveSeconds: 30}
	cfg.SetDefaults()
	assert.Equal(t, "fixed", cfg.ClientID)
	assert.Equal(t, 30, cfg.KeepAliveSeconds)
}

func TestConfigSetDefaultsKeepsNegatives(t *testing.T) {
	// Negatives must survive defaulting so Validate can reject them.
	cfg := Config{Host: "broker.local", Port: 1883, KeepAliveSeconds: -5, MaxRetries: -1, BackoffMS: -10}
	cfg.SetDefaults()
	assert.Equal(t, -5, cfg.KeepAliveSeconds)
	assert.Equal(t, -1, cfg.MaxRetries)
	assert.Equal(t, -10, cfg.BackoffMS)
	assert.Error(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Host: "broker.local", Port: 1883}, false},
		{"missing host", Config{Port: 1883}, true},
		{"bad port", Config{Host: "broker.local", Port: 0}, true},
		{"port out of range", Config{Host: "broker.local", Port: 70000}, true},
		{"negative keepalive", Config{Host: "broker.local", Port: 1883, KeepAliveSeconds: -1}, true},
		{"negative max_retries", Config{Host: "broker.local", Port: 1883, MaxRetries: -1}, true},
		{"negative backoff", Config{Host: "broker.local", Port: 1883, BackoffMS: -1}, true},
		{"tls without certs", Config{Host: "broker.local", Port: 8883, UseTLS: true}, true},
		{
			"tls with certs",
			Config{Host: "broker.local", Port: 8883, UseTLS: true, ClientCert: "c.pem", ClientKey: "k.pem", CABundle: "ca.pem"},
			false,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.cfg.Validate()
			if c.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBrokerURL(t *testing.T) {
	cfg := Config{Host: "broker.local", Port: 1883}
	assert.Equal(t, "tcp://broker.local:1883", cfg.BrokerURL())
	cfg.UseTLS = true
	cfg.Port = 8883
	assert.Equal(t, "ssl://broker.local:8883", cfg.BrokerURL())
}

func TestLoadTLSConfig_MissingFiles(t *testing.T) {
	cfg := Config{Host: "broker.local", Port: 8883, UseTLS: true}
	_, err := cfg.LoadTLSConfig()
	assert.Error(t, err)
}

func TestNewClientOptions_LWT(t *testing.T) {
	cfg := Config{
		Host: "broker.local", Port: 1883, ClientID: "cli",
		LWTTopic: "clients/cli/status", LWTPayload: "offline", LWTQoS: 1, LWTRetain: true,
	}
	opts, err := NewClientOptions(cfg)
	assert.NoError(t, err)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "clients/cli/status", opts.WillTopic)
	assert.Equal(t, []byte("offline"), opts.WillPayload)
	assert.True(t, opts.WillRetained)
}
