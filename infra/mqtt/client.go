package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/mqttap/mqttap/core/model"
	"github.com/mqttap/mqttap/infra/logger"
)

// MessageHandler receives messages for a subscribed topic.
type MessageHandler func(msg model.Message)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Host             string      `json:"host"`
	Port             int         `json:"port"`
	ClientID         string      `json:"client_id"`
	Username         string      `json:"username"`
	Password         string      `json:"password"`
	KeepAliveSeconds int         `json:"keep_alive"`
	UseTLS           bool        `json:"use_tls"`
	ClientCert       string      `json:"client_cert"`
	ClientKey        string      `json:"client_key"`
	CABundle         string      `json:"ca_bundle"`
	LWTTopic         string      `json:"lwt_topic"`
	LWTPayload       string      `json:"lwt_payload"`
	LWTQoS           byte        `json:"lwt_qos"`
	LWTRetain        bool        `json:"lwt_retain"`
	MaxRetries       int         `json:"max_retries"`
	BackoffMS        int         `json:"backoff_ms"`
	TLSConfig        *tls.Config `json:"-"`
	// OnConnectionChange is invoked with the new connection state on
	// connect and connection loss.
	OnConnectionChange func(connected bool) `json:"-"`
}

// SetDefaults fills unset values. Explicit negatives are left in place for
// Validate to reject.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "mqttap-" + uuid.NewString()[:8]
	}
	if c.KeepAliveSeconds == 0 {
		c.KeepAliveSeconds = 60
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 100
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("broker host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid broker port %d", c.Port)
	}
	if c.KeepAliveSeconds < 0 {
		return fmt.Errorf("keep_alive must not be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.BackoffMS < 0 {
		return fmt.Errorf("backoff_ms must not be negative")
	}
	if c.UseTLS && c.TLSConfig == nil {
		if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
			return fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
		}
	}
	return nil
}

// BrokerURL builds the broker URL from host, port and TLS setting.
func (c Config) BrokerURL() string {
	scheme := "tcp"
	if c.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// PahoClient wraps the Eclipse Paho client. Registered subscriptions are
// replayed on every (re)connect so handlers survive broker restarts.
type PahoClient struct {
	cli      pahoClient
	clientID string
	logger   logger.Logger

	mu   sync.Mutex
	subs map[string]subscription

	maxRetries int
	backoff    time.Duration
	notify     func(bool)
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker described by cfg.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		clientID:   cfg.ClientID,
		logger:     log,
		subs:       make(map[string]subscription),
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		notify:     cfg.OnConnectionChange,
	}
	// A config that skipped Validate could carry negatives; a negative
	// maxRetries would make Publish return without attempting anything.
	if pc.maxRetries < 0 {
		pc.maxRetries = 0
	}
	if pc.backoff < 0 {
		pc.backoff = 0
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("connected to %s", cfg.BrokerURL())
		if pc.notify != nil {
			pc.notify(true)
		}
		pc.resubscribe(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
		if pc.notify != nil {
			pc.notify(false)
		}
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds paho client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.BrokerURL()).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.SetKeepAlive(time.Duration(cfg.KeepAliveSeconds) * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

type subscriber interface {
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

func (p *PahoClient) resubscribe(c subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for topic, sub := range p.subs {
		if token := c.Subscribe(topic, sub.qos, p.wrap(sub.handler)); token.Wait() && token.Error() != nil {
			p.logger.Errorf("subscribe %s: %v", topic, token.Error())
		}
	}
}

func (p *PahoClient) wrap(h MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h(model.Message{
			ID:         uuid.NewString(),
			ClientID:   p.clientID,
			Topic:      msg.Topic(),
			Payload:    msg.Payload(),
			QoS:        msg.Qos(),
			Retained:   msg.Retained(),
			Duplicate:  msg.Duplicate(),
			ReceivedAt: time.Now().UTC(),
		})
	}
}

// Subscribe registers the handler for the topic and subscribes immediately.
// The subscription is replayed after a reconnect.
func (p *PahoClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	p.mu.Lock()
	p.subs[topic] = subscription{qos: qos, handler: handler}
	p.mu.Unlock()
	if token := p.cli.Subscribe(topic, qos, p.wrap(handler)); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	p.logger.Infof("subscribed to %s (qos %d)", topic, qos)
	return nil
}

// Publish sends a payload to the topic, retrying with exponential backoff.
func (p *PahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Connected reports whether the underlying client holds a live connection.
func (p *PahoClient) Connected() bool {
	return p.cli != nil && p.cli.IsConnected()
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
