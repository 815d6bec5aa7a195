package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/uozi-tech/billing-sdk-go/internal/authz"
	"github.com/uozi-tech/billing-sdk-go/internal/connection"
	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/config"
	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/logging"
	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/metrics"
	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/mqtt"
	"github.com/uozi-tech/billing-sdk-go/internal/keystore"
)

// Client reports usage and authorises API keys.
//
// A Client owns one connection manager and one key store. Disconnect
// destroys both; a later Connect creates a fresh pair, so keys learned
// before the disconnect are forgotten.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	cfg     config.Config
	policy  authz.Policy
	dialer  Dialer
	logger  Logger
	metrics *metrics.Collector
	sinks   []UsageSink

	mu        sync.RWMutex
	manager   *connection.Manager
	listeners []func(KeyUpdate)
}

// New creates a Client without touching the singleton. Most programs use
// Initialize instead.
//
// The configuration is validated; the client starts Disconnected unless
// session.auto_connect is set, in which case connecting begins in the
// background.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := authz.ParsePolicy(cfg.Keys.UnknownPolicy)
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		cfg:    cfg,
		policy: policy,
		dialer: o.dialer,
		logger: o.logger,
		sinks:  o.sinks,
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	if c.dialer == nil {
		d, err := mqtt.NewDialer(cfg.MQTT, cfg.Session.KeepAlive)
		if err != nil {
			return nil, fmt.Errorf("creating mqtt dialer: %w", err)
		}
		d.SetLogger(c.logger)
		c.dialer = d
	}
	if o.registry != nil {
		c.metrics = metrics.NewWithRegistry(o.registry, cfg.Metrics.Namespace)
	}

	c.manager = c.newManager()

	if cfg.Session.AutoConnect {
		if err := c.manager.Start(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// newManager builds a manager with a fresh key store.
func (c *Client) newManager() *connection.Manager {
	m := connection.New(c.dialer, keystore.New(), managerConfig(c.cfg))
	m.SetLogger(c.logger)
	if c.metrics != nil {
		m.SetObserver(c.metrics)
		keys := m.Keys()
		m.OnKeyUpdate(func(KeyUpdate) {
			c.metrics.SetKeyCounts(keys.Counts())
		})
	}
	for _, fn := range c.listeners {
		m.OnKeyUpdate(fn)
	}
	return m
}

func managerConfig(cfg config.Config) connection.Config {
	return connection.Config{
		Topics: connection.Topics{
			Report:     cfg.Topics.Report,
			KeyUpdate:  cfg.Topics.KeyUpdate,
			KeyRequest: cfg.Topics.KeyRequest,
			Heartbeat:  cfg.Topics.Heartbeat,
		},
		ConnectTimeout:    cfg.Session.ConnectTimeout,
		PublishTimeout:    cfg.Session.PublishTimeout,
		TeardownTimeout:   cfg.Session.TeardownTimeout,
		HeartbeatInterval: cfg.Session.HeartbeatInterval,
		Backoff: connection.BackoffConfig{
			Initial: cfg.MQTT.Reconnect.InitialDelay,
			Max:     cfg.MQTT.Reconnect.MaxDelay,
			Jitter:  cfg.MQTT.Reconnect.Jitter,
		},
	}
}

func (c *Client) current() *connection.Manager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager
}

// Connect waits for a session. After Disconnect it starts over with a new
// connection manager and an empty key store.
//
// On failure the error wraps ErrConnectionFailed and retries continue in
// the background.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.manager.State() == connection.StateShuttingDown {
		c.manager = c.newManager()
	}
	m := c.manager
	c.mu.Unlock()

	return m.Connect(ctx)
}

// Disconnect tears the session down within the configured teardown
// timeout. Pending connects and publishes fail. Safe to call repeatedly.
func (c *Client) Disconnect() {
	c.current().Disconnect()
}

// IsConnected reports whether a session is up.
func (c *Client) IsConnected() bool {
	return c.current().IsConnected()
}

// State returns the connection state.
func (c *Client) State() State {
	return c.current().State()
}

// Stats returns a connection snapshot.
func (c *Client) Stats() Stats {
	return c.current().Stats()
}

// ReportUsage publishes rec and waits for the broker acknowledgement.
//
// Invalid records fail with a *ValidationError before anything is sent.
// While disconnected it fails with ErrNotConnected without queueing; with
// session.auto_connect set it also starts connecting in the background.
// Transport errors are returned unchanged.
func (c *Client) ReportUsage(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	m := c.current()
	if c.cfg.Session.AutoConnect && m.State() == connection.StateDisconnected {
		_ = m.Start()
	}

	if err := m.Publish(ctx, rec); err != nil {
		c.logger.Warn("usage report failed",
			"key", keystore.Mask(rec.APIKey),
			"module", rec.Module,
			"model", rec.Model,
			"error", err,
		)
		return err
	}

	if c.metrics != nil {
		c.metrics.RecordUsage(rec.Module, rec.Model, rec.Usage)
	}
	for _, s := range c.sinks {
		s.RecordUsage(rec)
	}
	return nil
}

// RequireAPIKey decides whether the caller described by md may proceed.
// It performs no I/O.
func (c *Client) RequireAPIKey(md RequestMetadata) Decision {
	d := authz.Check(c.current().Keys(), c.policy, md)
	if c.metrics != nil {
		c.metrics.RecordDecision(d.Allowed, string(d.Reason))
	}
	return d
}

// KeyStatus returns the cached status of key.
func (c *Client) KeyStatus(key string) KeyStatus {
	return c.current().Keys().Lookup(key)
}

// ValidKeys returns the keys currently known to be valid, sorted.
func (c *Client) ValidKeys() []string {
	return c.current().Keys().Keys(keystore.StatusValid)
}

// BlockedKeys returns the keys currently known to be blocked, sorted.
func (c *Client) BlockedKeys() []string {
	return c.current().Keys().Keys(keystore.StatusBlocked)
}

// KeyCounts returns how many keys are valid and blocked.
func (c *Client) KeyCounts() (valid, blocked int) {
	return c.current().Keys().Counts()
}

// OnKeyUpdate registers fn for every key status change. Registrations
// survive Disconnect and Connect.
func (c *Client) OnKeyUpdate(fn func(KeyUpdate)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	m := c.manager
	c.mu.Unlock()

	m.OnKeyUpdate(fn)
}

// RequestKeyList asks the backend to resend every key status. Requests are
// limited to one per second.
func (c *Client) RequestKeyList(ctx context.Context) error {
	return c.current().RequestKeyList(ctx)
}

// Config returns the configuration the client was created with.
func (c *Client) Config() Config {
	return c.cfg
}

// Metrics returns the Prometheus collector, or nil without WithMetrics.
func (c *Client) Metrics() *metrics.Collector {
	return c.metrics
}
