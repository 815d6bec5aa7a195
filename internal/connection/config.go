package connection

import "time"

// Defaults applied by New for zero Config fields.
const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultPublishTimeout    = 5 * time.Second
	DefaultTeardownTimeout   = 3 * time.Second
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultBackoffInitial    = time.Second
	DefaultBackoffMax        = 60 * time.Second
	DefaultBackoffJitter     = 0.2
)

// Default topics shared with the billing backend.
const (
	DefaultReportTopic     = "billing/report"
	DefaultKeyUpdateTopic  = "billing/keys/update"
	DefaultKeyRequestTopic = "billing/keys/request"
	DefaultHeartbeatTopic  = "billing/heartbeat"
)

// keyRequestInterval limits manual key-list refresh requests.
const keyRequestInterval = time.Second

// Config tunes a Manager.
type Config struct {
	Topics Topics

	// ConnectTimeout bounds one dial attempt and how long Connect waits.
	ConnectTimeout time.Duration

	// PublishTimeout bounds the wait for a broker acknowledgement.
	PublishTimeout time.Duration

	// TeardownTimeout bounds session close and loop shutdown in Disconnect.
	TeardownTimeout time.Duration

	// HeartbeatInterval is how often a heartbeat is published while
	// connected. A failed heartbeat is treated as a lost session.
	// Negative disables heartbeats.
	HeartbeatInterval time.Duration

	Backoff BackoffConfig
}

// Topics names the bus topics. KeyRequest and Heartbeat may be empty to
// disable those messages; Report and KeyUpdate are required.
type Topics struct {
	Report     string
	KeyUpdate  string
	KeyRequest string
	Heartbeat  string
}

// BackoffConfig configures reconnect delays.
type BackoffConfig struct {
	Initial time.Duration
	Max     time.Duration
	// Jitter is the maximum random extra delay as a fraction of the delay.
	Jitter float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Topics: Topics{
			Report:     DefaultReportTopic,
			KeyUpdate:  DefaultKeyUpdateTopic,
			KeyRequest: DefaultKeyRequestTopic,
			Heartbeat:  DefaultHeartbeatTopic,
		},
		ConnectTimeout:    DefaultConnectTimeout,
		PublishTimeout:    DefaultPublishTimeout,
		TeardownTimeout:   DefaultTeardownTimeout,
		HeartbeatInterval: DefaultHeartbeatInterval,
		Backoff: BackoffConfig{
			Initial: DefaultBackoffInitial,
			Max:     DefaultBackoffMax,
			Jitter:  DefaultBackoffJitter,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Topics.Report == "" {
		c.Topics.Report = d.Topics.Report
	}
	if c.Topics.KeyUpdate == "" {
		c.Topics.KeyUpdate = d.Topics.KeyUpdate
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = d.PublishTimeout
	}
	if c.TeardownTimeout <= 0 {
		c.TeardownTimeout = d.TeardownTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	return c
}
