package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Unknown-key policies accepted in keys.unknown_policy.
const (
	UnknownKeyAllow = "allow"
	UnknownKeyDeny  = "deny"
)

// minJWTSecretLength is the shortest accepted api.jwt_secret.
const minJWTSecretLength = 32

// Config is the root configuration for the billing SDK and agent.
//
// Config holds only comparable fields so two configurations can be compared
// with ==; the billing client relies on this to detect re-initialisation
// with different settings.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Session  SessionConfig  `yaml:"session"`
	Topics   TopicsConfig   `yaml:"topics"`
	Keys     KeysConfig     `yaml:"keys"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// ClientID identifies this process to the broker. If empty, a unique
	// "billing-sdk-<uuid>" ID is generated per dialer.
	ClientID string        `yaml:"client_id"`
	TLS      MQTTTLSConfig `yaml:"tls"`
}

// MQTTTLSConfig contains broker TLS settings. TLS 1.2 is the minimum.
type MQTTTLSConfig struct {
	Enabled bool `yaml:"enabled"`
	// InsecureSkipVerify disables certificate verification. Only for
	// brokers with self-signed certificates on trusted networks.
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	CAFile             string `yaml:"ca_file"`
	ServerName         string `yaml:"server_name"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnect backoff settings.
type MQTTReconnectConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Jitter       float64       `yaml:"jitter"`
}

// SessionConfig contains session timing settings.
type SessionConfig struct {
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	PublishTimeout    time.Duration `yaml:"publish_timeout"`
	TeardownTimeout   time.Duration `yaml:"teardown_timeout"`
	KeepAlive         time.Duration `yaml:"keepalive"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// AutoConnect starts connecting in the background on initialisation and
	// on the first usage report while disconnected.
	AutoConnect bool `yaml:"auto_connect"`
}

// TopicsConfig names the billing topics.
type TopicsConfig struct {
	Report     string `yaml:"report"`
	KeyUpdate  string `yaml:"key_update"`
	KeyRequest string `yaml:"key_request"`
	Heartbeat  string `yaml:"heartbeat"`
}

// KeysConfig contains key authorisation settings.
type KeysConfig struct {
	// UnknownPolicy decides keys the backend never reported: "allow" or
	// "deny". Required; there is no default.
	UnknownPolicy string `yaml:"unknown_policy"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// InfluxDBConfig contains InfluxDB connection settings for usage telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the agent's HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	// JWTSecret enables HS256 bearer authentication on the usage and
	// websocket routes when set.
	JWTSecret string `yaml:"jwt_secret"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern BILLING_SECTION_KEY, for example
// BILLING_MQTT_HOST or BILLING_UNKNOWN_KEY_POLICY.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with production defaults. Keys.UnknownPolicy is
// left empty on purpose; Validate rejects it until it is set.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 8883,
				TLS:  MQTTTLSConfig{Enabled: true},
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: time.Second,
				MaxDelay:     60 * time.Second,
				Jitter:       0.2,
			},
		},
		Session: SessionConfig{
			ConnectTimeout:    10 * time.Second,
			PublishTimeout:    5 * time.Second,
			TeardownTimeout:   3 * time.Second,
			KeepAlive:         60 * time.Second,
			HeartbeatInterval: 10 * time.Second,
		},
		Topics: TopicsConfig{
			Report:     "billing/report",
			KeyUpdate:  "billing/keys/update",
			KeyRequest: "billing/keys/request",
			Heartbeat:  "billing/heartbeat",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "billing",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("BILLING_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BILLING_MQTT_PORT"); v != "" {
		// An unparsable port is left as 0 so Validate reports it.
		port, _ := strconv.Atoi(v)
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("BILLING_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("BILLING_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BILLING_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Keys
	if v := os.Getenv("BILLING_UNKNOWN_KEY_POLICY"); v != "" {
		cfg.Keys.UnknownPolicy = v
	}

	// Logging
	if v := os.Getenv("BILLING_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// InfluxDB
	if v := os.Getenv("BILLING_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("BILLING_API_JWT_SECRET"); v != "" {
		cfg.API.JWTSecret = v
	}
}

// Validate checks the configuration and reports every problem at once.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if strings.TrimSpace(c.MQTT.Broker.Host) == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Auth.Password != "" && c.MQTT.Auth.Username == "" {
		errs = append(errs, "mqtt.auth.username is required when a password is set")
	}
	r := c.MQTT.Reconnect
	if r.InitialDelay <= 0 {
		errs = append(errs, "mqtt.reconnect.initial_delay must be positive")
	}
	if r.MaxDelay < r.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must not be less than initial_delay")
	}
	if r.Jitter < 0 || r.Jitter > 1 {
		errs = append(errs, "mqtt.reconnect.jitter must be between 0 and 1")
	}

	// Session validation
	if c.Session.ConnectTimeout <= 0 {
		errs = append(errs, "session.connect_timeout must be positive")
	}
	if c.Session.PublishTimeout <= 0 {
		errs = append(errs, "session.publish_timeout must be positive")
	}
	if c.Session.TeardownTimeout <= 0 {
		errs = append(errs, "session.teardown_timeout must be positive")
	}
	if c.Session.KeepAlive < 0 {
		errs = append(errs, "session.keepalive must not be negative")
	}

	// Topic validation
	if c.Topics.Report == "" {
		errs = append(errs, "topics.report is required")
	}
	if c.Topics.KeyUpdate == "" {
		errs = append(errs, "topics.key_update is required")
	}

	// The unknown-key policy decides whether never-seen keys are billed or
	// rejected, so it must be chosen explicitly.
	switch strings.ToLower(strings.TrimSpace(c.Keys.UnknownPolicy)) {
	case UnknownKeyAllow, UnknownKeyDeny:
	case "":
		errs = append(errs, "keys.unknown_policy is required: \"allow\" or \"deny\" (set BILLING_UNKNOWN_KEY_POLICY)")
	default:
		errs = append(errs, fmt.Sprintf("keys.unknown_policy must be \"allow\" or \"deny\", got %q", c.Keys.UnknownPolicy))
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	// API validation
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		if c.API.JWTSecret != "" && len(c.API.JWTSecret) < minJWTSecretLength {
			errs = append(errs, "api.jwt_secret must be at least 32 characters for adequate security")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
