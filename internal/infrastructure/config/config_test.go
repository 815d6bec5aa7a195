package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig returns a default config with the required policy set.
func validConfig() *Config {
	cfg := Default()
	cfg.Keys.UnknownPolicy = UnknownKeyDeny
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
mqtt:
  broker:
    host: "billing.example.com"
    port: 8883
    client_id: "svc-llm-1"
    tls:
      enabled: true
      server_name: "billing.example.com"
  auth:
    username: "svc"
    password: "pw"
  reconnect:
    initial_delay: 500ms
    max_delay: 30s
    jitter: 0.1
session:
  publish_timeout: 2s
  auto_connect: true
keys:
  unknown_policy: "allow"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "billing.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "billing.example.com")
	}
	if cfg.MQTT.Reconnect.InitialDelay != 500*time.Millisecond {
		t.Errorf("MQTT.Reconnect.InitialDelay = %v, want 500ms", cfg.MQTT.Reconnect.InitialDelay)
	}
	if cfg.Session.PublishTimeout != 2*time.Second {
		t.Errorf("Session.PublishTimeout = %v, want 2s", cfg.Session.PublishTimeout)
	}
	if !cfg.Session.AutoConnect {
		t.Error("Session.AutoConnect = false, want true")
	}

	// Unset values keep their defaults.
	if cfg.Session.ConnectTimeout != 10*time.Second {
		t.Errorf("Session.ConnectTimeout = %v, want 10s", cfg.Session.ConnectTimeout)
	}
	if cfg.Topics.Report != "billing/report" {
		t.Errorf("Topics.Report = %q, want %q", cfg.Topics.Report, "billing/report")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_RequiresUnknownPolicy(t *testing.T) {
	_, err := Load(writeConfig(t, "mqtt:\n  broker:\n    host: localhost\n"))
	if err == nil {
		t.Fatal("Load() expected error for missing keys.unknown_policy, got nil")
	}
	if !strings.Contains(err.Error(), "keys.unknown_policy") {
		t.Errorf("Load() error = %v, want mention of keys.unknown_policy", err)
	}
}

func TestLoad_PolicyFromEnv(t *testing.T) {
	t.Setenv("BILLING_UNKNOWN_KEY_POLICY", "deny")

	cfg, err := Load(writeConfig(t, "mqtt:\n  broker:\n    host: localhost\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Keys.UnknownPolicy != "deny" {
		t.Errorf("Keys.UnknownPolicy = %q, want %q", cfg.Keys.UnknownPolicy, "deny")
	}
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid config", modify: func(*Config) {}},
		{name: "allow policy", modify: func(c *Config) { c.Keys.UnknownPolicy = "ALLOW" }},
		{name: "missing policy", modify: func(c *Config) { c.Keys.UnknownPolicy = "" }, wantErr: true},
		{name: "bogus policy", modify: func(c *Config) { c.Keys.UnknownPolicy = "maybe" }, wantErr: true},
		{name: "missing host", modify: func(c *Config) { c.MQTT.Broker.Host = " " }, wantErr: true},
		{name: "invalid port low", modify: func(c *Config) { c.MQTT.Broker.Port = 0 }, wantErr: true},
		{name: "invalid port high", modify: func(c *Config) { c.MQTT.Broker.Port = 70000 }, wantErr: true},
		{name: "invalid QoS", modify: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "password without username", modify: func(c *Config) { c.MQTT.Auth.Password = "pw" }, wantErr: true},
		{name: "zero initial delay", modify: func(c *Config) { c.MQTT.Reconnect.InitialDelay = 0 }, wantErr: true},
		{name: "max below initial", modify: func(c *Config) { c.MQTT.Reconnect.MaxDelay = time.Millisecond }, wantErr: true},
		{name: "jitter above one", modify: func(c *Config) { c.MQTT.Reconnect.Jitter = 1.5 }, wantErr: true},
		{name: "zero publish timeout", modify: func(c *Config) { c.Session.PublishTimeout = 0 }, wantErr: true},
		{name: "zero teardown timeout", modify: func(c *Config) { c.Session.TeardownTimeout = 0 }, wantErr: true},
		{name: "missing report topic", modify: func(c *Config) { c.Topics.Report = "" }, wantErr: true},
		{name: "heartbeat topic optional", modify: func(c *Config) { c.Topics.Heartbeat = "" }},
		{name: "influx enabled without url", modify: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{
			name: "influx enabled",
			modify: func(c *Config) {
				c.InfluxDB = InfluxDBConfig{Enabled: true, URL: "http://localhost:8086", Org: "o", Bucket: "b"}
			},
		},
		{name: "api bad port", modify: func(c *Config) { c.API.Enabled = true; c.API.Port = 0 }, wantErr: true},
		{name: "api short secret", modify: func(c *Config) { c.API.Enabled = true; c.API.JWTSecret = "short" }, wantErr: true},
		{name: "api with secret", modify: func(c *Config) { c.API.Enabled = true; c.API.JWTSecret = validJWTSecret }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReportsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.MQTT.Broker.Host = ""
	cfg.MQTT.QoS = 9
	cfg.Keys.UnknownPolicy = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil, want error")
	}
	for _, want := range []string{"mqtt.broker.host", "mqtt.qos", "keys.unknown_policy"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, want mention of %s", err, want)
		}
	}
}

func TestConfig_Comparable(t *testing.T) {
	a, b := validConfig(), validConfig()
	if *a != *b {
		t.Error("identical configs compare unequal")
	}

	b.MQTT.Broker.Port = 1883
	if *a == *b {
		t.Error("different configs compare equal")
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("BILLING_MQTT_HOST", "mqtt.example.com")
	t.Setenv("BILLING_MQTT_PORT", "1883")
	t.Setenv("BILLING_MQTT_CLIENT_ID", "svc-1")
	t.Setenv("BILLING_MQTT_USERNAME", "testuser")
	t.Setenv("BILLING_MQTT_PASSWORD", "testpass")
	t.Setenv("BILLING_UNKNOWN_KEY_POLICY", "allow")
	t.Setenv("BILLING_LOG_LEVEL", "debug")
	t.Setenv("BILLING_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("BILLING_API_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Broker.Port", cfg.MQTT.Broker.Port, 1883},
		{"MQTT.Broker.ClientID", cfg.MQTT.Broker.ClientID, "svc-1"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"Keys.UnknownPolicy", cfg.Keys.UnknownPolicy, "allow"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"API.JWTSecret", cfg.API.JWTSecret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides_BadPort(t *testing.T) {
	cfg := validConfig()
	t.Setenv("BILLING_MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() error = nil after unparsable BILLING_MQTT_PORT")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("Default MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if !cfg.MQTT.Broker.TLS.Enabled {
		t.Error("Default MQTT.Broker.TLS.Enabled = false, want true")
	}
	if cfg.MQTT.Broker.TLS.InsecureSkipVerify {
		t.Error("Default MQTT.Broker.TLS.InsecureSkipVerify = true, want false")
	}
	if cfg.Keys.UnknownPolicy != "" {
		t.Errorf("Default Keys.UnknownPolicy = %q, want empty", cfg.Keys.UnknownPolicy)
	}
	if cfg.MQTT.Reconnect.MaxDelay != 60*time.Second {
		t.Errorf("Default MQTT.Reconnect.MaxDelay = %v, want 60s", cfg.MQTT.Reconnect.MaxDelay)
	}
}

// TestLoad_ShippedConfig keeps configs/billing.yaml loadable.
func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "billing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Keys.UnknownPolicy != UnknownKeyDeny {
		t.Errorf("UnknownPolicy = %q, want %q", cfg.Keys.UnknownPolicy, UnknownKeyDeny)
	}
	if !cfg.API.Enabled || cfg.InfluxDB.Enabled {
		t.Errorf("API.Enabled = %v, InfluxDB.Enabled = %v", cfg.API.Enabled, cfg.InfluxDB.Enabled)
	}
}
