package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

const testConfig = `
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
    tls:
      enabled: false
  reconnect:
    initial_delay: 1s
    max_delay: 2s

session:
  connect_timeout: 500ms
  publish_timeout: 500ms
  teardown_timeout: 100ms

keys:
  unknown_policy: deny

logging:
  level: error
  format: text
  output: stderr

api:
  jwt_secret: "test-secret-key-at-least-32-characters-long"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "billing.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, options{configPath: "/nonexistent/path/billing.yaml"}, io.Discard)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config", err)
	}
}

// TestRun_MissingPolicy verifies the unknown-key policy must be chosen.
func TestRun_MissingPolicy(t *testing.T) {
	t.Setenv("BILLING_UNKNOWN_KEY_POLICY", "")
	path := writeConfig(t, strings.Replace(testConfig, "unknown_policy: deny", "", 1))

	err := run(context.Background(), options{configPath: path}, io.Discard)
	if err == nil {
		t.Fatal("run() should fail without keys.unknown_policy")
	}
	if !strings.Contains(err.Error(), "unknown_policy") {
		t.Errorf("error = %v, want unknown_policy", err)
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), options{showVersion: true}, &out); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "billing-agent dev") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_IssueToken(t *testing.T) {
	path := writeConfig(t, testConfig)

	var out bytes.Buffer
	err := run(context.Background(), options{configPath: path, issueToken: "svc", tokenTTL: time.Hour}, &out)
	if err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if parts := strings.Split(strings.TrimSpace(out.String()), "."); len(parts) != 3 {
		t.Errorf("output %q is not a JWT", out.String())
	}
}

// TestRun_ShutdownWithoutBroker verifies the agent starts when the broker is
// unreachable and exits cleanly on cancellation.
func TestRun_ShutdownWithoutBroker(t *testing.T) {
	path := writeConfig(t, testConfig)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, options{configPath: path}, io.Discard)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

func TestParseFlags(t *testing.T) {
	t.Setenv("BILLING_CONFIG", "")

	opts, err := parseFlags([]string{"--config", "/etc/billing.yaml", "--issue-token", "svc", "--token-ttl", "1h"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags() error: %v", err)
	}
	if opts.configPath != "/etc/billing.yaml" || opts.issueToken != "svc" || opts.tokenTTL != time.Hour {
		t.Errorf("opts = %+v", opts)
	}

	opts, err = parseFlags(nil, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags() error: %v", err)
	}
	if opts.configPath != defaultConfigPath {
		t.Errorf("configPath = %q, want %q", opts.configPath, defaultConfigPath)
	}

	if _, err := parseFlags([]string{"extra"}, io.Discard); err == nil {
		t.Error("parseFlags() should reject positional arguments")
	}
	if _, err := parseFlags([]string{"--help"}, io.Discard); !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("parseFlags(--help) error = %v, want ErrHelp", err)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/billing.yaml"
	t.Setenv("BILLING_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
