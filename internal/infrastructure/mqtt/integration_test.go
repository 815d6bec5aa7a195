//go:build integration

package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/uozi-tech/billing-sdk-go/internal/connection"
	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/config"
	"github.com/uozi-tech/billing-sdk-go/internal/keystore"
	"github.com/uozi-tech/billing-sdk-go/internal/usage"
)

// Integration tests against a real broker.
// These tests require a running MQTT broker at 127.0.0.1:1883 without TLS.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host: "127.0.0.1",
			Port: 1883,
		},
		QoS: 1,
	}
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	d, err := NewDialer(integrationConfig(), 0)
	if err != nil {
		t.Fatalf("NewDialer() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := d.Dial(ctx, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer sess.Close(time.Second)

	received := make(chan []byte, 1)
	topic := "billing/int/" + d.ClientID()
	err = sess.Subscribe(ctx, topic, func(_ string, payload []byte) error {
		received <- payload
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := sess.Publish(ctx, topic, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if string(got) != `{"ok":true}` {
			t.Errorf("received %s, want {\"ok\":true}", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestIntegration_DialRefused(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.Port = 19999

	d, err := NewDialer(cfg, 0)
	if err != nil {
		t.Fatalf("NewDialer() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := d.Dial(ctx, nil); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Dial() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_ManagerKeyUpdateAndReport(t *testing.T) {
	d, err := NewDialer(integrationConfig(), 0)
	if err != nil {
		t.Fatalf("NewDialer() error = %v", err)
	}

	cfg := connection.DefaultConfig()
	prefix := "billing-int/" + d.ClientID()
	cfg.Topics = connection.Topics{
		Report:    prefix + "/report",
		KeyUpdate: prefix + "/keys/update",
	}
	cfg.HeartbeatInterval = -1

	keys := keystore.New()
	m := connection.New(d, keys, cfg)
	defer m.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// A second client plays the billing backend. It needs its own client ID.
	backendDialer, err := NewDialer(integrationConfig(), 0)
	if err != nil {
		t.Fatalf("NewDialer() backend error = %v", err)
	}
	backend, err := backendDialer.Dial(ctx, nil)
	if err != nil {
		t.Fatalf("Dial() backend error = %v", err)
	}
	defer backend.Close(time.Second)

	reports := make(chan []byte, 1)
	if err := backend.Subscribe(ctx, cfg.Topics.Report, func(_ string, p []byte) error {
		reports <- p
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := backend.Publish(ctx, cfg.Topics.KeyUpdate, []byte(`{"updates":[{"key":"sk-int","status":"blocked"}]}`)); err != nil {
		t.Fatalf("Publish() key update error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for keys.Lookup("sk-int") != keystore.StatusBlocked {
		if time.Now().After(deadline) {
			t.Fatal("key update not applied")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := m.Publish(ctx, usage.New("sk-int", "llm", "gpt-4", 3, nil)); err != nil {
		t.Fatalf("Publish() report error = %v", err)
	}
	select {
	case p := <-reports:
		rec, err := usage.Decode(p)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if rec.Usage != 3 {
			t.Errorf("report usage = %d, want 3", rec.Usage)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("report not received")
	}
}
