package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/uozi-tech/billing-sdk-go/internal/connection"
	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/config"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Dialer opens billing sessions over MQTT using paho.mqtt.golang.
//
// Every Dial creates a fresh paho client with automatic reconnect disabled;
// the connection manager decides when to dial again.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Dialer struct {
	cfg       config.MQTTConfig
	clientID  string
	keepAlive time.Duration
	tlsConfig *tls.Config
	qos       byte

	// newClient is replaced in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	logger   Logger
	loggerMu sync.RWMutex
}

var _ connection.Dialer = (*Dialer)(nil)

// NewDialer validates cfg and prepares TLS settings.
//
// Parameters:
//   - cfg: MQTT configuration
//   - keepAlive: MQTT keepalive interval; zero uses 60s
//
// Returns:
//   - *Dialer: Ready to Dial
//   - error: ErrInvalidQoS or ErrTLSConfig
func NewDialer(cfg config.MQTTConfig, keepAlive time.Duration) (*Dialer, error) {
	if cfg.QoS < 0 || cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}

	tlsConfig, err := buildTLSConfig(cfg.Broker.TLS, cfg.Broker.Host)
	if err != nil {
		return nil, err
	}

	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = clientIDPrefix + uuid.NewString()
	}

	return &Dialer{
		cfg:       cfg,
		clientID:  clientID,
		keepAlive: keepAlive,
		tlsConfig: tlsConfig,
		qos:       byte(cfg.QoS),
		newClient: pahomqtt.NewClient,
	}, nil
}

// ClientID returns the MQTT client identifier used for every session.
func (d *Dialer) ClientID() string {
	return d.clientID
}

// SetLogger sets a logger for handler errors and panics.
// If not set, errors in handlers are silently ignored.
func (d *Dialer) SetLogger(logger Logger) {
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

func (d *Dialer) getLogger() Logger {
	d.loggerMu.RLock()
	defer d.loggerMu.RUnlock()
	return d.logger
}

// Dial connects to the broker and returns a live session.
//
// onLost is called once if the broker connection drops; it is not called
// when the session is closed with Close.
func (d *Dialer) Dial(ctx context.Context, onLost func(error)) (connection.Session, error) {
	s := &session{
		qos:    d.qos,
		logger: d.getLogger,
	}

	opts := buildClientOptions(d.cfg, d.clientID, d.keepAlive, d.tlsConfig)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		if s.closed.Load() {
			return
		}
		if onLost != nil {
			onLost(err)
		}
	})

	client := d.newClient(opts)
	s.client = client

	token := client.Connect()
	if err := waitToken(ctx, token, ErrConnectionFailed); err != nil {
		// paho keeps connecting in the background; drop whatever it ends up with.
		s.closed.Store(true)
		go func() {
			token.Wait()
			client.Disconnect(0)
		}()
		return nil, fmt.Errorf("%s: %w", d.brokerAddr(), err)
	}

	return s, nil
}

func (d *Dialer) brokerAddr() string {
	return fmt.Sprintf("%s:%d", d.cfg.Broker.Host, d.cfg.Broker.Port)
}

// session is one paho client connection.
type session struct {
	client pahomqtt.Client
	qos    byte
	closed atomic.Bool
	logger func() Logger
}

var _ connection.Session = (*session)(nil)

// Close disconnects, giving in-flight work up to timeout to finish.
func (s *session) Close(timeout time.Duration) {
	if s.closed.Swap(true) {
		return
	}
	quiesce := uint(max(timeout.Milliseconds(), 0))
	s.client.Disconnect(quiesce)
}

func (s *session) connected() bool {
	return !s.closed.Load() && s.client.IsConnectionOpen()
}

// waitToken waits for a paho token or ctx, wrapping failures in op.
func waitToken(ctx context.Context, token pahomqtt.Token, op error) error {
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", op, ctx.Err())
	}
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (s *session) wrapHandler(handler connection.MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := s.logger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := s.logger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
