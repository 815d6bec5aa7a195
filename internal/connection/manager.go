package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/uozi-tech/billing-sdk-go/internal/keystore"
	"github.com/uozi-tech/billing-sdk-go/internal/usage"
)

// closeGrace is added to TeardownTimeout before an unresponsive
// Session.Close is abandoned.
const closeGrace = 500 * time.Millisecond

// errSessionClosed is reported when the transport signals loss without a cause.
var errSessionClosed = errors.New("session closed by transport")

// Manager owns the billing session and its reconnect loop.
type Manager struct {
	dialer   Dialer
	keys     *keystore.Store
	cfg      Config
	logger   Logger
	observer Observer
	backoff  *Backoff
	limiter  *rate.Limiter
	now      func() time.Time
	newID    func() string

	mu         sync.RWMutex
	state      State
	session    Session
	sessCtx    context.Context
	sessCancel context.CancelFunc
	lastErr    error
	attempts   uint64
	failures   uint64
	since      time.Time

	// changed is closed and replaced on every state change and every failed
	// attempt, waking Connect callers.
	changed chan struct{}

	lifeCtx    context.Context
	lifeCancel context.CancelFunc
	loopDone   chan struct{}

	listenersMu sync.RWMutex
	listeners   []func(keystore.Update)
}

// New creates a Manager in the Disconnected state. Key status updates
// received over the bus are applied to keys.
func New(dialer Dialer, keys *keystore.Store, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	lifeCtx, lifeCancel := context.WithCancel(context.Background())

	return &Manager{
		dialer:     dialer,
		keys:       keys,
		cfg:        cfg,
		logger:     noopLogger{},
		observer:   NopObserver{},
		backoff:    NewBackoff(cfg.Backoff),
		limiter:    rate.NewLimiter(rate.Every(keyRequestInterval), 1),
		now:        time.Now,
		newID:      uuid.NewString,
		state:      StateDisconnected,
		since:      time.Now(),
		changed:    make(chan struct{}),
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
	}
}

// SetLogger sets the logger. Call before Start.
func (m *Manager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// SetObserver sets the event observer. Call before Start.
func (m *Manager) SetObserver(o Observer) {
	if o != nil {
		m.observer = o
	}
}

// Keys returns the key store fed by this manager.
func (m *Manager) Keys() *keystore.Store {
	return m.keys
}

// Start launches the connection loop without waiting for a session.
// It is a no-op unless the manager is Disconnected.
//
// Returns ErrClosed after Disconnect.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateShuttingDown:
		return ErrClosed
	case StateDisconnected:
	default:
		return nil
	}

	m.setStateLocked(StateConnecting)
	m.loopDone = make(chan struct{})
	go m.run(m.lifeCtx, m.loopDone)
	return nil
}

// Connect starts the connection loop if needed and waits for a session.
//
// It returns nil once Connected. It fails with ErrConnectionFailed when an
// attempt fails after the call began, when ConnectTimeout elapses or when
// ctx ends. The loop keeps retrying in the background either way.
//
// Returns ErrClosed after Disconnect.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.RLock()
	startFailures := m.failures
	m.mu.RUnlock()

	if err := m.Start(); err != nil {
		return err
	}

	timer := time.NewTimer(m.cfg.ConnectTimeout)
	defer timer.Stop()

	for {
		m.mu.RLock()
		state, failures, lastErr, changed := m.state, m.failures, m.lastErr, m.changed
		m.mu.RUnlock()

		switch {
		case state == StateConnected:
			return nil
		case state == StateShuttingDown:
			return ErrClosed
		case failures > startFailures:
			return lastErr
		}

		select {
		case <-changed:
		case <-timer.C:
			return fmt.Errorf("%w: no session after %s", ErrConnectionFailed, m.cfg.ConnectTimeout)
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
		}
	}
}

// Disconnect shuts the manager down for good.
//
// It cancels pending retries and publish waits, unsubscribes, closes the
// session and waits for the loop to exit. Every step is bounded by
// TeardownTimeout. Calling it again is a no-op.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == StateShuttingDown {
		m.mu.Unlock()
		return
	}
	m.setStateLocked(StateShuttingDown)
	sess := m.session
	m.session = nil
	if m.sessCancel != nil {
		m.sessCancel()
	}
	done := m.loopDone
	m.mu.Unlock()

	m.lifeCancel()

	if sess != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.TeardownTimeout)
		if err := sess.Unsubscribe(ctx, m.cfg.Topics.KeyUpdate); err != nil {
			m.logger.Debug("unsubscribe during shutdown failed", "error", err)
		}
		cancel()
	}

	if done != nil {
		select {
		case <-done:
		case <-time.After(m.cfg.TeardownTimeout):
			m.logger.Warn("connection loop did not stop in time", "timeout", m.cfg.TeardownTimeout)
		}
	}

	if sess != nil {
		m.closeSession(sess)
	}
	m.logger.Info("billing connection closed")
}

// Publish sends rec and waits for the broker's acknowledgement.
//
// It fails immediately with ErrNotConnected outside the Connected state,
// without touching the transport. If the session is lost before the
// acknowledgement arrives the publish fails with ErrPublishFailed; it is
// never retried here.
func (m *Manager) Publish(ctx context.Context, rec usage.Record) error {
	m.mu.RLock()
	state, sess, sessCtx := m.state, m.session, m.sessCtx
	m.mu.RUnlock()

	if state != StateConnected || sess == nil {
		return fmt.Errorf("%w: state is %s", ErrNotConnected, state)
	}

	payload, err := usage.Encode(rec, m.newID(), m.now())
	if err != nil {
		return err
	}

	start := time.Now()
	err = m.publishOn(ctx, sess, sessCtx, m.cfg.Topics.Report, payload)
	m.observer.Published(time.Since(start), err)
	return err
}

// publishOn publishes on sess, aborting when sessCtx ends.
func (m *Manager) publishOn(ctx context.Context, sess Session, sessCtx context.Context, topic string, payload []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, m.cfg.PublishTimeout)
	defer cancel()
	stop := context.AfterFunc(sessCtx, cancel)
	defer stop()

	if err := sess.Publish(pubCtx, topic, payload); err != nil {
		if sessCtx.Err() != nil {
			return fmt.Errorf("%w: session lost before acknowledgement: %w", ErrPublishFailed, err)
		}
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the manager is in the Connected state.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// LastError returns the error that caused the last failed attempt or
// session loss. It is cleared when a session is established.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Stats is a snapshot of the manager for health reporting.
type Stats struct {
	State     State     `json:"state"`
	Since     time.Time `json:"since"`
	Attempts  uint64    `json:"attempts"`
	Failures  uint64    `json:"failures"`
	LastError string    `json:"last_error,omitempty"`
}

// Stats returns a snapshot of the manager.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		State:    m.state,
		Since:    m.since,
		Attempts: m.attempts,
		Failures: m.failures,
	}
	if m.lastErr != nil {
		stats.LastError = m.lastErr.Error()
	}
	return stats
}

// setStateLocked moves to s. ShuttingDown is terminal. Caller holds mu.
func (m *Manager) setStateLocked(s State) bool {
	if m.state == s || m.state == StateShuttingDown {
		return false
	}
	from := m.state
	m.state = s
	m.since = m.now()
	m.notifyLocked()
	m.observer.StateChanged(from, s)
	m.logger.Debug("connection state changed", "from", from, "to", s)
	return true
}

func (m *Manager) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

// run is the connection loop. It exits only when ctx is cancelled.
func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		sess, lost, err := m.establish(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.recordFailure(err)
			if !m.wait(ctx, m.backoff.Next()) {
				return
			}
			continue
		}

		m.backoff.Reset()
		m.requestKeyList(ctx, sess)

		err = m.serve(ctx, sess, lost)
		if ctx.Err() != nil {
			return
		}
		m.dropSession(sess, err)

		if !m.wait(ctx, m.backoff.Next()) {
			return
		}
	}
}

// establish dials, subscribes to key updates and installs the session.
func (m *Manager) establish(ctx context.Context) (Session, <-chan error, error) {
	m.mu.Lock()
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()
	m.observer.ConnectAttempt(attempt)

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	lost := make(chan error, 1)
	onLost := func(err error) {
		if err == nil {
			err = errSessionClosed
		}
		select {
		case lost <- err:
		default:
		}
	}

	sess, err := m.dialer.Dial(dialCtx, onLost)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := sess.Subscribe(dialCtx, m.cfg.Topics.KeyUpdate, m.handleKeyUpdate); err != nil {
		m.closeSession(sess)
		return nil, nil, fmt.Errorf("%w: subscribing to %s: %w", ErrConnectionFailed, m.cfg.Topics.KeyUpdate, err)
	}

	m.mu.Lock()
	if m.state == StateShuttingDown {
		m.mu.Unlock()
		m.closeSession(sess)
		return nil, nil, ErrClosed
	}
	m.session = sess
	m.sessCtx, m.sessCancel = context.WithCancel(ctx)
	m.lastErr = nil
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	m.logger.Info("billing session established", "attempt", attempt)
	return sess, lost, nil
}

// serve blocks until the session is lost, a heartbeat fails or ctx ends.
func (m *Manager) serve(ctx context.Context, sess Session, lost <-chan error) error {
	var tick <-chan time.Time
	if m.cfg.HeartbeatInterval > 0 && m.cfg.Topics.Heartbeat != "" {
		ticker := time.NewTicker(m.cfg.HeartbeatInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-lost:
			return err
		case <-tick:
			if err := m.heartbeat(ctx, sess); err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
		}
	}
}

func (m *Manager) heartbeat(ctx context.Context, sess Session) error {
	payload := fmt.Appendf(nil, `{"type":"heartbeat","timestamp":%d}`, m.now().UnixMilli())

	m.mu.RLock()
	sessCtx := m.sessCtx
	m.mu.RUnlock()

	return m.publishOn(ctx, sess, sessCtx, m.cfg.Topics.Heartbeat, payload)
}

// dropSession releases a lost session and moves to Reconnecting.
func (m *Manager) dropSession(sess Session, cause error) {
	m.mu.Lock()
	if m.session != sess {
		m.mu.Unlock()
		return
	}
	m.session = nil
	m.sessCancel()
	m.lastErr = cause
	m.setStateLocked(StateReconnecting)
	m.mu.Unlock()

	m.logger.Warn("billing session lost", "error", cause)
	m.closeSession(sess)
}

func (m *Manager) recordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateShuttingDown {
		return
	}
	m.failures++
	m.lastErr = err
	if !m.setStateLocked(StateReconnecting) {
		m.notifyLocked()
	}
}

// wait sleeps for d, returning false if ctx ends first.
func (m *Manager) wait(ctx context.Context, d time.Duration) bool {
	m.logger.Info("reconnecting to billing broker", "delay", d)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// closeSession closes sess, abandoning it if Close does not return in time.
func (m *Manager) closeSession(sess Session) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.Close(m.cfg.TeardownTimeout)
	}()

	select {
	case <-done:
	case <-time.After(m.cfg.TeardownTimeout + closeGrace):
		m.logger.Warn("session close timed out, abandoning transport handle")
	}
}
