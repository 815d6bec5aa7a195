package connection

import (
	"context"
	"fmt"

	"github.com/uozi-tech/billing-sdk-go/internal/keystore"
)

// OnKeyUpdate registers fn to be called after each key status change is
// applied to the key store. Listeners run on the transport's delivery
// goroutine in arrival order and should return quickly.
func (m *Manager) OnKeyUpdate(fn func(keystore.Update)) {
	if fn == nil {
		return
	}
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
}

// handleKeyUpdate is the subscription handler for the key status topic.
// Malformed payloads are dropped; they never affect the session.
func (m *Manager) handleKeyUpdate(_ string, payload []byte) error {
	updates, skipped, err := keystore.ParseUpdates(payload)
	if err != nil {
		m.observer.KeyUpdateDropped()
		m.logger.Warn("dropping malformed key status message", "error", err, "bytes", len(payload))
		return nil
	}
	for range skipped {
		m.observer.KeyUpdateDropped()
	}
	if skipped > 0 {
		m.logger.Warn("dropped invalid key status entries", "count", skipped)
	}

	m.listenersMu.RLock()
	listeners := m.listeners
	m.listenersMu.RUnlock()

	for _, u := range updates {
		if _, err := m.keys.Upsert(u.Key, u.Status); err != nil {
			m.observer.KeyUpdateDropped()
			continue
		}
		m.observer.KeyUpdated(u.Status)
		m.logger.Debug("key status updated",
			"key", keystore.Mask(u.Key),
			"status", u.Status,
			"reason", u.Reason,
		)
		for _, fn := range listeners {
			fn(u)
		}
	}
	return nil
}

// RequestKeyList asks the backend to resend the full key list. Requests are
// limited to one per second; RequestKeyList waits for its turn or ctx.
func (m *Manager) RequestKeyList(ctx context.Context) error {
	if m.cfg.Topics.KeyRequest == "" {
		return fmt.Errorf("%w: key request topic not configured", ErrPublishFailed)
	}
	if !m.IsConnected() {
		return fmt.Errorf("%w: state is %s", ErrNotConnected, m.State())
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}

	m.mu.RLock()
	state, sess, sessCtx := m.state, m.session, m.sessCtx
	m.mu.RUnlock()
	if state != StateConnected || sess == nil {
		return fmt.Errorf("%w: state is %s", ErrNotConnected, state)
	}

	return m.publishOn(ctx, sess, sessCtx, m.cfg.Topics.KeyRequest, m.keyRequestPayload())
}

// requestKeyList is sent after every successful connect. Failure is logged
// only; the backend also pushes updates unprompted.
func (m *Manager) requestKeyList(ctx context.Context, sess Session) {
	if m.cfg.Topics.KeyRequest == "" {
		return
	}

	m.mu.RLock()
	sessCtx := m.sessCtx
	m.mu.RUnlock()

	if err := m.publishOn(ctx, sess, sessCtx, m.cfg.Topics.KeyRequest, m.keyRequestPayload()); err != nil {
		m.logger.Warn("key list request failed", "error", err)
	}
}

func (m *Manager) keyRequestPayload() []byte {
	return fmt.Appendf(nil, `{"timestamp":%d}`, m.now().UnixMilli())
}
