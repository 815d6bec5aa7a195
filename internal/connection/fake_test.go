package connection

import (
	"context"
	"errors"
	"sync"
	"time"
)

type message struct {
	topic   string
	payload []byte
}

// fakeDialer hands out fakeSessions. Errors queued in failures are returned
// by successive Dial calls before any session is created.
type fakeDialer struct {
	mu       sync.Mutex
	failures []error
	block    bool
	dials    int
	sessions []*fakeSession

	// configure is applied to every new session before it is returned.
	configure func(*fakeSession)
}

func (d *fakeDialer) Dial(ctx context.Context, onLost func(error)) (Session, error) {
	d.mu.Lock()
	d.dials++
	block := d.block
	var err error
	if len(d.failures) > 0 {
		err = d.failures[0]
		d.failures = d.failures[1:]
	}
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	s := &fakeSession{
		onLost:   onLost,
		handlers: make(map[string]MessageHandler),
	}
	if d.configure != nil {
		d.configure(s)
	}

	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) session(i int) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.sessions) {
		return nil
	}
	return d.sessions[i]
}

func (d *fakeDialer) sessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *fakeDialer) setBlock(b bool) {
	d.mu.Lock()
	d.block = b
	d.mu.Unlock()
}

type fakeSession struct {
	mu           sync.Mutex
	onLost       func(error)
	handlers     map[string]MessageHandler
	published    []message
	unsubscribed []string
	closed       bool

	// ack, when set, holds Publish on the report topic until closed.
	ack chan struct{}
	// publishErr maps topic to a forced publish error.
	publishErr map[string]error
	// closeDelay makes Close hang.
	closeDelay time.Duration
}

func (s *fakeSession) Publish(ctx context.Context, topic string, payload []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("fake: session closed")
	}
	ack := s.ack
	err := s.publishErr[topic]
	s.published = append(s.published, message{topic: topic, payload: append([]byte(nil), payload...)})
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if ack != nil && topic == DefaultReportTopic {
		select {
		case <-ack:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *fakeSession) Subscribe(_ context.Context, topic string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[topic] = handler
	return nil
}

func (s *fakeSession) Unsubscribe(_ context.Context, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, topic)
	s.unsubscribed = append(s.unsubscribed, topic)
	return nil
}

func (s *fakeSession) Close(time.Duration) {
	s.mu.Lock()
	delay := s.closeDelay
	s.closed = true
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
}

// deliver simulates an inbound message.
func (s *fakeSession) deliver(topic string, payload []byte) error {
	s.mu.Lock()
	h := s.handlers[topic]
	s.mu.Unlock()
	if h == nil {
		return errors.New("fake: no subscription")
	}
	return h(topic, payload)
}

// lose simulates the broker dropping the session.
func (s *fakeSession) lose(err error) {
	s.onLost(err)
}

func (s *fakeSession) messages(topic string) []message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []message
	for _, m := range s.published {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) subscribed(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handlers[topic]
	return ok
}

// recordingObserver records state transitions.
type recordingObserver struct {
	NopObserver
	mu          sync.Mutex
	transitions []State
	dropped     int
}

func (o *recordingObserver) StateChanged(_, to State) {
	o.mu.Lock()
	o.transitions = append(o.transitions, to)
	o.mu.Unlock()
}

func (o *recordingObserver) KeyUpdateDropped() {
	o.mu.Lock()
	o.dropped++
	o.mu.Unlock()
}

func (o *recordingObserver) snapshot() ([]State, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.transitions...), o.dropped
}

// closeOrderLogger notes whether sess was already closed when the manager
// logged that the connection is closed.
type closeOrderLogger struct {
	noopLogger
	mu              sync.Mutex
	sess            *fakeSession
	closedAtLogLine bool
	logged          bool
}

func (l *closeOrderLogger) Info(msg string, _ ...any) {
	if msg != "billing connection closed" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logged = true
	l.closedAtLogLine = l.sess != nil && l.sess.isClosed()
}
