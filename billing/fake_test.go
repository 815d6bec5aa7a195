package billing

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeDialer struct {
	mu       sync.Mutex
	sessions []*fakeSession
}

func (d *fakeDialer) Dial(_ context.Context, onLost func(error)) (Session, error) {
	s := &fakeSession{onLost: onLost, handlers: make(map[string]MessageHandler)}
	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *fakeDialer) last() *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}

// reports counts report publishes across every session.
func (d *fakeDialer) reports(topic string) int {
	d.mu.Lock()
	sessions := append([]*fakeSession(nil), d.sessions...)
	d.mu.Unlock()

	n := 0
	for _, s := range sessions {
		n += s.count(topic)
	}
	return n
}

type fakeSession struct {
	mu         sync.Mutex
	onLost     func(error)
	handlers   map[string]MessageHandler
	published  map[string]int
	publishErr error
}

func (s *fakeSession) Publish(_ context.Context, topic string, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published == nil {
		s.published = make(map[string]int)
	}
	s.published[topic]++
	return s.publishErr
}

func (s *fakeSession) Subscribe(_ context.Context, topic string, h MessageHandler) error {
	s.mu.Lock()
	s.handlers[topic] = h
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Unsubscribe(_ context.Context, topic string) error {
	s.mu.Lock()
	delete(s.handlers, topic)
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Close(time.Duration) {}

func (s *fakeSession) deliver(topic string, payload string) error {
	s.mu.Lock()
	h := s.handlers[topic]
	s.mu.Unlock()
	if h == nil {
		return errors.New("fake: no subscription")
	}
	return h(topic, []byte(payload))
}

func (s *fakeSession) count(topic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published[topic]
}

func (s *fakeSession) fail(err error) {
	s.mu.Lock()
	s.publishErr = err
	s.mu.Unlock()
}

type recordingSink struct {
	mu      sync.Mutex
	records []Record
}

func (r *recordingSink) RecordUsage(rec Record) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

func (r *recordingSink) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
