package mqtt

import (
	"context"
	"fmt"

	"github.com/uozi-tech/billing-sdk-go/internal/connection"
)

// Subscribe registers a handler for messages on the specified topic.
//
// Topics can include MQTT wildcards:
//   - + (single-level): "billing/keys/+" matches one level
//   - # (multi-level): "billing/#" matches everything below billing
//
// Handlers run on paho's delivery goroutine in arrival order, so a slow
// handler delays later messages. Panics are recovered and logged.
//
// Subscriptions are not restored by this session; after a loss the
// connection manager dials a new session and subscribes again.
func (s *session) Subscribe(ctx context.Context, topic string, handler connection.MessageHandler) error {
	if err := validateTopic(topic, true); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !s.connected() {
		return ErrNotConnected
	}

	token := s.client.Subscribe(topic, s.qos, s.wrapHandler(handler))
	return waitToken(ctx, token, ErrSubscribeFailed)
}

// Unsubscribe removes a subscription and stops receiving messages for a topic.
//
// Any messages in flight may still be delivered.
func (s *session) Unsubscribe(ctx context.Context, topic string) error {
	if err := validateTopic(topic, true); err != nil {
		return err
	}
	if !s.connected() {
		return ErrNotConnected
	}

	token := s.client.Unsubscribe(topic)
	return waitToken(ctx, token, ErrUnsubscribeFailed)
}
