package mqtt

import (
	"context"
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a non-retained message at the configured QoS and waits for
// the broker's acknowledgement (PUBACK for QoS 1, PUBCOMP for QoS 2) or ctx.
//
// QoS Levels:
//   - 0: At most once; returns once the message is written
//   - 1: At least once (default for usage reports, may duplicate)
//   - 2: Exactly once between client and broker
//
// Returns:
//   - error: nil on acknowledgement, or wrapped error describing the failure
func (s *session) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := validateTopic(topic, false); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !s.connected() {
		return ErrNotConnected
	}

	token := s.client.Publish(topic, s.qos, false, payload)
	return waitToken(ctx, token, ErrPublishFailed)
}
