package connection

import (
	"context"
	"time"
)

// MessageHandler receives messages for a subscription. A returned error is
// logged by the transport; it never tears down the session.
type MessageHandler func(topic string, payload []byte) error

// Dialer opens sessions to the message bus.
type Dialer interface {
	// Dial establishes one authenticated session. onLost must be called at
	// most once, from any goroutine, when the session ends for any reason
	// other than Close.
	Dial(ctx context.Context, onLost func(error)) (Session, error)
}

// Session is one live connection to the bus.
type Session interface {
	// Publish returns after the broker acknowledged the message or ctx ends.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers handler for topic. Handlers for one session are
	// invoked sequentially in arrival order.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error

	// Unsubscribe removes the subscription for topic.
	Unsubscribe(ctx context.Context, topic string) error

	// Close ends the session, waiting at most timeout for in-flight work.
	Close(timeout time.Duration)
}
