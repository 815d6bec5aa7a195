package connection

import (
	"time"

	"github.com/uozi-tech/billing-sdk-go/internal/keystore"
)

// Logger defines the logging interface for the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer receives lifecycle events, typically for metrics.
//
// Methods are called synchronously, sometimes with the manager's lock held,
// and must not call back into the Manager.
type Observer interface {
	StateChanged(from, to State)
	ConnectAttempt(attempt uint64)
	Published(elapsed time.Duration, err error)
	KeyUpdated(status keystore.Status)
	KeyUpdateDropped()
}

// NopObserver ignores every event. Embed it to implement part of Observer.
type NopObserver struct{}

func (NopObserver) StateChanged(State, State)      {}
func (NopObserver) ConnectAttempt(uint64)          {}
func (NopObserver) Published(time.Duration, error) {}
func (NopObserver) KeyUpdated(keystore.Status)     {}
func (NopObserver) KeyUpdateDropped()              {}
