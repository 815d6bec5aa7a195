// Package connection owns the one message-bus session used for billing.
//
// A Manager dials the bus through a Dialer, keeps the session alive,
// reconnects with exponential backoff after failures, keeps the key-status
// subscription in place and publishes usage records.
//
// # State Machine
//
//	Disconnected ──Start/Connect──▶ Connecting ──ok──▶ Connected
//	                                    │                 │
//	                                  fail              lost
//	                                    ▼                 ▼
//	                                 Reconnecting ◀───────┘
//	                                    │  ▲
//	                                    └──┘ retry after backoff
//
//	any state ──Disconnect──▶ ShuttingDown (terminal)
//
// Only the Manager changes state. Publish succeeds only in Connected; in
// every other state it fails with ErrNotConnected and sends nothing. There is
// no local queue and failed publishes are never retried here, so a caller
// never has a record billed twice without knowing.
//
// # Goroutines
//
// A Manager runs at most one background goroutine: the connection loop,
// started by the first Start or Connect and stopped by Disconnect.
// Disconnect waits for it, bounded by Config.TeardownTimeout.
//
// # Transport
//
// Dialer and Session are the only things the Manager needs from the bus.
// The MQTT implementation lives in internal/infrastructure/mqtt.
package connection
