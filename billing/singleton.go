package billing

import (
	"context"
	"sync"
)

var (
	instanceMu sync.Mutex
	instance   *Client
)

// Initialize creates the process-wide Client.
//
// Calling it again with an identical Config returns the existing client and
// ignores opts. A different Config fails with ErrAlreadyInitialized; the
// existing client is left untouched.
func Initialize(cfg Config, opts ...Option) (*Client, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		if instance.cfg == cfg {
			return instance, nil
		}
		return nil, ErrAlreadyInitialized
	}

	c, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	instance = c
	return c, nil
}

// Instance returns the process-wide Client, or ErrNotInitialized.
// After Disconnect the client is still returned.
func Instance() (*Client, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		return nil, ErrNotInitialized
	}
	return instance, nil
}

// Reset disconnects the process-wide Client, if any, and clears it so
// Initialize can run again.
func Reset() {
	instanceMu.Lock()
	c := instance
	instance = nil
	instanceMu.Unlock()

	if c != nil {
		c.Disconnect()
	}
}

// ReportUsage reports rec through the process-wide Client.
func ReportUsage(ctx context.Context, rec Record) error {
	c, err := Instance()
	if err != nil {
		return err
	}
	return c.ReportUsage(ctx, rec)
}

// RequireAPIKey checks md with the process-wide Client.
func RequireAPIKey(md RequestMetadata) (Decision, error) {
	c, err := Instance()
	if err != nil {
		return Decision{}, err
	}
	return c.RequireAPIKey(md), nil
}
