package billing

import (
	"github.com/prometheus/client_golang/prometheus"
)

// UsageSink receives every acknowledged usage record, e.g. for local
// telemetry. RecordUsage must not block.
type UsageSink interface {
	RecordUsage(rec Record)
}

// Option configures a Client.
type Option func(*options)

type options struct {
	dialer   Dialer
	logger   Logger
	registry prometheus.Registerer
	sinks    []UsageSink
}

// WithDialer replaces the MQTT transport, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithLogger sets the logger. *slog.Logger satisfies Logger.
func WithLogger(l Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics registers Prometheus metrics with reg under the configured
// metrics namespace.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithUsageSink adds a sink for acknowledged usage. May be repeated.
func WithUsageSink(s UsageSink) Option {
	return func(o *options) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}
