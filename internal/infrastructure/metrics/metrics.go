// Package metrics provides Prometheus metrics for the billing SDK.
//
// A Collector implements connection.Observer, so attaching it to the
// connection manager is enough to track session state, connect attempts,
// publishes and key updates. Authorisation decisions, reported usage and
// agent HTTP requests are recorded by their callers.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/uozi-tech/billing-sdk-go/internal/connection"
	"github.com/uozi-tech/billing-sdk-go/internal/keystore"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "billing"

// Collector holds all Prometheus metrics for the billing SDK.
type Collector struct {
	// Connection metrics
	ConnectionState *prometheus.GaugeVec
	ConnectAttempts prometheus.Counter

	// Publish metrics
	Publishes       *prometheus.CounterVec
	PublishDuration prometheus.Histogram

	// Key metrics
	KeyUpdates        *prometheus.CounterVec
	KeyUpdatesDropped prometheus.Counter
	KeysKnown         *prometheus.GaugeVec

	// Auth metrics
	AuthDecisions *prometheus.CounterVec

	// Usage metrics
	UsageReports  *prometheus.CounterVec
	UsageQuantity *prometheus.CounterVec

	// Agent HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

var _ connection.Observer = (*Collector)(nil)

// New creates a collector registered with the default Prometheus registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer, DefaultNamespace)
}

// NewWithRegistry creates a collector registered with reg.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer, namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	c := &Collector{
		ConnectionState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connection_state",
				Help:      "1 for the current connection state, 0 for the others",
			},
			[]string{"state"},
		),
		ConnectAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connect_attempts_total",
				Help:      "Total number of broker dial attempts",
			},
		),
		Publishes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publishes_total",
				Help:      "Total number of usage publishes by result",
			},
			[]string{"result"},
		),
		PublishDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "publish_duration_seconds",
				Help:      "Time from publish to broker acknowledgement",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		KeyUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "key_updates_total",
				Help:      "Total number of key status updates applied",
			},
			[]string{"status"},
		),
		KeyUpdatesDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "key_updates_dropped_total",
				Help:      "Total number of malformed key status messages or entries dropped",
			},
		),
		KeysKnown: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "keys_known",
				Help:      "Number of keys in the local key store by status",
			},
			[]string{"status"},
		),
		AuthDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_decisions_total",
				Help:      "Total number of API key authorisation decisions",
			},
			[]string{"result", "reason"},
		),
		UsageReports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_reports_total",
				Help:      "Total number of acknowledged usage reports",
			},
			[]string{"module", "model"},
		),
		UsageQuantity: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_quantity_total",
				Help:      "Sum of acknowledged billable usage",
			},
			[]string{"module", "model"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of agent HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Agent HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
	}

	c.setState(connection.StateDisconnected)
	return c
}

func (c *Collector) setState(current connection.State) {
	for _, s := range connection.States {
		v := 0.0
		if s == current {
			v = 1
		}
		c.ConnectionState.WithLabelValues(string(s)).Set(v)
	}
}

// StateChanged implements connection.Observer.
func (c *Collector) StateChanged(_, to connection.State) {
	c.setState(to)
}

// ConnectAttempt implements connection.Observer.
func (c *Collector) ConnectAttempt(uint64) {
	c.ConnectAttempts.Inc()
}

// Published implements connection.Observer.
func (c *Collector) Published(elapsed time.Duration, err error) {
	if err != nil {
		c.Publishes.WithLabelValues("error").Inc()
		return
	}
	c.Publishes.WithLabelValues("ok").Inc()
	c.PublishDuration.Observe(elapsed.Seconds())
}

// KeyUpdated implements connection.Observer.
func (c *Collector) KeyUpdated(status keystore.Status) {
	c.KeyUpdates.WithLabelValues(status.String()).Inc()
}

// KeyUpdateDropped implements connection.Observer.
func (c *Collector) KeyUpdateDropped() {
	c.KeyUpdatesDropped.Inc()
}

// SetKeyCounts records the size of the key store.
func (c *Collector) SetKeyCounts(valid, blocked int) {
	c.KeysKnown.WithLabelValues(keystore.StatusValid.String()).Set(float64(valid))
	c.KeysKnown.WithLabelValues(keystore.StatusBlocked.String()).Set(float64(blocked))
}

// RecordDecision counts one authorisation decision. reason is empty for allowed calls.
func (c *Collector) RecordDecision(allowed bool, reason string) {
	result := "allow"
	if !allowed {
		result = "deny"
	}
	c.AuthDecisions.WithLabelValues(result, reason).Inc()
}

// RecordUsage counts one acknowledged usage report.
func (c *Collector) RecordUsage(module, model string, quantity int64) {
	c.UsageReports.WithLabelValues(module, model).Inc()
	c.UsageQuantity.WithLabelValues(module, model).Add(float64(quantity))
}

// ObserveRequest records one agent HTTP request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
