package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/uozi-tech/billing-sdk-go/billing"
	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/config"
	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/logging"
	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/metrics"
	"github.com/uozi-tech/billing-sdk-go/internal/keystore"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Billing is the part of *billing.Client the API uses.
type Billing interface {
	IsConnected() bool
	Stats() billing.Stats
	KeyCounts() (valid, blocked int)
	RequireAPIKey(md billing.RequestMetadata) billing.Decision
	ReportUsage(ctx context.Context, rec billing.Record) error
	RequestKeyList(ctx context.Context) error
	OnKeyUpdate(fn func(billing.KeyUpdate))
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Billing Billing

	// Metrics, when set, records per-route request counts and durations.
	Metrics *metrics.Collector
	// Gatherer, when set, is exposed on /metrics.
	Gatherer prometheus.Gatherer

	Version string
}

// Server is the agent's HTTP API server.
//
// It manages the HTTP listener, routes, middleware and the WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	billing   Billing
	metrics   *metrics.Collector
	gatherer  prometheus.Gatherer
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called. The WebSocket hub
// is registered for key updates immediately.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Billing == nil {
		return nil, fmt.Errorf("billing client is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		billing:   deps.Billing,
		metrics:   deps.Metrics,
		gatherer:  deps.Gatherer,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.Logger),
	}

	s.billing.OnKeyUpdate(func(u billing.KeyUpdate) {
		s.hub.Broadcast(ChannelKeyStatus, keyEvent{
			Key:    keystore.Mask(u.Key),
			Status: u.Status.String(),
			Reason: u.Reason,
		})
	})

	return s, nil
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr, "auth", s.cfg.JWTSecret != "")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
