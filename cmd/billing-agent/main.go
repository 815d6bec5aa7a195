// Billing Agent
//
// billing-agent runs the billing SDK as a sidecar. It keeps a session with
// the billing backend over MQTT, mirrors API key status, and exposes key
// checks and usage reporting over HTTP for services that cannot link the
// Go SDK directly.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/uozi-tech/billing-sdk-go/billing"
	"github.com/uozi-tech/billing-sdk-go/internal/api"
	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/config"
	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/influxdb"
	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/billing.yaml"

// options holds parsed command-line flags.
type options struct {
	configPath  string
	showVersion bool
	issueToken  string
	tokenTTL    time.Duration
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads the command line. The config path falls back to
// BILLING_CONFIG and then to defaultConfigPath.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("billing-agent", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", getConfigPath(), "path to the YAML configuration file (env BILLING_CONFIG)")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flagSet.StringVar(&opts.issueToken, "issue-token", "", "print a bearer token for the given subject and exit")
	flagSet.DurationVar(&opts.tokenTTL, "token-ttl", 24*time.Hour, "lifetime of tokens printed by --issue-token")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed flags
//   - stdout: Destination for --version and --issue-token output
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options, stdout io.Writer) error {
	if opts.showVersion {
		fmt.Fprintf(stdout, "billing-agent %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logging.Default()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if opts.issueToken != "" {
		token, tokenErr := api.IssueToken(cfg.API.JWTSecret, opts.issueToken, opts.tokenTTL)
		if tokenErr != nil {
			return fmt.Errorf("issuing token: %w", tokenErr)
		}
		fmt.Fprintln(stdout, token)
		return nil
	}

	log = logging.New(cfg.Logging, version)
	log.Info("starting billing agent",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", opts.configPath,
	)

	clientOpts := []billing.Option{billing.WithLogger(log)}

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		clientOpts = append(clientOpts, billing.WithMetrics(registry))
	}

	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		clientOpts = append(clientOpts, billing.WithUsageSink(influxClient))
		log.Info("InfluxDB usage sink enabled",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	client, err := billing.Initialize(*cfg, clientOpts...)
	if err != nil {
		return fmt.Errorf("initialising billing client: %w", err)
	}
	defer func() {
		log.Info("disconnecting from billing backend")
		billing.Reset()
	}()

	if connErr := client.Connect(ctx); connErr != nil {
		// The manager keeps retrying in the background.
		log.Warn("initial billing connection failed", "error", connErr, "state", client.State())
	} else {
		log.Info("billing backend connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		)
	}

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Billing: client,
			Metrics: client.Metrics(),
			Version: version,
		}
		if registry != nil {
			deps.Gatherer = registry
		}
		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("HTTP API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. Billing session
	// 3. InfluxDB (flushes queued usage points)

	return nil
}

// getConfigPath returns the configuration file path.
// Uses BILLING_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BILLING_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
