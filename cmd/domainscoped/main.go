// Domainscoped is the domainscope daemon.
//
// It serves the session API, turns tracked activity into business-aware
// spans and metrics, and optionally forwards final session snapshots to
// NATS.
//
// Configuration is read from ~/.config/domainscope/config.yaml (or -config)
// and DOMAINSCOPE_* environment variables. See internal/config.
//
// Usage:
//
//	domainscoped
//	domainscoped -config /etc/domainscope/config.yaml -seed 42
//	domainscoped version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/domainscope/internal/config"
	"github.com/fyrsmithlabs/domainscope/internal/filter"
	"github.com/fyrsmithlabs/domainscope/internal/forward"
	httpserver "github.com/fyrsmithlabs/domainscope/internal/http"
	"github.com/fyrsmithlabs/domainscope/internal/instrument"
	"github.com/fyrsmithlabs/domainscope/internal/logging"
	"github.com/fyrsmithlabs/domainscope/internal/session"
	"github.com/fyrsmithlabs/domainscope/internal/simulate"
	"github.com/fyrsmithlabs/domainscope/internal/sink"
	"github.com/fyrsmithlabs/domainscope/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "seed for the simulated backend")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  domainscoped [-config path] [-seed n]   Start the daemon\n")
			fmt.Fprintf(os.Stderr, "  domainscoped version                   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *seed); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("domainscoped by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the daemon and blocks until ctx is cancelled:
//  1. configuration, telemetry and logging
//  2. catalog, instrumentor cache and traffic filter
//  3. session manager, with NATS forwarding when enabled
//  4. HTTP server, then graceful shutdown
func run(ctx context.Context, configPath string, seed uint64) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	telCfg := telemetry.NewDefaultConfig()
	if err := cfg.Section("observability", telCfg); err != nil {
		return err
	}
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	if err := cfg.Section("logging", logCfg); err != nil {
		return err
	}
	logCfg.Redaction.Fields = append(logCfg.Redaction.Fields, cfg.Instrumentation.Filtering.SensitiveFields...)
	otelLogs := tel.LoggerProvider()
	if !logCfg.Output.OTEL {
		otelLogs = nil
	}
	logger, err := logging.New(logCfg, otelLogs)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "Starting domainscoped",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("telemetry", tel.IsEnabled()),
		zap.Uint64("seed", seed))

	reg, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("invalid instrumentation catalog: %w", err)
	}
	trafficFilter, err := filter.New(&cfg.Instrumentation.Filtering)
	if err != nil {
		return fmt.Errorf("invalid filtering config: %w", err)
	}

	idle := cfg.Session.IdleTimeout.Duration()
	cache, err := instrument.NewCache(reg, sink.NewOTel(tel, tel, logger.Zap()), logger,
		instrument.WithSampling(&cfg.Instrumentation.Sampling),
		instrument.WithBusinessThresholds(cfg.Instrumentation.Alerting.BusinessMetricThresholds),
		instrument.WithCapacity(cfg.Session.MaxInstrumentors),
		instrument.WithTTL(idle))
	if err != nil {
		return fmt.Errorf("failed to create instrumentor cache: %w", err)
	}

	var opts []session.Option
	var publisher *forward.Publisher
	if cfg.Forwarding.Enabled {
		nc, err := forward.Connect(cfg.Forwarding.URL, cfg.Forwarding.Token.Value())
		if err != nil {
			return err
		}
		publisher = forward.NewPublisher(nc, cfg.Forwarding.SubjectPrefix, logger.Zap())
		opts = append(opts, session.WithPublisher(publisher))
		logger.Info(ctx, "Forwarding session snapshots",
			zap.String("url", cfg.Forwarding.URL),
			logging.Secret("token", cfg.Forwarding.Token),
			zap.String("subject", publisher.Subject("*")))
	}

	sessions, err := session.NewManager(session.Config{
		IdleTimeout:   idle,
		MaxSessions:   cfg.Session.MaxSessions,
		DefaultOrigin: cfg.Session.DefaultOrigin,
		Alerting:      cfg.Instrumentation.Alerting,
	}, cache, trafficFilter, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	srv, err := httpserver.NewServer(httpserver.Deps{
		Sessions:  sessions,
		Filter:    trafficFilter,
		Simulator: simulate.New(simulate.NewRandom(seed)),
		Registry:  reg,
		Metrics:   httpserver.NewHTTPMetrics(tel.Meter("github.com/fyrsmithlabs/domainscope/internal/http"), logger),
		Telemetry: tel,
	}, logger, &httpserver.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}
	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	logger.Info(ctx, "Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"),
		zap.Strings("domains", reg.Domains()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info(context.Background(), "Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("end sessions: %w", err))
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("drain nats: %w", err))
		}
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	return errors.Join(errs...)
}
