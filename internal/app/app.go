// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/progress-tree/internal/api"
	"github.com/JakeFAU/progress-tree/internal/config"
	"github.com/JakeFAU/progress-tree/internal/logging"
	"github.com/JakeFAU/progress-tree/internal/metrics"
	"github.com/JakeFAU/progress-tree/internal/progress"
	"github.com/JakeFAU/progress-tree/internal/progress/sinks"
)

// App holds the shared services of one progtree process: logger, metrics
// registry, record hub with its sinks, and the optional status server.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	snapshots *sinks.MemorySink
	hub       *progress.Hub
	server    *http.Server
	listener  net.Listener
	serveErr  chan error
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the configuration the app was built from.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetEmitter returns the hub that fans records out to the sinks.
func (a *App) GetEmitter() progress.Emitter {
	return a.hub
}

// GetSnapshots exposes the in-memory run snapshots.
func (a *App) GetSnapshots() *sinks.MemorySink {
	return a.snapshots
}

// GetRegistry returns the Prometheus registry all collectors are registered on.
func (a *App) GetRegistry() *prometheus.Registry {
	return a.registry
}

// ServerAddr returns the address the status server listens on, or "" when disabled.
func (a *App) ServerAddr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// NewApp builds every service from cfg. It fails fast when a collector cannot
// be registered or the status server cannot bind its address.
func NewApp(_ context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return newAppWithLogger(cfg, logger)
}

func newAppWithLogger(cfg config.Config, logger *zap.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	snapshots := sinks.NewMemorySink()

	a := &App{
		cfg:       cfg,
		logger:    logger,
		registry:  reg,
		snapshots: snapshots,
	}
	a.hub = progress.NewHub(progress.HubConfig{
		BufferSize:      cfg.Hub.BufferSize,
		MaxBatchRecords: cfg.Hub.MaxBatchEvents,
		MaxBatchWait:    cfg.Hub.MaxBatchWait,
		SinkTimeout:     cfg.Hub.SinkTimeout,
		Logger:          logger,
	}, sinks.NewLogSink(logger), promSink, snapshots)

	if cfg.Server.Addr != "" {
		if err := a.startServer(); err != nil {
			_ = a.hub.Close(context.Background())
			return nil, err
		}
	}
	return a, nil
}

func (a *App) startServer() error {
	httpMetrics, err := metrics.NewHTTP(a.registry)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Server.Addr, err)
	}
	a.listener = ln
	a.server = &http.Server{
		Handler:           api.NewServer(a.snapshots, a.registry, a.logger, api.WithHTTPMetrics(httpMetrics)).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.serveErr = make(chan error, 1)
	go func() {
		err := a.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		a.serveErr <- err
	}()
	a.logger.Info("status server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Close flushes the hub and stops the status server. It returns every
// shutdown failure joined.
func (a *App) Close(ctx context.Context) error {
	var errs error
	if err := a.hub.Close(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if a.server != nil {
		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shutdown status server: %w", err))
		}
		if err := <-a.serveErr; err != nil {
			errs = multierr.Append(errs, fmt.Errorf("status server: %w", err))
		}
	}
	_ = a.logger.Sync()
	return errs
}
