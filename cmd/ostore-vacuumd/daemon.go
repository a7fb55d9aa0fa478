package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"ostore/internal/config"
	"ostore/internal/logger"
	"ostore/internal/storage/postgres"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Daemon owns the engine instance whose vacuum worker this process
// exists to run, plus the metrics endpoint exposing its backlog and
// pool saturation.
type Daemon struct {
	cfg *config.VacuumdConfig
	log *logger.Logger

	engine        *postgres.Engine
	metricsServer *http.Server

	mu        sync.Mutex
	running   bool
	startedAt time.Time
}

// NewDaemon creates a new daemon instance.
func NewDaemon(cfg *config.VacuumdConfig, log *logger.Logger) *Daemon {
	return &Daemon{cfg: cfg, log: log}
}

// Start opens the engine (bootstrapping the schema if needed, which
// starts its background vacuum worker) and the metrics endpoint.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon already running")
	}

	d.log.Debug("opening storage engine", "objects_table", d.cfg.Vacuum.Engine.ObjectsTableName)
	e, err := postgres.New(ctx, d.cfg.Vacuum.Engine, d.log)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	if err := e.Initialize(ctx, d.cfg.Vacuum); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	d.engine = e

	if d.cfg.Vacuum.MetricsAddr != "" {
		if err := d.startMetrics(); err != nil {
			e.Close(ctx)
			d.engine = nil
			return fmt.Errorf("failed to start metrics endpoint: %w", err)
		}
	}

	d.running = true
	d.startedAt = time.Now()
	d.log.Info("vacuum daemon started", "metrics_addr", d.cfg.Vacuum.MetricsAddr)
	return nil
}

// Stop closes the metrics endpoint and the engine (which finalizes the
// vacuum worker, draining its in-flight batch before returning).
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	var errs []error

	if d.metricsServer != nil {
		d.log.Debug("stopping metrics endpoint")
		if err := d.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		}
		d.metricsServer = nil
	}

	if d.engine != nil {
		d.log.Debug("closing storage engine")
		if err := d.engine.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("engine: %w", err))
		}
		d.engine = nil
	}

	d.running = false

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// startMetrics registers the engine's collectors plus the standard Go
// process collectors against a fresh registry and serves them on
// cfg.Vacuum.MetricsAddr.
func (d *Daemon) startMetrics() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	metrics := postgres.NewMetrics(d.engine)
	metrics.MustRegister(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	d.metricsServer = &http.Server{
		Addr:    d.cfg.Vacuum.MetricsAddr,
		Handler: mux,
	}

	ln, err := net.Listen("tcp", d.cfg.Vacuum.MetricsAddr)
	if err != nil {
		return err
	}

	go func() {
		if err := d.metricsServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			d.log.Error("metrics server stopped unexpectedly", "error", err)
		}
	}()

	return nil
}

// IsRunning reports whether the daemon is currently running.
func (d *Daemon) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// StartedAt returns when the daemon started.
func (d *Daemon) StartedAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startedAt
}
