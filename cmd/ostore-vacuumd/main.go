package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ostore/internal/config"
	"ostore/internal/logger"
	"ostore/internal/version"
)

var (
	cfgFile     string
	showVersion bool
)

func init() {
	flag.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/ostore-vacuumd/config.yaml)")
	flag.BoolVar(&showVersion, "version", false, "show version")
}

func main() {
	flag.Parse()

	if showVersion {
		info := version.Get()
		fmt.Printf("ostore-vacuumd %s\n", info.String())
		fmt.Println(info.Full())
		os.Exit(0)
	}

	cfg, err := config.LoadVacuumd(cfgFile)
	if err != nil {
		stdlog.Fatalf("failed to load config: %v", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		stdlog.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = log.Close() }()

	ctx := context.Background()

	log.Info("starting ostore-vacuumd",
		"interval", cfg.Vacuum.Interval,
		"batch_size", cfg.Vacuum.BatchSize,
		"objects_table", cfg.Vacuum.Engine.ObjectsTableName,
	)

	daemon := NewDaemon(cfg, log)
	if err := daemon.Start(ctx); err != nil {
		log.Error("failed to start daemon", "error", err)
		os.Exit(1)
	}

	if err := writePIDFile(cfg.Vacuum.PIDFile); err != nil {
		log.Warn("failed to write PID file", "error", err, "path", cfg.Vacuum.PIDFile)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("received shutdown signal", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := daemon.Stop(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}

	removePIDFile(cfg.Vacuum.PIDFile)
	log.Info("ostore-vacuumd stopped")
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d", os.Getpid())), 0644)
}

func removePIDFile(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
