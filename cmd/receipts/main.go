// Receipts - Points scoring for purchase receipts.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/receipts/internal/api"
	"github.com/opensource-finance/receipts/internal/bus"
	"github.com/opensource-finance/receipts/internal/cache"
	"github.com/opensource-finance/receipts/internal/domain"
	"github.com/opensource-finance/receipts/internal/processor"
	"github.com/opensource-finance/receipts/internal/repository"
	"github.com/opensource-finance/receipts/internal/rules"
	"github.com/opensource-finance/receipts/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg, err := domain.LoadConfig(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting receipts",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"worker", cfg.Worker.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("receipts stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("receipts shutdown complete")
}

func run(ctx context.Context, cfg *domain.Config) error {
	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	lookupCache, err := cache.New(cfg.Cache)
	if err != nil {
		repo.Close()
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	if lookupCache != nil {
		defer lookupCache.Close()
		repo = repository.NewCached(repo, lookupCache, cfg.Cache.TTL)
		slog.Info("cache initialized", "type", cfg.Cache.Type, "ttl", cfg.Cache.TTL)
	}
	defer repo.Close()

	// Initialize EventBus
	eventBus, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer eventBus.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Rule Engine
	engine, err := rules.NewDefaultEngine()
	if err != nil {
		return fmt.Errorf("failed to initialize rule engine: %w", err)
	}
	for _, r := range engine.Rules() {
		slog.Debug("rule loaded", "name", r.Name, "version", r.Version)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	proc := processor.New(engine, repo, eventBus)

	// Initialize async Worker
	var background stopper
	if cfg.Worker.Enabled {
		asyncWorker := worker.NewWorker(eventBus, proc)
		if err := asyncWorker.Start(); err != nil {
			return fmt.Errorf("failed to start async worker: %w", err)
		}
		background = asyncWorker
	}

	srv := api.NewServer(cfg.Server, proc, lookupCache, Version)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	slog.Info("receipts is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version)

	if err := awaitShutdown(ctx, serverErr, background); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	return nil
}

// stopper halts background work during shutdown.
type stopper interface {
	Stop() error
}

// awaitShutdown blocks until ctx is done or the server fails, then stops the
// async worker on either path. It returns the server error, if any.
func awaitShutdown(ctx context.Context, serverErr <-chan error, background stopper) error {
	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case serveErr = <-serverErr:
	}

	// Stop async worker first
	if background != nil {
		if err := background.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}
	return serveErr
}

// newLogger builds the process logger from configuration.
func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  +-------------------------------------------+")
	fmt.Println("  |                RECEIPTS                   |")
	fmt.Println("  |       Points for every purchase.          |")
	fmt.Println("  +-------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Store:    %s\n", cfg.Repository.Driver)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /receipts/process     - Score and store a receipt")
	fmt.Println("    GET  /receipts/{id}/points - Points awarded to a receipt")
	fmt.Println("    GET  /receipts/{id}        - Stored receipt with ledger")
	fmt.Println("    GET  /rules                - Active scoring rules")
	fmt.Println("    GET  /health               - Health check")
	fmt.Println()
}
