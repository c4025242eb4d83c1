package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/opensource-finance/receipts/internal/domain"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		cfg   domain.LoggingConfig
		level slog.Level
	}{
		{domain.LoggingConfig{Level: "debug", Format: "json"}, slog.LevelDebug},
		{domain.LoggingConfig{Level: "WARN", Format: "text"}, slog.LevelWarn},
		{domain.LoggingConfig{Level: "bogus"}, slog.LevelInfo},
	}

	for _, tt := range tests {
		logger := newLogger(tt.cfg)
		if !logger.Enabled(context.Background(), tt.level) {
			t.Errorf("%+v: expected level %s to be enabled", tt.cfg, tt.level)
		}
		if tt.level > slog.LevelDebug && logger.Enabled(context.Background(), tt.level-4) {
			t.Errorf("%+v: level below %s should be disabled", tt.cfg, tt.level)
		}
	}
}

type countingStopper struct {
	stops int
}

func (s *countingStopper) Stop() error {
	s.stops++
	return nil
}

func TestAwaitShutdown(t *testing.T) {
	t.Run("ServerFailure", func(t *testing.T) {
		serverErr := make(chan error, 1)
		serverErr <- errors.New("bind: address already in use")
		w := &countingStopper{}

		err := awaitShutdown(context.Background(), serverErr, w)
		if err == nil {
			t.Fatal("expected server error")
		}
		if w.stops != 1 {
			t.Errorf("expected worker stopped once, got %d", w.stops)
		}
	})

	t.Run("ContextDone", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		w := &countingStopper{}

		if err := awaitShutdown(ctx, make(chan error), w); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w.stops != 1 {
			t.Errorf("expected worker stopped once, got %d", w.stops)
		}
	})

	t.Run("NoWorker", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := awaitShutdown(ctx, make(chan error), nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
