package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/antigravity-dev/taskrelay/internal/api"
	"github.com/antigravity-dev/taskrelay/internal/callback"
	"github.com/antigravity-dev/taskrelay/internal/config"
	"github.com/antigravity-dev/taskrelay/internal/executor"
	"github.com/antigravity-dev/taskrelay/internal/relay"
	"github.com/antigravity-dev/taskrelay/internal/temporal"
)

// backend is the running spawner plus whatever must be torn down with it.
type backend struct {
	spawner relay.Spawner
	drain   func(ctx context.Context) error
	close   func()
}

func relayOptions(cfg *config.Config) relay.Options {
	return relay.Options{
		Model:            cfg.Executor.Model,
		WorkingDirectory: cfg.Executor.WorkingDirectory,
		PollInterval:     cfg.Poll.Interval.Duration,
		PollTimeout:      cfg.Poll.Timeout.Duration,
	}
}

func newGoroutineBackend(cfg *config.Config, tasks relay.TaskClient, callbacks relay.Deliverer, logger *slog.Logger) *backend {
	r := relay.New(tasks, callbacks, relayOptions(cfg), logger)
	gs := relay.NewGoroutineSpawner(r, logger)
	return &backend{
		spawner: gs,
		drain: func(ctx context.Context) error {
			if err := gs.Wait(ctx); err != nil {
				return fmt.Errorf("%d relay(s) still running: %w", gs.InFlight(), err)
			}
			return nil
		},
		close: func() {},
	}
}

func newTemporalBackend(cfg *config.Config, tasks relay.TaskClient, callbacks *callback.Dispatcher, logger *slog.Logger) (*backend, error) {
	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", cfg.Temporal.HostPort, err)
	}

	w := temporal.NewWorker(tc, cfg.Temporal.TaskQueue, &temporal.Activities{Tasks: tasks, Callbacks: callbacks})
	if err := w.Start(); err != nil {
		tc.Close()
		return nil, fmt.Errorf("start temporal worker: %w", err)
	}
	logger.Info("temporal worker started", "task_queue", cfg.Temporal.TaskQueue, "namespace", cfg.Temporal.Namespace)

	return &backend{
		spawner: temporal.NewSpawner(tc, cfg.Temporal.TaskQueue, relayOptions(cfg), logger),
		// Workflows are durable; nothing to drain locally.
		drain: func(context.Context) error { return nil },
		close: func() {
			w.Stop()
			tc.Close()
		},
	}, nil
}

func main() {
	configPath := flag.String("config", "", "path to config file (optional; defaults and environment apply)")
	dev := flag.Bool("dev", false, "use text log format (default is JSON)")
	flag.Parse()

	var level slog.LevelVar
	logger := configureLogger(&level, *dev, os.Stderr)
	slog.SetDefault(logger)

	cfgManager, err := config.LoadManager(*configPath)
	if err != nil {
		logger.Error("failed to load config", "config", *configPath, "error", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	rotator := newLogRotator(cfg.Log)
	if rotator != nil {
		defer rotator.Close()
	}
	level.Set(parseLevel(cfg.General.LogLevel))
	logger = configureLogger(&level, *dev, logOutput(rotator))
	slog.SetDefault(logger)

	logger.Info("taskrelay starting", "config", *configPath, "backend", cfg.Runner.Backend)
	if cfg.API.SigningSecret == "" {
		logger.Warn("no signing secret configured; inbound requests are not authenticated")
	}

	tasks := executor.NewClient(cfg.Executor.URL, &http.Client{Timeout: cfg.Executor.RequestTimeout.Duration})
	callbacks := callback.NewDispatcher(&http.Client{Timeout: cfg.Callback.Timeout.Duration}, logger.With("component", "callback"))

	var be *backend
	switch cfg.Runner.Backend {
	case config.BackendTemporal:
		be, err = newTemporalBackend(cfg, tasks, callbacks, logger.With("component", "temporal"))
		if err != nil {
			logger.Error("failed to start temporal backend", "error", err)
			os.Exit(1)
		}
	default:
		be = newGoroutineBackend(cfg, tasks, callbacks, logger.With("component", "relay"))
	}
	defer be.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiSrv := api.NewServer(cfgManager, be.spawner, logger.With("component", "api"))
	go func() {
		if err := apiSrv.Start(ctx); err != nil {
			logger.Error("api server error", "error", err)
			cancel()
		}
	}()

	logger.Info("taskrelay running",
		"bind", cfg.ListenAddr(),
		"executor", cfg.Executor.URL,
		"model", cfg.Executor.Model,
		"poll_interval", cfg.Poll.Interval.Duration.String(),
		"poll_timeout", cfg.Poll.Timeout.Duration.String(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for {
		var sig os.Signal
		select {
		case sig = <-sigCh:
		case <-ctx.Done():
			sig = syscall.SIGTERM
		}

		switch sig {
		case syscall.SIGHUP:
			updated, err := cfgManager.Reload()
			if err != nil {
				logger.Error(fmt.Sprintf("config reload failed: %v", err))
				continue
			}
			level.Set(parseLevel(updated.General.LogLevel))
			logger.Info("config reloaded", "log_level", updated.General.LogLevel)
		default:
			shutdownStart := time.Now()
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()

			drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.General.ShutdownGrace.Duration)
			if err := be.drain(drainCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("shutdown grace expired", "error", err)
			}
			drainCancel()

			logger.Info("taskrelay stopped", "shutdown_duration", time.Since(shutdownStart).String())
			return
		}
	}
}
