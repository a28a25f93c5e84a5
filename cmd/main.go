// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/absmach/courier/audit"
	"github.com/absmach/courier/config"
	"github.com/absmach/courier/dispatch"
	"github.com/absmach/courier/events"
	"github.com/absmach/courier/provider"
	"github.com/absmach/courier/ratelimit"
	"github.com/absmach/courier/server/api"
	"github.com/absmach/courier/server/health"
	"github.com/absmach/courier/server/otel"
	"github.com/google/uuid"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	instanceID := uuid.NewString()
	slog.Info("Starting courier dispatcher",
		"instance_id", instanceID,
		"api_listener", cfg.API.Address,
		"health_enabled", cfg.Health.Enabled,
		"providers", len(cfg.Providers),
		"log_level", cfg.Log.Level)

	otelShutdown, err := otel.InitProvider(cfg.Otel, instanceID)
	if err != nil {
		slog.Error("Failed to initialize OpenTelemetry", "error", err)
		os.Exit(1)
	}

	// Audit sinks: file and badger archives plus the live event bus.
	bus := events.NewBus(logger)
	sinks := []dispatch.AuditSink{bus}

	var fileSink *audit.FileSink
	if cfg.Audit.File.Enabled {
		fileSink, err = audit.NewFileSink(cfg.Audit.File, logger)
		if err != nil {
			slog.Error("Failed to open audit log", "error", err)
			os.Exit(1)
		}
		defer fileSink.Close()
		sinks = append(sinks, fileSink)
		slog.Info("Audit log enabled", "path", cfg.Audit.File.Path)
	}

	var badgerSink *audit.BadgerSink
	if cfg.Audit.Badger.Enabled {
		badgerSink, err = audit.NewBadgerSink(cfg.Audit.Badger.Dir, logger)
		if err != nil {
			slog.Error("Failed to open audit archive", "error", err)
			os.Exit(1)
		}
		defer badgerSink.Close()
		sinks = append(sinks, badgerSink)
		slog.Info("Audit archive enabled", "dir", cfg.Audit.Badger.Dir)
	}

	providers := make([]dispatch.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		switch pc.Type {
		case "http":
			providers = append(providers, provider.NewHTTP(pc.Name, pc.URL, pc.Headers, pc.Timeout))
			slog.Info("Registered HTTP provider", "name", pc.Name, "url", pc.URL)
		case "static":
			providers = append(providers, provider.NewStatic(pc.Name, pc.Fail, pc.Latency))
			slog.Info("Registered static provider", "name", pc.Name)
		}
	}

	engine, err := dispatch.New(cfg.Engine, providers, audit.Fanout(sinks...), logger)
	if err != nil {
		slog.Error("Failed to create dispatch engine", "error", err)
		os.Exit(1)
	}
	engine.Start()

	limiter := ratelimit.NewManager(cfg.RateLimit)
	defer limiter.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	serverErr := make(chan error, 2)

	apiServer := api.New(cfg.API, engine, bus, limiter, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Listen(ctx); err != nil {
			serverErr <- err
		}
	}()

	if cfg.Health.Enabled {
		healthServer := health.New(cfg.Health.Config, engine, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := healthServer.Listen(ctx); err != nil {
				serverErr <- err
			}
		}()
	}

	slog.Info("Courier dispatcher started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server error", "error", err)
	}

	// Stop the API first so no new submissions race the engine shutdown.
	cancel()
	wg.Wait()

	if err := engine.Close(); err != nil {
		slog.Error("Error during engine shutdown", "error", err)
	}

	if otelShutdown != nil {
		otelCtx, otelCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer otelCancel()
		if err := otelShutdown(otelCtx); err != nil {
			slog.Error("Failed to shutdown OpenTelemetry", "error", err)
		}
	}

	slog.Info("Courier dispatcher stopped")
}
