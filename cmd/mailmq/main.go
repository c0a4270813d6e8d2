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

	"github.com/absmach/mailmq/config"
	"github.com/absmach/mailmq/deliver"
	"github.com/absmach/mailmq/mail"
	"github.com/absmach/mailmq/server/api"
	"github.com/absmach/mailmq/server/health"
	"github.com/absmach/mailmq/server/otel"
	"github.com/absmach/mailmq/storage"
	"github.com/absmach/mailmq/storage/badger"
	"github.com/absmach/mailmq/storage/memory"
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

	slog.Info("Starting mail delivery service", "version", cfg.Server.OtelServiceVersion)
	slog.Info("Configuration loaded",
		"api_listener", cfg.Server.APIAddr,
		"health_enabled", cfg.Server.HealthEnabled,
		"storage_type", cfg.Storage.Type,
		"max_retry", cfg.Push.MaxRetry,
		"log_level", cfg.Log.Level)

	var store storage.Store
	switch cfg.Storage.Type {
	case "memory":
		store = memory.New()
		slog.Info("Using in-memory storage")
	case "badger":
		badgerStore, err := badger.New(badger.Config{
			Dir: cfg.Storage.BadgerDir,
		})
		if err != nil {
			slog.Error("Failed to initialize BadgerDB storage", "error", err)
			os.Exit(1)
		}
		store = badgerStore
		defer store.Close()
		slog.Info("Using BadgerDB persistent storage", "dir", cfg.Storage.BadgerDir)
	default:
		slog.Error("Unknown storage type", "type", cfg.Storage.Type)
		os.Exit(1)
	}

	var otelShutdown func(context.Context) error
	var metrics *otel.Metrics

	if cfg.Server.MetricsEnabled {
		shutdown, err := otel.InitProvider(cfg.Server)
		if err != nil {
			slog.Error("Failed to initialize OpenTelemetry", "error", err)
			os.Exit(1)
		}
		otelShutdown = shutdown

		m, err := otel.NewMetrics()
		if err != nil {
			slog.Error("Failed to create metrics", "error", err)
			os.Exit(1)
		}
		metrics = m
		slog.Info("OpenTelemetry initialized", "endpoint", cfg.Server.MetricsAddr)
	} else {
		slog.Info("OpenTelemetry disabled")
	}

	handlers := []deliver.Handler{
		deliver.NewHTTPHandler(deliver.HTTPConfig{
			Timeout:          cfg.Deliver.SendTimeout,
			BreakerThreshold: cfg.Deliver.BreakerThreshold,
			BreakerReset:     cfg.Deliver.BreakerReset,
		}, logger),
		deliver.NewRPCHandler(deliver.RPCConfig{
			Timeout: cfg.Deliver.SendTimeout,
		}, logger),
	}

	var mqttHandler *deliver.MQTTHandler
	if cfg.Deliver.MQTTEnabled {
		mqttHandler, err = deliver.NewMQTTHandler(deliver.MQTTConfig{
			BrokerURL: cfg.Deliver.MQTTBroker,
			ClientID:  cfg.Deliver.MQTTClientID,
			Timeout:   cfg.Deliver.SendTimeout,
		}, logger)
		if err != nil {
			slog.Error("Failed to connect MQTT transport", "error", err, "broker", cfg.Deliver.MQTTBroker)
			os.Exit(1)
		}
		handlers = append(handlers, mqttHandler)
		slog.Info("MQTT transport enabled", "broker", cfg.Deliver.MQTTBroker)
	}

	router := deliver.NewRouter(logger, handlers...)

	pool := deliver.NewPool(deliver.PoolConfig{
		Workers:         cfg.Deliver.Workers,
		QueueSize:       cfg.Deliver.QueueSize,
		Rate:            cfg.Deliver.Rate,
		Burst:           cfg.Deliver.Burst,
		SendTimeout:     cfg.Deliver.SendTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)

	svc := mail.New(mail.Config{
		MaxRetry:    cfg.Push.MaxRetry,
		SendTimeout: cfg.Deliver.SendTimeout,
	}, store, router, pool, metrics, logger)

	pushScanner := mail.NewScanner("push", cfg.Push.ScanDelay, cfg.Push.ScanInterval, svc.Scan, logger)
	pushScanner.Start()

	scheduleScanner := mail.NewScanner("schedule", cfg.Push.ScheduleScanDelay, cfg.Push.ScheduleScanInterval, svc.ScanSchedules, logger)
	scheduleScanner.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	serverErr := make(chan error, 2)

	apiServer := api.New(api.Config{
		Address:         cfg.Server.APIAddr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, svc, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Listen(ctx); err != nil {
			serverErr <- err
		}
	}()

	if cfg.Server.HealthEnabled {
		healthServer := health.New(health.Config{
			Address:         cfg.Server.HealthAddr,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, store, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := healthServer.Listen(ctx); err != nil {
				serverErr <- err
			}
		}()
	}

	slog.Info("Mail delivery service started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server error", "error", err)
	}

	// Stop admitting new scan iterations before tearing down delivery.
	pushScanner.Stop()
	scheduleScanner.Stop()

	if err := pool.Close(); err != nil {
		slog.Error("Error stopping deliver pool", "error", err)
	}

	if mqttHandler != nil {
		mqttHandler.Close()
	}

	if otelShutdown != nil {
		otelShutdownCtx, otelCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer otelCancel()
		if err := otelShutdown(otelShutdownCtx); err != nil {
			slog.Error("Failed to shutdown OpenTelemetry", "error", err)
		}
	}

	cancel()

	wg.Wait()
	slog.Info("Mail delivery service stopped")
}
