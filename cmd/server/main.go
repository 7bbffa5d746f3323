// Package main is the entry point for the autoinc API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autoinc/internal/config"
	"autoinc/internal/domain"
	"autoinc/internal/domain/auth"
	"autoinc/internal/domain/counter"
	"autoinc/internal/infrastructure/counterstore"
	v1 "autoinc/internal/infrastructure/http/v1"
	"autoinc/internal/infrastructure/http/v1/middleware"
	"autoinc/internal/infrastructure/metrics"
	"autoinc/internal/infrastructure/storage/memory"
	"autoinc/internal/infrastructure/storage/postgres"
	"autoinc/internal/metadata"
	"autoinc/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.App.IsDevelopment(),
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting autoinc server", "env", cfg.App.Env, "store", cfg.Store.Backend)

	// --- Counter store ---
	store, err := counterstore.Open(ctx, counterstore.Options{
		Backend:      cfg.Store.Backend,
		DatabaseURL:  cfg.Store.DatabaseURL,
		SQLitePath:   cfg.Store.SQLitePath,
		RedisURL:     cfg.Store.RedisURL,
		KeyPrefix:    cfg.Store.KeyPrefix,
		EnsureSchema: true,
	})
	if err != nil {
		log.Fatalw("failed to open counter store", "error", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnw("counter store close failed", "error", err)
		}
	}()

	// --- Models and counters ---
	models, err := metadata.LoadOrDefault(cfg.ModelsFile)
	if err != nil {
		log.Fatalw("failed to load models", "error", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	allocator := counter.NewAllocator(store.Store,
		counter.WithRecorder(metrics.New(promRegistry)),
		counter.WithLogger(log.WithComponent("allocator")),
		counter.WithTimeout(cfg.Store.Timeout),
	)
	counters := counter.NewRegistry(allocator)
	if err := counters.RegisterModels(models.List()...); err != nil {
		log.Fatalw("invalid counter bindings", "error", err)
	}
	log.Infow("metadata registry initialized", "models", len(models.List()))

	// --- Entity service ---
	entities, err := newEntityService(ctx, store, counters)
	if err != nil {
		log.Fatalw("failed to initialize document storage", "error", err)
	}

	// --- Auth ---
	var validator middleware.JWTValidator
	if cfg.Auth.Enabled {
		validator = auth.NewJWTService(auth.JWTConfig{
			Secret:   cfg.Auth.JWTSecret,
			Issuer:   cfg.Auth.Issuer,
			TokenTTL: cfg.Auth.TokenTTL,
		})
	} else {
		log.Warn("authentication is disabled")
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		Store:        store.Store,
		Allocator:    allocator,
		Entities:     entities,
		Models:       models,
		JWTValidator: validator,
		Metrics:      promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		ReadyTimeout: cfg.Store.Timeout,
		Debug:        cfg.App.IsDevelopment(),
	})

	// --- HTTP Server ---
	port := strconv.Itoa(cfg.App.Port)
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      gzhttp.GzipHandler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	if store.Pool != nil {
		store.Pool.LogStats(shutdownCtx)
	}

	log.Info("server stopped")
}

// newEntityService stores documents next to the counters when the store is
// Postgres, in memory otherwise.
func newEntityService(ctx context.Context, store *counterstore.Handle, counters *counter.Registry) (*domain.EntityService, error) {
	if store.Pool == nil {
		return domain.NewEntityService(domain.EntityServiceConfig{
			Repo:     memory.NewDocumentRepo(),
			Counters: counters,
		}), nil
	}

	txManager := postgres.NewTxManager(store.Pool)
	repo := postgres.NewDocumentRepo(txManager)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return domain.NewEntityService(domain.EntityServiceConfig{
		Repo:      repo,
		TxManager: txManager,
		Counters:  counters,
	}), nil
}
