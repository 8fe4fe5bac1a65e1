// Package main is the entry point for the evTrak tracking API.
//
// It wires the position ingestion pipeline end to end: Postgres-backed
// shuttle and geofence repositories, the cached geofence resolver, the
// transition detection engine, and the Redis publisher that feeds the
// realtime gateway. The HTTP surface is mounted on the core chassis
// (middleware, routing, health checks) plus a Prometheus /metrics endpoint.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/manolocortes/evTrak/internal/api/handlers"
	"github.com/manolocortes/evTrak/internal/broadcast"
	"github.com/manolocortes/evTrak/internal/config"
	"github.com/manolocortes/evTrak/internal/core"
	"github.com/manolocortes/evTrak/internal/db"
	"github.com/manolocortes/evTrak/internal/engine"
	"github.com/manolocortes/evTrak/internal/geofence"
	"github.com/manolocortes/evTrak/internal/metrics"
	"github.com/manolocortes/evTrak/internal/tracking"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := core.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("evTrak API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
		"watched_geofences", cfg.Tracking.WatchedGeofences,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database pool and schema.
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	// Redis distribution channel.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Tracking pipeline: repository -> cache -> engine -> service.
	geofenceRepo := db.NewGeofenceRepository(pool)
	shuttleRepo := db.NewShuttleRepository(pool)
	fenceCache := geofence.NewCache(geofenceRepo, logger)
	detector := engine.NewDetector(fenceCache, engine.NewMemoryStateStore(), nil, logger)
	publisher := broadcast.NewRedisPublisher(redisClient, cfg.Redis.Channel, logger)
	trackingSvc := tracking.NewService(detector, shuttleRepo, publisher, cfg.Tracking.WatchedGeofences, logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{
		db.PingProbe{Pool: pool},
		broadcast.PingProbe{Client: redisClient},
	}

	shuttleHandler := handlers.NewShuttleHandler(trackingSvc, srv.Validator, logger)
	geofenceHandler := handlers.NewGeofenceHandler(fenceCache, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) {
			r.Route("/shuttles", shuttleHandler.RegisterRoutes)
		},
		func(r chi.Router) {
			r.Route("/geofences", geofenceHandler.RegisterRoutes)
		},
	)

	srv.MountRoutes()
	srv.Router().Handle("/metrics", metrics.Handler())

	return runHTTPServer(ctx, ":"+cfg.Server.Port, srv.Handler(), logger)
}

// runHTTPServer serves until the context is canceled, then shuts down
// gracefully with a 10-second deadline.
func runHTTPServer(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
