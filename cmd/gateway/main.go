// Package main is the entry point for the evTrak realtime gateway.
//
// The gateway subscribes to the Redis distribution channel, fans every
// tracker message out to connected WebSocket sessions through the broadcast
// Hub, and serves the session endpoint at GET /ws. It is deliberately
// stateless: a restarted gateway simply resubscribes and clients reconnect.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/manolocortes/evTrak/internal/broadcast"
	"github.com/manolocortes/evTrak/internal/config"
	"github.com/manolocortes/evTrak/internal/core"
	"github.com/manolocortes/evTrak/internal/gateway"
	"github.com/manolocortes/evTrak/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := core.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("evTrak gateway starting",
		"environment", cfg.Environment,
		"port", cfg.Gateway.Port,
		"channel", cfg.Redis.Channel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	hub := broadcast.NewHub(cfg.Gateway.SessionQueueSize, logger)
	wsHandler := gateway.NewHandler(hub, cfg.Gateway, logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{
		broadcast.PingProbe{Client: redisClient},
	}
	srv.MountRoutes()

	router := srv.Router()
	router.Get("/ws", wsHandler.ServeWS)
	router.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:              ":" + cfg.Gateway.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return broadcast.RunSubscriber(gctx, redisClient, cfg.Redis.Channel, hub, logger)
	})

	g.Go(func() error {
		logger.Info("gateway listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("gateway stopped cleanly")
	return nil
}
