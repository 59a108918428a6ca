package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/bookmarkd/internal/api"
	"github.com/dgallion1/bookmarkd/internal/config"
	"github.com/dgallion1/bookmarkd/internal/pipeline"
	"github.com/dgallion1/bookmarkd/internal/session"
	"github.com/dgallion1/bookmarkd/internal/store"
	"github.com/redis/go-redis/v9"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the document store.
	var st store.Store
	var orch *pipeline.Orchestrator
	stats := session.NewResolveStats(cfg.StatsWindow)
	switch cfg.StoreBackend {
	case config.BackendRedis:
		rs := store.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), store.WithTTL(cfg.DocumentTTL))
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := rs.Ping(pingCtx)
		pingCancel()
		if err != nil {
			log.Error("redis unavailable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		st = rs
		orch = pipeline.NewOrchestrator(cfg, session.NewRegistry(st, log, stats), nil, log)
	default:
		ms := store.NewMemoryStore(cfg.DocumentTTL)
		st = ms
		orch = pipeline.NewOrchestrator(cfg, session.NewRegistry(st, log, stats), ms, log)
	}

	// Initialize pipeline.
	orch.Start(ctx)

	// Initialize HTTP server.
	hub := api.NewHub(log)
	srv := api.NewServer(orch, hub, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		hub.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		st.Close()
	}()

	log.Info("starting bookmarkd", "port", cfg.Port, "store", cfg.StoreBackend)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
