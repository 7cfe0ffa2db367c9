package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/config"
	"github.com/AdamBeresnev/op-tournaments/internal/db"
	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/AdamBeresnev/op-tournaments/internal/metrics"
	"github.com/AdamBeresnev/op-tournaments/internal/service"
	"github.com/AdamBeresnev/op-tournaments/internal/store"
	"github.com/AdamBeresnev/op-tournaments/internal/sweeper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	var repo service.Repository
	switch cfg.DBDriver {
	case "memory":
		repo = store.NewMemoryStore()
		logger.Warn("using in-memory store, state is lost on restart")
	default:
		database, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close()

		if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		repo = store.NewTournamentStore(database)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	hub := events.NewHub(logger)
	defer hub.Close()

	opts := service.Options{
		Publisher:     events.Multi{events.NewLogPublisher(logger), hub},
		Metrics:       m,
		Logger:        logger,
		WalkoverGrace: cfg.WalkoverGrace(),
		MaxRetries:    cfg.MaxWriteRetries,
	}
	gen := bracket.NewGenerator(cfg.Seed())
	tournaments := service.NewTournamentService(repo, gen, opts)
	matches := service.NewMatchService(repo, gen, opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweep := sweeper.New(tournaments, cfg.SweepInterval(), cfg.SweepConcurrency, logger, m)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if err := sweep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("walkover sweeper stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: newRouter(&app{
			tournaments: tournaments,
			matches:     matches,
			hub:         hub,
			registry:    registry,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
		stop()
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
			_ = server.Close()
		}
	}

	<-sweepDone
	logger.Info("application exited")
}
