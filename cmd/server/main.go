package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/suchiii29/campushub/internal/auth"
	"github.com/suchiii29/campushub/internal/booking"
	"github.com/suchiii29/campushub/internal/cache"
	"github.com/suchiii29/campushub/internal/config"
	"github.com/suchiii29/campushub/internal/dispatch"
	httpapi "github.com/suchiii29/campushub/internal/http"
	"github.com/suchiii29/campushub/internal/ingest"
	"github.com/suchiii29/campushub/internal/logging"
	"github.com/suchiii29/campushub/internal/migration"
	"github.com/suchiii29/campushub/internal/storage"
	"github.com/suchiii29/campushub/internal/tracking"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations && cfg.PGDSN != "" {
		if err := migration.Run(cfg.PGDSN, cfg.MigrationsDir); err != nil {
			logger.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied", "dir", cfg.MigrationsDir)
	}

	var store storage.Store
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer ps.Close()
		store = ps
		logger.Info("using postgres store")
	} else {
		store = storage.NewMemoryStore()
		logger.Warn("PG_DSN not set, using in-memory store")
	}

	verifier := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	var producer *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		logger.Info("publishing bus positions", "topic", cfg.KafkaTopic)
	}

	var live *cache.LiveMap
	if cfg.RedisAddr != "" {
		live = cache.NewLiveMap(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisFleetKey)
		if err := live.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, nearby queries fall back to the store", "error", err)
			live = nil
		} else {
			defer live.Close()
		}
	}

	hub := dispatch.NewHub(logger)

	tracker := &tracking.Service{
		Store:        store,
		Bcast:        hub,
		HistoryLimit: cfg.HistoryPageSize,
	}
	if producer != nil {
		tracker.Events = producer
	}
	if live != nil {
		tracker.Live = live
	}
	bookings := &booking.Service{Store: store}

	api := httpapi.NewServer(httpapi.Deps{
		Store:          store,
		Verifier:       verifier,
		Tracker:        tracker,
		Bookings:       bookings,
		Hub:            hub,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("campushub listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}
}
