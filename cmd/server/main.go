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

	"github.com/leca/cardvault/internal/bucket"
	"github.com/leca/cardvault/internal/collection"
	"github.com/leca/cardvault/internal/config"
	"github.com/leca/cardvault/internal/database"
	"github.com/leca/cardvault/internal/imageproc"
	"github.com/leca/cardvault/internal/metrics"
	"github.com/leca/cardvault/internal/router"
	"github.com/leca/cardvault/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open document store", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	obs, err := metrics.New("cardvault", nil)
	if err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	cards := collection.New(database.Instrument(store, obs), collection.Options{
		CacheTTL:      cfg.CacheTTL,
		PayloadWarnKB: cfg.PayloadWarnKB,
		ImageLimitKB:  cfg.ImageLimitKB,
		Logger:        logger,
	})

	compressor := imageproc.NewCompressor(imageproc.StdCodec{})
	compressor.Observer = obs
	compressor.Logger = logger

	srv := router.New(router.Deps{
		Cards:      cards,
		Sessions:   session.NewManager(cfg.JWTSecret, cfg.SessionTTL),
		Compressor: compressor,
		Metrics:    promhttp.Handler(),
		Logger:     logger,
	}, cfg)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "addr", cfg.ListenAddr, "backend", cfg.Backend)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openStore returns the configured document store and a function releasing it.
func openStore(cfg *config.Config) (database.Database, func(), error) {
	switch cfg.Backend {
	case config.BackendBucket:
		client, err := bucket.New(bucket.Config{
			BaseURL:  cfg.BucketURL,
			AccessID: cfg.BucketAccessID,
			Timeout:  cfg.BucketTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	default:
		db, err := database.NewSQLiteDB(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		db.MaxDocumentBytes = cfg.MaxDocumentKB << 10
		return db, func() { db.Close() }, nil
	}
}
