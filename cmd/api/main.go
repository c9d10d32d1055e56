package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/careloop/draft-api/internal/config"
	"github.com/careloop/draft-api/internal/draftstore"
	"github.com/careloop/draft-api/internal/handler"
	draftHandler "github.com/careloop/draft-api/internal/handler/draft"
	sessionHandler "github.com/careloop/draft-api/internal/handler/session"
	"github.com/careloop/draft-api/internal/hydrate"
	"github.com/careloop/draft-api/internal/remote"
	"github.com/careloop/draft-api/internal/router"
	"github.com/careloop/draft-api/internal/session"
	"github.com/careloop/draft-api/internal/worker"
	"github.com/careloop/draft-api/pkg/logger"
	"github.com/careloop/draft-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatal().Err(err).Msg("failed to apply environment overrides")
	}

	appLogger := logger.NewLogger(nil)
	zl := *appLogger.Zerolog()

	m := metrics.NewMetrics("draftapi", "core")

	store, err := newStore(cfg, zl, m)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to initialize draft store")
	}
	defer store.Close()

	recordClient := remote.NewClient(remote.Config{
		BaseURL:     cfg.Remote.BaseURL,
		Timeout:     time.Duration(cfg.Remote.TimeoutSeconds) * time.Second,
		MaxFailures: cfg.Remote.MaxFailures,
		OpenTimeout: cfg.Remote.OpenTimeout,
	}, zl, m)

	resolver := hydrate.NewResolver(store, recordClient, zl, m)
	registry := session.NewRegistry(store, recordClient, resolver, zl, m)

	h := handler.NewHandler()
	sessionH := sessionHandler.NewHandler(registry)
	draftH := draftHandler.NewHandler(store)

	r := router.NewRouter(sessionH, draftH, h, router.Config{
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanupWorker := worker.NewDraftCleanupWorker(
		store,
		registry,
		cfg.Retention.MaxAgeDays,
		cfg.Retention.SessionMaxIdle,
		cfg.Retention.SweepInterval,
		zl,
	)
	go cleanupWorker.Start(ctx)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Str("backend", cfg.Store.Backend).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	// tear down sessions before the store closes; teardown cancels any
	// scheduled autosave, nothing is flushed
	registry.Shutdown()
	cancel()

	log.Info().Msg("server exited properly")
}

func newStore(cfg *config.Config, zl zerolog.Logger, m *metrics.Metrics) (draftstore.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		return draftstore.NewRedisStore(draftstore.RedisConfig{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, zl, m)
	case "postgres":
		return draftstore.NewPostgresStore(draftstore.PostgresConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Name:     cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
		}, zl, m)
	case "memory":
		return draftstore.NewMemoryStore(zl, m), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
