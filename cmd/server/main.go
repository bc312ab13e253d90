package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/herald/herald/internal/config"
	"github.com/herald/herald/internal/database"
	"github.com/herald/herald/internal/dispatch"
	"github.com/herald/herald/internal/events"
	"github.com/herald/herald/internal/handler"
	"github.com/herald/herald/internal/logger"
	"github.com/herald/herald/internal/metrics"
	"github.com/herald/herald/internal/middleware"
	"github.com/herald/herald/internal/provider"
	"github.com/herald/herald/internal/repository"
	"github.com/herald/herald/internal/router"
	"github.com/herald/herald/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", handler.Version).Msg("starting Herald server")

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	// Redis backs the dispatch lock, rate limiting and the redis event transport
	var rdb *database.Redis
	if cfg.Redis.Enabled {
		rdb, err = database.NewRedis(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("connected to Redis")
	}

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	publisher, err := events.New(cfg.Events, rdb, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize event publisher")
	}
	defer publisher.Close()

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	providerConfigRepo := repository.NewProviderConfigRepository(db)

	campaignSvc := service.NewCampaignService(campaignRepo, recipientRepo, attemptRepo, log)

	// Providers are built per dispatch so provider_configs changes apply without a restart
	baseProviders := provider.ConfigFrom(cfg.Providers)
	providers := func(ctx context.Context) (*provider.Set, error) {
		entries, err := providerConfigRepo.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load provider configs: %w", err)
		}
		pcfg, err := provider.Overlay(baseProviders, entries)
		if err != nil {
			return nil, &provider.InitError{Provider: "config", Err: err}
		}
		return provider.NewSet(ctx, pcfg, log)
	}

	opts := []dispatch.Option{dispatch.WithPublisher(publisher)}
	if rdb != nil {
		opts = append(opts, dispatch.WithLocker(rdb))
	}
	engine := dispatch.NewEngine(campaignRepo, recipientRepo, providers, cfg.Dispatch, log, opts...)
	log.Info().
		Int("workers", cfg.Dispatch.Workers).
		Dur("send_timeout", cfg.Dispatch.SendTimeout).
		Bool("lock", rdb != nil).
		Msg("dispatch engine initialized")

	// A nil *database.Redis must not reach the handler as a non-nil interface
	var redisHealth handler.HealthChecker
	if rdb != nil {
		redisHealth = rdb
	}
	h := handler.New(db, redisHealth, log, campaignSvc, engine)

	// Initialize middleware
	mw := middleware.New(rdb, log, cfg)

	// Set up router
	r := router.New(h, mw, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// In-flight dispatches get the grace period; unfinished recipients stay pending
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
