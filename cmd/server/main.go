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
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"growthdash/internal/analytics"
	"growthdash/internal/civildate"
	"growthdash/internal/delivery"
	"growthdash/internal/domain"
	"growthdash/internal/infrastructure"
	"growthdash/internal/usecase"
	"growthdash/pkg/config"
	"growthdash/pkg/logger"
	"growthdash/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.WithFields(map[string]any{
		"store":    cfg.Store.Driver,
		"timezone": cfg.Analytics.Timezone,
	}).Info("Starting server")

	// Spend renders as a JSON number for the dashboard.
	decimal.MarshalJSONWithoutQuotes = true

	m := metrics.New()

	dates, err := civildate.New(cfg.Analytics.Timezone)
	if err != nil {
		log.WithError(err).Fatal("Invalid analytics timezone")
	}

	ctx := context.Background()

	var (
		events      domain.EventStore
		credentials domain.CredentialStore
		health      delivery.HealthChecker
	)
	switch cfg.Store.Driver {
	case "postgres":
		db, err := infrastructure.OpenPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()
		store := infrastructure.NewPostgresStore(db, dates, log, m)
		events, credentials, health = store, store, store
	case "http":
		store := infrastructure.NewHTTPStore(infrastructure.HTTPStoreConfig{
			BaseURL:            cfg.Store.BaseURL,
			APIKey:             cfg.Store.APIKey,
			Timeout:            cfg.Store.RequestTimeout,
			MaxRetries:         cfg.Store.MaxRetries,
			RetryBackoff:       cfg.Store.RetryBackoff,
			RateLimitPerSecond: cfg.Store.RateLimitPerSecond,
		}, dates, log, m)
		events, credentials = store, store
	default:
		store := infrastructure.NewMemoryStore(log)
		events, credentials = store, store
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis unreachable, credential cache will fall through")
		}
		credentials = infrastructure.NewCachedCredentialStore(credentials, client, cfg.Redis.CredentialTTL, log, m)
	}

	analyticsService := usecase.NewAnalyticsService(events, dates, usecase.NewRequestTracker(m), usecase.AnalyticsOptions{
		DefaultRangeDays: cfg.Analytics.DefaultRangeDays,
		MaxRangeDays:     cfg.Analytics.MaxRangeDays,
		Summary: analytics.SummaryConfig{
			FollowerPlatform: cfg.Analytics.FollowerPlatform,
			SignupPlatform:   cfg.Analytics.SignupPlatform,
			SocialSources:    cfg.Analytics.SocialSources,
		},
	}, log, m)
	credentialService := usecase.NewCredentialService(credentials, log)

	handlers := delivery.NewHTTPHandlers(analyticsService, credentialService, health, log)
	router := delivery.NewHTTPRouter(handlers, log, m, nil, cfg.Server.RequestTimeout).SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	log.Info("Server exited")
}
