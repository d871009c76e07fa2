package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"nflpickem/reconciler/internal/cache"
	"nflpickem/reconciler/internal/config"
	"nflpickem/reconciler/internal/feed"
	"nflpickem/reconciler/internal/match"
	"nflpickem/reconciler/internal/metrics"
	"nflpickem/reconciler/internal/reconcile"
	"nflpickem/reconciler/internal/repository"
	"nflpickem/reconciler/internal/scheduler"
	"nflpickem/reconciler/internal/season"
	"nflpickem/reconciler/internal/server"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	setupLogger()

	log.Info().Msg("Starting NFL pick'em reconciliation worker")

	cfg := config.MustLoad()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Str("api_key", maskKey(cfg.OddsAPIKey)).
		Msg("Configuration loaded")

	if !cfg.FeedConfigured() {
		log.Warn().Msg("No odds feed API key configured; runs will be skipped until one is set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}

	feedClient := feed.NewClient(
		cfg.OddsAPIBaseURL,
		cfg.OddsAPIKey,
		cfg.SportKey,
		cfg.Bookmaker,
		cfg.OddsAPITimeout,
	)

	redisCache, err := cache.NewRedisCache(cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTLOdds)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
	} else {
		defer redisCache.Close()
		feedClient.WithCache(redisCache)
		log.Info().Msg("Redis cache connected")
	}

	calendar, err := season.NewCalendar(cfg.SeasonStartDate, cfg.RegularSeasonWeeks)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid season calendar configuration")
	}

	matcher := match.NewMatcher(db.Games, cfg.CityPrefixes)
	pipeline := reconcile.NewPipeline(feedClient, db.Games, db.Lines, matcher, calendar, reconcile.Options{
		Sportsbook:         cfg.Bookmaker,
		MaxWeeksPerUpdate:  cfg.MaxWeeksPerUpdate,
		WeekFetchDelay:     cfg.WeekFetchDelay,
		OddsUpdateInterval: cfg.OddsUpdateInterval,
		StaleLineAge:       cfg.StaleLineAge,
		OddsRefreshCron:    cfg.OddsRefreshCron,
		GameDayCron:        cfg.GameDayCron,
	})

	if cfg.EnableMetrics {
		go startMetricsServer(cfg.MetricsPort)
	}

	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	adminSrv := server.New(cfg.AdminPort, pipeline, db)
	go func() {
		if err := adminSrv.Start(); err != nil {
			log.Error().Err(err).Msg("Admin server failed")
		}
	}()

	sched := scheduler.NewScheduler(cfg, pipeline)
	if cfg.EnableScheduler {
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	if cfg.InitialSyncEnabled && pipeline.IsFeedConfigured() {
		log.Info().Msg("Running initial reconciliation...")
		if stats, err := pipeline.ReconcileAll(ctx); err != nil {
			log.Error().Err(err).Msg("Initial reconciliation failed, continuing anyway...")
		} else {
			log.Info().
				Int("created", stats.GamesCreated).
				Int("matched", stats.GamesMatched).
				Int("lines", stats.LinesUpserted).
				Msg("Initial reconciliation complete")
		}
	}

	<-ctx.Done()

	log.Info().Msg("Shutting down scheduler...")
	if cfg.EnableScheduler {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Admin server shutdown failed")
	}

	log.Info().Msg("Worker shutdown complete")
}

// setupLogger configures the zerolog logger
func setupLogger() {
	// Pretty console logging in development
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// maskKey renders an API key safe for startup logs.
func maskKey(key string) string {
	if key == "" || key == config.PlaceholderAPIKey {
		return "(not set)"
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Info().Int("port", port).Msg("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
