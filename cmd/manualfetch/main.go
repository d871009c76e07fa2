// Command manualfetch runs one reconciliation operation from the command
// line, against the same configuration the worker uses. Useful for seeding a
// fresh database and for poking the feed without waiting on the scheduler.
package main

import (
	"context"
	"flag"
	"fmt"

	"nflpickem/reconciler/internal/config"
	"nflpickem/reconciler/internal/feed"
	"nflpickem/reconciler/internal/match"
	"nflpickem/reconciler/internal/reconcile"
	"nflpickem/reconciler/internal/repository"
	"nflpickem/reconciler/internal/season"

	"github.com/rs/zerolog/log"
)

func main() {
	var (
		week    = flag.Int("week", -1, "reconcile a single week instead of everything")
		scores  = flag.Bool("scores", false, "fetch final scores instead of odds")
		cleanup = flag.Bool("cleanup", false, "remove stale betting lines and exit")
	)
	flag.Parse()

	ctx := context.Background()
	cfg := config.MustLoad()

	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     fmt.Sprintf("%d", cfg.DatabasePort),
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

	calendar, err := season.NewCalendar(cfg.SeasonStartDate, cfg.RegularSeasonWeeks)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid season calendar configuration")
	}

	feedClient := feed.NewClient(
		cfg.OddsAPIBaseURL,
		cfg.OddsAPIKey,
		cfg.SportKey,
		cfg.Bookmaker,
		cfg.OddsAPITimeout,
	)

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

	switch {
	case *cleanup:
		deleted, err := pipeline.CleanupStaleLines(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Stale line cleanup failed")
		}
		log.Info().Int64("deleted", deleted).Msg("Stale line cleanup complete")

	case *scores:
		stats, err := pipeline.SyncScores(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Score fetch failed")
		}
		log.Info().
			Bool("skipped", stats.Skipped).
			Int("events", stats.EventsSeen).
			Int("scored", stats.GamesScored).
			Int("unmatched", stats.Unmatched).
			Msg("Score fetch complete")

	case *week >= 0:
		stats, err := pipeline.ReconcileWeek(ctx, *week)
		if err != nil {
			log.Fatal().Err(err).Int("week", *week).Msg("Week reconciliation failed")
		}
		logStats(stats)

	default:
		stats, err := pipeline.ReconcileAll(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Reconciliation failed")
		}
		logStats(stats)
	}
}

func logStats(stats *reconcile.Stats) {
	log.Info().
		Int("weeks", stats.WeeksProcessed).
		Int("created", stats.GamesCreated).
		Int("matched", stats.GamesMatched).
		Int("kickoffs_updated", stats.KickoffsUpdated).
		Int("lines", stats.LinesUpserted).
		Int("unknown_week", stats.UnknownWeek).
		Msg("Reconciliation complete")
}
