// Package scheduler runs the recurring reconciliation jobs: the baseline
// odds refresh, the game-day score poll, and the stale line cleanup. Job
// failures are logged and absorbed; one bad feed response must never take
// the worker down.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nflpickem/reconciler/internal/config"
	"nflpickem/reconciler/internal/reconcile"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler manages the background reconciliation jobs.
type Scheduler struct {
	cfg      *config.Config
	pipeline *reconcile.Pipeline
	cron     *cron.Cron
	ticker   *time.Ticker
	stopChan chan struct{}
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg *config.Config, pipeline *reconcile.Pipeline) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		pipeline: pipeline,
		cron:     cron.New(),
		stopChan: make(chan struct{}),
	}
}

// Start registers the cron jobs and the game-day score ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.cfg.OddsRefreshCron, func() {
		s.runBaseline(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule odds refresh: %w", err)
	}

	if _, err := s.cron.AddFunc(s.cfg.GameDayCron, func() {
		s.runScoreFetch(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule game day score fetch: %w", err)
	}

	if _, err := s.cron.AddFunc(s.cfg.CleanupCron, func() {
		s.runCleanup(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule line cleanup: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("odds_refresh", s.cfg.OddsRefreshCron).
		Str("game_day", s.cfg.GameDayCron).
		Str("cleanup", s.cfg.CleanupCron).
		Msg("Reconciliation jobs scheduled")

	// On game days the cron above fires hourly; the ticker keeps score
	// polling tight while games are actually in progress. The pipeline's
	// kickoff gate makes the off-day ticks free.
	s.ticker = time.NewTicker(s.cfg.ScorePollInterval)
	go s.pollScores(ctx)
	log.Info().
		Dur("interval", s.cfg.ScorePollInterval).
		Msg("Score polling started")

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	if s.cron != nil {
		s.cron.Stop()
	}

	if s.ticker != nil {
		s.ticker.Stop()
	}

	close(s.stopChan)
	log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) pollScores(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context cancelled, stopping score polling")
			return
		case <-s.stopChan:
			log.Info().Msg("Stop signal received, stopping score polling")
			return
		case <-s.ticker.C:
			s.runScoreFetch(ctx)
		}
	}
}

// runBaseline refreshes odds for the current and upcoming weeks. Fresh
// stores are left alone so scheduled runs right after an admin-triggered
// one do not spend feed quota.
func (s *Scheduler) runBaseline(ctx context.Context) {
	if !s.pipeline.IsFeedConfigured() {
		log.Debug().Msg("Feed not configured, skipping odds refresh")
		return
	}

	needs, err := s.pipeline.NeedsUpdate(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to check line freshness")
		return
	}
	if !needs {
		log.Debug().Msg("Lines still fresh, skipping odds refresh")
		return
	}

	log.Info().Msg("Running scheduled odds refresh...")
	stats, err := s.pipeline.ReconcileUpcoming(ctx, time.Now())
	if err != nil {
		if errors.Is(err, reconcile.ErrRunInProgress) {
			log.Warn().Msg("Skipping odds refresh, another run is in progress")
			return
		}
		log.Error().Err(err).Msg("Scheduled odds refresh failed")
		return
	}

	log.Info().
		Int("created", stats.GamesCreated).
		Int("matched", stats.GamesMatched).
		Int("lines", stats.LinesUpserted).
		Msg("Scheduled odds refresh complete")
}

func (s *Scheduler) runScoreFetch(ctx context.Context) {
	if !s.pipeline.IsFeedConfigured() {
		return
	}

	stats, err := s.pipeline.SyncScores(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Score fetch failed")
		return
	}
	if stats.Skipped {
		return
	}

	log.Info().
		Int("events", stats.EventsSeen).
		Int("scored", stats.GamesScored).
		Int("unmatched", stats.Unmatched).
		Msg("Score fetch complete")
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	log.Info().Msg("Running stale line cleanup...")
	deleted, err := s.pipeline.CleanupStaleLines(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Stale line cleanup failed")
		return
	}
	log.Info().Int64("deleted", deleted).Msg("Stale line cleanup complete")
}
