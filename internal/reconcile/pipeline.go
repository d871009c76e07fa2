// Package reconcile drives the schedule and odds reconciliation runs: it
// pulls current events from the odds feed, resolves each one against the
// game store, creates the games the store is missing, and refreshes betting
// lines so repeated runs converge instead of duplicating rows.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nflpickem/reconciler/internal/feed"
	"nflpickem/reconciler/internal/match"
	"nflpickem/reconciler/internal/metrics"
	"nflpickem/reconciler/internal/models"
	"nflpickem/reconciler/internal/repository"
	"nflpickem/reconciler/internal/season"

	"github.com/rs/zerolog/log"
)

// ErrRunInProgress is returned when a reconciliation run is requested while
// another one is still executing.
var ErrRunInProgress = errors.New("reconciliation run already in progress")

// scoreLeadTime is how long before the week's first kickoff the score
// poller starts spending feed requests.
const scoreLeadTime = time.Hour

// OddsFeed is the feed surface the pipeline consumes.
type OddsFeed interface {
	FetchOdds(ctx context.Context) ([]feed.Event, error)
	FetchScores(ctx context.Context) ([]feed.ScoreEvent, error)
	Configured() bool
	QuotaState() feed.Quota
}

// GameStore is the game storage surface the pipeline needs. It extends the
// matcher's read surface with the writes reconciliation performs.
type GameStore interface {
	match.Store
	Create(ctx context.Context, game *models.Game) error
	ListUnscored(ctx context.Context) ([]*models.Game, error)
	UpdateKickoff(ctx context.Context, id int64, kickoff time.Time) error
	MarkScored(ctx context.Context, id int64, winningTeam string) error
	Count(ctx context.Context) (int, error)
	Weeks(ctx context.Context) ([]int, error)
}

// LineStore is the betting line storage surface.
type LineStore interface {
	Upsert(ctx context.Context, line *models.BettingLine) error
	DeleteStale(ctx context.Context, maxAge time.Duration) (int64, error)
	Count(ctx context.Context) (int, error)
	LatestUpdate(ctx context.Context) (time.Time, error)
}

// Options tune a pipeline.
type Options struct {
	// Sportsbook recorded on lines when the feed does not name a book.
	Sportsbook string
	// MaxWeeksPerUpdate bounds how many weeks a baseline run touches.
	MaxWeeksPerUpdate int
	// WeekFetchDelay is the pause between per-week passes in a multi-week
	// run, so bursts of writes do not land at once.
	WeekFetchDelay time.Duration
	// OddsUpdateInterval is how old stored lines may get before NeedsUpdate
	// reports true.
	OddsUpdateInterval time.Duration
	// StaleLineAge is the retention window for lines on games already played.
	StaleLineAge time.Duration
	// OddsRefreshCron and GameDayCron are the scheduler cadences, echoed in
	// the admin status payload.
	OddsRefreshCron string
	GameDayCron     string
}

// Stats summarizes a reconciliation run.
type Stats struct {
	WeeksProcessed  int           `json:"weeks_processed"`
	GamesCreated    int           `json:"games_created"`
	GamesMatched    int           `json:"games_matched"`
	KickoffsUpdated int           `json:"kickoffs_updated"`
	LinesUpserted   int           `json:"lines_upserted"`
	UnknownWeek     int           `json:"unknown_week"`
	Duration        time.Duration `json:"duration"`
}

// ScoreStats summarizes a score fetch.
type ScoreStats struct {
	Skipped     bool `json:"skipped"`
	EventsSeen  int  `json:"events_seen"`
	GamesScored int  `json:"games_scored"`
	Unmatched   int  `json:"unmatched"`
}

// Pipeline reconciles the feed's view of the schedule with the store.
type Pipeline struct {
	feed     OddsFeed
	games    GameStore
	lines    LineStore
	matcher  *match.Matcher
	calendar *season.Calendar
	opts     Options

	// mu serializes runs; scheduled and admin-triggered runs can overlap.
	mu sync.Mutex

	// statsMu guards the cumulative counters; Status reads them while a run
	// may still be writing.
	statsMu      sync.Mutex
	totalUpdates int64
	lastRunTime  time.Time
}

// NewPipeline creates a reconciliation pipeline.
func NewPipeline(oddsFeed OddsFeed, games GameStore, lines LineStore, matcher *match.Matcher, calendar *season.Calendar, opts Options) *Pipeline {
	if opts.MaxWeeksPerUpdate <= 0 {
		opts.MaxWeeksPerUpdate = 2
	}
	return &Pipeline{
		feed:     oddsFeed,
		games:    games,
		lines:    lines,
		matcher:  matcher,
		calendar: calendar,
		opts:     opts,
	}
}

// IsFeedConfigured reports whether odds fetching is possible at all.
func (p *Pipeline) IsFeedConfigured() bool {
	return p.feed.Configured()
}

// NeedsUpdate reports whether stored lines are older than the refresh
// interval. An empty store always needs an update.
func (p *Pipeline) NeedsUpdate(ctx context.Context) (bool, error) {
	latest, err := p.lines.LatestUpdate(ctx)
	if err != nil {
		return false, err
	}
	if latest.IsZero() {
		return true, nil
	}
	return time.Since(latest) >= p.opts.OddsUpdateInterval, nil
}

// ReconcileWeek fetches current odds and reconciles the events belonging to
// the given week.
func (p *Pipeline) ReconcileWeek(ctx context.Context, week int) (*Stats, error) {
	return p.run(ctx, "week", func(ctx context.Context, stats *Stats) error {
		events, err := p.feed.FetchOdds(ctx)
		if err != nil {
			return err
		}
		byWeek := p.groupByWeek(events, stats)
		return p.reconcileWeek(ctx, week, byWeek[week], stats)
	})
}

// ReconcileAll fetches current odds and reconciles every event the feed
// reports, whatever week it lands in.
func (p *Pipeline) ReconcileAll(ctx context.Context) (*Stats, error) {
	return p.run(ctx, "all", func(ctx context.Context, stats *Stats) error {
		events, err := p.feed.FetchOdds(ctx)
		if err != nil {
			return err
		}
		byWeek := p.groupByWeek(events, stats)
		for week := 0; week <= models.WeekPostseason; week++ {
			if len(byWeek[week]) == 0 {
				continue
			}
			if err := p.reconcileWeek(ctx, week, byWeek[week], stats); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReconcileUpcoming reconciles the current week and the weeks after it, up
// to the configured limit. This is the scheduler's baseline run.
func (p *Pipeline) ReconcileUpcoming(ctx context.Context, now time.Time) (*Stats, error) {
	return p.run(ctx, "upcoming", func(ctx context.Context, stats *Stats) error {
		events, err := p.feed.FetchOdds(ctx)
		if err != nil {
			return err
		}
		byWeek := p.groupByWeek(events, stats)

		current := p.calendar.CurrentWeek(now)
		for i := 0; i < p.opts.MaxWeeksPerUpdate; i++ {
			week := current + i
			if week > p.calendar.RegularWeeks() {
				break
			}
			if i > 0 && p.opts.WeekFetchDelay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(p.opts.WeekFetchDelay):
				}
			}
			if err := p.reconcileWeek(ctx, week, byWeek[week], stats); err != nil {
				return err
			}
		}
		return nil
	})
}

// run wraps a reconciliation body with the run guard, timing, and metrics.
func (p *Pipeline) run(ctx context.Context, scope string, body func(context.Context, *Stats) error) (*Stats, error) {
	if !p.feed.Configured() {
		return nil, feed.ErrNotConfigured
	}
	if !p.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.mu.Unlock()

	start := time.Now()
	stats := &Stats{}

	err := body(ctx, stats)
	stats.Duration = time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		metrics.RecordError("reconcile", "run_failed")
	}
	metrics.RecordReconcileRun(scope, status, stats.Duration.Seconds())

	if err != nil {
		return nil, fmt.Errorf("reconciliation failed: %w", err)
	}

	p.statsMu.Lock()
	p.totalUpdates++
	p.lastRunTime = time.Now()
	p.statsMu.Unlock()

	log.Info().
		Str("scope", scope).
		Int("weeks", stats.WeeksProcessed).
		Int("created", stats.GamesCreated).
		Int("matched", stats.GamesMatched).
		Int("lines", stats.LinesUpserted).
		Int("unknown_week", stats.UnknownWeek).
		Dur("duration", stats.Duration).
		Msg("Reconciliation run complete")

	return stats, nil
}

// groupByWeek buckets feed events by inferred week. Events whose kickoff
// cannot be placed in a week are counted and dropped, never fatal.
func (p *Pipeline) groupByWeek(events []feed.Event, stats *Stats) map[int][]feed.Event {
	byWeek := make(map[int][]feed.Event)
	for _, ev := range events {
		week, err := p.calendar.InferWeek(ev.CommenceTime)
		if err != nil {
			stats.UnknownWeek++
			metrics.RecordUnknownWeekGame()
			log.Warn().
				Str("home", ev.HomeTeam).
				Str("away", ev.AwayTeam).
				Time("kickoff", ev.CommenceTime).
				Msg("Skipping game with undeterminable week")
			continue
		}
		byWeek[week] = append(byWeek[week], ev)
	}
	return byWeek
}

func (p *Pipeline) reconcileWeek(ctx context.Context, week int, events []feed.Event, stats *Stats) error {
	stats.WeeksProcessed++

	for _, ev := range events {
		if err := p.processEvent(ctx, week, ev, stats); err != nil {
			return err
		}
	}

	log.Debug().Int("week", week).Int("events", len(events)).Msg("Week reconciled")
	return nil
}

// processEvent resolves one feed event to a stored game, creating it when
// missing, then refreshes its betting line.
func (p *Pipeline) processEvent(ctx context.Context, week int, ev feed.Event, stats *Stats) error {
	ext := models.ExternalGame{
		HomeTeam:    ev.HomeTeam,
		AwayTeam:    ev.AwayTeam,
		KickoffTime: ev.CommenceTime,
	}

	game, strategy, err := p.matcher.Resolve(ctx, week, ext)
	if err != nil {
		return err
	}

	if game != nil {
		stats.GamesMatched++
		metrics.RecordGameMatched(strategy)

		if !game.KickoffTime.Equal(ev.CommenceTime) {
			if err := p.games.UpdateKickoff(ctx, game.ID, ev.CommenceTime); err != nil {
				return err
			}
			stats.KickoffsUpdated++
			log.Info().
				Int64("game_id", game.ID).
				Time("from", game.KickoffTime).
				Time("to", ev.CommenceTime).
				Msg("Kickoff time updated")
		}
	} else {
		var created bool
		game, created, err = p.createGame(ctx, week, ext)
		if err != nil {
			return err
		}
		if created {
			stats.GamesCreated++
			metrics.RecordGameCreated()
		} else {
			stats.GamesMatched++
		}
	}

	return p.upsertLine(ctx, game, ev, stats)
}

// createGame inserts a new game for the feed event. The matcher's view of
// the week can be stale under concurrent runs, so the tuple is re-checked
// in both orientations right before the insert. A unique violation still
// slipping through means another run inserted the same tuple first; the row
// is re-read instead of failing the run.
func (p *Pipeline) createGame(ctx context.Context, week int, ext models.ExternalGame) (*models.Game, bool, error) {
	for _, pair := range [][2]string{
		{ext.HomeTeam, ext.AwayTeam},
		{ext.AwayTeam, ext.HomeTeam},
	} {
		existing, err := p.games.FindByTuple(ctx, week, pair[0], pair[1])
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			log.Debug().
				Int64("game_id", existing.ID).
				Msg("Game appeared since matching, reusing existing row")
			return existing, false, nil
		}
	}

	game := &models.Game{
		Week:        week,
		HomeTeam:    ext.HomeTeam,
		AwayTeam:    ext.AwayTeam,
		KickoffTime: ext.KickoffTime,
	}

	err := p.games.Create(ctx, game)
	if err == nil {
		log.Info().
			Int("week", week).
			Str("home", game.HomeTeam).
			Str("away", game.AwayTeam).
			Time("kickoff", game.KickoffTime).
			Msg("Game created from feed")
		return game, true, nil
	}

	if errors.Is(err, repository.ErrDuplicateGame) {
		existing, lookupErr := p.games.FindByTuple(ctx, week, ext.HomeTeam, ext.AwayTeam)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		if existing != nil {
			log.Debug().
				Int64("game_id", existing.ID).
				Msg("Concurrent insert detected, reusing existing game")
			return existing, false, nil
		}
	}

	return nil, false, err
}

// upsertLine refreshes the game's betting line from the event's first
// spreads market. Events without spreads leave existing lines untouched.
func (p *Pipeline) upsertLine(ctx context.Context, game *models.Game, ev feed.Event, stats *Stats) error {
	book, market := ev.SpreadsMarket()
	if market == nil {
		log.Debug().
			Int64("game_id", game.ID).
			Msg("No spreads market posted yet")
		return nil
	}
	if book == "" {
		book = p.opts.Sportsbook
	}

	ext := models.ExternalGame{HomeTeam: ev.HomeTeam, AwayTeam: ev.AwayTeam}
	line, ok := buildLine(game, ev, book, market, p.matcher.SameOrientation(game, ext))
	if !ok {
		log.Warn().
			Int64("game_id", game.ID).
			Str("sportsbook", book).
			Msg("Spreads market unusable, outcomes do not cover both teams")
		return nil
	}

	if err := p.lines.Upsert(ctx, line); err != nil {
		return err
	}
	stats.LinesUpserted++
	metrics.RecordLineUpserted()
	return nil
}

// CleanupStaleLines removes lines on played games that have not been
// refreshed within the retention window.
func (p *Pipeline) CleanupStaleLines(ctx context.Context) (int64, error) {
	deleted, err := p.lines.DeleteStale(ctx, p.opts.StaleLineAge)
	if err != nil {
		metrics.RecordError("reconcile", "cleanup_failed")
		return 0, err
	}
	metrics.RecordStaleLinesDeleted(deleted)
	return deleted, nil
}
