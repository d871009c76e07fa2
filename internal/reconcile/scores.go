package reconcile

import (
	"context"
	"time"

	"nflpickem/reconciler/internal/feed"
	"nflpickem/reconciler/internal/metrics"
	"nflpickem/reconciler/internal/models"

	"github.com/rs/zerolog/log"
)

// ScoreResult is one winner determination: the stored game a completed feed
// event resolved to, with final scores in the stored game's orientation.
type ScoreResult struct {
	Game      *models.Game `json:"game"`
	Winner    string       `json:"winner"`
	HomeScore int          `json:"home_score"`
	AwayScore int          `json:"away_score"`
}

// FetchScores pulls recent results from the feed and returns winner
// determinations for stored games. It writes nothing; recording results is
// ApplyScores. It holds off entirely until shortly before the earliest
// unscored kickoff so off-day polls cost nothing.
func (p *Pipeline) FetchScores(ctx context.Context) ([]ScoreResult, error) {
	results, _, err := p.determineScores(ctx)
	return results, err
}

// SyncScores fetches winner determinations and records them on the store.
// This is what the scheduler and the admin API run.
func (p *Pipeline) SyncScores(ctx context.Context) (*ScoreStats, error) {
	results, stats, err := p.determineScores(ctx)
	if err != nil {
		return nil, err
	}
	if stats.Skipped {
		return stats, nil
	}

	applied, err := p.ApplyScores(ctx, results)
	if err != nil {
		return nil, err
	}
	stats.GamesScored = applied

	return stats, nil
}

// ApplyScores records winner determinations on the store and returns how
// many games were marked.
func (p *Pipeline) ApplyScores(ctx context.Context, results []ScoreResult) (int, error) {
	applied := 0
	for _, res := range results {
		if err := p.games.MarkScored(ctx, res.Game.ID, res.Winner); err != nil {
			return applied, err
		}
		applied++
		metrics.RecordGameScored()

		log.Info().
			Int64("game_id", res.Game.ID).
			Str("winner", res.Winner).
			Int("home_score", res.HomeScore).
			Int("away_score", res.AwayScore).
			Msg("Final result recorded")
	}
	return applied, nil
}

func (p *Pipeline) determineScores(ctx context.Context) ([]ScoreResult, *ScoreStats, error) {
	if !p.feed.Configured() {
		return nil, nil, feed.ErrNotConfigured
	}

	stats := &ScoreStats{}

	unscored, err := p.games.ListUnscored(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(unscored) == 0 {
		stats.Skipped = true
		log.Debug().Msg("No unscored games, skipping score fetch")
		return nil, stats, nil
	}

	if time.Until(unscored[0].KickoffTime) > scoreLeadTime {
		stats.Skipped = true
		log.Debug().
			Time("first_kickoff", unscored[0].KickoffTime).
			Msg("Earliest unscored kickoff too far out, skipping score fetch")
		return nil, stats, nil
	}

	events, err := p.feed.FetchScores(ctx)
	if err != nil {
		metrics.RecordError("scores", "fetch_failed")
		return nil, nil, err
	}
	stats.EventsSeen = len(events)

	var results []ScoreResult
	for _, ev := range events {
		if !bool(ev.Completed) {
			continue
		}

		home, away, ok := ev.Result()
		if !ok {
			log.Warn().
				Str("home", ev.HomeTeam).
				Str("away", ev.AwayTeam).
				Msg("Completed game reported without usable scores")
			continue
		}

		ext := models.ExternalGame{
			HomeTeam:    ev.HomeTeam,
			AwayTeam:    ev.AwayTeam,
			KickoffTime: ev.CommenceTime,
		}
		game, _, err := p.matcher.ResolveAny(ctx, ext)
		if err != nil {
			return nil, nil, err
		}
		if game == nil {
			stats.Unmatched++
			log.Warn().
				Str("home", ev.HomeTeam).
				Str("away", ev.AwayTeam).
				Msg("Completed game not found in store")
			continue
		}
		if game.Scored {
			continue
		}

		// Orientation may be reversed relative to the store; swap the
		// scores so the winner maps to stored names.
		if !p.matcher.SameOrientation(game, ext) {
			home, away = away, home
		}

		winner := models.WinnerTie
		switch {
		case home > away:
			winner = game.HomeTeam
		case away > home:
			winner = game.AwayTeam
		}

		results = append(results, ScoreResult{
			Game:      game,
			Winner:    winner,
			HomeScore: home,
			AwayScore: away,
		})
	}

	return results, stats, nil
}
