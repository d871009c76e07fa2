// Package match resolves feed-reported games to stored game records. An
// ordered cascade of strategies runs cheapest-and-most-confident first;
// fuzzy name comparison is the last line of defense against upstream
// name-format drift, never the primary path.
package match

import (
	"context"
	"time"

	"nflpickem/reconciler/internal/models"

	"github.com/rs/zerolog/log"
)

// Strategy names, reported alongside a successful resolution.
const (
	StrategyExact      = "exact"
	StrategyReversed   = "reversed"
	StrategyTimeWindow = "time_window"
	StrategyFuzzy      = "fuzzy"
)

// timeWindow is how far a stored kickoff may drift from the reported one and
// still be the same game. Anything beyond it is treated as a different game
// (a flex that moved days, or a rematch).
const timeWindow = 2 * time.Hour

// Store is the read surface the matcher needs from the game repository.
// Lookups that find nothing return (nil, nil).
type Store interface {
	FindByTuple(ctx context.Context, week int, homeTeam, awayTeam string) (*models.Game, error)
	FindByTeams(ctx context.Context, homeTeam, awayTeam string) (*models.Game, error)
	ListByWeek(ctx context.Context, week int) ([]*models.Game, error)
	ListAll(ctx context.Context) ([]*models.Game, error)
}

type strategy struct {
	name string
	fn   func(ctx context.Context, week int, ext models.ExternalGame) (*models.Game, error)
}

// Matcher resolves externally reported games against the store.
type Matcher struct {
	store      Store
	names      *Normalizer
	strategies []strategy
}

// NewMatcher creates a matcher over the given store. cityPrefixes is the
// gazetteer of multi-word city prefixes used during fuzzy comparison; pass
// nil to use the built-in list.
func NewMatcher(store Store, cityPrefixes []string) *Matcher {
	m := &Matcher{
		store: store,
		names: NewNormalizer(cityPrefixes),
	}

	m.strategies = []strategy{
		{StrategyExact, m.exactMatch},
		{StrategyReversed, m.reversedMatch},
		{StrategyTimeWindow, m.timeWindowMatch},
		{StrategyFuzzy, m.fuzzyWeekMatch},
	}

	return m
}

// Resolve attempts to find the stored game matching ext within the given
// week. It returns (nil, "", nil) when no strategy matches; the caller then
// creates a new game.
func (m *Matcher) Resolve(ctx context.Context, week int, ext models.ExternalGame) (*models.Game, string, error) {
	for _, s := range m.strategies {
		game, err := s.fn(ctx, week, ext)
		if err != nil {
			return nil, "", err
		}
		if game != nil {
			log.Debug().
				Str("strategy", s.name).
				Int("week", week).
				Str("home", ext.HomeTeam).
				Str("away", ext.AwayTeam).
				Msg("Resolved external game")
			return game, s.name, nil
		}
	}

	return nil, "", nil
}

// ResolveAny matches ext against the whole store without week scoping. The
// score feed does not report weeks, so the cascade here is exact, reversed,
// then fuzzy over all stored games.
func (m *Matcher) ResolveAny(ctx context.Context, ext models.ExternalGame) (*models.Game, string, error) {
	game, err := m.store.FindByTeams(ctx, ext.HomeTeam, ext.AwayTeam)
	if err != nil {
		return nil, "", err
	}
	if game != nil {
		return game, StrategyExact, nil
	}

	game, err = m.store.FindByTeams(ctx, ext.AwayTeam, ext.HomeTeam)
	if err != nil {
		return nil, "", err
	}
	if game != nil {
		return game, StrategyReversed, nil
	}

	games, err := m.store.ListAll(ctx)
	if err != nil {
		return nil, "", err
	}
	if game := m.fuzzyScan(games, ext); game != nil {
		return game, StrategyFuzzy, nil
	}

	return nil, "", nil
}

// SameOrientation reports whether ext's home side corresponds to the stored
// game's home side. Callers use it to reorient per-side data (scores, odds)
// after a match in either direction.
func (m *Matcher) SameOrientation(g *models.Game, ext models.ExternalGame) bool {
	return m.names.FuzzyMatch(g.HomeTeam, ext.HomeTeam)
}

func (m *Matcher) exactMatch(ctx context.Context, week int, ext models.ExternalGame) (*models.Game, error) {
	return m.store.FindByTuple(ctx, week, ext.HomeTeam, ext.AwayTeam)
}

// reversedMatch defends against home/away swaps in either source.
func (m *Matcher) reversedMatch(ctx context.Context, week int, ext models.ExternalGame) (*models.Game, error) {
	return m.store.FindByTuple(ctx, week, ext.AwayTeam, ext.HomeTeam)
}

// timeWindowMatch finds a stored game for the week whose team pair matches in
// either order and whose kickoff lies within the drift window.
func (m *Matcher) timeWindowMatch(ctx context.Context, week int, ext models.ExternalGame) (*models.Game, error) {
	games, err := m.store.ListByWeek(ctx, week)
	if err != nil {
		return nil, err
	}

	extHome := m.names.Normalize(ext.HomeTeam)
	extAway := m.names.Normalize(ext.AwayTeam)

	for _, g := range games {
		home := m.names.Normalize(g.HomeTeam)
		away := m.names.Normalize(g.AwayTeam)

		samePair := (home == extHome && away == extAway) || (home == extAway && away == extHome)
		if !samePair {
			continue
		}

		drift := g.KickoffTime.Sub(ext.KickoffTime)
		if drift < 0 {
			drift = -drift
		}
		if drift <= timeWindow {
			return g, nil
		}
	}

	return nil, nil
}

func (m *Matcher) fuzzyWeekMatch(ctx context.Context, week int, ext models.ExternalGame) (*models.Game, error) {
	games, err := m.store.ListByWeek(ctx, week)
	if err != nil {
		return nil, err
	}
	return m.fuzzyScan(games, ext), nil
}

// fuzzyScan applies fuzzy name comparison to both orientations of every
// candidate.
func (m *Matcher) fuzzyScan(games []*models.Game, ext models.ExternalGame) *models.Game {
	for _, g := range games {
		if m.names.FuzzyMatch(g.HomeTeam, ext.HomeTeam) && m.names.FuzzyMatch(g.AwayTeam, ext.AwayTeam) {
			return g
		}
		if m.names.FuzzyMatch(g.HomeTeam, ext.AwayTeam) && m.names.FuzzyMatch(g.AwayTeam, ext.HomeTeam) {
			return g
		}
	}
	return nil
}
