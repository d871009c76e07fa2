package reconcile

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"nflpickem/reconciler/internal/feed"
	"nflpickem/reconciler/internal/match"
	"nflpickem/reconciler/internal/models"
	"nflpickem/reconciler/internal/repository"
	"nflpickem/reconciler/internal/season"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	events     []feed.Event
	scores     []feed.ScoreEvent
	configured bool
	oddsCalls  int
	scoreCalls int
}

func (f *fakeFeed) FetchOdds(context.Context) ([]feed.Event, error) {
	f.oddsCalls++
	return f.events, nil
}

func (f *fakeFeed) FetchScores(context.Context) ([]feed.ScoreEvent, error) {
	f.scoreCalls++
	return f.scores, nil
}

func (f *fakeFeed) Configured() bool       { return f.configured }
func (f *fakeFeed) QuotaState() feed.Quota { return feed.Quota{Remaining: "400", Used: "100"} }

type fakeGames struct {
	games  []*models.Game
	nextID int64
}

func (s *fakeGames) find(match func(*models.Game) bool) *models.Game {
	for _, g := range s.games {
		if match(g) {
			return g
		}
	}
	return nil
}

func (s *fakeGames) FindByTuple(_ context.Context, week int, home, away string) (*models.Game, error) {
	return s.find(func(g *models.Game) bool {
		return g.Week == week && g.HomeTeam == home && g.AwayTeam == away
	}), nil
}

func (s *fakeGames) FindByTeams(_ context.Context, home, away string) (*models.Game, error) {
	return s.find(func(g *models.Game) bool {
		return g.HomeTeam == home && g.AwayTeam == away
	}), nil
}

func (s *fakeGames) ListByWeek(_ context.Context, week int) ([]*models.Game, error) {
	var out []*models.Game
	for _, g := range s.games {
		if g.Week == week {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *fakeGames) ListAll(context.Context) ([]*models.Game, error) {
	return s.games, nil
}

func (s *fakeGames) ListUnscored(context.Context) ([]*models.Game, error) {
	var out []*models.Game
	for _, g := range s.games {
		if !g.Scored {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KickoffTime.Before(out[j].KickoffTime) })
	return out, nil
}

func (s *fakeGames) Create(_ context.Context, game *models.Game) error {
	if g := s.find(func(g *models.Game) bool {
		return g.Week == game.Week && g.HomeTeam == game.HomeTeam && g.AwayTeam == game.AwayTeam
	}); g != nil {
		return repository.ErrDuplicateGame
	}
	s.nextID++
	game.ID = s.nextID
	s.games = append(s.games, game)
	return nil
}

func (s *fakeGames) UpdateKickoff(_ context.Context, id int64, kickoff time.Time) error {
	g := s.find(func(g *models.Game) bool { return g.ID == id })
	if g == nil {
		return repository.ErrDuplicateGame
	}
	g.KickoffTime = kickoff
	return nil
}

func (s *fakeGames) MarkScored(_ context.Context, id int64, winner string) error {
	g := s.find(func(g *models.Game) bool { return g.ID == id })
	g.WinningTeam = winner
	g.Scored = true
	return nil
}

func (s *fakeGames) Count(context.Context) (int, error) { return len(s.games), nil }

func (s *fakeGames) Weeks(context.Context) ([]int, error) {
	seen := map[int]bool{}
	var weeks []int
	for _, g := range s.games {
		if !seen[g.Week] {
			seen[g.Week] = true
			weeks = append(weeks, g.Week)
		}
	}
	sort.Ints(weeks)
	return weeks, nil
}

type fakeLines struct {
	lines      map[string]*models.BettingLine
	nextID     int64
	lastUpdate time.Time
	staleAge   time.Duration
}

func (s *fakeLines) key(l *models.BettingLine) string {
	return fmt.Sprintf("%d/%s/%s", l.GameID, l.Sportsbook, l.OddsType)
}

func (s *fakeLines) Upsert(_ context.Context, line *models.BettingLine) error {
	if s.lines == nil {
		s.lines = map[string]*models.BettingLine{}
	}
	if existing, ok := s.lines[s.key(line)]; ok {
		line.ID = existing.ID
	} else {
		s.nextID++
		line.ID = s.nextID
	}
	s.lines[s.key(line)] = line
	s.lastUpdate = time.Now()
	return nil
}

func (s *fakeLines) DeleteStale(_ context.Context, maxAge time.Duration) (int64, error) {
	s.staleAge = maxAge
	return 2, nil
}

func (s *fakeLines) Count(context.Context) (int, error) { return len(s.lines), nil }

func (s *fakeLines) LatestUpdate(context.Context) (time.Time, error) {
	return s.lastUpdate, nil
}

func spreadsEvent(home, away string, kickoff time.Time, homePoint float64) feed.Event {
	awayPoint := -homePoint
	return feed.Event{
		ID:           home + "-" + away,
		CommenceTime: kickoff,
		HomeTeam:     home,
		AwayTeam:     away,
		Bookmakers: []feed.Bookmaker{
			{
				Key: "fanduel",
				Markets: []feed.Market{
					{
						Key: feed.MarketSpreads,
						Outcomes: []feed.Outcome{
							{Name: home, Price: -110, Point: &homePoint},
							{Name: away, Price: -110, Point: &awayPoint},
						},
					},
				},
			},
		},
	}
}

func newTestPipeline(t *testing.T, f *fakeFeed, games GameStore, lines LineStore) *Pipeline {
	t.Helper()
	calendar, err := season.NewCalendar("", 18)
	require.NoError(t, err)
	matcher := match.NewMatcher(games, nil)
	return NewPipeline(f, games, lines, matcher, calendar, Options{
		Sportsbook:         "fanduel",
		MaxWeeksPerUpdate:  2,
		OddsUpdateInterval: 4 * time.Hour,
		StaleLineAge:       96 * time.Hour,
		OddsRefreshCron:    "0 */4 * * *",
		GameDayCron:        "0 * * * THU,SUN,MON",
	})
}

func TestReconcileWeek_CreatesGamesAndLines(t *testing.T) {
	// 2024-09-22 is a week 3 Sunday.
	kickoff := time.Date(2024, 9, 22, 17, 0, 0, 0, time.UTC)
	f := &fakeFeed{
		configured: true,
		events: []feed.Event{
			spreadsEvent("Buffalo Bills", "Miami Dolphins", kickoff, -6.5),
			spreadsEvent("Green Bay Packers", "Chicago Bears", kickoff.Add(3*time.Hour), 2.5),
		},
	}
	games := &fakeGames{}
	lines := &fakeLines{}
	p := newTestPipeline(t, f, games, lines)

	stats, err := p.ReconcileWeek(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.GamesCreated)
	assert.Equal(t, 0, stats.GamesMatched)
	assert.Equal(t, 2, stats.LinesUpserted)
	assert.Len(t, games.games, 2)
	assert.Len(t, lines.lines, 2)

	// Favorite carries the line.
	for _, l := range lines.lines {
		if l.SpreadTeam == "Buffalo Bills" {
			assert.Equal(t, 6.5, l.Spread)
		}
		if l.SpreadTeam == "Chicago Bears" {
			assert.Equal(t, 2.5, l.Spread)
		}
	}
}

func TestReconcileWeek_Idempotent(t *testing.T) {
	kickoff := time.Date(2024, 9, 22, 17, 0, 0, 0, time.UTC)
	f := &fakeFeed{
		configured: true,
		events:     []feed.Event{spreadsEvent("Buffalo Bills", "Miami Dolphins", kickoff, -6.5)},
	}
	games := &fakeGames{}
	lines := &fakeLines{}
	p := newTestPipeline(t, f, games, lines)

	_, err := p.ReconcileWeek(context.Background(), 3)
	require.NoError(t, err)

	stats, err := p.ReconcileWeek(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.GamesCreated)
	assert.Equal(t, 1, stats.GamesMatched)
	assert.Len(t, games.games, 1)
	assert.Len(t, lines.lines, 1)
}

func TestReconcileWeek_KickoffFlexed(t *testing.T) {
	kickoff := time.Date(2024, 12, 15, 18, 0, 0, 0, time.UTC)
	games := &fakeGames{}
	require.NoError(t, games.Create(context.Background(), &models.Game{
		Week: 15, HomeTeam: "Denver Broncos", AwayTeam: "Indianapolis Colts", KickoffTime: kickoff,
	}))

	flexed := kickoff.Add(3 * time.Hour)
	f := &fakeFeed{
		configured: true,
		events:     []feed.Event{spreadsEvent("Denver Broncos", "Indianapolis Colts", flexed, -3)},
	}
	lines := &fakeLines{}
	p := newTestPipeline(t, f, games, lines)

	stats, err := p.ReconcileWeek(context.Background(), 15)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.GamesMatched)
	assert.Equal(t, 1, stats.KickoffsUpdated)
	assert.True(t, games.games[0].KickoffTime.Equal(flexed))
}

func TestReconcileWeek_FuzzyRebrandDoesNotDuplicate(t *testing.T) {
	kickoff := time.Date(2024, 10, 20, 17, 0, 0, 0, time.UTC)
	games := &fakeGames{}
	require.NoError(t, games.Create(context.Background(), &models.Game{
		Week: 7, HomeTeam: "Washington Football Team", AwayTeam: "Dallas Cowboys", KickoffTime: kickoff,
	}))

	f := &fakeFeed{
		configured: true,
		events:     []feed.Event{spreadsEvent("Washington Commanders", "Dallas Cowboys", kickoff, 1.5)},
	}
	lines := &fakeLines{}
	p := newTestPipeline(t, f, games, lines)

	stats, err := p.ReconcileWeek(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.GamesCreated)
	assert.Equal(t, 1, stats.GamesMatched)
	assert.Len(t, games.games, 1)

	// Line refers to stored names, not the feed's.
	for _, l := range lines.lines {
		assert.Equal(t, "Dallas Cowboys", l.SpreadTeam)
	}
}

func TestReconcileWeek_ReversedOrientationLine(t *testing.T) {
	kickoff := time.Date(2024, 9, 22, 17, 0, 0, 0, time.UTC)
	games := &fakeGames{}
	require.NoError(t, games.Create(context.Background(), &models.Game{
		Week: 3, HomeTeam: "Buffalo Bills", AwayTeam: "Miami Dolphins", KickoffTime: kickoff,
	}))

	// Feed reports the same game with home and away swapped; Miami is the
	// favorite at -3.
	f := &fakeFeed{
		configured: true,
		events:     []feed.Event{spreadsEvent("Miami Dolphins", "Buffalo Bills", kickoff, -3)},
	}
	lines := &fakeLines{}
	p := newTestPipeline(t, f, games, lines)

	stats, err := p.ReconcileWeek(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.GamesMatched)
	assert.Len(t, games.games, 1)
	require.Len(t, lines.lines, 1)

	for _, l := range lines.lines {
		assert.Equal(t, "Miami Dolphins", l.SpreadTeam)
		assert.Equal(t, 3.0, l.Spread)
	}
}

func TestReconcileAll_GroupsEventsByWeek(t *testing.T) {
	week3 := time.Date(2024, 9, 22, 17, 0, 0, 0, time.UTC)
	week4 := week3.Add(7 * 24 * time.Hour)
	f := &fakeFeed{
		configured: true,
		events: []feed.Event{
			spreadsEvent("Buffalo Bills", "Miami Dolphins", week3, -6.5),
			spreadsEvent("Dallas Cowboys", "New York Giants", week4, -3),
		},
	}
	games := &fakeGames{}
	lines := &fakeLines{}
	p := newTestPipeline(t, f, games, lines)

	stats, err := p.ReconcileAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.WeeksProcessed)
	assert.Equal(t, 2, stats.GamesCreated)
	assert.Equal(t, 1, f.oddsCalls, "one feed call covers every week")

	weeks, _ := games.Weeks(context.Background())
	assert.Equal(t, []int{3, 4}, weeks)
}

func TestReconcileUpcoming_BoundedByMaxWeeks(t *testing.T) {
	now := time.Date(2024, 9, 18, 12, 0, 0, 0, time.UTC) // week 2
	week2 := time.Date(2024, 9, 15, 17, 0, 0, 0, time.UTC)
	f := &fakeFeed{
		configured: true,
		events: []feed.Event{
			spreadsEvent("Buffalo Bills", "Miami Dolphins", week2.Add(7*24*time.Hour), -6.5),           // week 3
			spreadsEvent("Dallas Cowboys", "New York Giants", week2.Add(14*24*time.Hour), -3),          // week 4
			spreadsEvent("Green Bay Packers", "Chicago Bears", week2.Add(21*24*time.Hour), 2.5),        // week 5
		},
	}
	games := &fakeGames{}
	p := newTestPipeline(t, f, games, &fakeLines{})

	stats, err := p.ReconcileUpcoming(context.Background(), now)
	require.NoError(t, err)

	// Current week and the next, nothing beyond.
	assert.Equal(t, 2, stats.WeeksProcessed)
	assert.Equal(t, 1, stats.GamesCreated)
	assert.Len(t, games.games, 1)
	assert.Equal(t, 3, games.games[0].Week)
}

func TestReconcile_NotConfigured(t *testing.T) {
	p := newTestPipeline(t, &fakeFeed{configured: false}, &fakeGames{}, &fakeLines{})

	_, err := p.ReconcileAll(context.Background())
	assert.ErrorIs(t, err, feed.ErrNotConfigured)
}

func TestReconcile_RunGuard(t *testing.T) {
	p := newTestPipeline(t, &fakeFeed{configured: true}, &fakeGames{}, &fakeLines{})

	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.ReconcileAll(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestNeedsUpdate(t *testing.T) {
	lines := &fakeLines{}
	p := newTestPipeline(t, &fakeFeed{configured: true}, &fakeGames{}, lines)

	needs, err := p.NeedsUpdate(context.Background())
	require.NoError(t, err)
	assert.True(t, needs, "empty store always needs an update")

	lines.lastUpdate = time.Now()
	needs, err = p.NeedsUpdate(context.Background())
	require.NoError(t, err)
	assert.False(t, needs)

	lines.lastUpdate = time.Now().Add(-5 * time.Hour)
	needs, err = p.NeedsUpdate(context.Background())
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestCleanupStaleLines(t *testing.T) {
	lines := &fakeLines{}
	p := newTestPipeline(t, &fakeFeed{configured: true}, &fakeGames{}, lines)

	deleted, err := p.CleanupStaleLines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, 96*time.Hour, lines.staleAge)
}

func TestStatus(t *testing.T) {
	games := &fakeGames{}
	require.NoError(t, games.Create(context.Background(), &models.Game{
		Week: 3, HomeTeam: "Buffalo Bills", AwayTeam: "Miami Dolphins",
	}))
	lines := &fakeLines{}
	p := newTestPipeline(t, &fakeFeed{configured: true}, games, lines)

	status, err := p.Status(context.Background())
	require.NoError(t, err)

	assert.True(t, status.FeedConfigured)
	assert.Equal(t, 1, status.GamesStored)
	assert.Equal(t, []int{3}, status.Weeks)
	assert.True(t, status.NeedsUpdate)
	assert.Nil(t, status.LastLineUpdate)
	assert.Equal(t, "400", status.QuotaRemaining)

	// No run has happened yet.
	assert.Equal(t, int64(0), status.TotalUpdates)
	assert.Nil(t, status.LastRunTime)
	assert.Equal(t, "0 */4 * * *", status.OddsRefreshCron)
	assert.Equal(t, "0 * * * THU,SUN,MON", status.GameDayCron)
	assert.Equal(t, 2, status.MaxWeeksPerUpdate)
}

func TestStatus_TracksRunCounters(t *testing.T) {
	kickoff := time.Date(2024, 9, 22, 17, 0, 0, 0, time.UTC)
	f := &fakeFeed{
		configured: true,
		events:     []feed.Event{spreadsEvent("Buffalo Bills", "Miami Dolphins", kickoff, -6.5)},
	}
	p := newTestPipeline(t, f, &fakeGames{}, &fakeLines{})

	_, err := p.ReconcileWeek(context.Background(), 3)
	require.NoError(t, err)
	_, err = p.ReconcileWeek(context.Background(), 3)
	require.NoError(t, err)

	status, err := p.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), status.TotalUpdates)
	require.NotNil(t, status.LastRunTime)
	assert.WithinDuration(t, time.Now(), *status.LastRunTime, time.Minute)
}

func TestCreateGame_ReusesReversedTupleBeforeInsert(t *testing.T) {
	kickoff := time.Date(2024, 9, 22, 17, 0, 0, 0, time.UTC)
	games := &fakeGames{}
	require.NoError(t, games.Create(context.Background(), &models.Game{
		Week: 3, HomeTeam: "Miami Dolphins", AwayTeam: "Buffalo Bills", KickoffTime: kickoff,
	}))
	p := newTestPipeline(t, &fakeFeed{configured: true}, games, &fakeLines{})

	// Simulates the stored game appearing between the matcher's lookup and
	// the insert, with home and away swapped.
	game, created, err := p.createGame(context.Background(), 3, models.ExternalGame{
		HomeTeam: "Buffalo Bills", AwayTeam: "Miami Dolphins", KickoffTime: kickoff,
	})
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, int64(1), game.ID)
	assert.Len(t, games.games, 1)
}
