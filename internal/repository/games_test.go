package repository

import (
	"testing"
	"time"

	"nflpickem/reconciler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGame(week int, home, away string, kickoff time.Time) *models.Game {
	return &models.Game{
		Week:        week,
		HomeTeam:    home,
		AwayTeam:    away,
		KickoffTime: kickoff,
	}
}

func TestGameCreateAndFind(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	kickoff := time.Date(2024, 9, 22, 17, 0, 0, 0, time.UTC)
	game := testGame(3, "Buffalo Bills", "Miami Dolphins", kickoff)

	require.NoError(t, db.Games.Create(ctx, game))
	assert.NotZero(t, game.ID)
	assert.False(t, game.Scored)

	found, err := db.Games.FindByTuple(ctx, 3, "Buffalo Bills", "Miami Dolphins")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, game.ID, found.ID)
	assert.True(t, found.KickoffTime.Equal(kickoff))

	missing, err := db.Games.FindByTuple(ctx, 4, "Buffalo Bills", "Miami Dolphins")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGameCreate_Duplicate(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	kickoff := time.Date(2024, 9, 22, 17, 0, 0, 0, time.UTC)
	require.NoError(t, db.Games.Create(ctx, testGame(3, "Buffalo Bills", "Miami Dolphins", kickoff)))

	err := db.Games.Create(ctx, testGame(3, "Buffalo Bills", "Miami Dolphins", kickoff.Add(time.Hour)))
	assert.ErrorIs(t, err, ErrDuplicateGame)
}

func TestGameFindByTeams_PrefersLatest(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	early := time.Date(2024, 9, 15, 17, 0, 0, 0, time.UTC)
	late := time.Date(2024, 11, 17, 18, 0, 0, 0, time.UTC)
	require.NoError(t, db.Games.Create(ctx, testGame(2, "Buffalo Bills", "Miami Dolphins", early)))
	require.NoError(t, db.Games.Create(ctx, testGame(11, "Buffalo Bills", "Miami Dolphins", late)))

	found, err := db.Games.FindByTeams(ctx, "Buffalo Bills", "Miami Dolphins")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 11, found.Week)
}

func TestGameUpdateKickoff(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	kickoff := time.Date(2024, 12, 15, 18, 0, 0, 0, time.UTC)
	game := testGame(15, "Denver Broncos", "Indianapolis Colts", kickoff)
	require.NoError(t, db.Games.Create(ctx, game))

	flexed := kickoff.Add(3 * time.Hour)
	require.NoError(t, db.Games.UpdateKickoff(ctx, game.ID, flexed))

	found, err := db.Games.GetByID(ctx, game.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.KickoffTime.Equal(flexed))

	assert.Error(t, db.Games.UpdateKickoff(ctx, game.ID+999, flexed))
}

func TestGameMarkScored(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	game := testGame(1, "Kansas City Chiefs", "Baltimore Ravens", time.Date(2024, 9, 6, 0, 20, 0, 0, time.UTC))
	require.NoError(t, db.Games.Create(ctx, game))

	require.NoError(t, db.Games.MarkScored(ctx, game.ID, "Kansas City Chiefs"))

	found, err := db.Games.GetByID(ctx, game.ID)
	require.NoError(t, err)
	assert.True(t, found.Scored)
	assert.Equal(t, "Kansas City Chiefs", found.WinningTeam)

	unscored, err := db.Games.ListUnscored(ctx)
	require.NoError(t, err)
	assert.Empty(t, unscored)
}

func TestGameListByWeekAndWeeks(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	base := time.Date(2024, 9, 22, 17, 0, 0, 0, time.UTC)
	require.NoError(t, db.Games.Create(ctx, testGame(3, "Buffalo Bills", "Miami Dolphins", base)))
	require.NoError(t, db.Games.Create(ctx, testGame(3, "Green Bay Packers", "Chicago Bears", base.Add(3*time.Hour))))
	require.NoError(t, db.Games.Create(ctx, testGame(4, "Dallas Cowboys", "New York Giants", base.Add(7*24*time.Hour))))

	week3, err := db.Games.ListByWeek(ctx, 3)
	require.NoError(t, err)
	require.Len(t, week3, 2)
	assert.Equal(t, "Buffalo Bills", week3[0].HomeTeam, "ordered by kickoff")

	weeks, err := db.Games.Weeks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, weeks)

	count, err := db.Games.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
