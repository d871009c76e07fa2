package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nflpickem/reconciler/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// ErrDuplicateGame is returned by Create when a game with the same
// (week, home_team, away_team) tuple already exists.
var ErrDuplicateGame = errors.New("game already exists")

const gameColumns = `id, week, home_team, away_team, kickoff_time, winning_team, scored, created_at, updated_at`

// GameRepository handles game database operations
type GameRepository struct {
	db *Database
}

func scanGame(row pgx.Row) (*models.Game, error) {
	var game models.Game
	err := row.Scan(
		&game.ID, &game.Week, &game.HomeTeam, &game.AwayTeam, &game.KickoffTime,
		&game.WinningTeam, &game.Scored, &game.CreatedAt, &game.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// Create inserts a new game. A concurrent insert of the same tuple surfaces
// as ErrDuplicateGame so the caller can re-read instead of failing the run.
func (r *GameRepository) Create(ctx context.Context, game *models.Game) error {
	query := `
		INSERT INTO games (week, home_team, away_team, kickoff_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id, winning_team, scored, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(
		ctx, query,
		game.Week, game.HomeTeam, game.AwayTeam, game.KickoffTime,
	).Scan(&game.ID, &game.WinningTeam, &game.Scored, &game.CreatedAt, &game.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: week=%d home=%s away=%s", ErrDuplicateGame, game.Week, game.HomeTeam, game.AwayTeam)
		}
		return fmt.Errorf("failed to create game: %w", err)
	}

	log.Debug().
		Int64("id", game.ID).
		Int("week", game.Week).
		Str("home", game.HomeTeam).
		Str("away", game.AwayTeam).
		Msg("Game created")

	return nil
}

// FindByTuple retrieves the game with the exact (week, home, away) tuple.
// Returns (nil, nil) when no such game exists.
func (r *GameRepository) FindByTuple(ctx context.Context, week int, homeTeam, awayTeam string) (*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE week = $1 AND home_team = $2 AND away_team = $3
	`

	game, err := scanGame(r.db.Pool.QueryRow(ctx, query, week, homeTeam, awayTeam))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find game: %w", err)
	}

	return game, nil
}

// FindByTeams retrieves the most recent game between the two teams in this
// orientation, regardless of week. Returns (nil, nil) when none exists.
func (r *GameRepository) FindByTeams(ctx context.Context, homeTeam, awayTeam string) (*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE home_team = $1 AND away_team = $2
		ORDER BY kickoff_time DESC
		LIMIT 1
	`

	game, err := scanGame(r.db.Pool.QueryRow(ctx, query, homeTeam, awayTeam))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find game by teams: %w", err)
	}

	return game, nil
}

// GetByID retrieves a game by its database ID. Returns (nil, nil) when the
// game does not exist.
func (r *GameRepository) GetByID(ctx context.Context, id int64) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

	game, err := scanGame(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return game, nil
}

// ListByWeek retrieves all games for a week ordered by kickoff.
func (r *GameRepository) ListByWeek(ctx context.Context, week int) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE week = $1
		ORDER BY kickoff_time
	`

	rows, err := r.db.Pool.Query(ctx, query, week)
	if err != nil {
		return nil, fmt.Errorf("failed to list games by week: %w", err)
	}
	defer rows.Close()

	return collectGames(rows)
}

// ListAll retrieves every stored game ordered by kickoff.
func (r *GameRepository) ListAll(ctx context.Context) ([]*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games ORDER BY kickoff_time`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	return collectGames(rows)
}

// ListUnscored retrieves games that do not have a final result yet, ordered
// by kickoff. The score poller works off this set.
func (r *GameRepository) ListUnscored(ctx context.Context) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE scored = FALSE
		ORDER BY kickoff_time
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unscored games: %w", err)
	}
	defer rows.Close()

	return collectGames(rows)
}

func collectGames(rows pgx.Rows) ([]*models.Game, error) {
	var games []*models.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}

	return games, nil
}

// UpdateKickoff moves a game's kickoff time (flexed or rescheduled games).
func (r *GameRepository) UpdateKickoff(ctx context.Context, id int64, kickoff time.Time) error {
	query := `
		UPDATE games
		SET kickoff_time = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.Pool.Exec(ctx, query, kickoff, id)
	if err != nil {
		return fmt.Errorf("failed to update kickoff: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("game not found: id=%d", id)
	}

	return nil
}

// MarkScored records a final result. winningTeam is a stored team name, or
// models.WinnerTie for a tied game.
func (r *GameRepository) MarkScored(ctx context.Context, id int64, winningTeam string) error {
	query := `
		UPDATE games
		SET winning_team = $1, scored = TRUE, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.Pool.Exec(ctx, query, winningTeam, id)
	if err != nil {
		return fmt.Errorf("failed to mark game scored: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("game not found: id=%d", id)
	}

	return nil
}

// Count returns the total number of games
func (r *GameRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM games`

	var count int
	err := r.db.Pool.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}

	return count, nil
}

// Weeks returns the distinct weeks that currently have games, ascending.
func (r *GameRepository) Weeks(ctx context.Context) ([]int, error) {
	query := `SELECT DISTINCT week FROM games ORDER BY week`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list weeks: %w", err)
	}
	defer rows.Close()

	var weeks []int
	for rows.Next() {
		var week int
		if err := rows.Scan(&week); err != nil {
			return nil, fmt.Errorf("failed to scan week: %w", err)
		}
		weeks = append(weeks, week)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating weeks: %w", err)
	}

	return weeks, nil
}
