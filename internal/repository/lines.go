package repository

import (
	"context"
	"fmt"
	"time"

	"nflpickem/reconciler/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const lineColumns = `id, game_id, sportsbook, odds_type, spread, spread_team, total, home_team_odds, away_team_odds, last_updated`

// LineRepository handles betting line database operations
type LineRepository struct {
	db *Database
}

func scanLine(row pgx.Row) (*models.BettingLine, error) {
	var line models.BettingLine
	err := row.Scan(
		&line.ID, &line.GameID, &line.Sportsbook, &line.OddsType,
		&line.Spread, &line.SpreadTeam, &line.Total,
		&line.HomeTeamOdds, &line.AwayTeamOdds, &line.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// Upsert inserts or refreshes the line for (game_id, sportsbook, odds_type).
// Repeated runs with the same feed data converge on a single row.
func (r *LineRepository) Upsert(ctx context.Context, line *models.BettingLine) error {
	query := `
		INSERT INTO betting_lines (
			game_id, sportsbook, odds_type, spread, spread_team,
			total, home_team_odds, away_team_odds, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (game_id, sportsbook, odds_type) DO UPDATE SET
			spread = EXCLUDED.spread,
			spread_team = EXCLUDED.spread_team,
			total = EXCLUDED.total,
			home_team_odds = EXCLUDED.home_team_odds,
			away_team_odds = EXCLUDED.away_team_odds,
			last_updated = NOW()
		RETURNING id, last_updated
	`

	err := r.db.Pool.QueryRow(
		ctx, query,
		line.GameID, line.Sportsbook, line.OddsType, line.Spread, line.SpreadTeam,
		line.Total, line.HomeTeamOdds, line.AwayTeamOdds,
	).Scan(&line.ID, &line.LastUpdated)

	if err != nil {
		return fmt.Errorf("failed to upsert betting line: %w", err)
	}

	log.Debug().
		Int64("game_id", line.GameID).
		Str("sportsbook", line.Sportsbook).
		Float64("spread", line.Spread).
		Msg("Betting line upserted")

	return nil
}

// ListForGame retrieves all lines for a game.
func (r *LineRepository) ListForGame(ctx context.Context, gameID int64) ([]*models.BettingLine, error) {
	query := `
		SELECT ` + lineColumns + `
		FROM betting_lines
		WHERE game_id = $1
		ORDER BY sportsbook, odds_type
	`

	rows, err := r.db.Pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lines for game: %w", err)
	}
	defer rows.Close()

	return collectLines(rows)
}

// ListByWeek retrieves all lines attached to a week's games.
func (r *LineRepository) ListByWeek(ctx context.Context, week int) ([]*models.BettingLine, error) {
	query := `
		SELECT l.id, l.game_id, l.sportsbook, l.odds_type, l.spread, l.spread_team,
		       l.total, l.home_team_odds, l.away_team_odds, l.last_updated
		FROM betting_lines l
		JOIN games g ON g.id = l.game_id
		WHERE g.week = $1
		ORDER BY g.kickoff_time, l.sportsbook
	`

	rows, err := r.db.Pool.Query(ctx, query, week)
	if err != nil {
		return nil, fmt.Errorf("failed to list lines by week: %w", err)
	}
	defer rows.Close()

	return collectLines(rows)
}

func collectLines(rows pgx.Rows) ([]*models.BettingLine, error) {
	var lines []*models.BettingLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan betting line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating betting lines: %w", err)
	}

	return lines, nil
}

// DeleteStale removes lines not refreshed within maxAge whose game has
// already kicked off. Pre-kickoff lines survive even when the feed stops
// reporting the game.
func (r *LineRepository) DeleteStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	query := `
		DELETE FROM betting_lines l
		USING games g
		WHERE g.id = l.game_id
		  AND l.last_updated < NOW() - make_interval(secs => $1)
		  AND g.kickoff_time < NOW()
	`

	result, err := r.db.Pool.Exec(ctx, query, maxAge.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale lines: %w", err)
	}

	deleted := result.RowsAffected()
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("Stale betting lines removed")
	}

	return deleted, nil
}

// Count returns the total number of betting lines
func (r *LineRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM betting_lines`

	var count int
	err := r.db.Pool.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count betting lines: %w", err)
	}

	return count, nil
}

// LatestUpdate returns the most recent line refresh time, or the zero time
// when no lines exist.
func (r *LineRepository) LatestUpdate(ctx context.Context) (time.Time, error) {
	query := `SELECT COALESCE(MAX(last_updated), 'epoch'::timestamptz) FROM betting_lines`

	var latest time.Time
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest line update: %w", err)
	}

	if latest.Unix() <= 0 {
		return time.Time{}, nil
	}
	return latest, nil
}
