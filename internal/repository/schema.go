package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// schema is the full DDL for the reconciler's tables. Statements are
// idempotent so Migrate can run on every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id BIGSERIAL PRIMARY KEY,
		week INTEGER NOT NULL,
		home_team TEXT NOT NULL,
		away_team TEXT NOT NULL,
		kickoff_time TIMESTAMPTZ NOT NULL,
		winning_team TEXT NOT NULL DEFAULT '',
		scored BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT games_week_teams_key UNIQUE (week, home_team, away_team)
	)`,
	`CREATE INDEX IF NOT EXISTS games_week_idx ON games (week)`,
	`CREATE INDEX IF NOT EXISTS games_kickoff_idx ON games (kickoff_time)`,
	`CREATE TABLE IF NOT EXISTS betting_lines (
		id BIGSERIAL PRIMARY KEY,
		game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		sportsbook TEXT NOT NULL,
		odds_type TEXT NOT NULL,
		spread DOUBLE PRECISION NOT NULL,
		spread_team TEXT NOT NULL,
		total DOUBLE PRECISION,
		home_team_odds DOUBLE PRECISION,
		away_team_odds DOUBLE PRECISION,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT betting_lines_game_book_type_key UNIQUE (game_id, sportsbook, odds_type)
	)`,
	`CREATE INDEX IF NOT EXISTS betting_lines_game_idx ON betting_lines (game_id)`,
}

// Migrate applies the schema. Safe to call on every startup.
func (db *Database) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	log.Info().Msg("Database schema up to date")
	return nil
}
