package models

import (
	"database/sql"
	"time"
)

// OddsTypeAmerican is the only odds format the spread feed quotes.
const OddsTypeAmerican = "american"

// BettingLine is one sportsbook's point-spread quote for a game. At most one
// line exists per (game_id, sportsbook, odds_type); the repository upserts on
// that tuple. Lines are deleted when their game is deleted (FK cascade) or by
// the staleness sweep.
type BettingLine struct {
	ID         int64  `db:"id"`
	GameID     int64  `db:"game_id"`
	Sportsbook string `db:"sportsbook"`
	OddsType   string `db:"odds_type"`

	// Spread is the magnitude of the line; SpreadTeam is the favored side.
	// A pick'em game carries a zero spread against the home team.
	Spread     float64 `db:"spread"`
	SpreadTeam string  `db:"spread_team"`

	// Total is not populated by the spreads-only feed path.
	Total        sql.NullFloat64 `db:"total"`
	HomeTeamOdds sql.NullFloat64 `db:"home_team_odds"`
	AwayTeamOdds sql.NullFloat64 `db:"away_team_odds"`

	LastUpdated time.Time `db:"last_updated"`
}
