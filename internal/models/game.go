package models

import "time"

// Week number conventions used throughout the worker.
const (
	WeekPreseason  = 0
	WeekPostseason = 19
)

// WinnerTie is stored as the winning team of a game that ended level.
const WinnerTie = "TIE"

// Game represents one scheduled or completed NFL game. The store enforces
// uniqueness on (week, home_team, away_team); everything else in the
// reconciler leans on that constraint.
type Game struct {
	ID          int64     `db:"id"`
	Week        int       `db:"week"`
	HomeTeam    string    `db:"home_team"`
	AwayTeam    string    `db:"away_team"`
	KickoffTime time.Time `db:"kickoff_time"`

	// WinningTeam and Scored are written only when final scores are applied,
	// never during odds reconciliation. Empty WinningTeam means undetermined.
	WinningTeam string `db:"winning_team"`
	Scored      bool   `db:"scored"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ExternalGame is a feed-reported game identity before it has been resolved
// against the store.
type ExternalGame struct {
	HomeTeam    string
	AwayTeam    string
	KickoffTime time.Time
}
