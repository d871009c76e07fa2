package reconcile

import (
	"database/sql"

	"nflpickem/reconciler/internal/feed"
	"nflpickem/reconciler/internal/models"
)

// buildLine converts a spreads market into a betting line for the stored
// game. Outcome names are the feed's team names; the resulting line refers
// to the stored game's names so downstream readers never see feed naming.
// sameOrientation says whether the feed's home side is the stored home side;
// when false the sides are swapped before the line is built.
// Returns ok=false when the market does not cover both teams.
func buildLine(game *models.Game, ev feed.Event, book string, market *feed.Market, sameOrientation bool) (*models.BettingLine, bool) {
	var home, away *feed.Outcome
	for i := range market.Outcomes {
		switch market.Outcomes[i].Name {
		case ev.HomeTeam:
			home = &market.Outcomes[i]
		case ev.AwayTeam:
			away = &market.Outcomes[i]
		}
	}
	if !sameOrientation {
		home, away = away, home
	}
	if home == nil || away == nil || home.Point == nil || away.Point == nil {
		return nil, false
	}

	// The favorite carries the negative point. A pick'em line is recorded
	// against the home team with a zero spread.
	spread := *home.Point
	spreadTeam := game.HomeTeam
	if *away.Point < *home.Point {
		spread = *away.Point
		spreadTeam = game.AwayTeam
	}
	if spread < 0 {
		spread = -spread
	}

	return &models.BettingLine{
		GameID:       game.ID,
		Sportsbook:   book,
		OddsType:     models.OddsTypeAmerican,
		Spread:       spread,
		SpreadTeam:   spreadTeam,
		HomeTeamOdds: sql.NullFloat64{Float64: home.Price, Valid: true},
		AwayTeamOdds: sql.NullFloat64{Float64: away.Price, Valid: true},
	}, true
}
