package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Market keys used when requesting odds.
const (
	MarketSpreads = "spreads"
)

// Event is a single upcoming or live game as reported by the odds feed.
type Event struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

// Bookmaker holds one book's markets for an event.
type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

// Market is a single betting market (spreads, totals, h2h).
type Market struct {
	Key      string    `json:"key"`
	Outcomes []Outcome `json:"outcomes"`
}

// Outcome is one side of a market. Point is nil for markets without a
// point value (moneyline).
type Outcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point"`
}

// SpreadsMarket returns the first spreads market any bookmaker posted for
// the event, with that book's key. Books are taken in feed order, so a
// client restricted to one bookmaker always yields that book. The market is
// nil when no book has posted spreads yet.
func (e *Event) SpreadsMarket() (string, *Market) {
	for _, b := range e.Bookmakers {
		for i := range b.Markets {
			if b.Markets[i].Key == MarketSpreads {
				return b.Key, &b.Markets[i]
			}
		}
	}
	return "", nil
}

// ScoreEvent is a game from the scores feed.
type ScoreEvent struct {
	ID           string       `json:"id"`
	CommenceTime time.Time    `json:"commence_time"`
	Completed    Completed    `json:"completed"`
	HomeTeam     string       `json:"home_team"`
	AwayTeam     string       `json:"away_team"`
	Scores       []ScoreEntry `json:"scores"`

	// Scalar fallbacks, present in some historical payload shapes.
	HomeScore *int `json:"home_score"`
	AwayScore *int `json:"away_score"`
}

// ScoreEntry is one team's score. The feed encodes scores as strings.
type ScoreEntry struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}

// Result extracts final scores for the event. The scores array is
// authoritative; the scalar fields are consulted only when the array is
// missing or unparseable. ok is false when neither shape yields scores.
func (e *ScoreEvent) Result() (home, away int, ok bool) {
	var haveHome, haveAway bool
	for _, entry := range e.Scores {
		n, err := strconv.Atoi(entry.Score)
		if err != nil {
			continue
		}
		switch entry.Name {
		case e.HomeTeam:
			home, haveHome = n, true
		case e.AwayTeam:
			away, haveAway = n, true
		}
	}
	if haveHome && haveAway {
		return home, away, true
	}

	if e.HomeScore != nil && e.AwayScore != nil {
		return *e.HomeScore, *e.AwayScore, true
	}

	return 0, 0, false
}

// Completed tolerates the boolean-ish encodings the feed has used over
// time: true, "true", 1, "1".
type Completed bool

func (c *Completed) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(bytes.Trim(data, `"`)) {
	case "true", "1":
		*c = true
	case "false", "0", "null", "":
		*c = false
	default:
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("invalid completed value %s", string(data))
		}
		*c = Completed(b)
	}
	return nil
}
