// Package season derives NFL competition week numbers from kickoff
// timestamps. Inference is pure: no store, no network, just a calendar
// anchored on the league's season-start convention.
package season

import (
	"errors"
	"fmt"
	"time"

	"nflpickem/reconciler/internal/models"
)

// ErrUnknownWeek is returned when a kickoff cannot be placed in any season
// window. Callers must skip such games rather than guess a week.
var ErrUnknownWeek = errors.New("cannot determine week for kickoff time")

// Calendar infers competition weeks for kickoff instants. Week boundaries are
// evaluated on Eastern-time calendar dates because that is how the league
// publishes its schedule.
type Calendar struct {
	override     time.Time // operator-supplied season start, zero if unset
	hasOverride  bool
	regularWeeks int
	loc          *time.Location
}

// NewCalendar creates a calendar. startOverride, when non-empty, is an
// ISO-8601 date (YYYY-MM-DD) that replaces the computed season start for its
// own year only.
func NewCalendar(startOverride string, regularWeeks int) (*Calendar, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("failed to load eastern timezone: %w", err)
	}

	c := &Calendar{
		regularWeeks: regularWeeks,
		loc:          loc,
	}

	if startOverride != "" {
		start, err := time.ParseInLocation("2006-01-02", startOverride, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid season start override %q: %w", startOverride, err)
		}
		c.override = start
		c.hasOverride = true
	}

	return c, nil
}

// SeasonStart returns the first game day of the given season year: the
// Thursday on/after Labor Day (first Monday of September), unless the
// operator override names a date in that exact year.
func (c *Calendar) SeasonStart(year int) time.Time {
	if c.hasOverride && c.override.Year() == year {
		return c.override
	}

	sept1 := time.Date(year, time.September, 1, 0, 0, 0, 0, c.loc)
	daysToMonday := (int(time.Monday) - int(sept1.Weekday()) + 7) % 7
	laborDay := sept1.AddDate(0, 0, daysToMonday)

	// Kickoff Thursday is three days after Labor Day.
	return laborDay.AddDate(0, 0, 3)
}

// InferWeek maps a kickoff instant to a competition week. Preseason games
// collapse to week 0, leftover prior-season postseason games to week 19, and
// anything the calendar cannot place returns ErrUnknownWeek.
func (c *Calendar) InferWeek(kickoff time.Time) (int, error) {
	gameDate := c.dateOf(kickoff)

	// January/February games belong to the season that started the previous
	// autumn.
	seasonYear := gameDate.Year()
	if gameDate.Month() <= time.February {
		seasonYear--
	}

	start := c.SeasonStart(seasonYear)

	if gameDate.Before(start) {
		return c.classifyBeforeStart(gameDate, seasonYear)
	}

	week := daysBetween(start, gameDate)/7 + 1
	if week > c.regularWeeks {
		week = c.regularWeeks
	}
	return week, nil
}

// classifyBeforeStart handles kickoffs that precede the season start:
// preseason if inside the August run-up window, prior-season postseason if
// past the previous season's regular schedule, otherwise unknown.
func (c *Calendar) classifyBeforeStart(gameDate time.Time, seasonYear int) (int, error) {
	preseasonStart := time.Date(seasonYear, time.August, 1, 0, 0, 0, 0, c.loc)
	if gameDate.After(preseasonStart) {
		return models.WeekPreseason, nil
	}

	prevSeasonEnd := c.SeasonStart(seasonYear - 1).AddDate(0, 0, c.regularWeeks*7)
	if gameDate.After(prevSeasonEnd) {
		return models.WeekPostseason, nil
	}

	return 0, ErrUnknownWeek
}

// CurrentWeek returns the week the scheduler should fetch for right now.
// Outside the regular season it falls back to week 1, since the next games
// the feed reports are the coming season's openers.
func (c *Calendar) CurrentWeek(now time.Time) int {
	week, err := c.InferWeek(now)
	if err != nil || week < 1 || week > c.regularWeeks {
		return 1
	}
	return week
}

// RegularWeeks returns the configured number of regular-season weeks.
func (c *Calendar) RegularWeeks() int {
	return c.regularWeeks
}

// dateOf truncates an instant to its Eastern-time calendar date.
func (c *Calendar) dateOf(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// daysBetween counts calendar days from a to b. Both arguments are
// midnight-anchored dates in the same location; the only DST transition
// inside a season adds an hour, so flooring on 24h is exact.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
