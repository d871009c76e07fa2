package reconcile

import (
	"context"
	"time"

	"nflpickem/reconciler/internal/metrics"
)

// Status is the operational snapshot served by the admin API.
type Status struct {
	FeedConfigured bool       `json:"feed_configured"`
	GamesStored    int        `json:"games_stored"`
	LinesStored    int        `json:"lines_stored"`
	Weeks          []int      `json:"weeks"`
	CurrentWeek    int        `json:"current_week"`
	TotalUpdates   int64      `json:"total_updates"`
	LastRunTime    *time.Time `json:"last_run_time,omitempty"`
	LastLineUpdate *time.Time `json:"last_line_update,omitempty"`
	NeedsUpdate    bool       `json:"needs_update"`
	QuotaRemaining string     `json:"quota_remaining,omitempty"`
	QuotaUsed      string     `json:"quota_used,omitempty"`

	// Scheduling configuration, echoed so operators can read the effective
	// cadence without shell access.
	OddsRefreshCron   string `json:"odds_refresh_cron,omitempty"`
	GameDayCron       string `json:"game_day_cron,omitempty"`
	MaxWeeksPerUpdate int    `json:"max_weeks_per_update"`
}

// Status assembles the current reconciliation state.
func (p *Pipeline) Status(ctx context.Context) (*Status, error) {
	games, err := p.games.Count(ctx)
	if err != nil {
		return nil, err
	}
	lines, err := p.lines.Count(ctx)
	if err != nil {
		return nil, err
	}
	weeks, err := p.games.Weeks(ctx)
	if err != nil {
		return nil, err
	}

	metrics.UpdateStorageStats(int64(games), int64(lines))

	status := &Status{
		FeedConfigured:    p.feed.Configured(),
		GamesStored:       games,
		LinesStored:       lines,
		Weeks:             weeks,
		CurrentWeek:       p.calendar.CurrentWeek(time.Now()),
		OddsRefreshCron:   p.opts.OddsRefreshCron,
		GameDayCron:       p.opts.GameDayCron,
		MaxWeeksPerUpdate: p.opts.MaxWeeksPerUpdate,
	}

	p.statsMu.Lock()
	status.TotalUpdates = p.totalUpdates
	if !p.lastRunTime.IsZero() {
		t := p.lastRunTime
		status.LastRunTime = &t
	}
	p.statsMu.Unlock()

	latest, err := p.lines.LatestUpdate(ctx)
	if err != nil {
		return nil, err
	}
	if !latest.IsZero() {
		status.LastLineUpdate = &latest
		status.NeedsUpdate = time.Since(latest) >= p.opts.OddsUpdateInterval
	} else {
		status.NeedsUpdate = true
	}

	quota := p.feed.QuotaState()
	status.QuotaRemaining = quota.Remaining
	status.QuotaUsed = quota.Used

	return status, nil
}
