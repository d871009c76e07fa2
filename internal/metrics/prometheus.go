package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the reconciliation worker

var (
	// Feed metrics
	FeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickem_feed_requests_total",
			Help: "Total number of odds feed requests",
		},
		[]string{"endpoint", "status"},
	)

	FeedRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pickem_feed_request_duration_seconds",
			Help:    "Duration of odds feed requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Reconciliation metrics
	ReconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickem_reconcile_runs_total",
			Help: "Total number of reconciliation runs",
		},
		[]string{"scope", "status"},
	)

	ReconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pickem_reconcile_duration_seconds",
			Help:    "Duration of reconciliation runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"scope"},
	)

	GamesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pickem_games_created_total",
			Help: "Total number of games created from the feed",
		},
	)

	GamesMatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickem_games_matched_total",
			Help: "Total number of feed games matched to stored games",
		},
		[]string{"strategy"},
	)

	LinesUpsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pickem_lines_upserted_total",
			Help: "Total number of betting lines inserted or refreshed",
		},
	)

	GamesScoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pickem_games_scored_total",
			Help: "Total number of games with final results recorded",
		},
	)

	StaleLinesDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pickem_stale_lines_deleted_total",
			Help: "Total number of stale betting lines removed",
		},
	)

	UnknownWeekGamesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pickem_unknown_week_games_total",
			Help: "Total number of feed games skipped because no week could be inferred",
		},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pickem_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pickem_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// Storage gauges
	GamesStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pickem_games_stored_total",
			Help: "Total number of games in database",
		},
	)

	LinesStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pickem_lines_stored_total",
			Help: "Total number of betting lines in database",
		},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickem_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pickem_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pickem_last_successful_run_timestamp",
			Help: "Timestamp of last successful reconciliation run",
		},
	)
)

// RecordFeedRequest records an odds feed request
func RecordFeedRequest(endpoint, status string, duration float64) {
	FeedRequestsTotal.WithLabelValues(endpoint, status).Inc()
	FeedRequestDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordReconcileRun records a reconciliation run
func RecordReconcileRun(scope, status string, duration float64) {
	ReconcileRunsTotal.WithLabelValues(scope, status).Inc()
	ReconcileDuration.WithLabelValues(scope).Observe(duration)

	if status == "success" {
		LastSuccessfulRun.SetToCurrentTime()
	}
}

// RecordGameCreated records a game created from the feed
func RecordGameCreated() {
	GamesCreatedTotal.Inc()
}

// RecordGameMatched records a feed game matched to a stored game
func RecordGameMatched(strategy string) {
	GamesMatchedTotal.WithLabelValues(strategy).Inc()
}

// RecordLineUpserted records a betting line insert or refresh
func RecordLineUpserted() {
	LinesUpsertedTotal.Inc()
}

// RecordGameScored records a final result written to a game
func RecordGameScored() {
	GamesScoredTotal.Inc()
}

// RecordStaleLinesDeleted records removed stale lines
func RecordStaleLinesDeleted(count int64) {
	StaleLinesDeletedTotal.Add(float64(count))
}

// RecordUnknownWeekGame records a feed game skipped for week inference
func RecordUnknownWeekGame() {
	UnknownWeekGamesTotal.Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateStorageStats updates stored row gauges
func UpdateStorageStats(games, lines int64) {
	GamesStored.Set(float64(games))
	LinesStored.Set(float64(lines))
}
