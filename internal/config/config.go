package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// PlaceholderAPIKey is the value shipped in .env.example; it is treated the
// same as an unset key.
const PlaceholderAPIKey = "your_api_key_here"

// Config holds all application configuration
type Config struct {
	// The Odds API
	OddsAPIKey     string        `envconfig:"THEODDS_API_KEY" default:""`
	OddsAPIBaseURL string        `envconfig:"THEODDS_API_BASE_URL" default:"https://api.the-odds-api.com/v4"`
	OddsAPITimeout time.Duration `envconfig:"THEODDS_API_TIMEOUT" default:"30s"`
	SportKey       string        `envconfig:"THEODDS_SPORT_KEY" default:"americanfootball_nfl"`
	Bookmaker      string        `envconfig:"THEODDS_BOOKMAKER" default:"fanduel"`

	// Season calendar
	SeasonStartDate    string   `envconfig:"NFL_SEASON_START_DATE" default:""`
	RegularSeasonWeeks int      `envconfig:"NFL_REGULAR_SEASON_WEEKS" default:"18"`
	CityPrefixes       []string `envconfig:"TEAM_CITY_PREFIXES" default:"new,los,san,las,kansas,green,tampa"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"pickem"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"pickem_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Scheduler
	EnableScheduler    bool          `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled bool          `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`
	OddsRefreshCron    string        `envconfig:"ODDS_REFRESH_CRON" default:"0 */4 * * *"`
	GameDayCron        string        `envconfig:"GAME_DAY_CRON" default:"0 * * * THU,SUN,MON"`
	CleanupCron        string        `envconfig:"CLEANUP_CRON" default:"0 3 * * *"`
	MaxWeeksPerUpdate  int           `envconfig:"MAX_WEEKS_PER_UPDATE" default:"2"`
	WeekFetchDelay     time.Duration `envconfig:"WEEK_FETCH_DELAY" default:"2s"`
	ScorePollInterval  time.Duration `envconfig:"SCORE_POLL_INTERVAL" default:"5m"`

	// Odds freshness / staleness
	OddsUpdateInterval time.Duration `envconfig:"ODDS_UPDATE_INTERVAL" default:"4h"`
	StaleLineAge       time.Duration `envconfig:"STALE_LINE_AGE" default:"96h"`

	// Caching TTL for raw feed payloads
	CacheTTLOdds time.Duration `envconfig:"CACHE_TTL_ODDS" default:"5m"`

	// HTTP surfaces
	AdminPort     int  `envconfig:"ADMIN_PORT" default:"8080"`
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if c.RegularSeasonWeeks < 1 {
		return fmt.Errorf("NFL_REGULAR_SEASON_WEEKS must be positive")
	}

	if c.MaxWeeksPerUpdate < 1 {
		return fmt.Errorf("MAX_WEEKS_PER_UPDATE must be positive")
	}

	return nil
}

// FeedConfigured reports whether a usable Odds API key is present. A missing
// key is not a startup error: the worker runs, and reconciliation fails fast
// instead.
func (c *Config) FeedConfigured() bool {
	return c.OddsAPIKey != "" && c.OddsAPIKey != PlaceholderAPIKey
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
