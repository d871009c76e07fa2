// Package feed is the client for The Odds API. It fetches spread odds and
// final scores for a single sport, with retry on transient upstream errors
// and an optional short-lived cache in front of the odds endpoint to stretch
// the monthly request quota.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"nflpickem/reconciler/internal/config"
	"nflpickem/reconciler/internal/metrics"

	"github.com/rs/zerolog/log"
)

// ErrNotConfigured is returned by fetch operations when no usable API key
// was provided. Callers are expected to skip feed work, not crash.
var ErrNotConfigured = errors.New("odds feed API key not configured")

// StatusError is a non-2xx response from the feed.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed returned status %d: %s", e.Code, e.Body)
}

// Cache is an optional payload cache in front of the odds endpoint.
// Get returns (nil, nil) on miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte) error
}

// Client is The Odds API client.
type Client struct {
	baseURL    string
	apiKey     string
	sportKey   string
	bookmaker  string
	httpClient *http.Client
	cache      Cache
	maxRetries int
	retryDelay time.Duration

	mu    sync.Mutex
	quota Quota
}

// Quota is the request-quota state reported by the feed's response headers.
type Quota struct {
	Remaining string
	Used      string
	SeenAt    time.Time
}

// NewClient creates a feed client. An empty or placeholder apiKey yields a
// client whose fetches fail fast with ErrNotConfigured.
func NewClient(baseURL, apiKey, sportKey, bookmaker string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		sportKey:   sportKey,
		bookmaker:  bookmaker,
		maxRetries: 3,
		retryDelay: 1 * time.Second,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// WithCache attaches a payload cache to the odds endpoint.
func (c *Client) WithCache(cache Cache) *Client {
	c.cache = cache
	return c
}

// Configured reports whether the client holds a real API key.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.apiKey != config.PlaceholderAPIKey
}

// QuotaState returns the most recently observed request quota.
func (c *Client) QuotaState() Quota {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quota
}

// FetchOdds fetches current spread odds for the configured sport. Results
// may come from the cache when one is attached and the entry is fresh.
func (c *Client) FetchOdds(ctx context.Context) ([]Event, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	cacheKey := fmt.Sprintf("odds:%s:%s", c.sportKey, c.bookmaker)
	if c.cache != nil {
		if payload, err := c.cache.Get(ctx, cacheKey); err != nil {
			log.Warn().Err(err).Msg("Odds cache read failed, fetching from feed")
		} else if payload != nil {
			var events []Event
			if err := json.Unmarshal(payload, &events); err == nil {
				metrics.RecordCacheHit()
				log.Debug().Int("events", len(events)).Msg("Serving odds from cache")
				return events, nil
			}
			log.Warn().Msg("Discarding unreadable cached odds payload")
		} else {
			metrics.RecordCacheMiss()
		}
	}

	params := map[string]string{
		"apiKey":     c.apiKey,
		"regions":    "us",
		"markets":    MarketSpreads,
		"oddsFormat": "american",
		"dateFormat": "iso",
	}
	if c.bookmaker != "" {
		params["bookmakers"] = c.bookmaker
	}

	path := fmt.Sprintf("sports/%s/odds", c.sportKey)
	body, err := c.get(ctx, path, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch odds: %w", err)
	}

	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal odds: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, body); err != nil {
			log.Warn().Err(err).Msg("Odds cache write failed")
		}
	}

	return events, nil
}

// scoreWindows are the daysFrom values tried in order when fetching scores.
// Some plan tiers reject the larger windows with 422, so each rejection
// falls through to the next narrower request; the empty value means no
// daysFrom parameter at all (live and just-completed games only).
var scoreWindows = []string{"3", "2", "1", ""}

// FetchScores fetches recent scores for the configured sport.
func (c *Client) FetchScores(ctx context.Context) ([]ScoreEvent, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	path := fmt.Sprintf("sports/%s/scores", c.sportKey)

	var lastErr error
	for _, window := range scoreWindows {
		params := map[string]string{
			"apiKey":     c.apiKey,
			"dateFormat": "iso",
		}
		if window != "" {
			params["daysFrom"] = window
		}

		body, err := c.get(ctx, path, params)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.Code == http.StatusUnprocessableEntity {
				log.Warn().
					Str("daysFrom", window).
					Msg("Scores window rejected by feed, narrowing")
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("failed to fetch scores: %w", err)
		}

		var events []ScoreEvent
		if err := json.Unmarshal(body, &events); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scores: %w", err)
		}
		return events, nil
	}

	return nil, fmt.Errorf("failed to fetch scores: %w", lastErr)
}

// get performs a GET request against the feed with retry and backoff on
// transient failures.
func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, path)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryDelay * time.Duration(1<<uint(attempt-1))
			log.Info().
				Str("path", path).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying feed request after backoff")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		q := req.URL.Query()
		for key, value := range params {
			q.Add(key, value)
		}
		req.URL.RawQuery = q.Encode()

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("feed request failed: %w", err)
			if attempt < c.maxRetries {
				continue
			}
			return nil, lastErr
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			if attempt < c.maxRetries {
				continue
			}
			return nil, lastErr
		}

		c.recordQuota(resp)
		metrics.RecordFeedRequest(path, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

		switch resp.StatusCode {
		case http.StatusOK:
			log.Debug().
				Str("path", path).
				Int("size", len(body)).
				Msg("Feed request successful")
			return body, nil

		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			lastErr = &StatusError{Code: resp.StatusCode, Body: string(body)}
			if attempt < c.maxRetries {
				log.Warn().
					Str("path", path).
					Int("status", resp.StatusCode).
					Int("attempt", attempt+1).
					Msg("Received retryable feed error, will retry")
				continue
			}
			return nil, lastErr

		default:
			return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
		}
	}

	return nil, lastErr
}

// recordQuota captures the quota headers the feed attaches to every
// response, for the admin status endpoint.
func (c *Client) recordQuota(resp *http.Response) {
	remaining := resp.Header.Get("X-Requests-Remaining")
	used := resp.Header.Get("X-Requests-Used")
	if remaining == "" && used == "" {
		return
	}

	c.mu.Lock()
	c.quota = Quota{Remaining: remaining, Used: used, SeenAt: time.Now()}
	c.mu.Unlock()
}
