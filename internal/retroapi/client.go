// Package retroapi implements the RetroAchievements Web API client used as
// the achievement source. Every call goes through a shared token-bucket
// rate limiter and a circuit breaker; failures of any kind surface as
// ErrUnavailable and are retried by the next scheduled tick, never here.
package retroapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/coocood/freecache"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"retro-league-bot/internal/model"
)

// Config holds client construction parameters.
type Config struct {
	BaseURL           string
	Username          string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	GameCacheMB       int
	GameCacheTTL      time.Duration
}

// Client is a RetroAchievements Web API client.
type Client struct {
	baseURL  string
	username string
	apiKey   string
	timeout  time.Duration

	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]

	gameCache    *freecache.Cache
	gameCacheTTL time.Duration
}

// New creates a Client. A nil httpClient falls back to a default client;
// the per-call timeout is enforced through request contexts either way.
func New(cfg *Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:      cfg.BaseURL,
		username:     cfg.Username,
		apiKey:       cfg.APIKey,
		timeout:      timeout,
		http:         httpClient,
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
		gameCacheTTL: cfg.GameCacheTTL,
	}

	if cfg.GameCacheMB > 0 {
		c.gameCache = freecache.NewCache(cfg.GameCacheMB * 1024 * 1024)
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "retroachievements",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Achievement source circuit breaker state changed")
		},
	})

	return c
}

// UserCompletionStats returns the user's per-game completion stats in the
// order the API reports them.
func (c *Client) UserCompletionStats(ctx context.Context, username string) ([]model.GameCompletion, error) {
	params := url.Values{}
	params.Set("u", username)

	body, err := c.get(ctx, "API_GetUserCompletedGames.php", params)
	if err != nil {
		return nil, err
	}

	var wire []wireCompletedGame
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode completion stats: %w", err)
	}

	stats := make([]model.GameCompletion, 0, len(wire))
	for _, w := range wire {
		stats = append(stats, w.toModel())
	}
	return stats, nil
}

// GameDetails returns the full achievement set of a game. Responses are
// cached: achievement definitions change rarely and the same game is
// often resolved repeatedly within one aggregation window.
func (c *Client) GameDetails(ctx context.Context, gameID int64) (*model.GameDetails, error) {
	cacheKey := []byte("game_" + strconv.FormatInt(gameID, 10))
	if c.gameCache != nil {
		if cached, err := c.gameCache.Get(cacheKey); err == nil {
			return decodeGame(cached, (wireGame).toDetails)
		}
	}

	params := url.Values{}
	params.Set("i", strconv.FormatInt(gameID, 10))

	body, err := c.get(ctx, "API_GetGameExtended.php", params)
	if err != nil {
		return nil, err
	}

	if c.gameCache != nil {
		ttl := int(c.gameCacheTTL / time.Second)
		if err := c.gameCache.Set(cacheKey, body, ttl); err != nil {
			log.Debug().Err(err).Int64("game_id", gameID).Msg("Failed to cache game details")
		}
	}

	return decodeGame(body, (wireGame).toDetails)
}

// AchievementsEarnedBetween returns the user's achievement unlock events
// within [from, to], both modes included.
func (c *Client) AchievementsEarnedBetween(ctx context.Context, username string, from, to time.Time) ([]model.DatedAchievement, error) {
	params := url.Values{}
	params.Set("u", username)
	params.Set("f", strconv.FormatInt(from.Unix(), 10))
	params.Set("t", strconv.FormatInt(to.Unix(), 10))

	body, err := c.get(ctx, "API_GetAchievementsEarnedBetween.php", params)
	if err != nil {
		return nil, err
	}

	var wire []wireDatedAchievement
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode dated achievements: %w", err)
	}

	events := make([]model.DatedAchievement, 0, len(wire))
	for _, w := range wire {
		events = append(events, w.toModel())
	}
	return events, nil
}

// GameProgress returns the user's progress for a single game.
func (c *Client) GameProgress(ctx context.Context, username string, gameID int64) (*model.GameProgress, error) {
	params := url.Values{}
	params.Set("u", username)
	params.Set("g", strconv.FormatInt(gameID, 10))

	body, err := c.get(ctx, "API_GetGameInfoAndUserProgress.php", params)
	if err != nil {
		return nil, err
	}

	return decodeGame(body, (wireGame).toProgress)
}

// get performs a rate-limited, breaker-guarded GET and returns the body.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait aborted: %w", ErrUnavailable)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, endpoint, params)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("circuit breaker rejected %s: %w", endpoint, ErrUnavailable)
		}
		return nil, err
	}
	return body, nil
}

// doRequest performs the HTTP exchange with the per-call timeout applied.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params.Set("z", c.username)
	params.Set("y", c.apiKey)

	reqURL := c.baseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("request to %s returned status %d: %w", endpoint, resp.StatusCode, ErrUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, ErrUnavailable)
	}
	return body, nil
}

// decodeGame decodes a game payload and converts it with the given mapper.
func decodeGame[T any](body []byte, convert func(wireGame) T) (T, error) {
	var zero T
	var wire wireGame
	if err := json.Unmarshal(body, &wire); err != nil {
		return zero, fmt.Errorf("failed to decode game payload: %w", err)
	}
	return convert(wire), nil
}
