package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reposcout/reposcout/pkg/config"
	"github.com/reposcout/reposcout/pkg/logging"
	"github.com/reposcout/reposcout/pkg/telemetry"
)

// ErrRateLimited is returned when the search API refuses a request for
// rate-limit reasons even after the backoff retry
var ErrRateLimited = fmt.Errorf("github: rate limited")

// SearchItem is one repository as returned by the search API
type SearchItem struct {
	ID          int64    `json:"id"`
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	Homepage    string   `json:"homepage"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	Stars       int64    `json:"stargazers_count"`
	Forks       int64    `json:"forks_count"`
	Watchers    int64    `json:"watchers_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PushedAt    time.Time `json:"pushed_at"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
	License *struct {
		Key string `json:"key"`
	} `json:"license"`
}

// SearchResult is one page of search results plus the rate-limit state
// reported alongside it
type SearchResult struct {
	TotalCount    int64        `json:"total_count"`
	Items         []SearchItem `json:"items"`
	RateRemaining int          `json:"-"`
	RateReset     time.Time    `json:"-"`
}

// Client wraps the GitHub repository-search API. It paces requests to the
// configured per-minute budget and, on a rate-limit response, sleeps until
// the reset epoch and retries once. Sleeps are context-cancellable.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	minInterval time.Duration
	logger      *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// New creates a new GitHub search client
func New(cfg *config.GitHubConfig) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("github_api_url is required")
	}

	logger := logging.GetLogger().With(zap.String("component", "github-client"))

	client := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     cfg.APIURL,
		token:       cfg.Token,
		minInterval: time.Minute / time.Duration(cfg.RequestsPerMinute),
		logger:      logger,
	}

	logger.Info("GitHub client initialized",
		zap.String("url", cfg.APIURL),
		zap.Int("requests_per_minute", cfg.RequestsPerMinute))

	return client, nil
}

// Search runs one repository search query and returns the requested page
func (c *Client) Search(ctx context.Context, query string, page, perPage int) (*SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "github.search")
	defer span.End()

	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if perPage <= 0 || perPage > 100 {
		return nil, fmt.Errorf("per_page must be between 1 and 100")
	}
	if page <= 0 {
		page = 1
	}

	result, retryable, err := c.searchOnce(ctx, query, page, perPage)
	if err == nil || !retryable {
		return result, err
	}

	// Rate limited: wait for the reset epoch, then a single retry
	wait := waitForReset(result, time.Now())
	c.logger.Warn("Rate limited, backing off",
		zap.String("query", query),
		zap.Int("page", page),
		zap.Duration("wait", wait))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	}

	result, retryable, err = c.searchOnce(ctx, query, page, perPage)
	if err != nil && retryable {
		return nil, fmt.Errorf("%w: query %q page %d", ErrRateLimited, query, page)
	}
	return result, err
}

// searchOnce performs one search request. The second return value reports
// whether the failure was a rate-limit response worth retrying.
func (c *Client) searchOnce(ctx context.Context, query string, page, perPage int) (*SearchResult, bool, error) {
	if err := c.pace(ctx); err != nil {
		return nil, false, err
	}

	u := fmt.Sprintf("%s/search/repositories?q=%s&sort=stars&order=desc&page=%d&per_page=%d",
		c.baseURL, url.QueryEscape(query), page, perPage)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	rate := &SearchResult{
		RateRemaining: headerInt(resp.Header, "X-RateLimit-Remaining"),
		RateReset:     headerEpoch(resp.Header, "X-RateLimit-Reset"),
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusTooManyRequests:
		return rate, true, fmt.Errorf("rate limit response %d", resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, fmt.Errorf("search returned status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(rate); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal search response: %w", err)
	}

	return rate, false, nil
}

// pace enforces the per-minute request budget
func (c *Client) pace(ctx context.Context) error {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	var wait time.Duration
	if elapsed < c.minInterval {
		wait = c.minInterval - elapsed
	}
	c.lastRequest = time.Now().Add(wait)
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// waitForReset derives the backoff duration from the rate-limit reset
// header, with a floor and a sane ceiling for absent or skewed headers
func waitForReset(result *SearchResult, now time.Time) time.Duration {
	const (
		minWait = 5 * time.Second
		maxWait = 15 * time.Minute
	)
	if result == nil || result.RateReset.IsZero() {
		return time.Minute
	}
	wait := result.RateReset.Sub(now) + time.Second
	if wait < minWait {
		return minWait
	}
	if wait > maxWait {
		return maxWait
	}
	return wait
}

// LicenseKey returns the item's license key, or empty when unlicensed
func (i *SearchItem) LicenseKey() string {
	if i.License == nil {
		return ""
	}
	return i.License.Key
}

func headerInt(h http.Header, key string) int {
	v, err := strconv.Atoi(h.Get(key))
	if err != nil {
		return -1
	}
	return v
}

func headerEpoch(h http.Header, key string) time.Time {
	v, err := strconv.ParseInt(h.Get(key), 10, 64)
	if err != nil || v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}
