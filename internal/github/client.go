package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"basegraph.app/pulse/core/config"
	"basegraph.app/pulse/internal/metrics"
	"basegraph.app/pulse/internal/model"
)

const (
	defaultPollInterval = 60 * time.Second
	minRetryAfter       = time.Second
	maxErrorBody        = 512
)

// Status is the outcome class of a conditional fetch.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotModified
	StatusRateLimited
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotModified:
		return "not_modified"
	case StatusRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// FetchResult is what the remote reported for one conditional fetch.
// Events are in feed order: newest first.
type FetchResult struct {
	Events       []model.RawEvent
	CacheToken   string
	Status       Status
	PollInterval time.Duration
	RetryAfter   time.Duration
}

// Source is the remote event feed.
type Source interface {
	Fetch(ctx context.Context, cacheToken string) (FetchResult, error)
}

// TransportError reports a fetch that never produced a usable answer
// (network failure, timeout, unexpected status, undecodable body). It is always retryable.
type TransportError struct {
	Err        error
	StatusCode int
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("github transport error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("github transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Client fetches the public events feed with ETag-based conditional requests.
type Client struct {
	http *http.Client
	cfg  config.GitHubConfig
	now  func() time.Time
}

func NewClient(cfg config.GitHubConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		http: httpClient,
		cfg:  cfg,
		now:  time.Now,
	}
}

func (c *Client) Fetch(ctx context.Context, cacheToken string) (FetchResult, error) {
	start := c.now()

	req, err := c.newRequest(ctx, cacheToken)
	if err != nil {
		return FetchResult{}, &TransportError{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.FetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return FetchResult{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	metrics.FetchDuration.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	slog.DebugContext(ctx, "github events response",
		"status", resp.StatusCode,
		"etag", resp.Header.Get("ETag"),
		"poll_interval", resp.Header.Get("X-Poll-Interval"),
		"rate_limit_remaining", resp.Header.Get("X-RateLimit-Remaining"),
		"rate_limit_reset", resp.Header.Get("X-RateLimit-Reset"))

	pollInterval := parseSeconds(resp.Header.Get("X-Poll-Interval"), defaultPollInterval)

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return FetchResult{
			Status:       StatusNotModified,
			CacheToken:   cacheToken,
			PollInterval: pollInterval,
		}, nil

	case isRateLimited(resp):
		retryAfter := c.retryAfter(resp.Header)
		slog.WarnContext(ctx, "github rate limit reached",
			"status", resp.StatusCode,
			"retry_after", retryAfter)
		return FetchResult{
			Status:       StatusRateLimited,
			CacheToken:   cacheToken,
			PollInterval: pollInterval,
			RetryAfter:   retryAfter,
		}, nil

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return FetchResult{}, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(body))),
		}
	}

	var events []model.RawEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return FetchResult{}, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding events: %w", err)}
	}

	return FetchResult{
		Status:       StatusSuccess,
		Events:       events,
		CacheToken:   resp.Header.Get("ETag"),
		PollInterval: pollInterval,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, cacheToken string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.EventsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	q := req.URL.Query()
	q.Set("per_page", strconv.Itoa(c.cfg.PerPage))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.Authenticated() {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if cacheToken != "" {
		req.Header.Set("If-None-Match", cacheToken)
	}
	return req, nil
}

// retryAfter prefers Retry-After, then X-RateLimit-Reset, then the default poll interval.
func (c *Client) retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if d := parseSeconds(v, 0); d > 0 {
			return d
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			d := time.Unix(epoch, 0).Sub(c.now())
			if d < minRetryAfter {
				d = minRetryAfter
			}
			return d
		}
	}
	return defaultPollInterval
}

func isRateLimited(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if resp.StatusCode != http.StatusForbidden {
		return false
	}
	return resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.Header.Get("Retry-After") != ""
}

func parseSeconds(v string, fallback time.Duration) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
