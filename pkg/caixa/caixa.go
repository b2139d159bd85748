// Package caixa is the client for the upstream national lottery results API.
//
// The API answers GET {base}/{game} with the most recent draw and
// GET {base}/{game}/{draw} with a specific one. Its error convention is
// unusual: 404 means the game name is unknown and 500 means the draw number
// is unknown. Both are permanent input errors; everything else non-200 is
// treated as transient and retried.
package caixa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Sentinel errors for the API's permanent failure modes.
var (
	ErrUnknownGame = errors.New("unknown game")
	ErrUnknownDraw = errors.New("unknown draw number")
)

// DefaultBaseURL is the production endpoint.
const DefaultBaseURL = "https://servicebus2.caixa.gov.br/portaldeloterias/api"

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
	defaultTimeout     = 20 * time.Second
)

// Config configures the client. Zero values fall back to defaults.
type Config struct {
	BaseURL     string
	MaxAttempts int
	Backoff     time.Duration
	HTTPClient  *http.Client
}

// Client fetches draw results.
type Client struct {
	baseURL     string
	maxAttempts int
	backoff     time.Duration
	httpClient  *http.Client
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		httpClient:  cfg.HTTPClient,
	}
}

// FetchResult fetches one draw's raw JSON payload. drawNumber 0 requests the
// most recent draw. Transient failures are retried with doubling backoff up
// to the configured attempt count; ErrUnknownGame and ErrUnknownDraw are
// returned immediately.
func (c *Client) FetchResult(ctx context.Context, game string, drawNumber int) (json.RawMessage, error) {
	url := c.baseURL + "/" + game
	if drawNumber > 0 {
		url += "/" + strconv.Itoa(drawNumber)
	}

	backoff := c.backoff
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		body, err := c.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrUnknownGame) || errors.Is(err, ErrUnknownDraw) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("fetch %s after %d attempts: %w", url, c.maxAttempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, ErrUnknownGame)
	case http.StatusInternalServerError:
		return nil, fmt.Errorf("%s: %w", url, ErrUnknownDraw)
	default:
		return nil, fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// IsPermanent reports whether the error is one of the API's permanent input
// errors, which callers must not retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnknownGame) || errors.Is(err, ErrUnknownDraw)
}
