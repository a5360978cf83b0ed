// Package discord is a small Discord REST client. It paces outbound requests
// with a token bucket and turns rate-limit and API failures into typed errors
// so the caller's circuit breaker and retry policy can tell them apart.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Keksclan/rawrguild/ratelimit"
)

const (
	DefaultBaseURL           = "https://discord.com/api/v10"
	DefaultTimeout           = 10 * time.Second
	DefaultRequestsPerSecond = 40
	DefaultBurst             = 10
)

// Config holds the client parameters.
type Config struct {
	BaseURL string
	// Token is sent as "Authorization: Bot <token>" when non-empty.
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client performs Discord REST calls.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	pace    *ratelimit.Limiter
}

// New creates a Client. Zero config values fall back to the defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    hc,
		pace:    ratelimit.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
	}
}

// Do sends a request to path (relative to the base URL). A non-nil body is
// JSON encoded. On a 2xx response the body is decoded into out when out is
// non-nil. A 429 yields *RateLimitError and any other non-2xx *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	if err := c.pace.Wait(ctx); err != nil {
		return fmt.Errorf("discord: wait for pacing: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("discord: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "DiscordBot (https://github.com/Keksclan/rawrguild, 1)")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bot "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("discord: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("discord: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return parseRateLimit(resp.Header, data)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return parseAPIError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("discord: decode response: %w", err)
	}
	return nil
}
