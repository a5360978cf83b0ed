package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RateLimitError is returned for HTTP 429. RetryAfter is how long Discord asks
// the caller to wait.
type RateLimitError struct {
	RetryAfter time.Duration
	Global     bool
}

func (e *RateLimitError) Error() string {
	scope := "route"
	if e.Global {
		scope = "global"
	}
	return fmt.Sprintf("discord: %s rate limit, retry after %s", scope, e.RetryAfter)
}

// RetryAfterHint lets retry.Do wait at least as long as Discord asked.
func (e *RateLimitError) RetryAfterHint() time.Duration {
	return e.RetryAfter
}

// APIError is any other non-2xx response.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("discord: %d %s (code %d)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("discord: %d %s", e.Status, e.Message)
}

// IsUpstreamFailure reports whether err says something about Discord's health
// rather than about the request. Client errors such as an unknown guild do
// not count; rate limits, 5xx responses and transport errors do. Intended as
// the discord breaker's failure classifier.
func IsUpstreamFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var api *APIError
	if errors.As(err, &api) {
		return api.Status >= 500
	}
	return true
}

func parseRateLimit(h http.Header, body []byte) *RateLimitError {
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
		Global     bool    `json:"global"`
	}
	_ = json.Unmarshal(body, &payload)

	e := &RateLimitError{Global: payload.Global || h.Get("X-RateLimit-Global") == "true"}
	seconds := payload.RetryAfter
	if seconds <= 0 {
		seconds, _ = strconv.ParseFloat(h.Get("Retry-After"), 64)
	}
	if seconds <= 0 {
		seconds, _ = strconv.ParseFloat(h.Get("X-RateLimit-Reset-After"), 64)
	}
	if seconds > 0 {
		e.RetryAfter = time.Duration(math.Ceil(seconds*1000)) * time.Millisecond
	}
	return e
}

func parseAPIError(status int, body []byte) *APIError {
	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	if payload.Message == "" {
		payload.Message = http.StatusText(status)
	}
	return &APIError{Status: status, Code: payload.Code, Message: payload.Message}
}
