package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// AuthError means the GitHub credentials are missing or rejected. It is
// never retryable; a sync run aborts when it sees one.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "github auth: " + e.Reason
}

// RateLimitError is a 429 response. RetryAfter is the server-suggested
// wait, zero when the header was absent.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("github rate limited, retry after %s", e.RetryAfter)
	}
	return "github rate limited"
}

// HTTPError is a non-2xx API response that is not a rate limit or an
// auth failure.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("github api: status %d: %s", e.StatusCode, e.Message)
}

// classifyStatus maps a non-2xx API response to a typed error.
func classifyStatus(status int, retryAfter string, body string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		msg := strings.TrimSpace(body)
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &AuthError{Reason: msg}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: parseRetryAfter(retryAfter)}
	default:
		return &HTTPError{StatusCode: status, Message: strings.TrimSpace(body)}
	}
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// Retryable reports whether the error is worth another attempt:
// rate limits, server errors, timeouts and network failures. Auth and
// validation failures are permanent.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}

	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// RetryAfterHint extracts a server-suggested delay from err, or zero.
func RetryAfterHint(err error) time.Duration {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.RetryAfter
	}
	return 0
}
