package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "auth", err: &AuthError{Reason: "bad token"}, want: false},
		{name: "wrapped auth", err: fmt.Errorf("push: %w", &AuthError{Reason: "x"}), want: false},
		{name: "rate limit", err: &RateLimitError{}, want: true},
		{name: "server error", err: &HTTPError{StatusCode: 503}, want: true},
		{name: "not found", err: &HTTPError{StatusCode: 404}, want: false},
		{name: "validation", err: &HTTPError{StatusCode: 422, Message: "title too long"}, want: false},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: true},
		{name: "network", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: true},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		err := classifyStatus(401, "", "Bad credentials")

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "Bad credentials", authErr.Reason)
	})

	t.Run("rate limited with retry-after", func(t *testing.T) {
		err := classifyStatus(429, "12", "")

		var rateErr *RateLimitError
		require.ErrorAs(t, err, &rateErr)
		assert.Equal(t, 12*time.Second, rateErr.RetryAfter)
		assert.Equal(t, 12*time.Second, RetryAfterHint(err))
	})

	t.Run("server error", func(t *testing.T) {
		err := classifyStatus(502, "", "upstream bad")

		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, 502, httpErr.StatusCode)
		assert.True(t, Retryable(err))
	})
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3"))
}

func TestRetryAfterHint_NoHint(t *testing.T) {
	assert.Equal(t, time.Duration(0), RetryAfterHint(errors.New("boom")))
	assert.Equal(t, time.Duration(0), RetryAfterHint(nil))
}
