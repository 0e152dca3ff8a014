package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RetryConfig configures the retry behavior for LLM calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups transient error substrings by category.
// Matched case-insensitively against err.Error() when no StatusError
// is available. Provider HTTP clients do not expose typed errors for
// network-level failures, so string matching is the fallback.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded"},             // rate limiting
	{"unavailable", "overloaded"},                // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == 429 || statusErr.Code >= 500
	}

	errStr := err.Error()
	for _, group := range retryablePatterns {
		if containsAny(errStr, group...) {
			return true
		}
	}
	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// Retrying wraps a Provider with exponential backoff on transient errors.
type Retrying struct {
	inner  Provider
	cfg    RetryConfig
	logger *slog.Logger
}

// NewRetrying wraps p so transient completion failures are retried.
func NewRetrying(p Provider, cfg RetryConfig, logger *slog.Logger) *Retrying {
	return &Retrying{inner: p, cfg: cfg, logger: logger}
}

// Name implements Provider.
func (r *Retrying) Name() string { return r.inner.Name() }

// Complete implements Provider with exponential backoff retry.
func (r *Retrying) Complete(ctx context.Context, messages []Message) (string, error) {
	var lastErr error
	delay := r.cfg.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		reply, err := r.inner.Complete(ctx, messages)
		if err == nil {
			r.logger.Debug("completion succeeded",
				"provider", r.inner.Name(),
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return reply, nil
		}

		lastErr = err

		// Non-retryable error - fail immediately
		if !retryableError(err) {
			return "", fmt.Errorf("complete: %w", err)
		}

		// Last attempt - don't sleep
		if attempt == r.cfg.MaxRetries {
			break
		}

		r.logger.Debug("retrying after error",
			"provider", r.inner.Name(),
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, r.cfg.MaxInterval)
		}
	}

	return "", fmt.Errorf("complete after %d retries (elapsed: %v): %w",
		r.cfg.MaxRetries, time.Since(start), lastErr)
}
