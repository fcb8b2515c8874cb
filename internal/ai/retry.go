package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v4"
)

// RetryConfig controls how oracle calls are retried and throttled.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt. Default: 3
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Timeout bounds each attempt. Default: 90s
	Timeout time.Duration

	CircuitBreakerEnabled bool
	FailureThreshold      int
	SuccessThreshold      int
	OpenTimeout           time.Duration

	// MaxConcurrentCalls caps in-flight API calls across workers; 0 is unlimited.
	MaxConcurrentCalls int
}

// DefaultRetryConfig returns 3 retries from 1s to 30s, 90s per attempt, a
// breaker opening after 5 failures, and at most 3 concurrent calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:            3,
		InitialBackoff:        time.Second,
		MaxBackoff:            30 * time.Second,
		BackoffMultiplier:     2.0,
		Timeout:               90 * time.Second,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      2,
		OpenTimeout:           30 * time.Second,
		MaxConcurrentCalls:    3,
	}
}

func (c RetryConfig) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.InitialBackoff
	bo.MaxInterval = c.MaxBackoff
	bo.Multiplier = c.BackoffMultiplier
	bo.MaxElapsedTime = 0
	return backoff.WithMaxRetries(bo, uint64(c.MaxRetries))
}

// retryWithBackoff runs fn until it succeeds, fails permanently, or the
// retries run out. Each attempt gets its own timeout.
func (s *Supervisor) retryWithBackoff(ctx context.Context, operation string, fn func(context.Context) error) error {
	if s.concurrencySem != nil {
		if err := s.concurrencySem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("%s: waiting for a call slot: %w", operation, err)
		}
		defer s.concurrencySem.Release(1)
	}

	attempts := 0
	permanent := false
	attempt := func() error {
		if s.circuitBreaker != nil {
			if err := s.circuitBreaker.Allow(); err != nil {
				slog.Warn("oracle call blocked by circuit breaker",
					"operation", operation, "failures", s.circuitBreaker.Failures())
				permanent = true
				return backoff.Permanent(fmt.Errorf("%s: %w", operation, err))
			}
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				permanent = true
				return backoff.Permanent(fmt.Errorf("%s: rate limiter: %w", operation, err))
			}
		}

		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, s.retry.Timeout)
		err := fn(attemptCtx)
		cancel()

		switch {
		case err == nil:
			if s.circuitBreaker != nil {
				s.circuitBreaker.RecordSuccess()
			}
			return nil
		case !isRetriableError(err):
			slog.Warn("oracle call failed permanently", "operation", operation, "error", err)
			permanent = true
			return backoff.Permanent(err)
		}
		if s.circuitBreaker != nil {
			s.circuitBreaker.RecordFailure()
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		slog.Info("oracle call failed, retrying",
			"operation", operation, "attempt", attempts, "max_attempts", s.retry.MaxRetries+1,
			"backoff", wait, "error", err)
	}

	err := backoff.RetryNotify(attempt, backoff.WithContext(s.retry.newBackOff(), ctx), notify)
	switch {
	case err == nil:
		if attempts > 1 {
			slog.Info("oracle call succeeded after retries", "operation", operation, "attempts", attempts)
		}
		return nil
	case permanent:
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", operation, ctx.Err())
	default:
		return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, err)
	}
}

// retriableStatus lists the HTTP statuses worth another attempt.
var retriableStatus = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
	529:                            true, // Anthropic "overloaded"
}

// transientMarkers identify transient failures in untyped errors.
var transientMarkers = []string{
	"429", "rate limit",
	"500", "502", "503", "504",
	"internal server error", "bad gateway", "service unavailable", "gateway timeout", "overloaded",
	"connection refused", "connection reset", "timeout", "temporary failure", "eof",
}

// isRetriableError reports whether err is transient: a timeout, a throttling
// or server status, or a dropped connection.
func isRetriableError(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return retriableStatus[apiErr.StatusCode] || apiErr.StatusCode > 500
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
