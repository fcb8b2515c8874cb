package ai

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker refuses oracle calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the breaker's position.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // calls pass
	CircuitOpen                         // calls fail fast until the open timeout passes
	CircuitHalfOpen                     // probing: one failure reopens, enough successes close
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops a run from hammering an API that keeps failing.
// Once every repository's classification is failing there is no point
// spending the retry budget of the remaining ones.
type CircuitBreaker struct {
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration

	mu          sync.Mutex
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewCircuitBreaker opens after failureThreshold consecutive failures and
// closes again after successThreshold successes while half-open.
func NewCircuitBreaker(failureThreshold, successThreshold int, openTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
	}
}

// Allow returns ErrCircuitOpen while the breaker is open.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return nil
	}
	if time.Since(cb.lastFailure) > cb.openTimeout {
		cb.moveTo(CircuitHalfOpen)
		return nil
	}
	return ErrCircuitOpen
}

// RecordSuccess notes a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.moveTo(CircuitClosed)
		}
	}
}

// RecordFailure notes a transient failure. Permanent errors such as a bad
// API key should not be recorded.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()
	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.moveTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.moveTo(CircuitOpen)
	}
}

// State returns the current position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// moveTo changes state; cb.mu must be held.
func (cb *CircuitBreaker) moveTo(next CircuitState) {
	prev := cb.state
	cb.state = next
	cb.successes = 0
	if next == CircuitClosed {
		cb.failures = 0
	}
	slog.Info("oracle circuit breaker", "from", prev.String(), "to", next.String(), "failures", cb.failures)
}
