package chain

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Fantasim/tokenscout/internal/config"
)

// CircuitBreaker stops sending calls to an RPC endpoint after repeated
// transport failures.
//
//   - closed: calls pass; threshold consecutive failures open the circuit.
//   - open: calls are refused until cooldown has elapsed, then half-open.
//   - half-open: a limited number of trial calls pass. Success closes the
//     circuit, failure reopens it.
type CircuitBreaker struct {
	mu           sync.Mutex
	name         string
	state        string
	failures     int
	threshold    int
	cooldown     time.Duration
	openedAt     time.Time
	trialsMax    int
	trialsIssued int
}

// NewCircuitBreaker creates a closed breaker for the named endpoint.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:      name,
		state:     config.CircuitClosed,
		threshold: threshold,
		cooldown:  cooldown,
		trialsMax: config.CircuitBreakerHalfOpenMax,
	}
}

// Allow reports whether a call may be sent now.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case config.CircuitClosed:
		return true
	case config.CircuitOpen:
		if time.Since(cb.openedAt) < cb.cooldown {
			return false
		}
		slog.Debug("circuit breaker half-open", "endpoint", cb.name, "failures", cb.failures)
		cb.state = config.CircuitHalfOpen
		cb.trialsIssued = 1
		return true
	case config.CircuitHalfOpen:
		if cb.trialsIssued >= cb.trialsMax {
			return false
		}
		cb.trialsIssued++
		return true
	}
	return false
}

// RecordSuccess closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != config.CircuitClosed {
		slog.Info("circuit breaker closed", "endpoint", cb.name, "previousState", cb.state)
	}
	cb.state = config.CircuitClosed
	cb.failures = 0
	cb.trialsIssued = 0
}

// RecordFailure counts a transport failure and opens the circuit when the
// threshold is reached or a half-open trial fails.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == config.CircuitHalfOpen || cb.failures >= cb.threshold {
		if cb.state != config.CircuitOpen {
			slog.Warn("circuit breaker opened",
				"endpoint", cb.name,
				"failures", cb.failures,
				"threshold", cb.threshold,
			)
		}
		cb.state = config.CircuitOpen
		cb.openedAt = time.Now()
		cb.trialsIssued = 0
	}
}

// State returns closed, open or half_open.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the failure count since the last success.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
