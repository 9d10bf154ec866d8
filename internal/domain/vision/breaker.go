package vision

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// circuitBreaker stops calling a failing model for retryAfter once
// maxFailures consecutive calls have failed.
type circuitBreaker struct {
	mu          sync.Mutex
	maxFailures int
	retryAfter  time.Duration
	failures    int
	lastFailure time.Time
	state       breakerState
	now         func() time.Time
}

func newCircuitBreaker(maxFailures int, retryAfter time.Duration) *circuitBreaker {
	return &circuitBreaker{
		maxFailures: maxFailures,
		retryAfter:  retryAfter,
		now:         time.Now,
	}
}

// allow reports whether a call may proceed. An open breaker lets a single
// trial call through once retryAfter has passed; others are refused until
// that call records its result.
func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerOpen:
		if cb.now().Sub(cb.lastFailure) > cb.retryAfter {
			cb.state = breakerHalfOpen
			return true
		}
		return false
	case breakerHalfOpen:
		return false
	default:
		return true
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = breakerClosed
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()
	if cb.state == breakerHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = breakerOpen
	}
}
