// Package agent implements the resilient reviewer: a role-bound caller that
// walks an ordered model chain behind per-model circuit breakers and always
// returns a schema-valid verdict, never an error.
package agent

import (
	"sync"
	"time"
)

// Breaker defaults.
const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
)

// Breaker is a per-model circuit breaker. CLOSED -> OPEN after threshold
// consecutive failures; OPEN -> HALF-OPEN once the recovery timeout elapses
// (IsOpen returns false so one probe call goes through); the probe's success
// resets the breaker, its failure re-opens it.
type Breaker struct {
	mu               sync.Mutex
	failureThreshold int
	recoveryTimeout  time.Duration
	failures         int
	lastFailure      time.Time
}

// NewBreaker creates a breaker with the default thresholds.
func NewBreaker() *Breaker {
	return &Breaker{
		failureThreshold: DefaultFailureThreshold,
		recoveryTimeout:  DefaultRecoveryTimeout,
	}
}

// RecordFailure notes one consecutive failure.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = time.Now()
}

// RecordSuccess closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// IsOpen reports whether calls should be skipped right now.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.failureThreshold {
		return false
	}
	// Past the recovery window the breaker is half-open: allow a probe.
	return time.Since(b.lastFailure) <= b.recoveryTimeout
}
