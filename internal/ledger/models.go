// Package ledger answers two questions before any provider call: "can I
// call this provider right now" and "with which model". It tracks per-model
// request/token counters against fixed per-minute caps for the token-metered
// provider, and a persisted daily spend estimate against a budget for the
// spend-metered provider.
package ledger

import (
	"context"
	"sync"
	"time"

	"conclave/internal/logging"
)

// ModelTier classifies capability within a provider's chain.
type ModelTier string

const (
	TierFlagship  ModelTier = "flagship"
	TierWorkhorse ModelTier = "workhorse"
	TierUtility   ModelTier = "utility"
)

// Model tracks one model's per-minute utilization.
type Model struct {
	Name               string    `json:"name"`
	RPMLimit           int       `json:"rpm_limit"`
	TPMLimit           int       `json:"tpm_limit"`
	RequestsThisMinute int       `json:"requests_this_minute"`
	TokensThisMinute   int       `json:"tokens_this_minute"`
	LastRequest        time.Time `json:"last_request"`
	Tier               ModelTier `json:"tier"`
}

// Pool manages a token-metered provider's models with rotation and rate
// limiting. Counters reset on a fixed one-minute cadence.
type Pool struct {
	mu      sync.Mutex
	models  []*Model
	current int
}

// DefaultPool returns the standard chain, strongest first.
func DefaultPool() *Pool {
	return NewPool([]*Model{
		{Name: "llama-3.3-70b-versatile", RPMLimit: 30, TPMLimit: 40000, Tier: TierFlagship},
		{Name: "mixtral-8x7b-32768", RPMLimit: 30, TPMLimit: 40000, Tier: TierWorkhorse},
		{Name: "llama3-70b-8192", RPMLimit: 30, TPMLimit: 40000, Tier: TierWorkhorse},
	})
}

// NewPool wraps an explicit model list. The list order is the rotation
// order.
func NewPool(models []*Model) *Pool {
	return &Pool{models: models}
}

// StartResetLoop resets per-minute counters every minute until ctx is done.
func (p *Pool) StartResetLoop(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.ResetMinuteCounts()
			}
		}
	}()
}

// ResetMinuteCounts zeroes the per-minute counters for all models.
func (p *Pool) ResetMinuteCounts() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.models {
		m.RequestsThisMinute = 0
		m.TokensThisMinute = 0
	}
}

// Current returns the active rotation model.
func (p *Pool) Current() *Model {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.models[p.current]
}

// Rotate advances to the next model in the chain.
func (p *Pool) Rotate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotateLocked()
}

func (p *Pool) rotateLocked() {
	p.current = (p.current + 1) % len(p.models)
	logging.Ledger("pool rotated to model %s", p.models[p.current].Name)
}

// CanMakeRequest checks whether the named model has headroom for one more
// request of estimatedTokens. Returns a wait hint in seconds when denied.
func (p *Pool) CanMakeRequest(modelName string, estimatedTokens int) (bool, string, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := p.findLocked(modelName)
	if m == nil {
		return false, "model " + modelName + " not found", 0
	}
	if m.RequestsThisMinute >= m.RPMLimit {
		return false, "request rate limit reached for " + modelName, 60
	}
	if m.TokensThisMinute+estimatedTokens > m.TPMLimit {
		return false, "token rate limit reached for " + modelName, 60
	}
	return true, "OK", 0
}

// RecordRequest books one request against the model. A 429 status rotates
// the pool immediately.
func (p *Pool) RecordRequest(modelName string, tokensUsed, statusCode int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := p.findLocked(modelName)
	if m == nil {
		return
	}
	m.RequestsThisMinute++
	m.TokensThisMinute += tokensUsed
	m.LastRequest = time.Now()

	if statusCode == 429 {
		p.rotateLocked()
	}
}

// ModelForTask selects the model a task should use. Security-critical tasks
// at high complexity are pinned to the flagship model regardless of where
// rotation currently points.
func (p *Pool) ModelForTask(complexity int, taskType string) *Model {
	p.mu.Lock()
	defer p.mu.Unlock()

	if taskType == "security" && complexity >= 4 {
		for _, m := range p.models {
			if m.Tier == TierFlagship {
				return m
			}
		}
	}
	return p.models[p.current]
}

// Snapshot returns a copy of all model counters for status reporting.
func (p *Pool) Snapshot() []Model {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Model, len(p.models))
	for i, m := range p.models {
		out[i] = *m
	}
	return out
}

func (p *Pool) findLocked(name string) *Model {
	for _, m := range p.models {
		if m.Name == name {
			return m
		}
	}
	return nil
}
