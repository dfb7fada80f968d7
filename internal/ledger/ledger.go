package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"conclave/internal/logging"
)

// Provider identifiers. Groq is token-metered (free tier, per-minute caps);
// Gemini is spend-metered (daily dollar budget).
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// Per-token cost estimates for the spend-metered provider.
const (
	ratePro   = 0.000005
	rateFlash = 0.0000005
)

// Limits holds the fixed accounting caps.
type Limits struct {
	DailyBudget float64 // dollars per day for the spend-metered provider
}

// DefaultLimits mirrors the shipped configuration.
func DefaultLimits() Limits {
	return Limits{DailyBudget: 5.0}
}

// budgetState is the persisted document: spend-to-date plus the day it
// belongs to. A date mismatch on load resets the spend.
type budgetState struct {
	Spend float64 `json:"spend"`
	Date  string  `json:"date"`
}

// ProviderStatus is one provider's entry in the polled status snapshot.
type ProviderStatus struct {
	CurrentModel string  `json:"current_model,omitempty"`
	Spend        float64 `json:"spend,omitempty"`
	Budget       float64 `json:"budget,omitempty"`
	Health       string  `json:"health"`
	Models       []Model `json:"models,omitempty"`
}

// Ledger is the per-provider request/token accountant. Safe for concurrent
// use; budget state survives restarts via a persisted JSON document.
type Ledger struct {
	mu     sync.Mutex
	pool   *Pool
	limits Limits

	statePath  string
	spendToday float64
	spendDate  string
}

// New creates a ledger persisting budget state at statePath
// (e.g. .conclave/budget.json).
func New(statePath string, pool *Pool, limits Limits) *Ledger {
	if pool == nil {
		pool = DefaultPool()
	}
	l := &Ledger{
		pool:      pool,
		limits:    limits,
		statePath: statePath,
		spendDate: today(),
	}
	l.loadState()
	return l
}

// Pool exposes the token-metered model pool (for status and tests).
func (l *Ledger) Pool() *Pool {
	return l.pool
}

func today() string {
	return time.Now().Format("2006-01-02")
}

func (l *Ledger) loadState() {
	data, err := os.ReadFile(l.statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Ledger("could not load budget state: %v", err)
		}
		return
	}

	var st budgetState
	if err := json.Unmarshal(data, &st); err != nil {
		logging.Ledger("corrupt budget state, resetting: %v", err)
		return
	}

	// Day boundary resets the spend.
	if st.Date == today() {
		l.spendToday = st.Spend
	}
}

// saveLocked persists the budget document. Caller holds l.mu.
func (l *Ledger) saveLocked() {
	if err := os.MkdirAll(filepath.Dir(l.statePath), 0755); err != nil {
		logging.Ledger("could not create state dir: %v", err)
		return
	}
	data, err := json.Marshal(budgetState{Spend: l.spendToday, Date: l.spendDate})
	if err != nil {
		return
	}
	if err := os.WriteFile(l.statePath, data, 0644); err != nil {
		logging.Ledger("could not save budget state: %v", err)
	}
}

// rolloverLocked resets the daily spend when the date has moved on.
func (l *Ledger) rolloverLocked() {
	if d := today(); d != l.spendDate {
		l.spendDate = d
		l.spendToday = 0
	}
}

// CanMakeRequest reports whether a call to provider may proceed, and with
// which model. Returns (allowed, reason, wait seconds, model).
func (l *Ledger) CanMakeRequest(provider string, estimatedTokens, complexity int, taskType string) (bool, string, float64, string) {
	switch strings.ToLower(provider) {
	case ProviderGroq:
		m := l.pool.ModelForTask(complexity, taskType)
		allowed, reason, wait := l.pool.CanMakeRequest(m.Name, estimatedTokens)
		if !allowed {
			return false, reason, wait, ""
		}
		return true, "OK", 0, m.Name

	case ProviderGemini:
		l.mu.Lock()
		defer l.mu.Unlock()
		l.rolloverLocked()

		cost := float64(estimatedTokens) * ratePro
		if l.spendToday+cost > l.limits.DailyBudget {
			return false, fmt.Sprintf("daily budget exceeded (%.4f of %.2f)", l.spendToday, l.limits.DailyBudget), 0, ""
		}
		return true, "OK", 0, "gemini-1.5-pro"

	default:
		return false, "unknown provider " + provider, 0, ""
	}
}

// RecordUsage books actual usage after a call.
func (l *Ledger) RecordUsage(provider string, tokensUsed int, model string, statusCode int) {
	switch strings.ToLower(provider) {
	case ProviderGroq:
		if model != "" {
			l.pool.RecordRequest(model, tokensUsed, statusCode)
		}

	case ProviderGemini:
		rate := ratePro
		if strings.Contains(strings.ToLower(model), "flash") {
			rate = rateFlash
		}

		l.mu.Lock()
		l.rolloverLocked()
		l.spendToday += float64(tokensUsed) * rate
		l.saveLocked()
		l.mu.Unlock()

		logging.LedgerDebug("recorded %d tokens on %s (spend %.4f)", tokensUsed, model, l.SpendToday())
	}
}

// SpendToday returns the current daily spend estimate.
func (l *Ledger) SpendToday() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()
	return l.spendToday
}

// Status returns the provider utilization snapshot consumed by observers.
func (l *Ledger) Status() map[string]ProviderStatus {
	spend := l.SpendToday()

	health := "HEALTHY"
	if spend >= l.limits.DailyBudget*0.8 {
		health = "WARN"
	}

	return map[string]ProviderStatus{
		ProviderGroq: {
			CurrentModel: l.pool.Current().Name,
			Health:       "ACTIVE",
			Models:       l.pool.Snapshot(),
		},
		ProviderGemini: {
			Spend:  spend,
			Budget: l.limits.DailyBudget,
			Health: health,
		},
	}
}
