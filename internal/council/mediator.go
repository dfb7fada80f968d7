package council

import (
	"context"
	"fmt"
	"sync"

	"conclave/internal/events"
	"conclave/internal/ledger"
	"conclave/internal/logging"
	"conclave/internal/memory"
	"conclave/internal/verdict"
)

// Mediator spawn limits. Each successive attempt within a session gets more
// expensive so a stuck deliberation burns out quickly instead of looping.
const (
	MaxMediatorSpawns  = 3
	MediatorBaseTokens = 4000
)

var spawnCostMultipliers = [MaxMediatorSpawns]float64{1.0, 1.5, 2.0}

// Mediation actions.
const (
	ActionApplyResolution = "APPLY_RESOLUTION"
	ActionHalt            = "HALT"
)

// ResolutionCompromise is the analyzer verdict that flips a deadlocked
// consensus to PASS with rewritten guidance.
const ResolutionCompromise = "COMPROMISE"

// Deadlock describes a consensus stuck in the ambiguous band, handed to the
// mediator for resolution.
type Deadlock struct {
	Task     string                      `json:"task"`
	TaskType string                      `json:"task_type"`
	Score    float64                     `json:"score"`
	Verdicts map[string]*verdict.Verdict `json:"verdicts"`
}

// Analysis is the mediator's read on why the panel split.
type Analysis struct {
	DisagreementPoint string        `json:"disagreement_point"`
	Confidence        float64       `json:"analysis_confidence"`
	TouchedTiers      []memory.Tier `json:"touched_tiers,omitempty"`
}

// Resolution is the mediator's proposed way out of the deadlock.
type Resolution struct {
	Verdict               string  `json:"verdict"`
	RewrittenInstructions string  `json:"rewritten_instructions"`
	Confidence            float64 `json:"confidence"`
}

// Mediation is the full record of one mediation attempt, attached to the
// session whether it resolved anything or halted.
type Mediation struct {
	Action        string      `json:"action"`
	Reason        string      `json:"reason,omitempty"`
	Analysis      *Analysis   `json:"analysis,omitempty"`
	Resolution    *Resolution `json:"resolution,omitempty"`
	RequiresHuman bool        `json:"requires_human"`
	Attempt       int         `json:"attempt"`
}

// Analyzer produces the deadlock analysis and resolution. The production
// implementation calls a model; tests substitute a deterministic one.
type Analyzer interface {
	Analyze(ctx context.Context, d Deadlock) (Analysis, error)
	Resolve(ctx context.Context, d Deadlock, a Analysis) (Resolution, error)
}

// Mediator resolves deadlocked deliberations. Spawns are capped per session
// and each attempt is gated on the ledger before any model work happens.
type Mediator struct {
	ledger   *ledger.Ledger
	bus      *events.Bus
	analyzer Analyzer

	mu     sync.Mutex
	spawns map[string]int
}

// NewMediator creates a mediator. A nil analyzer gets the static fallback,
// which proposes a generic compromise without consulting a model.
func NewMediator(led *ledger.Ledger, bus *events.Bus, analyzer Analyzer) *Mediator {
	if analyzer == nil {
		analyzer = staticAnalyzer{}
	}
	return &Mediator{
		ledger:   led,
		bus:      bus,
		analyzer: analyzer,
		spawns:   make(map[string]int),
	}
}

// AttemptResolution runs one mediation pass for the given session. The spawn
// cap is checked before the ledger so a capped session never spends budget.
func (m *Mediator) AttemptResolution(ctx context.Context, d Deadlock, sessionID string) *Mediation {
	attempt, ok, reason := m.canSpawn(sessionID)
	if !ok {
		m.bus.Publish(events.TypeError, map[string]any{
			"session_id": sessionID,
			"error":      "Mediator spawn failed: " + reason,
		})
		logging.MediatorError("session %s spawn denied: %s", sessionID, reason)
		return &Mediation{Action: ActionHalt, Reason: reason, Attempt: attempt}
	}
	m.recordSpawn(sessionID)

	analysis, err := m.analyzer.Analyze(ctx, d)
	if err != nil {
		logging.MediatorError("session %s analysis failed: %v", sessionID, err)
		return &Mediation{Action: ActionHalt, Reason: "Analysis failed: " + err.Error(), Attempt: attempt}
	}

	for _, tier := range analysis.TouchedTiers {
		if tier == memory.TierImmutable {
			return &Mediation{
				Action:   ActionHalt,
				Reason:   "Resolution violated hard invariants",
				Analysis: &analysis,
				Attempt:  attempt,
			}
		}
	}

	resolution, err := m.analyzer.Resolve(ctx, d, analysis)
	if err != nil {
		logging.MediatorError("session %s resolution failed: %v", sessionID, err)
		return &Mediation{Action: ActionHalt, Reason: "Resolution failed: " + err.Error(), Analysis: &analysis, Attempt: attempt}
	}

	med := &Mediation{
		Action:        ActionApplyResolution,
		Analysis:      &analysis,
		Resolution:    &resolution,
		RequiresHuman: requiresHuman(d.TaskType, resolution.Confidence),
		Attempt:       attempt,
	}

	m.bus.Publish(events.TypeAgentAction, map[string]any{
		"session_id": sessionID,
		"agent":      "Mediator",
		"action":     "resolve_deadlock",
		"target":     d.Task,
	})
	logging.Mediator("session %s attempt %d: %s (human=%v)", sessionID, attempt, resolution.Verdict, med.RequiresHuman)
	return med
}

// canSpawn returns the 1-based attempt number and whether this spawn is
// permitted. Cap first, then ledger.
func (m *Mediator) canSpawn(sessionID string) (int, bool, string) {
	m.mu.Lock()
	count := m.spawns[sessionID]
	m.mu.Unlock()

	if count >= MaxMediatorSpawns {
		return count + 1, false, fmt.Sprintf("Max spawns (%d) reached.", MaxMediatorSpawns)
	}

	cost := int(MediatorBaseTokens * spawnCostMultipliers[count])
	allowed, reason, _, _ := m.ledger.CanMakeRequest(ledger.ProviderGemini, cost, 4, "mediation")
	if !allowed {
		return count + 1, false, "Budget insufficient: " + reason
	}
	return count + 1, true, ""
}

func (m *Mediator) recordSpawn(sessionID string) {
	m.mu.Lock()
	m.spawns[sessionID]++
	m.mu.Unlock()
}

// requiresHuman applies the ratification gate: critical task types always
// need a human, and low-confidence resolutions do regardless of type.
func requiresHuman(taskType string, confidence float64) bool {
	if taskType == "security" || taskType == "architecture" {
		return true
	}
	return confidence < 0.8
}

// staticAnalyzer is the no-model fallback. It always proposes a compromise
// that asks for the disputed concern to be isolated and reworked.
type staticAnalyzer struct{}

func (staticAnalyzer) Analyze(_ context.Context, d Deadlock) (Analysis, error) {
	return Analysis{
		DisagreementPoint: fmt.Sprintf("Panel split %.2f on: %s", d.Score, d.Task),
		Confidence:        0.85,
	}, nil
}

func (staticAnalyzer) Resolve(_ context.Context, _ Deadlock, a Analysis) (Resolution, error) {
	return Resolution{
		Verdict:               ResolutionCompromise,
		RewrittenInstructions: "Isolate the disputed concern and rework it under the stricter interpretation.",
		Confidence:            0.82,
	}, nil
}
