// Package council implements the deliberation engine: adaptive routing, the
// parallel agent panel, the weighted-consensus reducer with veto authority,
// the deadlock mediator, and the feedback loop that turns bad outcomes into
// institutional memory.
package council

import (
	"conclave/internal/verdict"
)

// AgentConfig is one panel member's authority: its voting weight and
// whether a FAIL from it vetoes the panel.
type AgentConfig struct {
	Role      string   `yaml:"role" json:"role"`
	Weight    float64  `yaml:"weight" json:"weight"`
	VetoPower bool     `yaml:"veto_power" json:"veto_power"`
	Chain     []string `yaml:"chain,omitempty" json:"chain,omitempty"`
}

// Consensus is the reduced, panel-level decision.
type Consensus struct {
	Decision   verdict.Decision `json:"decision"`
	Confidence float64          `json:"confidence"`
	Reason     string           `json:"reason"`
}

// RoutingDecision is the per-deliberation provider/model/budget choice.
type RoutingDecision struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Reason    string `json:"reason"`
	MaxTokens int    `json:"max_tokens"`
}

// Session is the full record of one deliberation. It is owned by the
// council for the lifetime of one Deliberate call and is not persisted
// directly; only its outcome reaches the incident log.
type Session struct {
	SessionID string                      `json:"session_id"`
	Task      string                      `json:"task"`
	Route     RoutingDecision             `json:"route"`
	Verdicts  map[string]*verdict.Verdict `json:"agent_reviews"`
	Consensus Consensus                   `json:"consensus"`
	Mediation *Mediation                  `json:"mediation,omitempty"`

	// Fallback marks a degraded FAIL_OPEN result so callers can tell a
	// real council WARN from a policy-generated one.
	Fallback bool `json:"fallback,omitempty"`
}
