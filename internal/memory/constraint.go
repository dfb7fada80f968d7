// Package memory is the council's institutional memory: a tiered library of
// learned constraints plus an append-only incident log, persisted as JSON
// under the workspace .conclave directory.
package memory

import (
	"time"

	"github.com/google/uuid"
)

// Tier is the durability class of a constraint. It controls expiry and who
// may mutate the rule.
type Tier string

const (
	TierImmutable    Tier = "immutable"    // core rules, never expire
	TierValidated    Tier = "validated"    // human-approved, stable
	TierExperimental Tier = "experimental" // auto-learned, 30-day trial
	TierLogged       Tier = "logged"       // informational only
)

// ExperimentalTrial is the expiry window auto-assigned to experimental
// constraints created without one.
const ExperimentalTrial = 30 * 24 * time.Hour

// MinPatternLength guards against poisoning: patterns shorter than this are
// created deactivated.
const MinPatternLength = 3

// Scope restricts where a constraint applies.
type Scope struct {
	Language string `json:"language,omitempty"`
	Domain   string `json:"domain,omitempty"` // "general", "security", "performance", ...
	Context  string `json:"context,omitempty"`
}

// Constraint is a learned or curated rule injected into future agent
// prompts as a hard requirement. Constraints are never physically deleted,
// only expired or deactivated.
type Constraint struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Pattern     string            `json:"pattern"`
	Tier        Tier              `json:"tier"`
	Scope       Scope             `json:"scope"`
	Source      string            `json:"source"` // agent name or "incident_report"
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	Active      bool              `json:"active"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewConstraint builds a constraint with a fresh id and sane defaults.
func NewConstraint(description, pattern string, tier Tier, scope Scope, source string) Constraint {
	if scope.Domain == "" {
		scope.Domain = "general"
	}
	return Constraint{
		ID:          "C-" + uuid.NewString()[:8],
		Description: description,
		Pattern:     pattern,
		Tier:        tier,
		Scope:       scope,
		Source:      source,
		CreatedAt:   time.Now(),
		Active:      true,
		Metadata:    map[string]string{},
	}
}

// Expired reports whether the constraint's trial window has lapsed.
func (c *Constraint) Expired() bool {
	return c.ExpiresAt != nil && time.Now().After(*c.ExpiresAt)
}

// Matches reports whether the constraint applies to the given language and
// domain. A "general" query wants everything for that language; a specific
// query also accepts "general" constraints.
func (c *Constraint) Matches(language, domain string) bool {
	if c.Scope.Language != "" && c.Scope.Language != language {
		return false
	}
	if domain == "general" {
		return true
	}
	return c.Scope.Domain == "general" || c.Scope.Domain == domain
}

// Outcome classifies what actually happened after a council decision.
type Outcome string

const (
	OutcomeSuccess  Outcome = "SUCCESS"
	OutcomeFailure  Outcome = "FAILURE"
	OutcomeIncident Outcome = "INCIDENT"
	OutcomeBlocked  Outcome = "BLOCKED"
)

// Incident is one entry in the append-only outcome log.
type Incident struct {
	SessionID string            `json:"verdict_id"`
	Decision  string            `json:"decision"`
	Outcome   Outcome           `json:"outcome"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
