package config

import "fmt"

// CouncilConfig configures the review panel and its failure policy.
type CouncilConfig struct {
	// FailurePolicy: "fail_open" (degraded WARN result) or "fail_closed"
	// (hard error). Production defaults to fail_closed via CONCLAVE_ENV.
	FailurePolicy string `yaml:"failure_policy"`

	// Timeout bounds one whole deliberation, mediation included.
	Timeout string `yaml:"timeout"`

	// Agents is the panel roster. Weight and veto_power feed the
	// consensus reducer directly.
	Agents []AgentEntry `yaml:"agents"`
}

// AgentEntry is one panel member in the roster.
type AgentEntry struct {
	Name      string   `yaml:"name"`
	Role      string   `yaml:"role"`
	Weight    float64  `yaml:"weight"`
	VetoPower bool     `yaml:"veto_power"`
	Chain     []string `yaml:"chain,omitempty"`
}

// DefaultCouncilConfig returns the stock two-member hierarchy: a heavyweight
// architect and a lightweight validator holding the veto.
func DefaultCouncilConfig() CouncilConfig {
	return CouncilConfig{
		FailurePolicy: "fail_open",
		Timeout:       "60s",
		Agents: []AgentEntry{
			{Name: "LeadArchitect", Role: "Architect", Weight: 3.0},
			{Name: "AdversarialValidator", Role: "Validator", Weight: 1.0, VetoPower: true},
		},
	}
}

// Validate checks the panel roster.
func (c *CouncilConfig) Validate() error {
	if c.FailurePolicy != "fail_open" && c.FailurePolicy != "fail_closed" {
		return fmt.Errorf("invalid failure_policy %q (valid: fail_open, fail_closed)", c.FailurePolicy)
	}
	if len(c.Agents) == 0 {
		return fmt.Errorf("council requires at least one agent")
	}
	seen := map[string]bool{}
	for _, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent with empty name in roster")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate agent %q in roster", a.Name)
		}
		seen[a.Name] = true
		if a.Weight <= 0 {
			return fmt.Errorf("agent %q must have positive weight", a.Name)
		}
	}
	return nil
}
