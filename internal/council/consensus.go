package council

import (
	"fmt"
	"sort"
	"strings"

	"conclave/internal/verdict"
)

// Score banding for the reduced consensus.
const (
	PassThreshold = 0.70
	WarnThreshold = 0.40
)

// Deadlock band: a consensus score in this inclusive range is ambiguous
// enough to trigger mediation, even though the band alone would read WARN.
const (
	DeadlockLow  = 0.40
	DeadlockHigh = 0.60
)

// Reduce combines the panel's verdicts into one decision. Any veto-capable
// agent returning FAIL short-circuits all weighting; otherwise each verdict
// contributes score x confidence x weight, normalized by total weight.
// Deterministic for a given verdict set regardless of map iteration order.
func Reduce(verdicts map[string]*verdict.Verdict, configs map[string]AgentConfig) Consensus {
	var (
		totalScore  float64
		totalWeight float64
		vetoers     []string
	)

	for name, v := range verdicts {
		cfg, ok := configs[name]
		if !ok {
			cfg = AgentConfig{Weight: 1.0}
		}

		if cfg.VetoPower && v.Decision == verdict.DecisionFail {
			vetoers = append(vetoers, name)
		}

		totalScore += v.Score() * v.Confidence * cfg.Weight
		totalWeight += cfg.Weight
	}

	if len(vetoers) > 0 {
		sort.Strings(vetoers)
		return Consensus{
			Decision:   verdict.DecisionFail,
			Confidence: 1.0,
			Reason:     "Blocked by veto: " + strings.Join(vetoers, ", "),
		}
	}

	if totalWeight == 0 {
		return Consensus{
			Decision:   verdict.DecisionFail,
			Confidence: 0.0,
			Reason:     "No valid votes cast",
		}
	}

	score := totalScore / totalWeight

	var decision verdict.Decision
	switch {
	case score >= PassThreshold:
		decision = verdict.DecisionPass
	case score >= WarnThreshold:
		decision = verdict.DecisionWarn
	default:
		decision = verdict.DecisionFail
	}

	return Consensus{
		Decision:   decision,
		Confidence: score,
		Reason:     fmt.Sprintf("Weighted score: %.2f", score),
	}
}

// IsDeadlock reports whether the consensus falls in the mediation band.
func IsDeadlock(c Consensus) bool {
	return c.Confidence >= DeadlockLow && c.Confidence <= DeadlockHigh
}
