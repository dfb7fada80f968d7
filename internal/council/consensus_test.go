package council

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"conclave/internal/verdict"
)

func v(d verdict.Decision, conf float64) *verdict.Verdict {
	return &verdict.Verdict{Decision: d, Confidence: conf, Reasoning: "test reasoning text"}
}

func TestReduce_VetoOverridesWeights(t *testing.T) {
	verdicts := map[string]*verdict.Verdict{
		"LeadArchitect":        v(verdict.DecisionPass, 0.95),
		"AdversarialValidator": v(verdict.DecisionFail, 0.6),
	}
	configs := map[string]AgentConfig{
		"LeadArchitect":        {Weight: 3.0},
		"AdversarialValidator": {Weight: 1.0, VetoPower: true},
	}

	c := Reduce(verdicts, configs)
	require.Equal(t, verdict.DecisionFail, c.Decision)
	require.Equal(t, 1.0, c.Confidence)
	require.Equal(t, "Blocked by veto: AdversarialValidator", c.Reason)
}

func TestReduce_VetoListsAllVetoersSorted(t *testing.T) {
	verdicts := map[string]*verdict.Verdict{
		"Zeta":  v(verdict.DecisionFail, 0.9),
		"Alpha": v(verdict.DecisionFail, 0.9),
	}
	configs := map[string]AgentConfig{
		"Zeta":  {Weight: 1.0, VetoPower: true},
		"Alpha": {Weight: 1.0, VetoPower: true},
	}

	c := Reduce(verdicts, configs)
	require.Equal(t, "Blocked by veto: Alpha, Zeta", c.Reason)
}

func TestReduce_WeightedMajorityBelowPassBand(t *testing.T) {
	// 3.0*1.0*0.9 + 1.0*0*0.9 over weight 4 is 0.675: a confident
	// heavyweight PASS against a confident FAIL does not clear the PASS
	// band on its own.
	verdicts := map[string]*verdict.Verdict{
		"LeadArchitect":        v(verdict.DecisionPass, 0.9),
		"AdversarialValidator": v(verdict.DecisionFail, 0.9),
	}
	configs := map[string]AgentConfig{
		"LeadArchitect":        {Weight: 3.0},
		"AdversarialValidator": {Weight: 1.0},
	}

	c := Reduce(verdicts, configs)
	require.InDelta(t, 0.675, c.Confidence, 1e-9)
	require.Equal(t, verdict.DecisionWarn, c.Decision)
}

func TestReduce_UnknownAgentDefaultsToWeightOne(t *testing.T) {
	verdicts := map[string]*verdict.Verdict{
		"Stranger": v(verdict.DecisionPass, 1.0),
	}

	c := Reduce(verdicts, map[string]AgentConfig{})
	require.Equal(t, verdict.DecisionPass, c.Decision)
	require.Equal(t, 1.0, c.Confidence)
}

func TestReduce_NoVotes(t *testing.T) {
	c := Reduce(map[string]*verdict.Verdict{}, map[string]AgentConfig{})
	require.Equal(t, verdict.DecisionFail, c.Decision)
	require.Equal(t, 0.0, c.Confidence)
	require.Equal(t, "No valid votes cast", c.Reason)
}

func TestReduce_ErrorVotesDragScoreDown(t *testing.T) {
	verdicts := map[string]*verdict.Verdict{
		"A": v(verdict.DecisionPass, 1.0),
		"B": v(verdict.DecisionError, 0.0),
	}
	configs := map[string]AgentConfig{
		"A": {Weight: 1.0},
		"B": {Weight: 1.0},
	}

	c := Reduce(verdicts, configs)
	require.InDelta(t, 0.5, c.Confidence, 1e-9)
	require.Equal(t, verdict.DecisionWarn, c.Decision)
}

func TestReduce_BandingIsTotal(t *testing.T) {
	cases := []struct {
		conf float64
		want verdict.Decision
	}{
		{1.0, verdict.DecisionPass},
		{0.70, verdict.DecisionPass},
		{0.699, verdict.DecisionWarn},
		{0.40, verdict.DecisionWarn},
		{0.399, verdict.DecisionFail},
		{0.0, verdict.DecisionFail},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%.3f", tc.conf), func(t *testing.T) {
			verdicts := map[string]*verdict.Verdict{
				"A": v(verdict.DecisionPass, tc.conf),
			}
			c := Reduce(verdicts, map[string]AgentConfig{"A": {Weight: 1.0}})
			require.Equal(t, tc.want, c.Decision)
		})
	}
}

func TestIsDeadlock_BandIsInclusive(t *testing.T) {
	require.True(t, IsDeadlock(Consensus{Confidence: 0.40}))
	require.True(t, IsDeadlock(Consensus{Confidence: 0.50}))
	require.True(t, IsDeadlock(Consensus{Confidence: 0.60}))
	require.False(t, IsDeadlock(Consensus{Confidence: 0.39}))
	require.False(t, IsDeadlock(Consensus{Confidence: 0.61}))
}
