package council

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"conclave/internal/events"
	"conclave/internal/ledger"
	"conclave/internal/memory"
	"conclave/internal/verdict"
)

// scriptedPanelist returns a fixed verdict and records what it was asked.
type scriptedPanelist struct {
	mu          sync.Mutex
	verdict     *verdict.Verdict
	panics      bool
	block       bool
	lastContext string
	gotRules    []memory.Constraint
}

func (p *scriptedPanelist) Query(ctx context.Context, _, contextText string, constraints []memory.Constraint) *verdict.Verdict {
	p.mu.Lock()
	p.lastContext = contextText
	p.gotRules = constraints
	p.mu.Unlock()

	if p.panics {
		panic("scripted panel failure")
	}
	if p.block {
		<-ctx.Done()
		return verdict.ErrorVerdict("cancelled")
	}
	return p.verdict
}

func member(name string, weight float64, veto bool, p Panelist) Member {
	return Member{Name: name, Config: AgentConfig{Role: name, Weight: weight, VetoPower: veto}, Panelist: p}
}

func passVerdict(conf float64) *verdict.Verdict {
	return &verdict.Verdict{Decision: verdict.DecisionPass, Confidence: conf, Reasoning: "implementation is sound"}
}

func warnVerdict(conf float64) *verdict.Verdict {
	return &verdict.Verdict{Decision: verdict.DecisionWarn, Confidence: conf, Reasoning: "minor style concerns"}
}

type councilFixture struct {
	council *Council
	store   *memory.Store
	ledger  *ledger.Ledger
	bus     *events.Bus
}

func newTestCouncil(t *testing.T, members []Member, opts ...Option) *councilFixture {
	t.Helper()
	store := newTestStore(t)
	led := newTestLedger(t, nil)
	bus := events.NewBus()
	c := New(members, NewRouter(led, DefaultRouterConfig()), NewMediator(led, bus, nil), store, bus, opts...)
	return &councilFixture{council: c, store: store, ledger: led, bus: bus}
}

func TestDeliberate_UnanimousPass(t *testing.T) {
	fx := newTestCouncil(t, []Member{
		member("LeadArchitect", 3.0, false, &scriptedPanelist{verdict: passVerdict(0.9)}),
		member("AdversarialValidator", 1.0, true, &scriptedPanelist{verdict: passVerdict(0.8)}),
	})

	s, err := fx.council.Deliberate(context.Background(), "add retry logic", "general review", "go", 3)
	require.NoError(t, err)
	require.Equal(t, verdict.DecisionPass, s.Consensus.Decision)
	require.Len(t, s.Verdicts, 2)
	require.NotEmpty(t, s.SessionID)
	require.Nil(t, s.Mediation)
	require.False(t, s.Fallback)
	require.NotEmpty(t, s.Route.Model)
}

func TestDeliberate_InjectsRoutingDirective(t *testing.T) {
	p := &scriptedPanelist{verdict: passVerdict(0.9)}
	fx := newTestCouncil(t, []Member{member("A", 1.0, false, p)})

	_, err := fx.council.Deliberate(context.Background(), "trivial tweak", "quick check", "go", 1)
	require.NoError(t, err)

	require.Contains(t, p.lastContext, "quick check")
	require.Contains(t, p.lastContext, "[SYSTEM: Use Model gemini-1.5-flash via gemini]")
}

func TestDeliberate_PassesActiveConstraints(t *testing.T) {
	p := &scriptedPanelist{verdict: passVerdict(0.9)}
	fx := newTestCouncil(t, []Member{member("A", 1.0, false, p)})

	c := memory.NewConstraint("never shell out with raw input", "exec.Command", memory.TierValidated, memory.Scope{Language: "go"}, "curator")
	require.NoError(t, fx.store.AddConstraint(c))

	_, err := fx.council.Deliberate(context.Background(), "spawn a helper process", "review", "go", 3)
	require.NoError(t, err)
	require.Len(t, p.gotRules, 1)
	require.Equal(t, c.ID, p.gotRules[0].ID)
}

func TestDeliberate_InvalidVerdictBecomesError(t *testing.T) {
	bad := &verdict.Verdict{Decision: verdict.DecisionPass, Confidence: 0.9, Reasoning: "short"}
	fx := newTestCouncil(t, []Member{
		member("A", 1.0, false, &scriptedPanelist{verdict: bad}),
		member("B", 1.0, false, &scriptedPanelist{verdict: passVerdict(0.9)}),
	})

	s, err := fx.council.Deliberate(context.Background(), "task", "review", "go", 3)
	require.NoError(t, err)
	require.Equal(t, verdict.DecisionError, s.Verdicts["A"].Decision)
	require.Contains(t, s.Verdicts["A"].Reasoning, "schema validation error")
	require.Equal(t, verdict.DecisionPass, s.Verdicts["B"].Decision)
}

func TestDeliberate_PanickingPanelistIsolated(t *testing.T) {
	fx := newTestCouncil(t, []Member{
		member("A", 1.0, false, &scriptedPanelist{panics: true}),
		member("B", 1.0, false, &scriptedPanelist{verdict: passVerdict(1.0)}),
	})

	s, err := fx.council.Deliberate(context.Background(), "task", "review", "go", 3)
	require.NoError(t, err)
	require.Equal(t, verdict.DecisionError, s.Verdicts["A"].Decision)
	require.Equal(t, verdict.DecisionPass, s.Verdicts["B"].Decision)
}

func TestDeliberate_DeadlockTriggersOneMediation(t *testing.T) {
	// Two WARN@1.0 votes reduce to exactly 0.5, inside the deadlock band.
	fx := newTestCouncil(t, []Member{
		member("A", 1.0, false, &scriptedPanelist{verdict: warnVerdict(1.0)}),
		member("B", 1.0, false, &scriptedPanelist{verdict: warnVerdict(1.0)}),
	})

	s, err := fx.council.Deliberate(context.Background(), "ambiguous change", "review", "go", 3)
	require.NoError(t, err)
	require.NotNil(t, s.Mediation)
	require.Equal(t, 1, s.Mediation.Attempt)
	require.Equal(t, ActionApplyResolution, s.Mediation.Action)

	// The static analyzer proposes a compromise, which flips the banded
	// WARN to PASS and appends the rewritten guidance.
	require.Equal(t, verdict.DecisionPass, s.Consensus.Decision)
	require.Contains(t, s.Consensus.Reason, "[MEDIATED: ")
}

func TestDeliberate_HaltedMediationKeepsBandedDecision(t *testing.T) {
	fx := newTestCouncil(t, []Member{
		member("A", 1.0, false, &scriptedPanelist{verdict: warnVerdict(1.0)}),
		member("B", 1.0, false, &scriptedPanelist{verdict: warnVerdict(1.0)}),
	})
	// Exhaust the daily budget so the mediator halts at the ledger gate.
	fx.ledger.RecordUsage(ledger.ProviderGemini, 1_000_000, "gemini-1.5-pro", 200)

	s, err := fx.council.Deliberate(context.Background(), "ambiguous change", "review", "go", 3)
	require.NoError(t, err)
	require.NotNil(t, s.Mediation)
	require.Equal(t, ActionHalt, s.Mediation.Action)
	require.Equal(t, verdict.DecisionWarn, s.Consensus.Decision)
	require.NotContains(t, s.Consensus.Reason, "[MEDIATED: ")
}

func TestDeliberate_ClearConsensusSkipsMediator(t *testing.T) {
	fx := newTestCouncil(t, []Member{
		member("A", 1.0, false, &scriptedPanelist{verdict: passVerdict(1.0)}),
	})

	s, err := fx.council.Deliberate(context.Background(), "obvious fix", "review", "go", 3)
	require.NoError(t, err)
	require.Nil(t, s.Mediation)
}

func TestDeliberate_TimeoutFailOpen(t *testing.T) {
	fx := newTestCouncil(t, []Member{
		member("A", 1.0, false, &scriptedPanelist{block: true}),
	}, WithTimeout(50*time.Millisecond))

	s, err := fx.council.Deliberate(context.Background(), "slow task", "review", "go", 3)
	require.NoError(t, err)
	require.True(t, s.Fallback)
	require.Equal(t, verdict.DecisionWarn, s.Consensus.Decision)
	require.Equal(t, 0.0, s.Consensus.Confidence)
	require.Contains(t, s.Consensus.Reason, "Council failed")
}

func TestDeliberate_TimeoutSuppressesConsensusEvent(t *testing.T) {
	fx := newTestCouncil(t, []Member{
		member("A", 1.0, false, &scriptedPanelist{block: true}),
	}, WithTimeout(50*time.Millisecond))

	var consensusEvents atomic.Int32
	fx.bus.Subscribe(events.TypeConsensusReached, func(events.Event) {
		consensusEvents.Add(1)
	})

	s, err := fx.council.Deliberate(context.Background(), "slow task", "review", "go", 3)
	require.NoError(t, err)
	require.True(t, s.Fallback)

	// Give the abandoned deliberation time to unwind after the timeout; it
	// must not announce a consensus the caller never received.
	time.Sleep(100 * time.Millisecond)
	fx.bus.Drain()
	require.Equal(t, int32(0), consensusEvents.Load())
}

func TestDeliberate_TimeoutFailClosed(t *testing.T) {
	fx := newTestCouncil(t, []Member{
		member("A", 1.0, false, &scriptedPanelist{block: true}),
	}, WithTimeout(50*time.Millisecond), WithFailurePolicy(FailClosed))

	_, err := fx.council.Deliberate(context.Background(), "slow task", "review", "go", 3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "council failure (closed)")
}

func TestDeliberate_EmitsLifecycleEvents(t *testing.T) {
	fx := newTestCouncil(t, []Member{
		member("A", 1.0, false, &scriptedPanelist{verdict: passVerdict(1.0)}),
	})

	var mu sync.Mutex
	seen := map[events.Type]int{}
	for _, et := range []events.Type{
		events.TypeDeliberationStart, events.TypeAgentVote,
		events.TypeConsensusReached, events.TypeDeliberationEnd,
	} {
		fx.bus.Subscribe(et, func(e events.Event) {
			mu.Lock()
			seen[e.Type]++
			mu.Unlock()
		})
	}

	_, err := fx.council.Deliberate(context.Background(), "task", "review", "go", 3)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, seen[events.TypeDeliberationStart])
	require.Equal(t, 1, seen[events.TypeAgentVote])
	require.Equal(t, 1, seen[events.TypeConsensusReached])
	require.Equal(t, 1, seen[events.TypeDeliberationEnd])
}

func TestDeliberate_VetoBlocks(t *testing.T) {
	fx := newTestCouncil(t, []Member{
		member("LeadArchitect", 3.0, false, &scriptedPanelist{verdict: passVerdict(0.95)}),
		member("AdversarialValidator", 1.0, true, &scriptedPanelist{
			verdict: &verdict.Verdict{Decision: verdict.DecisionFail, Confidence: 0.7, Reasoning: "unbounded recursion on user input"},
		}),
	})

	s, err := fx.council.Deliberate(context.Background(), "parse nested input", "review", "go", 3)
	require.NoError(t, err)
	require.Equal(t, verdict.DecisionFail, s.Consensus.Decision)
	require.Equal(t, 1.0, s.Consensus.Confidence)
	require.Contains(t, s.Consensus.Reason, "Blocked by veto: AdversarialValidator")
}

func TestHead_RuneBoundary(t *testing.T) {
	long := strings.Repeat("例", 60)
	got := head(long, 50)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, strings.Repeat("例", 50), got)
	require.Equal(t, "short", head("short", 50))
}

func TestRecordOutcome_BridgesToFeedback(t *testing.T) {
	fx := newTestCouncil(t, []Member{
		member("A", 1.0, false, &scriptedPanelist{verdict: passVerdict(1.0)}),
	})

	s, err := fx.council.Deliberate(context.Background(), "risky change", "review", "go", 3)
	require.NoError(t, err)

	require.NoError(t, fx.council.RecordOutcome(s, memory.OutcomeFailure, map[string]string{
		"error":       "panic in production",
		"failed_line": "risky()",
	}))
	require.Len(t, fx.store.Incidents(), 1)
	require.Len(t, fx.store.AllConstraints(), 1)
}
