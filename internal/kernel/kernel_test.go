package kernel

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"conclave/internal/council"
	"conclave/internal/events"
	"conclave/internal/ledger"
	"conclave/internal/memory"
	"conclave/internal/verdict"
)

type fixedPanelist struct {
	verdict *verdict.Verdict
}

func (p fixedPanelist) Query(context.Context, string, string, []memory.Constraint) *verdict.Verdict {
	return p.verdict
}

type fixture struct {
	store *memory.Store
}

func newKernel(t *testing.T, decision verdict.Decision, executor Executor, linter Linter, enforcing bool) (*Kernel, *fixture) {
	t.Helper()
	store, err := memory.NewStore(t.TempDir())
	require.NoError(t, err)

	led := ledger.New(filepath.Join(t.TempDir(), "budget.json"), ledger.DefaultPool(), ledger.DefaultLimits())
	bus := events.NewBus()

	members := []council.Member{{
		Name:   "Reviewer",
		Config: council.AgentConfig{Role: "Reviewer", Weight: 1.0},
		Panelist: fixedPanelist{verdict: &verdict.Verdict{
			Decision:   decision,
			Confidence: 1.0,
			Reasoning:  "fixed test panel opinion",
		}},
	}}
	c := council.New(members, council.NewRouter(led, council.DefaultRouterConfig()),
		council.NewMediator(led, bus, nil), store, bus)

	return New(c, executor, linter, enforcing), &fixture{store: store}
}

func TestExecuteTask_PassExecutesAndRecords(t *testing.T) {
	k, fx := newKernel(t, verdict.DecisionPass, nil, nil, true)

	res, err := k.ExecuteTask(context.Background(), "add pagination", "api work", 3)
	require.NoError(t, err)
	require.Equal(t, "executed", res.Status)
	require.Equal(t, memory.OutcomeSuccess, res.Outcome)
	require.Equal(t, "PASS", res.Decision)

	incs := fx.store.Incidents()
	require.Len(t, incs, 1)
	require.Equal(t, memory.OutcomeSuccess, incs[0].Outcome)
}

func TestExecuteTask_EnforcingBlocksOnFail(t *testing.T) {
	k, fx := newKernel(t, verdict.DecisionFail, nil, nil, true)

	_, err := k.ExecuteTask(context.Background(), "delete prod database", "", 3)
	var gerr *GovernanceError
	require.ErrorAs(t, err, &gerr)
	require.NotEmpty(t, gerr.SessionID)

	// The block itself is institutional memory.
	incs := fx.store.Incidents()
	require.Len(t, incs, 1)
	require.Equal(t, memory.OutcomeBlocked, incs[0].Outcome)
}

func TestExecuteTask_AdvisoryProceedsOnFail(t *testing.T) {
	k, _ := newKernel(t, verdict.DecisionFail, nil, nil, false)

	res, err := k.ExecuteTask(context.Background(), "risky but allowed", "", 3)
	require.NoError(t, err)
	require.Equal(t, "FAIL", res.Decision)
	require.Equal(t, memory.OutcomeSuccess, res.Outcome)
}

func TestExecuteTask_SimulatedFailureFeedsLearning(t *testing.T) {
	// PASS decision plus a failed execution is a false negative: the
	// feedback loop must grow an experimental constraint from it.
	k, fx := newKernel(t, verdict.DecisionPass, nil, nil, true)

	res, err := k.ExecuteTask(context.Background(), "this task will fail on purpose", "", 3)
	require.NoError(t, err)
	require.Equal(t, memory.OutcomeFailure, res.Outcome)

	constraints := fx.store.AllConstraints()
	require.Len(t, constraints, 1)
	require.Equal(t, memory.TierExperimental, constraints[0].Tier)
	require.Equal(t, "reflexion_loop", constraints[0].Source)
}

type failingLinter struct{}

func (failingLinter) Check(context.Context) error {
	return errors.New("unbalanced braces in main.go")
}

func TestExecuteTask_LintFailureOverridesOutcome(t *testing.T) {
	k, fx := newKernel(t, verdict.DecisionPass, nil, failingLinter{}, true)

	res, err := k.ExecuteTask(context.Background(), "tidy formatting", "", 3)
	require.NoError(t, err)
	require.Equal(t, memory.OutcomeFailure, res.Outcome)

	incs := fx.store.Incidents()
	require.Len(t, incs, 1)
	require.Contains(t, incs[0].Details["error"], "linter failed")
}

type recordingExecutor struct {
	called bool
}

func (r *recordingExecutor) Execute(context.Context, string) (memory.Outcome, map[string]string) {
	r.called = true
	return memory.OutcomeSuccess, nil
}

func TestExecuteTask_CustomExecutor(t *testing.T) {
	exec := &recordingExecutor{}
	k, _ := newKernel(t, verdict.DecisionPass, exec, nil, true)

	_, err := k.ExecuteTask(context.Background(), "run custom pipeline", "", 3)
	require.NoError(t, err)
	require.True(t, exec.called)
}
