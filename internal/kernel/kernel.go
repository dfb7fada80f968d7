// Package kernel is the execution boundary: it consults the council before
// work runs, enforces or advises on the decision, and feeds the real outcome
// back so the council learns.
package kernel

import (
	"context"
	"fmt"
	"strings"

	"conclave/internal/council"
	"conclave/internal/logging"
	"conclave/internal/memory"
	"conclave/internal/verdict"
)

// GovernanceError is returned when the council blocks execution in
// enforcing mode.
type GovernanceError struct {
	SessionID string
	Reason    string
}

func (e *GovernanceError) Error() string {
	return "council blocked execution: " + e.Reason
}

// Linter verifies the workspace after execution. The zero value of the
// kernel runs without one.
type Linter interface {
	Check(ctx context.Context) error
}

// Executor performs the governed work. The default simulated executor
// stands in until a real one is wired.
type Executor interface {
	Execute(ctx context.Context, task string) (memory.Outcome, map[string]string)
}

// Result summarizes one governed execution.
type Result struct {
	Status   string           `json:"status"`
	Outcome  memory.Outcome   `json:"outcome"`
	Task     string           `json:"task"`
	Decision string           `json:"governance_verdict"`
	Session  *council.Session `json:"session"`
}

// Kernel runs the deliberate, decide, execute, learn lifecycle.
type Kernel struct {
	council   *council.Council
	executor  Executor
	linter    Linter
	enforcing bool
}

// New builds a kernel. executor and linter may be nil; a nil executor gets
// the keyword-driven simulator.
func New(c *council.Council, executor Executor, linter Linter, enforcing bool) *Kernel {
	if executor == nil {
		executor = simulatedExecutor{}
	}
	return &Kernel{council: c, executor: executor, linter: linter, enforcing: enforcing}
}

// ExecuteTask runs one task through the full lifecycle. In enforcing mode a
// FAIL consensus blocks execution and the block itself is recorded as an
// outcome; in advisory mode the decision is logged and work proceeds.
func (k *Kernel) ExecuteTask(ctx context.Context, task, taskContext string, complexity int) (*Result, error) {
	if taskContext == "" {
		taskContext = "No context provided"
	}

	session, err := k.council.Deliberate(ctx, task, taskContext, "go", complexity)
	if err != nil {
		return nil, fmt.Errorf("deliberation failed: %w", err)
	}

	decision := session.Consensus.Decision
	if decision == verdict.DecisionFail {
		reason := session.Consensus.Reason
		if k.enforcing {
			if err := k.council.RecordOutcome(session, memory.OutcomeBlocked, map[string]string{"reason": reason}); err != nil {
				logging.Kernel("failed to record blocked outcome: %v", err)
			}
			return nil, &GovernanceError{SessionID: session.SessionID, Reason: reason}
		}
		logging.Kernel("advisory: council blocked execution (%s), proceeding", reason)
	}

	outcome, details := k.executor.Execute(ctx, task)
	if details == nil {
		details = map[string]string{}
	}

	if k.linter != nil {
		if err := k.linter.Check(ctx); err != nil {
			outcome = memory.OutcomeFailure
			details["error"] = "linter failed: " + err.Error()
			logging.Kernel("post-execution lint failed: %v", err)
		}
	}

	if err := k.council.RecordOutcome(session, outcome, details); err != nil {
		return nil, fmt.Errorf("failed to record outcome: %w", err)
	}

	return &Result{
		Status:   "executed",
		Outcome:  outcome,
		Task:     task,
		Decision: string(decision),
		Session:  session,
	}, nil
}

// simulatedExecutor fakes execution from task keywords so the learning loop
// can be exercised end to end without a real runner.
type simulatedExecutor struct{}

func (simulatedExecutor) Execute(_ context.Context, task string) (memory.Outcome, map[string]string) {
	lower := strings.ToLower(task)
	if strings.Contains(lower, "fail") || strings.Contains(lower, "error") {
		return memory.OutcomeFailure, map[string]string{
			"error":       "simulated failure based on task keywords",
			"failed_line": task,
		}
	}
	return memory.OutcomeSuccess, map[string]string{}
}
