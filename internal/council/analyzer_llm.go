package council

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"conclave/internal/agent"
	"conclave/internal/ledger"
)

// ModelAnalyzer backs the mediator with a verification-style model pass:
// one call to surface the disagreement, a second to draft the resolution.
type ModelAnalyzer struct {
	transport agent.Transport
	ledger    *ledger.Ledger
	model     string
}

// NewModelAnalyzer builds an analyzer over the given transport. The model
// should be a high-capability one; mediation is rare and already budgeted.
func NewModelAnalyzer(transport agent.Transport, led *ledger.Ledger, model string) *ModelAnalyzer {
	return &ModelAnalyzer{transport: transport, ledger: led, model: model}
}

const analyzeSystemPrompt = `You are a neutral mediator for a review panel that has deadlocked.
Identify the single core point of disagreement between the reviewers.
Respond ONLY with JSON: {"disagreement_point": "...", "analysis_confidence": 0.0-1.0}`

const resolveSystemPrompt = `You are a neutral mediator. Given a deadlocked review and its analysis,
draft a compromise that satisfies the stricter reviewers.
Respond ONLY with JSON: {"verdict": "COMPROMISE", "rewritten_instructions": "...", "confidence": 0.0-1.0}`

func (m *ModelAnalyzer) Analyze(ctx context.Context, d Deadlock) (Analysis, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\nWeighted score: %.2f\n\nReviews:\n", d.Task, d.Score)
	for name, v := range d.Verdicts {
		fmt.Fprintf(&sb, "- %s: %s (%.2f): %s\n", name, v.Decision, v.Confidence, v.Reasoning)
	}

	raw, err := m.invoke(ctx, analyzeSystemPrompt, sb.String())
	if err != nil {
		return Analysis{}, err
	}

	var a Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Analysis{}, fmt.Errorf("malformed analysis: %w", err)
	}
	return a, nil
}

func (m *ModelAnalyzer) Resolve(ctx context.Context, d Deadlock, a Analysis) (Resolution, error) {
	prompt := fmt.Sprintf("Task: %s\nDisagreement: %s\n\nDraft the compromise.", d.Task, a.DisagreementPoint)

	raw, err := m.invoke(ctx, resolveSystemPrompt, prompt)
	if err != nil {
		return Resolution{}, err
	}

	var r Resolution
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Resolution{}, fmt.Errorf("malformed resolution: %w", err)
	}
	return r, nil
}

func (m *ModelAnalyzer) invoke(ctx context.Context, system, user string) (string, error) {
	raw, err := m.transport.Invoke(ctx, m.model, system, user)
	if err != nil {
		return "", err
	}
	if m.ledger != nil {
		m.ledger.RecordUsage(m.transport.Provider(), (len(system)+len(user)+len(raw))/4, m.model, 200)
	}
	return raw, nil
}
