// Package verdict defines the structured opinion an agent returns from a
// deliberation, and the validation rules that keep the council's inputs
// honest: bounded confidence, tagged evidence, and non-trivial reasoning.
package verdict

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decision is the categorical outcome of a single agent's review.
type Decision string

const (
	DecisionPass  Decision = "PASS"
	DecisionWarn  Decision = "WARN"
	DecisionFail  Decision = "FAIL"
	DecisionError Decision = "ERROR"
)

// MinReasoningLength is the minimum accepted length of the reasoning text.
const MinReasoningLength = 10

// Evidence tag prefixes. Every evidence string must carry exactly one.
const (
	TagSource      = "[SRC:" // source reference
	TagCommand     = "[CMD:" // command output reference
	TagPlaceholder = "[TBD:" // placeholder during development
)

// Verdict is one agent's structured opinion.
type Verdict struct {
	Decision   Decision `json:"verdict"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
	Blocking   bool     `json:"blocking,omitempty"`
	Reasoning  string   `json:"reasoning"`
}

// Validate checks the verdict against the schema rules. Confidence is
// clamped into [0,1] rather than rejected; everything else is a hard error.
func (v *Verdict) Validate() error {
	switch v.Decision {
	case DecisionPass, DecisionWarn, DecisionFail, DecisionError:
	default:
		return fmt.Errorf("unknown verdict %q", v.Decision)
	}

	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}

	for _, e := range v.Evidence {
		if !strings.HasPrefix(e, TagSource) && !strings.HasPrefix(e, TagCommand) && !strings.HasPrefix(e, TagPlaceholder) {
			return fmt.Errorf("invalid evidence format: %q must start with [SRC:, [CMD: or [TBD:", e)
		}
	}

	if len(strings.TrimSpace(v.Reasoning)) < MinReasoningLength {
		return fmt.Errorf("reasoning too short (min %d chars)", MinReasoningLength)
	}

	return nil
}

// Score maps the decision onto the consensus scale.
func (v *Verdict) Score() float64 {
	switch v.Decision {
	case DecisionPass:
		return 1.0
	case DecisionWarn:
		return 0.5
	default:
		return 0.0
	}
}

// Parse decodes a raw model response into a validated Verdict. Models wrap
// JSON in markdown fences or prose often enough that we extract the first
// balanced object before decoding.
func Parse(raw string) (*Verdict, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var v Verdict
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, fmt.Errorf("failed to parse verdict: %w", err)
	}
	if v.Reasoning == "" {
		v.Reasoning = "No reasoning provided."
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// ErrorVerdict builds the synthetic verdict used when an agent could not
// produce a real one. It satisfies Validate so it can flow through the
// reducer like any other vote.
func ErrorVerdict(reason string) *Verdict {
	if len(reason) < MinReasoningLength {
		reason = "agent failure: " + reason
	}
	return &Verdict{
		Decision:   DecisionError,
		Confidence: 0.0,
		Evidence:   []string{fmt.Sprintf("%s %s]", TagCommand, reason)},
		Reasoning:  reason,
	}
}

// extractJSON finds the first balanced JSON object in response (handles
// markdown wrappers).
func extractJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	for i := start; i < len(response); i++ {
		switch response[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}

	return ""
}
