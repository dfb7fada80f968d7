package agent

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies a transport failure so the caller can report rate
// limits, network faults, and malformed responses distinctly.
type FailureKind string

const (
	FailureNetwork   FailureKind = "network"
	FailureRateLimit FailureKind = "rate_limit"
	FailureMalformed FailureKind = "malformed"
)

// TransportError is a classified provider failure.
type TransportError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Classify extracts the failure kind from an error chain. Unclassified
// errors count as network failures.
func Classify(err error) FailureKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return FailureNetwork
}

// Transport dispatches one prompt to a concrete provider. Implementations
// return the raw response text; interpretation is the agent's job.
type Transport interface {
	// Invoke sends system+user prompts to the named model and returns raw
	// response text. Failures should be *TransportError where the cause is
	// known.
	Invoke(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)

	// Provider returns the ledger provider id this transport bills against.
	Provider() string
}
