package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"conclave/internal/council"
	"conclave/internal/memory"
	"conclave/internal/verdict"
)

var (
	outcomeSession    string
	outcomeDecision   string
	outcomeResult     string
	outcomeError      string
	outcomeFailedLine string
)

var outcomeCmd = &cobra.Command{
	Use:   "outcome",
	Short: "Report what actually happened after a deliberation",
	Long: `Feeds an execution outcome back into institutional memory. A PASS
decision followed by FAILURE or INCIDENT is a false negative: the loop
synthesizes an experimental constraint from it so the panel catches the same
mistake next time.`,
	RunE: recordOutcome,
}

func init() {
	outcomeCmd.Flags().StringVar(&outcomeSession, "session", "", "Session id from the original review (required)")
	outcomeCmd.Flags().StringVar(&outcomeDecision, "decision", "PASS", "Decision the council reached (PASS, WARN, FAIL)")
	outcomeCmd.Flags().StringVar(&outcomeResult, "outcome", "", "What happened: SUCCESS, FAILURE or INCIDENT (required)")
	outcomeCmd.Flags().StringVar(&outcomeError, "error", "", "Error text from the failure")
	outcomeCmd.Flags().StringVar(&outcomeFailedLine, "failed-line", "", "The line or pattern that failed")
	outcomeCmd.MarkFlagRequired("session")
	outcomeCmd.MarkFlagRequired("outcome")
}

func recordOutcome(cmd *cobra.Command, args []string) error {
	out := memory.Outcome(outcomeResult)
	switch out {
	case memory.OutcomeSuccess, memory.OutcomeFailure, memory.OutcomeIncident:
	default:
		return fmt.Errorf("invalid outcome %q (valid: SUCCESS, FAILURE, INCIDENT)", outcomeResult)
	}

	store, err := memory.NewStore(stateDir())
	if err != nil {
		return fmt.Errorf("failed to open constraint store: %w", err)
	}

	session := &council.Session{
		SessionID: outcomeSession,
		Consensus: council.Consensus{Decision: verdict.Decision(outcomeDecision)},
	}
	details := map[string]string{}
	if outcomeError != "" {
		details["error"] = outcomeError
	}
	if outcomeFailedLine != "" {
		details["failed_line"] = outcomeFailedLine
	}

	if err := council.NewFeedbackLoop(store).RecordOutcome(session, out, details); err != nil {
		return err
	}

	fmt.Printf("Recorded %s for session %s\n", out, outcomeSession)
	if session.Consensus.Decision == verdict.DecisionPass && out != memory.OutcomeSuccess {
		fmt.Println("False negative detected: experimental constraint added for future reviews")
	}
	return nil
}
