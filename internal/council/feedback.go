package council

import (
	"strings"
	"unicode/utf8"

	"conclave/internal/logging"
	"conclave/internal/memory"
	"conclave/internal/verdict"
)

// FeedbackSource marks constraints synthesized by the outcome loop.
const FeedbackSource = "reflexion_loop"

// FeedbackLoop turns execution outcomes into institutional memory. Every
// outcome is logged; a false negative (the panel passed work that later
// failed) additionally seeds an experimental constraint so the next
// deliberation sees the failure mode.
type FeedbackLoop struct {
	store *memory.Store
}

// NewFeedbackLoop creates the loop over the given store.
func NewFeedbackLoop(store *memory.Store) *FeedbackLoop {
	return &FeedbackLoop{store: store}
}

// RecordOutcome logs what actually happened after a deliberation.
//
// True positives (the panel blocked work that would have failed) are not
// reinforced: whether blocked work would really have failed is unverifiable,
// and rewarding FAIL verdicts on faith drifts the panel toward blocking
// everything.
func (f *FeedbackLoop) RecordOutcome(session *Session, outcome memory.Outcome, details map[string]string) error {
	if err := f.store.RecordIncident(memory.Incident{
		SessionID: session.SessionID,
		Decision:  string(session.Consensus.Decision),
		Outcome:   outcome,
		Details:   details,
	}); err != nil {
		return err
	}

	if session.Consensus.Decision == verdict.DecisionPass &&
		(outcome == memory.OutcomeFailure || outcome == memory.OutcomeIncident) {
		return f.learnFromFailure(details)
	}
	return nil
}

// learnFromFailure synthesizes an experimental constraint from a false
// negative. Pattern extraction is deliberately crude; the 30-day trial and
// the short-pattern guard in the store bound the damage of a bad rule.
func (f *FeedbackLoop) learnFromFailure(details map[string]string) error {
	errMsg := details["error"]
	if errMsg == "" {
		errMsg = "Unknown runtime error"
	}

	pattern := details["failed_line"]
	if pattern == "" {
		pattern = "Unknown"
	}

	domain := "general"
	if strings.Contains(strings.ToLower(errMsg), "security") {
		domain = "security"
	}

	c := memory.NewConstraint(
		"Auto-learned: Prevent failure related to '"+truncate(errMsg, 50)+"'",
		pattern,
		memory.TierExperimental,
		memory.Scope{Domain: domain},
		FeedbackSource,
	)
	c.Metadata["original_error"] = errMsg

	if err := f.store.AddConstraint(c); err != nil {
		return err
	}
	logging.Memory("reflexion: new experimental constraint %s (%s)", c.ID, domain)
	return nil
}

// truncate keeps at most n runes so a cut never splits a multibyte
// character mid-sequence.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
