package council

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"conclave/internal/events"
	"conclave/internal/logging"
	"conclave/internal/memory"
	"conclave/internal/verdict"
)

// FailurePolicy decides what a broken deliberation yields: a degraded WARN
// result or a hard error.
type FailurePolicy string

const (
	FailOpen   FailurePolicy = "fail_open"
	FailClosed FailurePolicy = "fail_closed"
)

// DefaultTimeout bounds one whole deliberation, mediation included.
const DefaultTimeout = 60 * time.Second

// Panelist is one reviewer the council can poll. agent.Agent satisfies it;
// tests substitute scripted panelists.
type Panelist interface {
	Query(ctx context.Context, prompt, contextText string, constraints []memory.Constraint) *verdict.Verdict
}

// Member pairs a panelist with its authority configuration.
type Member struct {
	Name     string
	Config   AgentConfig
	Panelist Panelist
}

// Council orchestrates one deliberation: route, fan out to the panel,
// reduce, mediate deadlocks, emit events.
type Council struct {
	members  []Member
	configs  map[string]AgentConfig
	router   *Router
	mediator *Mediator
	store    *memory.Store
	feedback *FeedbackLoop
	bus      *events.Bus
	policy   FailurePolicy
	timeout  time.Duration
}

// Option tweaks council construction.
type Option func(*Council)

// WithTimeout overrides the whole-deliberation deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Council) { c.timeout = d }
}

// WithFailurePolicy overrides the failure policy.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(c *Council) { c.policy = p }
}

// New assembles a council. The member list defines both the panel and the
// consensus weights.
func New(members []Member, router *Router, mediator *Mediator, store *memory.Store, bus *events.Bus, opts ...Option) *Council {
	configs := make(map[string]AgentConfig, len(members))
	for _, m := range members {
		configs[m.Name] = m.Config
	}
	c := &Council{
		members:  members,
		configs:  configs,
		router:   router,
		mediator: mediator,
		store:    store,
		feedback: NewFeedbackLoop(store),
		bus:      bus,
		policy:   FailOpen,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deliberate runs the full consensus process over the given work. It always
// returns a session under FailOpen; under FailClosed a timeout or internal
// panic surfaces as an error.
func (c *Council) Deliberate(ctx context.Context, task, contextText, language string, complexity int) (*Session, error) {
	sessionID := uuid.NewString()

	route := c.router.RouteTask(fmt.Sprintf("%s %s", contextText, head(task, 50)), complexity)
	c.bus.Publish(events.TypeAgentAction, map[string]any{
		"session_id": sessionID,
		"agent":      "Router",
		"action":     "route_task",
		"target":     route.Provider + "/" + route.Model,
	})
	c.bus.Publish(events.TypeDeliberationStart, map[string]any{
		"session_id": sessionID,
		"task_size":  len(task),
	})

	session, err := c.runBounded(ctx, sessionID, task, contextText, language, route)
	if err != nil {
		c.bus.Publish(events.TypeError, map[string]any{"session_id": sessionID, "error": err.Error()})
		return c.handleFailure(sessionID, task, route, err)
	}

	// Published here, not in run: an abandoned post-timeout run must never
	// announce a consensus the caller never saw.
	c.bus.Publish(events.TypeConsensusReached, map[string]any{
		"session_id": sessionID,
		"decision":   string(session.Consensus.Decision),
		"confidence": session.Consensus.Confidence,
	})
	c.bus.Publish(events.TypeDeliberationEnd, map[string]any{"session_id": sessionID, "status": "success"})
	logging.Council("session %s: %s (%.2f)", sessionID, session.Consensus.Decision, session.Consensus.Confidence)
	return session, nil
}

// RecordOutcome bridges to the feedback loop for institutional learning.
func (c *Council) RecordOutcome(session *Session, outcome memory.Outcome, details map[string]string) error {
	return c.feedback.RecordOutcome(session, outcome, details)
}

// Bus exposes the event bus so callers can subscribe before deliberating.
func (c *Council) Bus() *events.Bus { return c.bus }

// runBounded executes the deliberation body under the council timeout,
// converting a panicking orchestration into an error instead of taking the
// process down.
func (c *Council) runBounded(ctx context.Context, sessionID, task, contextText, language string, route RoutingDecision) (session *Session, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		session *Session
		err     error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{nil, fmt.Errorf("deliberation panic: %v", r)}
			}
		}()
		s, e := c.run(ctx, sessionID, task, contextText, language, route)
		done <- result{s, e}
	}()

	select {
	case r := <-done:
		return r.session, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("council deliberation timed out after %s", c.timeout)
	}
}

func (c *Council) run(ctx context.Context, sessionID, task, contextText, language string, route RoutingDecision) (*Session, error) {
	constraints := c.store.ActiveConstraints(language, "general")

	verdicts, err := c.pollPanel(ctx, sessionID, task, contextText, route, constraints)
	if err != nil {
		return nil, err
	}

	consensus := Reduce(verdicts, c.configs)

	session := &Session{
		SessionID: sessionID,
		Task:      task,
		Route:     route,
		Verdicts:  verdicts,
		Consensus: consensus,
	}

	if IsDeadlock(consensus) {
		c.bus.Publish(events.TypeError, map[string]any{
			"session_id": sessionID,
			"error":      "deadlock detected, spawning mediator",
		})
		c.mediate(ctx, session)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return session, nil
}

// pollPanel fans the work out to every member concurrently. One member's
// failure never aborts the others; invalid verdicts are downgraded to ERROR
// votes so the reducer still sees a full panel.
func (c *Council) pollPanel(ctx context.Context, sessionID, task, contextText string, route RoutingDecision, constraints []memory.Constraint) (map[string]*verdict.Verdict, error) {
	routedContext := fmt.Sprintf("%s\n[SYSTEM: Use Model %s via %s]", contextText, route.Model, route.Provider)

	var mu sync.Mutex
	verdicts := make(map[string]*verdict.Verdict, len(c.members))

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range c.members {
		g.Go(func() error {
			v := c.pollMember(gctx, m, task, routedContext, constraints)

			mu.Lock()
			verdicts[m.Name] = v
			mu.Unlock()

			c.bus.Publish(events.TypeAgentVote, map[string]any{
				"session_id": sessionID,
				"agent":      m.Name,
				"verdict":    string(v.Decision),
				"confidence": v.Confidence,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}

func (c *Council) pollMember(ctx context.Context, m Member, task, routedContext string, constraints []memory.Constraint) (v *verdict.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			v = verdict.ErrorVerdict(fmt.Sprintf("panelist %s panicked: %v", m.Name, r))
		}
	}()

	v = m.Panelist.Query(ctx, task, routedContext, constraints)
	if v == nil {
		return verdict.ErrorVerdict("panelist " + m.Name + " returned no verdict")
	}
	if err := v.Validate(); err != nil {
		logging.CouncilError("agent %s verdict rejected: %v", m.Name, err)
		return verdict.ErrorVerdict("schema validation error: " + err.Error())
	}
	return v
}

// mediate runs exactly one mediation attempt and folds the result into the
// session. A compromise flips the decision to PASS with the rewritten
// guidance appended; any other applied resolution keeps FAIL. A HALT leaves
// the banded decision untouched but still attaches the record.
func (c *Council) mediate(ctx context.Context, session *Session) {
	deadlock := Deadlock{
		Task:     session.Task,
		TaskType: "general",
		Score:    session.Consensus.Confidence,
		Verdicts: session.Verdicts,
	}

	med := c.mediator.AttemptResolution(ctx, deadlock, session.SessionID)
	session.Mediation = med

	if med.Action != ActionApplyResolution || med.Resolution == nil {
		return
	}
	if med.Resolution.Verdict == ResolutionCompromise {
		session.Consensus.Decision = verdict.DecisionPass
	} else {
		session.Consensus.Decision = verdict.DecisionFail
	}
	session.Consensus.Reason += fmt.Sprintf(" [MEDIATED: %s]", med.Resolution.RewrittenInstructions)
}

// handleFailure applies the failure policy to a timed-out or broken
// deliberation.
func (c *Council) handleFailure(sessionID, task string, route RoutingDecision, cause error) (*Session, error) {
	if c.policy == FailClosed {
		return nil, fmt.Errorf("council failure (closed): %w", cause)
	}
	logging.CouncilError("session %s degraded to fallback: %v", sessionID, cause)
	return &Session{
		SessionID: sessionID,
		Task:      task,
		Route:     route,
		Verdicts:  map[string]*verdict.Verdict{},
		Consensus: Consensus{
			Decision:   verdict.DecisionWarn,
			Confidence: 0.0,
			Reason:     "Council failed: " + cause.Error(),
		},
		Fallback: true,
	}, nil
}

// head keeps at most n runes of the task for the routing description.
func head(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
