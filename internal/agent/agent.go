package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"conclave/internal/ledger"
	"conclave/internal/logging"
	"conclave/internal/memory"
	"conclave/internal/verdict"
)

// RoutingDirectivePrefix marks a forced-model override in the context text.
// The council injects "[SYSTEM: Use Model <name> via <provider>]" so every
// agent in one deliberation speaks to the routed model.
const RoutingDirectivePrefix = "[SYSTEM: Use Model "

// Agent is one reviewer on the council panel. It owns the circuit breakers
// for its model chain; weight and veto authority live in the council
// configuration, not here.
type Agent struct {
	Name string
	Role string

	chain     []string
	transport Transport
	ledger    *ledger.Ledger

	breakersMu sync.Mutex
	breakers   map[string]*Breaker
}

// DefaultChain is the fallback model order used when an agent is built
// without an explicit chain.
func DefaultChain() []string {
	return []string{
		"llama-3.3-70b-versatile",
		"mixtral-8x7b-32768",
		"llama3-70b-8192",
	}
}

// New creates an agent. led may be nil (no rate gating, used in tests).
func New(name, role string, chain []string, transport Transport, led *ledger.Ledger) *Agent {
	if len(chain) == 0 {
		chain = DefaultChain()
	}
	breakers := make(map[string]*Breaker, len(chain))
	for _, m := range chain {
		breakers[m] = NewBreaker()
	}
	return &Agent{
		Name:      name,
		Role:      role,
		chain:     chain,
		transport: transport,
		ledger:    led,
		breakers:  breakers,
	}
}

// Query runs the resilient chain and always returns a verdict; every
// failure mode collapses into an ERROR verdict rather than an error.
func (a *Agent) Query(ctx context.Context, prompt, contextText string, constraints []memory.Constraint) *verdict.Verdict {
	systemPrompt := a.buildSystemPrompt(contextText, constraints)

	chain := a.chain
	if forced := parseRoutingDirective(contextText); forced != "" {
		chain = []string{forced}
	}

	estimated := estimateTokens(systemPrompt, prompt)
	var errors []string

	for _, model := range chain {
		cb := a.breakerFor(model)
		if cb.IsOpen() {
			logging.AgentDebug("[%s] skipping %s: circuit open", a.Name, model)
			continue
		}

		if a.ledger != nil {
			allowed, reason, _, _ := a.ledger.CanMakeRequest(a.transport.Provider(), estimated, 3, "general")
			if !allowed {
				errors = append(errors, fmt.Sprintf("%s: ledger denied (%s)", model, reason))
				continue
			}
		}

		raw, err := a.transport.Invoke(ctx, model, systemPrompt, prompt)
		if err != nil {
			cb.RecordFailure()
			a.recordUsage(model, estimated, err)
			errors = append(errors, fmt.Sprintf("%s: %v", model, err))
			continue
		}
		a.recordUsage(model, estimated, nil)

		v, perr := verdict.Parse(raw)
		if perr != nil {
			// Structural failure counts against the breaker like a
			// transport failure, but is reported distinctly.
			cb.RecordFailure()
			errors = append(errors, fmt.Sprintf("%s: invalid verdict structure (%v)", model, perr))
			continue
		}

		cb.RecordSuccess()
		logging.Agent("[%s] verdict %s@%.2f via %s", a.Name, v.Decision, v.Confidence, model)
		return v
	}

	reason := fmt.Sprintf("all models failed for %s: %s", a.Name, strings.Join(errors, "; "))
	if len(errors) == 0 {
		reason = fmt.Sprintf("all models unavailable for %s (circuits open)", a.Name)
	}
	logging.AgentError("%s", reason)
	return verdict.ErrorVerdict(reason)
}

// breakerFor returns the breaker for model, creating one under lock when a
// routing directive forces a model outside the configured chain. Agents are
// shared across concurrent deliberations, so the map must not be touched bare.
func (a *Agent) breakerFor(model string) *Breaker {
	a.breakersMu.Lock()
	defer a.breakersMu.Unlock()
	cb := a.breakers[model]
	if cb == nil {
		cb = NewBreaker()
		a.breakers[model] = cb
	}
	return cb
}

func (a *Agent) recordUsage(model string, tokens int, callErr error) {
	if a.ledger == nil {
		return
	}
	status := 200
	if callErr != nil {
		status = 500
		if Classify(callErr) == FailureRateLimit {
			status = 429
		}
	}
	a.ledger.RecordUsage(a.transport.Provider(), tokens, model, status)
}

// buildSystemPrompt renders the role, the output schema directive, the
// institutional memory block, and any caller context.
func (a *Agent) buildSystemPrompt(contextText string, constraints []memory.Constraint) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s. %s\n", a.Name, a.Role)
	b.WriteString("IMPORTANT: You must respond in valid JSON format with the following structure:\n")
	b.WriteString(`{"verdict": "PASS"|"WARN"|"FAIL", "confidence": 0.0-1.0, "evidence": ["[SRC: ...]", "[CMD: ...]"], "reasoning": "..."}`)

	if len(constraints) > 0 {
		b.WriteString("\n\n### INSTITUTIONAL MEMORY (LEARNED CONSTRAINTS)\n")
		b.WriteString("The following constraints have been learned from past incidents. Violating these is a hard FAIL:\n")
		for _, c := range constraints {
			fmt.Fprintf(&b, "- [%s] %s (Pattern: %s)\n", strings.ToUpper(string(c.Tier)), c.Description, c.Pattern)
		}
	}

	if contextText != "" {
		fmt.Fprintf(&b, "\nContext: %s", contextText)
	}

	return b.String()
}

// parseRoutingDirective extracts the forced model from a routing override,
// if one is present in the context text.
func parseRoutingDirective(contextText string) string {
	start := strings.Index(contextText, RoutingDirectivePrefix)
	if start == -1 {
		return ""
	}
	rest := contextText[start+len(RoutingDirectivePrefix):]
	end := strings.IndexAny(rest, " ]")
	if end == -1 {
		return ""
	}
	return rest[:end]
}

// estimateTokens is the rough chars/4 heuristic used for ledger gating.
func estimateTokens(system, user string) int {
	n := (len(system) + len(user)) / 4
	if n < 100 {
		n = 100
	}
	return n
}
