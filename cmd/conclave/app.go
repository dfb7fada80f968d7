package main

import (
	"context"
	"fmt"

	"conclave/internal/agent"
	"conclave/internal/config"
	"conclave/internal/council"
	"conclave/internal/events"
	"conclave/internal/kernel"
	"conclave/internal/ledger"
	"conclave/internal/memory"
)

// app is the assembled engine behind every subcommand.
type app struct {
	cfg     *config.Config
	user    *config.UserConfig
	store   *memory.Store
	ledger  *ledger.Ledger
	bus     *events.Bus
	council *council.Council
	kernel  *kernel.Kernel
}

// buildApp wires the full engine from configuration. The ledger pool and
// budget come from limits config; the panel roster from council config.
func buildApp(ctx context.Context, enforcing bool) (*app, error) {
	cfg, user, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := memory.NewStore(stateDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open constraint store: %w", err)
	}

	pool := poolFromLimits(cfg.Limits)
	led := ledger.New(budgetPath(), pool, ledger.Limits{DailyBudget: cfg.Limits.DailyBudgetUSD})
	bus := events.NewBus()

	transport, geminiTransport, err := buildTransports(ctx, cfg, user)
	if err != nil {
		return nil, err
	}

	members := make([]council.Member, 0, len(cfg.Council.Agents))
	for _, entry := range cfg.Council.Agents {
		members = append(members, council.Member{
			Name: entry.Name,
			Config: council.AgentConfig{
				Role:      entry.Role,
				Weight:    entry.Weight,
				VetoPower: entry.VetoPower,
				Chain:     entry.Chain,
			},
			Panelist: agent.New(entry.Name, entry.Role, entry.Chain, transport, led),
		})
	}

	var analyzer council.Analyzer
	if geminiTransport != nil {
		analyzer = council.NewModelAnalyzer(geminiTransport, led, "gemini-1.5-pro")
	}
	mediator := council.NewMediator(led, bus, analyzer)

	policy := council.FailOpen
	if cfg.Council.FailurePolicy == "fail_closed" {
		policy = council.FailClosed
	}

	c := council.New(members, council.NewRouter(led, council.DefaultRouterConfig()), mediator, store, bus,
		council.WithTimeout(cfg.GetCouncilTimeout()),
		council.WithFailurePolicy(policy),
	)

	return &app{
		cfg:     cfg,
		user:    user,
		store:   store,
		ledger:  led,
		bus:     bus,
		council: c,
		kernel:  kernel.New(c, nil, nil, enforcing || user.Enforcing),
	}, nil
}

// buildTransports resolves the panel transport and, when a Gemini key is
// available, a second transport for the mediator's analysis calls.
func buildTransports(ctx context.Context, cfg *config.Config, user *config.UserConfig) (agent.Transport, agent.Transport, error) {
	groqKey := cfg.LLM.GroqAPIKey
	if groqKey == "" {
		groqKey = user.GroqAPIKey
	}
	geminiKey := cfg.LLM.GeminiAPIKey
	if geminiKey == "" {
		geminiKey = user.GeminiAPIKey
	}

	var gemini agent.Transport
	if geminiKey != "" {
		gt, err := agent.NewGeminiTransport(ctx, geminiKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init gemini transport: %w", err)
		}
		gemini = gt
	}

	if groqKey != "" {
		gcfg := agent.DefaultGroqConfig(groqKey)
		if cfg.LLM.GroqBaseURL != "" {
			gcfg.BaseURL = cfg.LLM.GroqBaseURL
		}
		gcfg.Timeout = cfg.GetLLMTimeout()
		return agent.NewGroqTransportWithConfig(gcfg), gemini, nil
	}
	if gemini != nil {
		return gemini, gemini, nil
	}
	return nil, nil, fmt.Errorf("no provider API key configured (set GROQ_API_KEY or GEMINI_API_KEY)")
}

func poolFromLimits(l config.LimitsConfig) *ledger.Pool {
	models := ledger.DefaultPool().Snapshot()
	out := make([]*ledger.Model, 0, len(models))
	for i := range models {
		m := models[i]
		m.RPMLimit = l.RequestsPerMinute
		m.TPMLimit = l.TokensPerMinute
		out = append(out, &m)
	}
	return ledger.NewPool(out)
}
