package council

import (
	"fmt"

	"conclave/internal/ledger"
	"conclave/internal/logging"
)

// RouterConfig holds the fixed routing bands. These are configuration
// constants, not computed values.
type RouterConfig struct {
	FastModel    string `yaml:"fast_model"`
	DeepModel    string `yaml:"deep_model"`
	FastTokens   int    `yaml:"fast_tokens"`
	MidTokens    int    `yaml:"mid_tokens"`
	DeepTokens   int    `yaml:"deep_tokens"`
	FastProvider string `yaml:"fast_provider"`
	MidProvider  string `yaml:"mid_provider"`
	DeepProvider string `yaml:"deep_provider"`
}

// DefaultRouterConfig mirrors the shipped banding.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		FastModel:    "gemini-1.5-flash",
		DeepModel:    "gemini-1.5-pro",
		FastTokens:   2000,
		MidTokens:    4000,
		DeepTokens:   8192,
		FastProvider: ledger.ProviderGemini,
		MidProvider:  ledger.ProviderGroq,
		DeepProvider: ledger.ProviderGemini,
	}
}

// Router maps a task's estimated complexity to a provider/model/budget
// decision, consulting the ledger for the rate-capped middle band.
type Router struct {
	ledger *ledger.Ledger
	cfg    RouterConfig
}

// NewRouter creates a router over the given ledger.
func NewRouter(led *ledger.Ledger, cfg RouterConfig) *Router {
	return &Router{ledger: led, cfg: cfg}
}

// RouteTask selects the provider and model for a task. Deterministic
// banding: complexity <=2 is the fast/cheap tier, 3-4 asks the ledger for a
// mid-tier slot (falling back to the fast tier on denial), 5 always gets
// the highest-capability tier.
func (r *Router) RouteTask(description string, complexity int) RoutingDecision {
	var d RoutingDecision
	switch {
	case complexity <= 2:
		d = RoutingDecision{
			Provider:  r.cfg.FastProvider,
			Model:     r.cfg.FastModel,
			Reason:    "Trivial task - fast tier for speed/cost.",
			MaxTokens: r.cfg.FastTokens,
		}

	case complexity <= 4:
		allowed, reason, _, model := r.ledger.CanMakeRequest(r.cfg.MidProvider, r.cfg.MidTokens, complexity, "general")
		if allowed {
			d = RoutingDecision{
				Provider:  r.cfg.MidProvider,
				Model:     model,
				Reason:    "Standard validation - rate-capped mid tier.",
				MaxTokens: r.cfg.MidTokens,
			}
		} else {
			d = RoutingDecision{
				Provider:  r.cfg.FastProvider,
				Model:     r.cfg.FastModel,
				Reason:    fmt.Sprintf("Mid tier denied (%s) - falling back to fast tier.", reason),
				MaxTokens: r.cfg.MidTokens,
			}
		}

	default:
		d = RoutingDecision{
			Provider:  r.cfg.DeepProvider,
			Model:     r.cfg.DeepModel,
			Reason:    "Complex task - highest-capability tier.",
			MaxTokens: r.cfg.DeepTokens,
		}
	}

	logging.Router("complexity=%d -> %s/%s (%s)", complexity, d.Provider, d.Model, d.Reason)
	return d
}
