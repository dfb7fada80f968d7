package config

import "fmt"

// LimitsConfig enforces the rate and spend ceilings the ledger applies.
type LimitsConfig struct {
	// DailyBudgetUSD caps metered provider spend per calendar day.
	DailyBudgetUSD float64 `yaml:"daily_budget_usd" json:"daily_budget_usd"`

	// RequestsPerMinute and TokensPerMinute cap each rate-limited model.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	TokensPerMinute   int `yaml:"tokens_per_minute" json:"tokens_per_minute"`
}

// DefaultLimitsConfig returns the stock free-tier limits.
func DefaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		DailyBudgetUSD:    5.0,
		RequestsPerMinute: 30,
		TokensPerMinute:   40000,
	}
}

// Validate checks that limits are within acceptable ranges.
func (l *LimitsConfig) Validate() error {
	if l.DailyBudgetUSD <= 0 {
		return fmt.Errorf("daily_budget_usd must be > 0")
	}
	if l.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be >= 1")
	}
	if l.TokensPerMinute < 1000 {
		return fmt.Errorf("tokens_per_minute must be >= 1000")
	}
	return nil
}
