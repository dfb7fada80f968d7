// Package config holds all conclave configuration: the YAML project config
// (conclave.yaml) and the JSON user config (.conclave/config.json).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all conclave configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Council panel and policy
	Council CouncilConfig `yaml:"council"`

	// LLM provider configuration
	LLM LLMConfig `yaml:"llm"`

	// Rate and budget limits
	Limits LimitsConfig `yaml:"limits"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "conclave",
		Version: "1.0.0",
		Council: DefaultCouncilConfig(),
		LLM:     DefaultLLMConfig(),
		Limits:  DefaultLimitsConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment variables always win over the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		c.LLM.GroqAPIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.GeminiAPIKey = key
	}
	if env := os.Getenv("CONCLAVE_ENV"); env == "production" {
		c.Council.FailurePolicy = "fail_closed"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.GroqAPIKey == "" && c.LLM.GeminiAPIKey == "" {
		return fmt.Errorf("no provider API key configured (set GROQ_API_KEY or GEMINI_API_KEY)")
	}
	if err := c.Council.Validate(); err != nil {
		return err
	}
	return c.Limits.Validate()
}

// GetCouncilTimeout returns the whole-deliberation timeout as a duration.
func (c *Config) GetCouncilTimeout() time.Duration {
	d, err := time.ParseDuration(c.Council.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetLLMTimeout returns the per-call LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 45 * time.Second
	}
	return d
}
