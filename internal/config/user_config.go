package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// UserConfig holds user-specific settings from .conclave/config.json.
type UserConfig struct {
	// Provider selection ("groq", "gemini"); empty means auto-detect
	// from whichever key is present.
	Provider string `json:"provider,omitempty"`

	// API keys per provider.
	GroqAPIKey   string `json:"groq_api_key,omitempty"`
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`

	// DebugMode enables categorized file logging under .conclave/logs/.
	DebugMode bool `json:"debug_mode,omitempty"`

	// Enforcing makes a FAIL consensus block execution instead of
	// advising.
	Enforcing bool `json:"enforcing,omitempty"`
}

// DefaultUserConfigPath returns the default path to .conclave/config.json.
func DefaultUserConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(".conclave", "config.json")
	}
	return filepath.Join(cwd, ".conclave", "config.json")
}

// LoadUserConfig loads configuration from .conclave/config.json. A missing
// file yields the zero config.
func LoadUserConfig(path string) (*UserConfig, error) {
	cfg := &UserConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read user config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to .conclave/config.json.
func (c *UserConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}

	return nil
}

// GetActiveProvider returns the provider and API key to use. An explicit
// provider setting wins; otherwise the first configured key does. The
// environment always beats the file.
func (c *UserConfig) GetActiveProvider() (provider string, apiKey string) {
	groq := c.GroqAPIKey
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		groq = key
	}
	gemini := c.GeminiAPIKey
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		gemini = key
	}

	switch c.Provider {
	case "groq":
		if groq != "" {
			return "groq", groq
		}
	case "gemini":
		if gemini != "" {
			return "gemini", gemini
		}
	}

	if groq != "" {
		return "groq", groq
	}
	if gemini != "" {
		return "gemini", gemini
	}
	return "", ""
}
