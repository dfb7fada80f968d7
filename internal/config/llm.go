package config

// LLMConfig configures the provider transports.
type LLMConfig struct {
	GroqAPIKey   string `yaml:"groq_api_key"`
	GeminiAPIKey string `yaml:"gemini_api_key"`

	// GroqBaseURL overrides the Groq endpoint, mostly for tests.
	GroqBaseURL string `yaml:"groq_base_url"`

	// Timeout for a single provider call.
	Timeout string `yaml:"timeout"`
}

// DefaultLLMConfig returns the default provider configuration. API keys come
// from the environment, never from defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		GroqBaseURL: "https://api.groq.com/openai/v1",
		Timeout:     "45s",
	}
}
