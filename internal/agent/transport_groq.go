package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"conclave/internal/logging"
)

// GroqTransport talks to the Groq OpenAI-compatible chat completions API.
type GroqTransport struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// GroqConfig holds configuration for the Groq transport.
type GroqConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// DefaultGroqConfig returns sensible defaults.
func DefaultGroqConfig(apiKey string) GroqConfig {
	return GroqConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.groq.com/openai/v1",
		Timeout: 45 * time.Second,
	}
}

// NewGroqTransport creates a transport with default config.
func NewGroqTransport(apiKey string) *GroqTransport {
	return NewGroqTransportWithConfig(DefaultGroqConfig(apiKey))
}

// NewGroqTransportWithConfig creates a transport with custom config.
func NewGroqTransportWithConfig(config GroqConfig) *GroqTransport {
	return &GroqTransport{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// groqRequest represents the API request structure.
type groqRequest struct {
	Model          string        `json:"model"`
	Messages       []groqMessage `json:"messages"`
	Temperature    float64       `json:"temperature,omitempty"`
	ResponseFormat *groqFormat   `json:"response_format,omitempty"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqFormat struct {
	Type string `json:"type"`
}

// groqResponse represents the API response structure.
type groqResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Provider returns the ledger provider id.
func (t *GroqTransport) Provider() string {
	return "groq"
}

// Invoke sends system+user prompts to the named model.
func (t *GroqTransport) Invoke(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	// Auto-apply timeout if context has no deadline (centralized timeout
	// handling).
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.httpClient.Timeout)
		defer cancel()
	}

	if t.apiKey == "" {
		return "", &TransportError{Kind: FailureNetwork, Err: fmt.Errorf("API key not configured")}
	}

	startTime := time.Now()
	logging.APIDebug("[Groq] Invoke: model=%s system_len=%d user_len=%d", model, len(systemPrompt), len(userPrompt))

	// Request spacing to stay polite under parallel agents.
	t.mu.Lock()
	elapsed := time.Since(t.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	t.lastRequest = time.Now()
	t.mu.Unlock()

	reqBody := groqRequest{
		Model: model,
		Messages: []groqMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.2,
		ResponseFormat: &groqFormat{Type: "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &TransportError{Kind: FailureMalformed, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", &TransportError{Kind: FailureNetwork, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Kind: FailureNetwork, Err: fmt.Errorf("request failed: %w", err)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	resp.Body.Close()
	if err != nil {
		return "", &TransportError{Kind: FailureNetwork, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &TransportError{Kind: FailureRateLimit, StatusCode: resp.StatusCode, Err: fmt.Errorf("rate limit exceeded (429)")}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{
			Kind:       FailureNetwork,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var gr groqResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", &TransportError{Kind: FailureMalformed, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if gr.Error != nil {
		return "", &TransportError{Kind: FailureNetwork, Err: fmt.Errorf("API error: %s", gr.Error.Message)}
	}
	if len(gr.Choices) == 0 {
		return "", &TransportError{Kind: FailureMalformed, Err: fmt.Errorf("no completion returned")}
	}

	response := strings.TrimSpace(gr.Choices[0].Message.Content)
	logging.API("[Groq] Invoke: completed in %v response_len=%d", time.Since(startTime), len(response))
	return response, nil
}
