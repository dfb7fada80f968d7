package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"conclave/internal/logging"
)

// GeminiTransport dispatches prompts through the Google GenAI SDK.
type GeminiTransport struct {
	client *genai.Client
}

// NewGeminiTransport creates a transport bound to the Gemini API.
func NewGeminiTransport(ctx context.Context, apiKey string) (*GeminiTransport, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiTransport{client: client}, nil
}

// Provider returns the ledger provider id.
func (t *GeminiTransport) Provider() string {
	return "gemini"
}

// Invoke sends system+user prompts to the named model.
func (t *GeminiTransport) Invoke(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	startTime := time.Now()
	logging.APIDebug("[Gemini] Invoke: model=%s system_len=%d user_len=%d", model, len(systemPrompt), len(userPrompt))

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.2),
		ResponseMIMEType: "application/json",
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	result, err := t.client.Models.GenerateContent(ctx,
		model,
		genai.Text(userPrompt),
		config,
	)
	if err != nil {
		kind := FailureNetwork
		if strings.Contains(err.Error(), "429") || strings.Contains(strings.ToLower(err.Error()), "quota") {
			kind = FailureRateLimit
		}
		return "", &TransportError{Kind: kind, Err: fmt.Errorf("GenAI generate failed: %w", err)}
	}

	response := strings.TrimSpace(result.Text())
	if response == "" {
		return "", &TransportError{Kind: FailureMalformed, Err: fmt.Errorf("empty completion returned")}
	}

	logging.API("[Gemini] Invoke: completed in %v response_len=%d", time.Since(startTime), len(response))
	return response, nil
}
