package llm

import (
	"context"
	"errors"
)

// Message roles accepted by every provider
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrMissingAPIKey is returned by the factory when the selected provider has
// no credential configured
var ErrMissingAPIKey = errors.New("api key not configured")

// Provider defines the interface for text completion providers
type Provider interface {
	// Generate sends the request and returns the model's raw text output
	Generate(ctx context.Context, request *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "openai", "gemini")
	Name() string
}

// CompletionRequest contains all parameters needed for a completion
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
}

// Message is a single role-tagged message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse contains the result from the LLM
type CompletionResponse struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	Usage Usage  `json:"usage"`
}

// Usage reports token consumption for one call
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
