package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockProvider is a test implementation of the Provider interface
type MockProvider struct {
	name         string
	generateFunc func(ctx context.Context, request *CompletionRequest) (*CompletionResponse, error)
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Generate(ctx context.Context, request *CompletionRequest) (*CompletionResponse, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, request)
	}
	return &CompletionResponse{}, nil
}

func TestProviderInterface(t *testing.T) {
	var provider Provider = &MockProvider{name: "mock"}
	assert.Equal(t, "mock", provider.Name())
}

func TestMockProviderGenerate(t *testing.T) {
	callCount := 0
	mock := &MockProvider{
		name: "test",
		generateFunc: func(_ context.Context, request *CompletionRequest) (*CompletionResponse, error) {
			callCount++
			require.Equal(t, "test-model", request.Model)
			return &CompletionResponse{Text: "{}"}, nil
		},
	}

	resp, err := mock.Generate(context.Background(), &CompletionRequest{Model: "test-model"})
	require.NoError(t, err)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, "{}", resp.Text)
}

func TestProviderFactory_GetProvider(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		openaiKey    string
		model        string
		providerName string
		wantName     string
		wantMissing  bool
		wantErr      bool
	}{
		{name: "gpt model uses openai", openaiKey: "sk-test", model: "gpt-4", wantName: "openai"},
		{name: "unknown model defaults to openai", openaiKey: "sk-test", model: "davinci", wantName: "openai"},
		{name: "explicit openai", openaiKey: "sk-test", providerName: "OpenAI", wantName: "openai"},
		{name: "missing openai key", model: "gpt-4", wantMissing: true},
		{name: "gemini model without key", openaiKey: "sk-test", model: "gemini-2.5-flash", wantMissing: true},
		{name: "explicit gemini without key", providerName: "gemini", wantMissing: true},
		{name: "unknown provider", openaiKey: "sk-test", providerName: "anthropic", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewProviderFactory(tt.openaiKey, "")
			provider, err := factory.GetProvider(ctx, tt.model, tt.providerName)

			switch {
			case tt.wantMissing:
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMissingAPIKey))
				assert.Nil(t, provider)
			case tt.wantErr:
				require.Error(t, err)
				assert.False(t, errors.Is(err, ErrMissingAPIKey))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantName, provider.Name())
			}
		})
	}
}
