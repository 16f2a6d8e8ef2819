package observability

import (
	"testing"

	"github.com/Conceptual-Machines/sparkle-api/internal/config"
	"github.com/Conceptual-Machines/sparkle-api/internal/llm"
	"github.com/stretchr/testify/assert"
)

func TestCalculateCost(t *testing.T) {
	usage := llm.Usage{InputTokens: 1000, OutputTokens: 500}

	tests := []struct {
		model string
		want  float64
	}{
		{"gpt-4", 0.03 + 0.03},
		{"gpt-4o", 0.005 + 0.0075},
		{"gpt-4o-2024-08-06", 0.005 + 0.0075},
		{"gpt-4o-mini-2024-07-18", 0.00015 + 0.0003},
		{"unknown-model", 0.03 + 0.03},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateCost(tt.model, usage), 1e-9)
		})
	}
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "$0.060000", FormatCost(0.06))
}

func TestDisabledClientIsNoop(t *testing.T) {
	client := InitializeLangfuse(t.Context(), &config.Config{LangfuseEnabled: true})
	assert.False(t, client.IsEnabled())

	var missing *LangfuseClient
	assert.False(t, missing.IsEnabled())

	trace := client.StartTrace(t.Context(), "compose", nil)
	gen := trace.Generation("completion", nil)
	gen.LogCompletion(&llm.CompletionRequest{Model: "gpt-4"}, &llm.CompletionResponse{Text: "{}"})
	gen.SetLevel("ERROR")
	gen.Finish()
	trace.Finish()
}
