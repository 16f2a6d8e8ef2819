package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGeminiProvider_Name(t *testing.T) {
	// We can't create a real client without an API key
	provider := &GeminiProvider{client: nil}
	assert.Equal(t, "gemini", provider.Name())
}

func TestGeminiProvider_BuildRequest(t *testing.T) {
	provider := &GeminiProvider{client: nil}

	tests := []struct {
		name       string
		messages   []Message
		wantLen    int
		wantSystem bool
	}{
		{
			name:     "single user message",
			messages: []Message{{Role: RoleUser, Content: "test content"}},
			wantLen:  1,
		},
		{
			name: "system message becomes instruction",
			messages: []Message{
				{Role: RoleSystem, Content: "system message"},
				{Role: RoleUser, Content: "hello"},
			},
			wantLen:    1,
			wantSystem: true,
		},
		{
			name: "empty message skipped",
			messages: []Message{
				{Role: RoleUser, Content: "valid"},
				{Role: RoleUser},
			},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents, config := provider.buildGeminiRequest(&CompletionRequest{
				Model:       "gemini-2.5-flash",
				Messages:    tt.messages,
				Temperature: 0.7,
			})
			assert.Len(t, contents, tt.wantLen)
			require.NotNil(t, config.Temperature)
			assert.InDelta(t, 0.7, *config.Temperature, 0.0001)
			assert.Equal(t, tt.wantSystem, config.SystemInstruction != nil)
			for _, content := range contents {
				assert.Equal(t, "user", content.Role)
			}
		})
	}
}

func TestProcessGeminiResponse(t *testing.T) {
	result := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "Here: "}, {Text: `{"tracks":[]}`}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 4,
			TotalTokenCount:      14,
		},
	}

	resp := processGeminiResponse(result)
	assert.Equal(t, `Here: {"tracks":[]}`, resp.Text)
	assert.Equal(t, 14, resp.Usage.TotalTokens)

	assert.Empty(t, processGeminiResponse(&genai.GenerateContentResponse{}).Text)
}
