package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  error
	}{
		{
			name:     "nested block inside prose",
			input:    `here is it: {"a": {"b": 1}} thanks`,
			expected: `{"a": {"b": 1}}`,
		},
		{
			name:     "bare block",
			input:    `{"tracks":[]}`,
			expected: `{"tracks":[]}`,
		},
		{
			name:     "markdown fenced block",
			input:    "```json\n{\"tracks\": [{\"notes\": []}]}\n```",
			expected: `{"tracks": [{"notes": []}]}`,
		},
		{
			name:     "only the first block is returned",
			input:    `{"a":1} and {"b":2}`,
			expected: `{"a":1}`,
		},
		{
			name:     "stray closing brace before the block is ignored",
			input:    `oops } {"a":1}`,
			expected: `{"a":1}`,
		},
		{
			name:     "empty block",
			input:    `result: {} done`,
			expected: `{}`,
		},
		{
			name:    "no opening brace",
			input:   "no data here",
			wantErr: ErrNotFound,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: ErrNotFound,
		},
		{
			name:    "more opens than closes",
			input:   `{"a": 1`,
			wantErr: ErrUnbalanced,
		},
		{
			name:    "nested block never closed",
			input:   `Sure! {"a": {"b": 1} Enjoy.`,
			wantErr: ErrUnbalanced,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Block(tt.input)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestBlock_UnbalancedMatchesNotFound(t *testing.T) {
	_, err := Block(`{{{`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, ErrUnbalanced))
}

func TestBlock_Idempotent(t *testing.T) {
	first, err := Block(`prefix {"x": {"y": {"z": 3}}} suffix`)
	require.NoError(t, err)

	second, err := Block(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func nestedBlock(depth int, leaf string) string {
	var b strings.Builder
	for i := 0; i < depth; i++ {
		b.WriteString(`{"k":`)
	}
	b.WriteString(`"` + leaf + `"`)
	for i := 0; i < depth; i++ {
		b.WriteByte('}')
	}
	return b.String()
}

func TestProperty_BlockSurroundedByProse(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("a balanced block is returned exactly, whatever surrounds it", prop.ForAll(
		func(prefix, suffix, leaf string, depth int) bool {
			block := nestedBlock(depth, leaf)
			got, err := Block(prefix + block + suffix)
			return err == nil && got == block
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(1, 8),
	))

	properties.Property("extraction is idempotent", prop.ForAll(
		func(prefix, leaf string, depth int) bool {
			first, err := Block(prefix + nestedBlock(depth, leaf))
			if err != nil {
				return false
			}
			second, err := Block(first)
			return err == nil && second == first
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(1, 8),
	))

	properties.Property("a truncated block is never returned", prop.ForAll(
		func(prefix, leaf string, depth, cut int) bool {
			block := nestedBlock(depth, leaf)
			// drop at least one closing brace
			truncated := block[:len(block)-1-cut%depth]
			_, err := Block(prefix + truncated)
			return errors.Is(err, ErrUnbalanced)
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(1, 8),
		gen.IntRange(0, 7),
	))

	properties.Property("text without an opening brace is not found", prop.ForAll(
		func(text string) bool {
			_, err := Block(text + "}")
			return errors.Is(err, ErrNotFound)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
