package prompt

import (
	"errors"
	"testing"

	"github.com/Conceptual-Machines/sparkle-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPromptLoader(t *testing.T) {
	loader := NewPromptLoader()
	require.NotNil(t, loader)
}

func TestTemplates(t *testing.T) {
	names, err := NewPromptLoader().Templates()
	require.NoError(t, err)
	assert.Equal(t, []string{"arpeggio", "pad", "sparkles"}, names)
}

func TestGetTemplate(t *testing.T) {
	loader := NewPromptLoader()

	names, err := loader.Templates()
	require.NoError(t, err)
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			content, err := loader.GetTemplate(name)
			require.NoError(t, err)
			assert.NotEmpty(t, content)
			assert.Contains(t, content, "MIDI data:")
			assert.NotRegexp(t, `^\s`, content)
		})
	}
}

func TestGetTemplate_Unknown(t *testing.T) {
	loader := NewPromptLoader()

	for _, name := range []string{"", "nope", "../prompts/pad", "pad.txt"} {
		_, err := loader.GetTemplate(name)
		assert.True(t, errors.Is(err, ErrUnknownTemplate), "template %q", name)
	}
}

func TestExamplesDecode(t *testing.T) {
	loader := NewPromptLoader()

	notation, err := models.DecodeComposition(loader.GetNotationExample())
	require.NoError(t, err)
	assert.NotZero(t, notation.NoteCount())

	sparkles, err := models.DecodeComposition(loader.GetSparklesExample())
	require.NoError(t, err)
	assert.NotZero(t, sparkles.NoteCount())
}
