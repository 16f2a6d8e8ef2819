package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Conceptual-Machines/sparkle-api/internal/models"
)

// OutputInstruction is appended to every request so the model answers with
// the data block only
const OutputInstruction = "Give me only the MIDI File Syntax nothing else."

const sectionSeparator = "\n\n"

// Builder builds completion prompts from templates
type Builder struct {
	loader *Loader
}

// NewPromptBuilder creates a new prompt builder
func NewPromptBuilder() *Builder {
	return &Builder{loader: NewPromptLoader()}
}

// Loader returns the loader backing this builder
func (b *Builder) Loader() *Loader {
	return b.loader
}

// Build concatenates the template, the musical payload and the output
// instruction. The bundled example payload stands in when baseline is nil.
func (b *Builder) Build(template string, baseline *models.Composition) (string, error) {
	text, err := b.loader.GetTemplate(template)
	if err != nil {
		return "", err
	}

	payload := b.loader.GetNotationExample()
	if baseline != nil {
		payload, err = json.Marshal(baseline)
		if err != nil {
			return "", fmt.Errorf("failed to encode baseline composition: %w", err)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(text)
	buf.WriteString(sectionSeparator)
	buf.Write(bytes.TrimSpace(payload))
	buf.WriteString(sectionSeparator)
	buf.WriteString(OutputInstruction)
	return buf.String(), nil
}
