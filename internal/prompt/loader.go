package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/Conceptual-Machines/sparkle-api/pkg/embedded"
)

const (
	promptsDir     = "data/prompts"
	templateSuffix = ".txt"
)

// ErrUnknownTemplate is returned when no embedded prompt has the requested name
var ErrUnknownTemplate = errors.New("unknown prompt template")

// Loader reads prompt templates and example payloads from the embedded data
type Loader struct {
	prompts fs.FS
}

func NewPromptLoader() *Loader {
	return &Loader{prompts: embedded.Prompts}
}

// Templates returns the names of all available templates, sorted
func (l *Loader) Templates() ([]string, error) {
	entries, err := fs.ReadDir(l.prompts, promptsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompt templates: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), templateSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), templateSuffix))
	}
	sort.Strings(names)
	return names, nil
}

// GetTemplate loads a prompt template by name
func (l *Loader) GetTemplate(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\.`) {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}

	data, err := fs.ReadFile(l.prompts, path.Join(promptsDir, name+templateSuffix))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
		}
		return "", fmt.Errorf("failed to read prompt template %q: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// GetNotationExample loads the example baseline payload
func (l *Loader) GetNotationExample() []byte {
	return embedded.NotationExampleJSON
}

// GetSparklesExample loads the example generated payload
func (l *Loader) GetSparklesExample() []byte {
	return embedded.SparklesExampleJSON
}
