package embedded

import (
	"embed"
)

// Prompts holds one prompt template per file, named <template>.txt
//
//go:embed data/prompts/*.txt
var Prompts embed.FS

// NotationExampleJSON is the example baseline composition
//
//go:embed data/examples/notation.json
var NotationExampleJSON []byte

// SparklesExampleJSON is the example generated composition
//
//go:embed data/examples/sparkles.json
var SparklesExampleJSON []byte
