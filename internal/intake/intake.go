// Package intake loads compositions into a session from uploads or the
// bundled examples.
package intake

import (
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/Conceptual-Machines/sparkle-api/internal/models"
	"github.com/Conceptual-Machines/sparkle-api/internal/session"
)

// DefaultMaxBytes caps uploads when no limit is configured
const DefaultMaxBytes = 10 << 20

var (
	ErrFileRead        = errors.New("failed to read uploaded file")
	ErrUnsupportedFile = errors.New("unsupported file type (allowed: .mid, .midi)")
	ErrFileTooLarge    = errors.New("uploaded file too large")
	ErrInvalidMIDI     = errors.New("file is not a readable MIDI file")
	ErrExamples        = errors.New("failed to load example compositions")
)

var allowedExtensions = map[string]bool{".mid": true, ".midi": true}

// Decoder turns SMF bytes into a composition
type Decoder interface {
	Decode(data []byte) (*models.Composition, error)
}

// ExampleSource provides the bundled example payloads
type ExampleSource interface {
	GetNotationExample() []byte
	GetSparklesExample() []byte
}

// Intake loads compositions into sessions
type Intake struct {
	decoder  Decoder
	examples ExampleSource
	maxBytes int64
}

func New(decoder Decoder, examples ExampleSource, maxBytes int64) *Intake {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Intake{decoder: decoder, examples: examples, maxBytes: maxBytes}
}

// MaxBytes returns the upload size limit
func (in *Intake) MaxBytes() int64 {
	return in.maxBytes
}

// Upload decodes a MIDI file and stores it under role
func (in *Intake) Upload(s *session.Session, role, filename string, r io.Reader) (*models.Composition, error) {
	role, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, filename)
	}

	// one extra byte tells an exact-size file from an oversize one
	data, err := io.ReadAll(io.LimitReader(r, in.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileRead, err)
	}
	if int64(len(data)) > in.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, in.maxBytes)
	}

	composition, err := in.decoder.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMIDI, err)
	}
	if composition.Header.Name == "" {
		composition.Header.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	s.SetComposition(role, composition)
	log.Printf("📥 Stored %s as %s (%d tracks, %d notes)", filename, role, len(composition.Tracks), composition.NoteCount())
	return composition, nil
}

// LoadExamples stores the bundled baseline and sparkles examples. Either both
// are stored or neither.
func (in *Intake) LoadExamples(s *session.Session) error {
	baseline, err := models.DecodeComposition(in.examples.GetNotationExample())
	if err != nil {
		return fmt.Errorf("%w: notation: %w", ErrExamples, err)
	}
	sparkles, err := models.DecodeComposition(in.examples.GetSparklesExample())
	if err != nil {
		return fmt.Errorf("%w: sparkles: %w", ErrExamples, err)
	}

	s.SetPair(baseline, sparkles)
	log.Printf("📥 Examples loaded into session %s", s.ID)
	return nil
}

// Reset discards everything held by the session
func (in *Intake) Reset(s *session.Session) {
	s.Reset()
	log.Printf("🗑️  Session %s cleared", s.ID)
}
