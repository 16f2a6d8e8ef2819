package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/Conceptual-Machines/sparkle-api/internal/intake"
	"github.com/Conceptual-Machines/sparkle-api/internal/logger"
	"github.com/Conceptual-Machines/sparkle-api/internal/models"
	"github.com/Conceptual-Machines/sparkle-api/internal/session"
	"github.com/gin-gonic/gin"
)

// SessionManager creates, finds and drops sessions
type SessionManager interface {
	SessionStore
	Create() *session.Session
	Delete(id string) error
}

// IntakeService loads compositions into sessions
type IntakeService interface {
	Upload(s *session.Session, role, filename string, r io.Reader) (*models.Composition, error)
	LoadExamples(s *session.Session) error
	Reset(s *session.Session)
	MaxBytes() int64
}

// MIDIEncoder encodes a stored composition for download or preview
type MIDIEncoder interface {
	Encode(composition *models.Composition) ([]byte, error)
}

// AudioRenderer synthesizes a MIDI file as WAV
type AudioRenderer interface {
	Render(ctx context.Context, midiData []byte, w io.WriteSeeker) error
}

type SessionHandler struct {
	sessions SessionManager
	intake   IntakeService
	encoder  MIDIEncoder
	renderer AudioRenderer
}

// NewSessionHandler creates the session endpoints. A nil renderer disables
// the WAV preview.
func NewSessionHandler(sessions SessionManager, intake IntakeService, encoder MIDIEncoder, renderer AudioRenderer) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		intake:   intake,
		encoder:  encoder,
		renderer: renderer,
	}
}

type UploadResponse struct {
	SessionID   string              `json:"session_id"`
	Role        string              `json:"role"`
	Filename    string              `json:"filename"`
	Composition *models.Composition `json:"composition"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	s := h.sessions.Create()

	fields := logger.WithContext(c)
	fields["session_id"] = s.ID
	logger.Info("Session created", fields)

	c.JSON(http.StatusCreated, s.Snapshot())
}

func (h *SessionHandler) Get(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Upload stores a multipart MIDI file under the role form field
func (h *SessionHandler) Upload(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.intake.MaxBytes()+multipartOverhead)
	fileHeader, err := c.FormFile(formFieldFile)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, fmt.Errorf("%w: limit is %d bytes", intake.ErrFileTooLarge, h.intake.MaxBytes()))
			return
		}
		writeError(c, fmt.Errorf("%w: %w", intake.ErrFileRead, err))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(c, fmt.Errorf("%w: %w", intake.ErrFileRead, err))
		return
	}
	defer file.Close()

	role := c.PostForm(formFieldRole)
	composition, err := h.intake.Upload(s, role, fileHeader.Filename, file)
	if err != nil {
		writeError(c, err)
		return
	}

	role, _ = models.ParseRole(role)
	c.JSON(http.StatusOK, UploadResponse{
		SessionID:   s.ID,
		Role:        role,
		Filename:    fileHeader.Filename,
		Composition: composition,
	})
}

// LoadExamples stores the bundled baseline and sparkles payloads
func (h *SessionHandler) LoadExamples(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.intake.LoadExamples(s); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *SessionHandler) Reset(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.intake.Reset(s)
	c.JSON(http.StatusOK, s.Snapshot())
}

// Download serves sparkles.mid, the last generated MIDI file, or
// <role>.wav, an audio preview of the composition stored under role.
func (h *SessionHandler) Download(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	file := c.Param("file")
	switch {
	case file == generatedFileName:
		h.serveGenerated(c, s)
	case strings.HasSuffix(file, previewSuffix) && file != previewSuffix:
		h.servePreview(c, s, strings.TrimSuffix(file, previewSuffix))
	default:
		writeError(c, fmt.Errorf("%w: %q", errUnknownFile, file))
	}
}

func (h *SessionHandler) serveGenerated(c *gin.Context, s *session.Session) {
	midi := s.MIDI()
	if len(midi) == 0 {
		writeError(c, errNoMIDI)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", generatedFileName))
	c.Data(http.StatusOK, contentTypeMIDI, midi)
}

func (h *SessionHandler) servePreview(c *gin.Context, s *session.Session, role string) {
	role, err := models.ParseRole(role)
	if err != nil {
		writeError(c, err)
		return
	}
	if h.renderer == nil {
		writeError(c, errAudioDisabled)
		return
	}

	midi, err := h.previewSource(s, role)
	if err != nil {
		writeError(c, err)
		return
	}

	tmp, err := os.CreateTemp("", "sparkle-*"+previewSuffix)
	if err != nil {
		writeError(c, fmt.Errorf("failed to create preview file: %w", err))
		return
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil {
			log.Printf("⚠️  Failed to remove preview file %s: %v", tmp.Name(), err)
		}
	}()

	if err := h.renderer.Render(c.Request.Context(), midi, tmp); err != nil {
		writeError(c, fmt.Errorf("failed to render preview: %w", err))
		return
	}

	c.Header("Content-Type", contentTypeWAV)
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", role+previewSuffix))
	c.File(tmp.Name())
}

// previewSource prefers the generated MIDI for sparkles and encodes the
// stored composition otherwise
func (h *SessionHandler) previewSource(s *session.Session, role string) ([]byte, error) {
	if role == models.RoleSparkles {
		if midi := s.MIDI(); len(midi) > 0 {
			return midi, nil
		}
	}

	composition := s.Composition(role)
	if composition == nil {
		return nil, fmt.Errorf("%w: %s", errNoComposition, role)
	}
	midi, err := h.encoder.Encode(composition)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", role, err)
	}
	return midi, nil
}
