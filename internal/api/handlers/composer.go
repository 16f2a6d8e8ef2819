package handlers

import (
	"context"
	"net/http"

	"github.com/Conceptual-Machines/sparkle-api/internal/api/middleware"
	"github.com/Conceptual-Machines/sparkle-api/internal/composer"
	"github.com/Conceptual-Machines/sparkle-api/internal/llm"
	"github.com/Conceptual-Machines/sparkle-api/internal/logger"
	"github.com/Conceptual-Machines/sparkle-api/internal/models"
	"github.com/Conceptual-Machines/sparkle-api/internal/session"
	"github.com/gin-gonic/gin"
)

// ComposerService runs the compose pipeline
type ComposerService interface {
	Enabled() bool
	Model() string
	ComposeShared(ctx context.Context, key string, cc *composer.CompositionContext,
		onComplete composer.OnComplete) (*composer.Result, bool, error)
}

// TemplateLister lists the available prompt templates
type TemplateLister interface {
	Templates() ([]string, error)
}

// SessionStore looks sessions up by ID
type SessionStore interface {
	Get(id string) (*session.Session, error)
}

type ComposerHandler struct {
	composer  ComposerService
	templates TemplateLister
	sessions  SessionStore
}

func NewComposerHandler(composer ComposerService, templates TemplateLister, sessions SessionStore) *ComposerHandler {
	return &ComposerHandler{composer: composer, templates: templates, sessions: sessions}
}

type ComposerStatusResponse struct {
	Enabled   bool     `json:"enabled"`
	Model     string   `json:"model"`
	Templates []string `json:"templates"`
}

type ComposeResponse struct {
	SessionID   string              `json:"session_id"`
	Template    string              `json:"template"`
	Shared      bool                `json:"shared"`
	Stored      bool                `json:"stored"`
	Composition *models.Composition `json:"composition"`
	Model       string              `json:"model"`
	Usage       llm.Usage           `json:"usage"`
	DurationMS  int64               `json:"duration_ms"`
}

// Status reports whether generation is available and which templates exist
func (h *ComposerHandler) Status(c *gin.Context) {
	templates, err := h.templates.Templates()
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ComposerStatusResponse{
		Enabled:   h.composer.Enabled(),
		Model:     h.composer.Model(),
		Templates: templates,
	})
}

// Compose generates a sparkles part for the session with the given template.
// Concurrent requests for the same session and template share one call.
func (h *ComposerHandler) Compose(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	template := c.Param("template")
	userID, _ := middleware.GetUserIDFromGateway(c)
	fields := logger.WithContext(c)
	fields["template"] = template
	if userID != "" {
		fields["user"] = userID
	}
	logger.Info("✨ Compose requested", fields)

	// generation first, so a reset before the baseline read still counts
	generation := s.Generation()
	cc := &composer.CompositionContext{
		Baseline: s.Baseline(),
		Template: template,
	}
	result, shared, err := h.composer.ComposeShared(c.Request.Context(), s.ID+"/"+template, cc,
		func(r *composer.Result) {
			if !s.SetGeneratedIfCurrent(generation, r.Composition, r.MIDI) {
				logger.Info("Compose result discarded, session changed while composing", fields)
			}
		})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ComposeResponse{
		SessionID:   s.ID,
		Template:    template,
		Shared:      shared,
		Stored:      s.Generation() == generation,
		Composition: result.Composition,
		Model:       result.Model,
		Usage:       result.Usage,
		DurationMS:  result.Duration.Milliseconds(),
	})
}
