package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCounter reports the number of live sessions
type SessionCounter interface {
	Len() int
}

type HealthHandler struct {
	composer ComposerService
	sessions SessionCounter
	audio    bool
}

func NewHealthHandler(composer ComposerService, sessions SessionCounter, audioEnabled bool) *HealthHandler {
	return &HealthHandler{composer: composer, sessions: sessions, audio: audioEnabled}
}

// HealthCheck returns the health status of the API
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	composerStatus := "disabled"
	if h.composer.Enabled() {
		composerStatus = "enabled"
	}
	audioStatus := "disabled"
	if h.audio {
		audioStatus = "enabled"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"composer": gin.H{
			"status": composerStatus,
			"model":  h.composer.Model(),
		},
		"audio": gin.H{
			"status": audioStatus,
		},
		"sessions": h.sessions.Len(),
	})
}
