package handlers

import (
	"errors"
	"net/http"

	"github.com/Conceptual-Machines/sparkle-api/internal/composer"
	"github.com/Conceptual-Machines/sparkle-api/internal/intake"
	"github.com/Conceptual-Machines/sparkle-api/internal/logger"
	"github.com/Conceptual-Machines/sparkle-api/internal/models"
	"github.com/Conceptual-Machines/sparkle-api/internal/session"
	"github.com/gin-gonic/gin"
)

var (
	errAudioDisabled = errors.New("audio preview is not configured")
	errNoMIDI        = errors.New("nothing has been generated for this session yet")
	errNoComposition = errors.New("no composition stored under this role")
	errUnknownFile   = errors.New("unknown session file")
)

type apiError struct {
	err    error
	status int
	code   string
}

// Order matters: the first match wins.
var apiErrors = []apiError{
	{composer.ErrMissingCredential, http.StatusServiceUnavailable, composer.CodeMissingCredential},
	{composer.ErrUpstream, http.StatusBadGateway, composer.CodeUpstream},
	{composer.ErrEmptyResponse, http.StatusBadGateway, composer.CodeEmptyResponse},
	{composer.ErrBlockNotFound, http.StatusUnprocessableEntity, composer.CodeBlockNotFound},
	{composer.ErrDecode, http.StatusUnprocessableEntity, composer.CodeDecode},
	{composer.ErrEncode, http.StatusInternalServerError, composer.CodeEncode},
	{composer.ErrUnknownTemplate, http.StatusNotFound, composer.CodeUnknownTemplate},
	{session.ErrNotFound, http.StatusNotFound, "session_not_found"},
	{models.ErrInvalidRole, http.StatusBadRequest, "invalid_role"},
	{intake.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
	{intake.ErrUnsupportedFile, http.StatusUnsupportedMediaType, "unsupported_file"},
	{intake.ErrInvalidMIDI, http.StatusUnprocessableEntity, "invalid_midi"},
	{intake.ErrFileRead, http.StatusBadRequest, "file_read_error"},
	{intake.ErrExamples, http.StatusInternalServerError, "examples_error"},
	{errAudioDisabled, http.StatusServiceUnavailable, "audio_disabled"},
	{errNoMIDI, http.StatusNotFound, "not_generated"},
	{errNoComposition, http.StatusNotFound, "no_composition"},
	{errUnknownFile, http.StatusNotFound, "unknown_file"},
}

// classify maps an error to its HTTP status and stable code
func classify(err error) (int, string) {
	for _, ae := range apiErrors {
		if errors.Is(err, ae.err) {
			return ae.status, ae.code
		}
	}
	return http.StatusInternalServerError, composer.CodeInternal
}

// writeError logs err and writes the JSON error body
func writeError(c *gin.Context, err error) {
	status, code := classify(err)

	fields := logger.WithContext(c)
	fields["code"] = code
	fields["status"] = status
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", err, fields)
	} else {
		logger.Warn("Request rejected: "+err.Error(), fields)
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error":      err.Error(),
		"code":       code,
		"request_id": c.GetString("request_id"),
	})
}
