package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Conceptual-Machines/sparkle-api/internal/composer"
	"github.com/Conceptual-Machines/sparkle-api/internal/config"
	"github.com/Conceptual-Machines/sparkle-api/internal/intake"
	"github.com/Conceptual-Machines/sparkle-api/internal/midifile"
	"github.com/Conceptual-Machines/sparkle-api/internal/prompt"
	"github.com/Conceptual-Machines/sparkle-api/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T, authMode string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	codec := midifile.NewCodec()
	builder := prompt.NewPromptBuilder()
	cfg := &config.Config{
		Environment:        "test",
		AuthMode:           authMode,
		CORSAllowedOrigins: []string{"https://app.example"},
	}
	deps := &Dependencies{
		Composer: composer.New(nil, builder, codec, composer.Options{}),
		Prompts:  builder.Loader(),
		Sessions: session.NewStore(),
		Intake:   intake.New(codec, builder.Loader(), 0),
		Encoder:  codec,
	}
	return SetupRouter(cfg, deps, "test")
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicEndpoints(t *testing.T) {
	router := setupTestRouter(t, "gateway")

	for _, path := range []string{"/health", "/api/metrics", "/api/v1/composer/status"} {
		w := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_GatewayAuth(t *testing.T) {
	router := setupTestRouter(t, "gateway")

	w := serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unauthenticated", body["code"])
	assert.NotEmpty(t, body["request_id"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	req.Header.Set("X-User-ID", "42")
	w = serve(router, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRouter_NoAuth(t *testing.T) {
	router := setupTestRouter(t, "none")

	w := serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRouter_RequestID(t *testing.T) {
	router := setupTestRouter(t, "none")

	w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", incoming)
	w = serve(router, req)
	assert.Equal(t, incoming, w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "not-a-uuid")
	w = serve(router, req)
	assert.NotEqual(t, "not-a-uuid", w.Header().Get("X-Request-ID"))
}

func TestRouter_CORS(t *testing.T) {
	router := setupTestRouter(t, "none")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(router, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example")
	w = serve(router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}
