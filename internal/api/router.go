package api

import (
	"github.com/Conceptual-Machines/sparkle-api/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/sparkle-api/internal/api/middleware"
	"github.com/Conceptual-Machines/sparkle-api/internal/composer"
	"github.com/Conceptual-Machines/sparkle-api/internal/config"
	"github.com/Conceptual-Machines/sparkle-api/internal/intake"
	"github.com/Conceptual-Machines/sparkle-api/internal/metrics"
	"github.com/Conceptual-Machines/sparkle-api/internal/prompt"
	"github.com/Conceptual-Machines/sparkle-api/internal/session"
	"github.com/gin-gonic/gin"
)

// Dependencies are the services the HTTP layer is wired onto
type Dependencies struct {
	Composer   *composer.Composer
	Prompts    *prompt.Loader
	Sessions   *session.Store
	Intake     *intake.Intake
	Encoder    handlers.MIDIEncoder
	Renderer   handlers.AudioRenderer // nil disables the WAV preview
	CloudWatch *metrics.Client
}

func SetupRouter(cfg *config.Config, deps *Dependencies, version string) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(deps.CloudWatch))

	// CORS middleware
	router.Use(apimiddleware.CORS(cfg.CORSAllowedOrigins))

	// Health check
	healthHandler := handlers.NewHealthHandler(deps.Composer, deps.Sessions, deps.Renderer != nil)
	router.GET("/health", healthHandler.HealthCheck)

	// Metrics endpoint
	metricsHandler := handlers.NewMetricsHandler(version, deps.Composer, deps.Sessions)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	composerHandler := handlers.NewComposerHandler(deps.Composer, deps.Prompts, deps.Sessions)
	sessionHandler := handlers.NewSessionHandler(deps.Sessions, deps.Intake, deps.Encoder, deps.Renderer)

	// Public status so a UI can disable its controls (user is logged when present)
	router.GET("/api/v1/composer/status", apimiddleware.OptionalGatewayAuth(), composerHandler.Status)

	// Session API routes v1
	v1 := router.Group("/api/v1")
	if cfg.IsGatewayMode() {
		v1.Use(apimiddleware.GatewayAuth())
	} else {
		v1.Use(apimiddleware.NoAuth())
	}
	{
		v1.POST("/sessions", sessionHandler.Create)
		v1.GET("/sessions/:id", sessionHandler.Get)
		v1.DELETE("/sessions/:id", sessionHandler.Delete)

		// File intake
		v1.POST("/sessions/:id/upload", sessionHandler.Upload)
		v1.POST("/sessions/:id/examples", sessionHandler.LoadExamples)
		v1.POST("/sessions/:id/reset", sessionHandler.Reset)

		// Generation, one endpoint per prompt template
		v1.POST("/sessions/:id/compose/:template", composerHandler.Compose)

		// sparkles.mid or <role>.wav
		v1.GET("/sessions/:id/:file", sessionHandler.Download)
	}

	return router
}
