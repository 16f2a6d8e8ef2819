package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Conceptual-Machines/sparkle-api/internal/api"
	"github.com/Conceptual-Machines/sparkle-api/internal/audio"
	"github.com/Conceptual-Machines/sparkle-api/internal/composer"
	"github.com/Conceptual-Machines/sparkle-api/internal/config"
	"github.com/Conceptual-Machines/sparkle-api/internal/intake"
	"github.com/Conceptual-Machines/sparkle-api/internal/llm"
	"github.com/Conceptual-Machines/sparkle-api/internal/metrics"
	"github.com/Conceptual-Machines/sparkle-api/internal/midifile"
	"github.com/Conceptual-Machines/sparkle-api/internal/observability"
	"github.com/Conceptual-Machines/sparkle-api/internal/prompt"
	"github.com/Conceptual-Machines/sparkle-api/internal/session"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	sentryFlushTimeout    = 2 * time.Second
	shutdownTimeout       = 10 * time.Second
	sessionSweepInterval  = time.Minute
	environmentProduction = "production"
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          "sparkle-api@" + releaseVersion,          // Use embedded release version
			EnableTracing:    true,                                     // Enable tracing for spans
			TracesSampleRate: 1.0,                                      // 100% sampling for now, adjust based on volume
			EnableLogs:       true,                                     // Enable Sentry Logs feature
			Debug:            cfg.Environment != environmentProduction, // Enable debug in non-prod
			BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
				// Filter out sensitive data
				if event.Request != nil {
					event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
				}
				return event
			},
		}); err != nil {
			log.Printf("Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
			// Flush on shutdown
			defer sentry.Flush(sentryFlushTimeout)
		}
	} else {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer := observability.InitializeLangfuse(ctx, cfg)

	cloudwatch, err := metrics.NewClient(ctx, cfg.Environment)
	if err != nil {
		log.Printf("⚠️  CloudWatch metrics unavailable: %v", err)
	}

	// A missing key leaves the composer disabled rather than failing startup
	var provider llm.Provider
	if cfg.ComposerEnabled() {
		factory := llm.NewProviderFactory(cfg.OpenAIAPIKey, cfg.GeminiAPIKey)
		provider, err = factory.GetProvider(ctx, cfg.ComposerModel, cfg.ComposerProvider)
		if err != nil {
			sentry.CaptureException(err)
			log.Fatal("Failed to create completion provider:", err)
		}
	} else {
		log.Printf("⚠️  Composer disabled: no usable provider %q or API key for model %s", cfg.ComposerProvider, cfg.ComposerModel)
	}

	codec := midifile.NewCodec()
	builder := prompt.NewPromptBuilder()
	temperature := cfg.ComposerTemperature
	comp := composer.New(provider, builder, codec, composer.Options{
		Model:       cfg.ComposerModel,
		Temperature: &temperature,
		Timeout:     cfg.ComposeTimeout,
		Metrics:     metrics.NewSentryMetrics(),
		CloudWatch:  cloudwatch,
		Tracer:      tracer,
	})

	sessions := session.NewStore()
	go sessions.RunJanitor(ctx, sessionSweepInterval, cfg.SessionIdle)

	deps := &api.Dependencies{
		Composer:   comp,
		Prompts:    builder.Loader(),
		Sessions:   sessions,
		Intake:     intake.New(codec, builder.Loader(), cfg.MaxUploadBytes),
		Encoder:    codec,
		CloudWatch: cloudwatch,
	}

	// Audio preview is optional
	if cfg.SoundFontPath != "" {
		renderer, err := audio.LoadSoundFont(cfg.SoundFontPath)
		if err != nil {
			log.Printf("⚠️  Audio preview disabled: %v", err)
		} else {
			log.Printf("🔊 Audio preview enabled (SoundFont: %s)", cfg.SoundFontPath)
			deps.Renderer = renderer
		}
	} else {
		log.Println("🔇 Audio preview disabled (SOUNDFONT_PATH not set)")
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := api.SetupRouter(cfg, deps, GetVersion())

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("🛑 Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	log.Printf("🚀 Starting server on port %s", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sentry.CaptureException(err)
		log.Fatal("Failed to start server:", err)
	}
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
	}

	for k, v := range headers {
		if sensitiveKeys[k] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
