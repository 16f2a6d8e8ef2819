package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultComposeTimeoutSeconds = 120
	defaultMaxUploadBytes        = 10 << 20
	defaultSessionIdleMinutes    = 60

	providerOpenAI     = "openai"
	providerGemini     = "gemini"
	defaultOpenAIModel = "gpt-4"
	defaultGeminiModel = "gemini-2.5-flash"
	geminiModelPrefix  = "gemini-"
)

// Config holds the application configuration
// Note: This is a stateless configuration; sessions live in memory only
type Config struct {
	// Environment
	Environment string
	Port        string

	// LLM API Keys
	OpenAIAPIKey string // OpenAI API key for GPT models
	GeminiAPIKey string // Google Gemini API key

	// Composer
	ComposerProvider    string  // "openai", "gemini" or empty to infer from the model
	ComposerModel       string  // Model used for every compose request
	ComposerTemperature float64 // Randomness passed to the provider
	ComposeTimeout      time.Duration

	// Intake
	MaxUploadBytes int64
	SessionIdle    time.Duration

	// Audio preview, disabled when empty
	SoundFontPath string

	// Browser origins allowed by CORS, "*" for any
	CORSAllowedOrigins []string

	// Observability
	SentryDSN         string // Sentry DSN for error tracking
	LangfusePublicKey string // Langfuse public key
	LangfuseSecretKey string // Langfuse secret key
	LangfuseHost      string // Langfuse host URL (cloud or self-hosted)
	LangfuseEnabled   bool   // Feature flag for Langfuse

	// Auth mode
	// - "none": No auth (self-hosted, local dev)
	// - "gateway": Trust X-User-* headers from an upstream gateway
	AuthMode string
}

func Load() *Config {
	provider := normalizeProvider(getEnv("COMPOSER_PROVIDER", ""))
	return &Config{
		Environment:         getEnv("ENVIRONMENT", "development"),
		Port:                getEnv("PORT", "8080"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		ComposerProvider:    provider,
		ComposerModel:       getEnv("COMPOSER_MODEL", defaultComposerModel(provider)),
		ComposerTemperature: getEnvFloat("COMPOSER_TEMPERATURE", 1.0),
		ComposeTimeout:      time.Duration(getEnvInt("COMPOSE_TIMEOUT_SECONDS", defaultComposeTimeoutSeconds)) * time.Second,
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
		SessionIdle:         time.Duration(getEnvInt("SESSION_IDLE_MINUTES", defaultSessionIdleMinutes)) * time.Minute,
		SoundFontPath:       getEnv("SOUNDFONT_PATH", ""),
		CORSAllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", "*"),
		SentryDSN:           getEnv("SENTRY_DSN", ""),
		LangfusePublicKey:   getEnv("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey:   getEnv("LANGFUSE_SECRET_KEY", ""),
		LangfuseHost:        getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
		LangfuseEnabled:     getEnv("LANGFUSE_ENABLED", "false") == "true",
		AuthMode:            getEnv("AUTH_MODE", "none"), // Default to no auth for self-hosted
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	var values []string
	for _, v := range strings.Split(getEnv(key, defaultValue), ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("⚠️  Invalid %s=%q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		log.Printf("⚠️  Invalid %s=%q, using default %g", key, value, defaultValue)
		return defaultValue
	}
	return f
}

// IsGatewayMode returns true if running behind an auth gateway
func (c *Config) IsGatewayMode() bool {
	return c.AuthMode == "gateway"
}

// IsProduction reports whether production-only integrations should run
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ComposerEnabled reports whether a credential exists for the configured
// provider. Provider names are case-insensitive; an unknown name disables
// the composer.
func (c *Config) ComposerEnabled() bool {
	switch normalizeProvider(c.ComposerProvider) {
	case providerGemini:
		return c.GeminiAPIKey != ""
	case providerOpenAI:
		return c.OpenAIAPIKey != ""
	case "":
	default:
		return false
	}
	if strings.HasPrefix(strings.ToLower(c.ComposerModel), geminiModelPrefix) {
		return c.GeminiAPIKey != ""
	}
	return c.OpenAIAPIKey != ""
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// defaultComposerModel picks a model the named provider can serve
func defaultComposerModel(provider string) string {
	if provider == providerGemini {
		return defaultGeminiModel
	}
	return defaultOpenAIModel
}
