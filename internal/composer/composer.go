// Package composer turns a prompt template and an optional baseline into a
// generated composition and its MIDI encoding.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Conceptual-Machines/sparkle-api/internal/extract"
	"github.com/Conceptual-Machines/sparkle-api/internal/llm"
	"github.com/Conceptual-Machines/sparkle-api/internal/logger"
	"github.com/Conceptual-Machines/sparkle-api/internal/metrics"
	"github.com/Conceptual-Machines/sparkle-api/internal/models"
	"github.com/Conceptual-Machines/sparkle-api/internal/observability"
	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/singleflight"
)

const (
	defaultModel       = "gpt-4"
	defaultTemperature = 1.0
	defaultTimeout     = 120 * time.Second
	maxLoggedChars     = 500
)

// Encoder turns a composition into Standard MIDI File bytes
type Encoder interface {
	Encode(composition *models.Composition) ([]byte, error)
}

// PromptBuilder renders the request text for a template
type PromptBuilder interface {
	Build(template string, baseline *models.Composition) (string, error)
}

// CompositionContext is the input of one compose call
type CompositionContext struct {
	Baseline *models.Composition // nil means the example payload is used
	Template string
}

// Result is what a successful compose call delivers
type Result struct {
	Composition *models.Composition `json:"composition"`
	MIDI        []byte              `json:"-"`
	Model       string              `json:"model"`
	Usage       llm.Usage           `json:"usage"`
	Duration    time.Duration       `json:"-"`
}

// OnComplete receives the result of a successful compose call
type OnComplete func(result *Result)

// Options configures a Composer. Zero values fall back to defaults.
type Options struct {
	Model       string
	Temperature *float64
	Timeout     time.Duration
	Metrics     *metrics.SentryMetrics
	CloudWatch  *metrics.Client
	Tracer      *observability.LangfuseClient
}

// Composer runs the compose pipeline against one provider
type Composer struct {
	provider    llm.Provider
	builder     PromptBuilder
	encoder     Encoder
	model       string
	temperature float64
	timeout     time.Duration
	metrics     *metrics.SentryMetrics
	cloudwatch  *metrics.Client
	tracer      *observability.LangfuseClient
	group       singleflight.Group
}

// New creates a composer. A nil provider yields a composer whose every call
// fails with ErrMissingCredential.
func New(provider llm.Provider, builder PromptBuilder, encoder Encoder, opts Options) *Composer {
	c := &Composer{
		provider:    provider,
		builder:     builder,
		encoder:     encoder,
		model:       opts.Model,
		temperature: defaultTemperature,
		timeout:     opts.Timeout,
		metrics:     opts.Metrics,
		cloudwatch:  opts.CloudWatch,
		tracer:      opts.Tracer,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if opts.Temperature != nil {
		c.temperature = *opts.Temperature
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}

	providerName := "none"
	if provider != nil {
		providerName = provider.Name()
	}
	log.Printf("✨ COMPOSER INITIALIZED:")
	log.Printf("   Provider: %s", providerName)
	log.Printf("   Model: %s (temperature %.2f, timeout %v)", c.model, c.temperature, c.timeout)

	return c
}

// Enabled reports whether a provider is configured
func (c *Composer) Enabled() bool {
	return c.provider != nil
}

// Model returns the configured model name
func (c *Composer) Model() string {
	return c.model
}

// Compose runs the pipeline once: build the prompt, call the provider,
// extract and decode the block, encode it, then hand the result to
// onComplete. On any failure neither onComplete nor, after a failed decode,
// the encoder is invoked.
func (c *Composer) Compose(ctx context.Context, cc *CompositionContext, onComplete OnComplete) (*Result, error) {
	startTime := time.Now()

	transaction := sentry.StartTransaction(ctx, "composer.compose")
	defer transaction.Finish()
	transaction.SetTag("template", cc.Template)
	transaction.SetTag("model", c.model)
	transaction.SetTag("baseline", fmt.Sprintf("%t", cc.Baseline != nil))
	ctx = transaction.Context()

	result, err := c.compose(ctx, cc)

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = ErrorCode(err)
	}
	duration := time.Since(startTime)
	c.metrics.RecordComposeDuration(ctx, cc.Template, outcome, duration)
	c.cloudwatch.RecordComposeDuration(cc.Template, outcome, duration)

	if err != nil {
		transaction.SetTag("success", "false")
		transaction.SetTag("outcome", outcome)
		logger.Error("Compose failed", err, logger.Fields{
			"template": cc.Template,
			"model":    c.model,
			"code":     outcome,
		})
		return nil, err
	}
	result.Duration = duration

	// callback last: nothing reaches the caller unless every step succeeded
	if onComplete != nil {
		onComplete(result)
	}

	transaction.SetTag("success", "true")
	logger.LogComposeRequest(ctx, result.Model, cc.Template, duration,
		result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.TotalTokens,
		logger.Fields{"notes": result.Composition.NoteCount(), "tracks": len(result.Composition.Tracks)})
	log.Printf("✅ COMPOSE COMPLETE: template=%s tracks=%d notes=%d in %v",
		cc.Template, len(result.Composition.Tracks), result.Composition.NoteCount(), duration)

	return result, nil
}

// ComposeShared coalesces concurrent calls with the same key: duplicates
// wait for the in-flight call and receive its result, and onComplete runs
// once for the whole group. shared reports whether the result was handed to
// more than one caller.
func (c *Composer) ComposeShared(
	ctx context.Context,
	key string,
	cc *CompositionContext,
	onComplete OnComplete,
) (result *Result, shared bool, err error) {
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// one caller going away must not abort the call for the others
		return c.Compose(context.WithoutCancel(ctx), cc, onComplete)
	})
	if err != nil {
		return nil, shared, err
	}
	return v.(*Result), shared, nil
}

func (c *Composer) compose(ctx context.Context, cc *CompositionContext) (*Result, error) {
	if c.provider == nil {
		return nil, ErrMissingCredential
	}

	text, err := c.builder.Build(cc.Template, cc.Baseline)
	if err != nil {
		if errors.Is(err, ErrUnknownTemplate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	logger.Debug("Compose prompt built", logger.Fields{
		"template":     cc.Template,
		"prompt_chars": len(text),
		"baseline":     cc.Baseline != nil,
	})

	request := &llm.CompletionRequest{
		Model:       c.model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: text}},
		Temperature: c.temperature,
	}

	resp, err := c.complete(ctx, cc.Template, request)
	if err != nil {
		return nil, err
	}

	block, err := extract.Block(resp.Text)
	if err != nil {
		log.Printf("❌ NO DATA BLOCK in completion (%d chars): %s", len(resp.Text), truncate(resp.Text))
		return nil, fmt.Errorf("%w: %w", ErrBlockNotFound, err)
	}

	composition, err := models.DecodeComposition([]byte(block))
	if err != nil {
		log.Printf("❌ DECODE FAILED: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	midi, err := c.encoder.Encode(composition)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return &Result{
		Composition: composition,
		MIDI:        midi,
		Model:       model,
		Usage:       resp.Usage,
	}, nil
}

// complete calls the provider under the compose timeout and traces the call
func (c *Composer) complete(ctx context.Context, template string, request *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	trace := c.tracer.StartTrace(ctx, "compose", map[string]interface{}{
		"template": template,
		"provider": c.provider.Name(),
	})
	defer trace.Finish()
	generation := trace.Generation("completion", nil)
	defer generation.Finish()

	log.Printf("🚀 COMPOSE REQUEST: %s model=%s template=%s prompt_chars=%d",
		c.provider.Name(), request.Model, template, len(request.Messages[0].Content))

	resp, err := c.provider.Generate(ctx, request)
	generation.LogCompletion(request, resp)
	if err != nil {
		generation.SetLevel("ERROR")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if resp == nil {
		return nil, ErrEmptyResponse
	}

	c.metrics.RecordTokenUsage(ctx, request.Model, resp.Usage.TotalTokens, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	c.cloudwatch.RecordTokenUsage(request.Model, resp.Usage.TotalTokens, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	log.Printf("💰 COMPOSE COST: %s (%d tokens)",
		observability.FormatCost(observability.CalculateCost(request.Model, resp.Usage)), resp.Usage.TotalTokens)

	if strings.TrimSpace(resp.Text) == "" {
		generation.SetLevel("WARNING")
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

func truncate(s string) string {
	if len(s) <= maxLoggedChars {
		return s
	}
	return s[:maxLoggedChars] + "..."
}
