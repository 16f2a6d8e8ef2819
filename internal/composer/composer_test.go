package composer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Conceptual-Machines/sparkle-api/internal/extract"
	"github.com/Conceptual-Machines/sparkle-api/internal/llm"
	"github.com/Conceptual-Machines/sparkle-api/internal/midifile"
	"github.com/Conceptual-Machines/sparkle-api/internal/models"
	"github.com/Conceptual-Machines/sparkle-api/internal/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	calls    atomic.Int32
	generate func(ctx context.Context, request *llm.CompletionRequest) (*llm.CompletionResponse, error)
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Generate(ctx context.Context, request *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls.Add(1)
	return p.generate(ctx, request)
}

func replying(text string) *stubProvider {
	return &stubProvider{generate: func(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Text: text, Usage: llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}}, nil
	}}
}

type countingEncoder struct {
	calls atomic.Int32
	err   error
}

func (e *countingEncoder) Encode(composition *models.Composition) ([]byte, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return midifile.NewCodec().Encode(composition)
}

type callbackCounter struct {
	calls atomic.Int32
	last  *Result
	mu    sync.Mutex
}

func (c *callbackCounter) onComplete(result *Result) {
	c.calls.Add(1)
	c.mu.Lock()
	c.last = result
	c.mu.Unlock()
}

func newTestComposer(provider llm.Provider, encoder Encoder) *Composer {
	if provider == nil {
		return New(nil, prompt.NewPromptBuilder(), encoder, Options{})
	}
	return New(provider, prompt.NewPromptBuilder(), encoder, Options{Timeout: time.Second})
}

func TestCompose_EndToEnd(t *testing.T) {
	provider := replying(`Sure! {"tracks":[]} Enjoy.`)
	encoder := &countingEncoder{}
	callback := &callbackCounter{}

	result, err := newTestComposer(provider, encoder).Compose(context.Background(),
		&CompositionContext{Template: "sparkles"}, callback.onComplete)
	require.NoError(t, err)

	assert.Empty(t, result.Composition.Tracks)
	assert.NotEmpty(t, result.MIDI)
	assert.Equal(t, 15, result.Usage.TotalTokens)
	assert.Equal(t, "gpt-4", result.Model)
	assert.Equal(t, int32(1), provider.calls.Load())
	assert.Equal(t, int32(1), encoder.calls.Load())
	assert.Equal(t, int32(1), callback.calls.Load())
	assert.Same(t, result, callback.last)
}

func TestCompose_RequestShape(t *testing.T) {
	var captured *llm.CompletionRequest
	provider := &stubProvider{generate: func(_ context.Context, request *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		captured = request
		return &llm.CompletionResponse{Text: `{"tracks":[]}`}, nil
	}}
	temperature := 0.3
	c := New(provider, prompt.NewPromptBuilder(), &countingEncoder{}, Options{Model: "gpt-4o", Temperature: &temperature})

	baseline := &models.Composition{
		Header: models.Header{Name: "my-upload"},
		Tracks: []models.Track{{Notes: []models.Note{{Midi: 48, DurationTicks: 480}}}},
	}
	_, err := c.Compose(context.Background(), &CompositionContext{Template: "pad", Baseline: baseline}, nil)
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "gpt-4o", captured.Model)
	assert.Equal(t, 0.3, captured.Temperature)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, llm.RoleUser, captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, `"name":"my-upload"`)
	assert.True(t, strings.HasSuffix(captured.Messages[0].Content, prompt.OutputInstruction))
}

func TestCompose_Failures(t *testing.T) {
	tests := []struct {
		name         string
		provider     *stubProvider
		encoderErr   error
		template     string
		wantErr      error
		wantProvider int32
		wantEncoder  int32
	}{
		{
			name:         "unbalanced block",
			provider:     replying(`{"tracks": [`),
			wantErr:      ErrBlockNotFound,
			wantProvider: 1,
		},
		{
			name:         "no block",
			provider:     replying("I cannot help with that."),
			wantErr:      ErrBlockNotFound,
			wantProvider: 1,
		},
		{
			name:         "blank text",
			provider:     replying("  \n"),
			wantErr:      ErrEmptyResponse,
			wantProvider: 1,
		},
		{
			name: "upstream failure",
			provider: &stubProvider{generate: func(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
				return nil, errors.New("503 service unavailable")
			}},
			wantErr:      ErrUpstream,
			wantProvider: 1,
		},
		{
			name:         "invalid composition",
			provider:     replying(`here: {"tracks":[{"notes":[{"midi":200}]}]}`),
			wantErr:      ErrDecode,
			wantProvider: 1,
		},
		{
			name:         "missing tracks",
			provider:     replying(`{"header":{}}`),
			wantErr:      ErrDecode,
			wantProvider: 1,
		},
		{
			name:         "encoder failure",
			provider:     replying(`{"tracks":[]}`),
			encoderErr:   errors.New("disk full"),
			wantErr:      ErrEncode,
			wantProvider: 1,
			wantEncoder:  1,
		},
		{
			name:     "unknown template",
			provider: replying(`{"tracks":[]}`),
			template: "polka",
			wantErr:  ErrUnknownTemplate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder := &countingEncoder{err: tt.encoderErr}
			callback := &callbackCounter{}
			template := tt.template
			if template == "" {
				template = "sparkles"
			}

			result, err := newTestComposer(tt.provider, encoder).Compose(context.Background(),
				&CompositionContext{Template: template}, callback.onComplete)

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Nil(t, result)
			assert.Equal(t, tt.wantProvider, tt.provider.calls.Load())
			assert.Equal(t, tt.wantEncoder, encoder.calls.Load())
			assert.Zero(t, callback.calls.Load())
		})
	}
}

func TestCompose_BlockNotFoundWrapsExtractor(t *testing.T) {
	_, err := newTestComposer(replying(`{"a": {`), &countingEncoder{}).Compose(context.Background(),
		&CompositionContext{Template: "sparkles"}, nil)
	assert.True(t, errors.Is(err, ErrBlockNotFound))
	assert.True(t, errors.Is(err, extract.ErrNotFound))
}

func TestCompose_DecodeErrorCarriesPath(t *testing.T) {
	provider := replying(`{"tracks":[{"notes":[{"midi":60},{"midi":60,"velocity":3}]}]}`)

	_, err := newTestComposer(provider, &countingEncoder{}).Compose(context.Background(),
		&CompositionContext{Template: "sparkles"}, nil)

	var validation *models.ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "tracks[0].notes[1].velocity", validation.Path)
}

func TestCompose_MissingCredential(t *testing.T) {
	encoder := &countingEncoder{}
	callback := &callbackCounter{}
	c := newTestComposer(nil, encoder)

	assert.False(t, c.Enabled())
	_, err := c.Compose(context.Background(), &CompositionContext{Template: "sparkles"}, callback.onComplete)

	assert.True(t, errors.Is(err, ErrMissingCredential))
	assert.Zero(t, encoder.calls.Load())
	assert.Zero(t, callback.calls.Load())
}

func TestCompose_Timeout(t *testing.T) {
	provider := &stubProvider{generate: func(ctx context.Context, _ *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := New(provider, prompt.NewPromptBuilder(), &countingEncoder{}, Options{Timeout: 20 * time.Millisecond})

	_, err := c.Compose(context.Background(), &CompositionContext{Template: "sparkles"}, nil)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestComposeShared_CoalescesDuplicates(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	provider := &stubProvider{generate: func(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		once.Do(func() { close(started) })
		<-release
		return &llm.CompletionResponse{Text: `{"tracks":[]}`}, nil
	}}
	encoder := &countingEncoder{}
	callback := &callbackCounter{}
	c := newTestComposer(provider, encoder)
	cc := &CompositionContext{Template: "sparkles"}

	const callers = 5
	results := make([]*Result, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _, errs[0] = c.ComposeShared(context.Background(), "session/sparkles", cc, callback.onComplete)
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = c.ComposeShared(context.Background(), "session/sparkles", cc, callback.onComplete)
		}(i)
	}
	// let the duplicates join the in-flight call
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), provider.calls.Load())
	assert.Equal(t, int32(1), encoder.calls.Load())
	assert.Equal(t, int32(1), callback.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestComposeShared_DistinctKeysRunSeparately(t *testing.T) {
	provider := replying(`{"tracks":[]}`)
	c := newTestComposer(provider, &countingEncoder{})
	cc := &CompositionContext{Template: "sparkles"}

	_, _, err := c.ComposeShared(context.Background(), "a/sparkles", cc, nil)
	require.NoError(t, err)
	_, _, err = c.ComposeShared(context.Background(), "b/sparkles", cc, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, CodeDecode, ErrorCode(errors.Join(errors.New("x"), ErrDecode)))
	assert.Equal(t, CodeUnknownTemplate, ErrorCode(prompt.ErrUnknownTemplate))
	assert.Equal(t, CodeMissingCredential, ErrorCode(ErrMissingCredential))
	assert.Equal(t, CodeInternal, ErrorCode(errors.New("other")))
}
