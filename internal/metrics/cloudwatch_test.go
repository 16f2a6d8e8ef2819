package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloudWatch struct {
	mu     sync.Mutex
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput,
	_ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (f *fakeCloudWatch) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, in := range f.inputs {
		for _, d := range in.MetricData {
			names = append(names, aws.ToString(d.MetricName))
		}
	}
	return names
}

func TestNewClient_DisabledOutsideProduction(t *testing.T) {
	client, err := NewClient(context.Background(), "development")
	require.NoError(t, err)
	assert.False(t, client.active())

	// no-ops must not panic
	client.RecordAPIRequest("/health", 200, time.Millisecond)
	client.RecordTokenUsage("gpt-4", 3, 2, 1)
	client.RecordComposeDuration("sparkles", OutcomeOK, time.Second)
}

func TestNilClientIsNoop(t *testing.T) {
	var client *Client
	client.RecordComposeDuration("sparkles", OutcomeOK, time.Second)

	var sm *SentryMetrics
	sm.RecordComposeDuration(context.Background(), "sparkles", OutcomeOK, time.Second)
}

func TestClient_RecordsMetrics(t *testing.T) {
	fake := &fakeCloudWatch{}
	client := &Client{client: fake, enabled: true, environment: "production"}

	client.RecordComposeDuration("sparkles", OutcomeOK, 1500*time.Millisecond)
	client.RecordTokenUsage("gpt-4", 30, 20, 10)
	client.RecordAPIRequest("/api/v1/sessions", 502, time.Second)

	assert.Eventually(t, func() bool { return len(fake.names()) == 6 }, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{
		"ComposeDuration",
		"LLMTokens/Total", "LLMTokens/Input", "LLMTokens/Output",
		"APIErrors", "APILatency",
	}, fake.names())
}
