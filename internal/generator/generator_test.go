package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ibeckermayer/deepfeed/internal/config"
	"github.com/ibeckermayer/deepfeed/internal/generator/providers"
	"github.com/ibeckermayer/deepfeed/internal/types"
)

type fakeProvider struct {
	mu       sync.Mutex
	fail     map[string]error
	delay    map[string]time.Duration
	requests []providers.Request
	calls    atomic.Int32
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req providers.Request) ([]types.Draft, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.fail[req.Topic]
	d := f.delay[req.Topic]
	f.mu.Unlock()

	if d > 0 {
		time.Sleep(d)
	}
	if err != nil {
		return nil, err
	}
	out := make([]types.Draft, req.Count)
	for i := range out {
		out[i] = types.Draft{Content: fmt.Sprintf("%s #%d", req.Topic, i), Topic: req.Topic}
	}
	return out, nil
}

func TestGenerateBatch_PreservesTopicOrder(t *testing.T) {
	p := &fakeProvider{delay: map[string]time.Duration{"Technology": 30 * time.Millisecond}}
	g := NewWithProvider(p, Options{PostsPerTopic: 2, Concurrency: 4}, nil)

	drafts, err := g.GenerateBatch(context.Background(), []string{"Technology", "Science", "History"})
	require.NoError(t, err)
	var got []string
	for _, d := range drafts {
		got = append(got, d.Content)
	}
	assert.Equal(t, []string{
		"Technology #0", "Technology #1",
		"Science #0", "Science #1",
		"History #0", "History #1",
	}, got)
}

func TestGenerateBatch_DropsFailedTopics(t *testing.T) {
	p := &fakeProvider{fail: map[string]error{"Science": errors.New("timeout")}}
	g := NewWithProvider(p, Options{PostsPerTopic: 1}, nil)

	drafts, err := g.GenerateBatch(context.Background(), []string{"Technology", "Science", "Art"})
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "Technology", drafts[0].Topic)
	assert.Equal(t, "Art", drafts[1].Topic)
}

func TestGenerateBatch_AllFailed(t *testing.T) {
	boom := fmt.Errorf("%w: garbage", ErrInvalidResponse)
	p := &fakeProvider{fail: map[string]error{"A": boom, "B": boom}}
	g := NewWithProvider(p, Options{}, nil)

	_, err := g.GenerateBatch(context.Background(), []string{"A", "B"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestGenerateBatch_Empty(t *testing.T) {
	g := NewWithProvider(&fakeProvider{}, Options{}, nil)
	drafts, err := g.GenerateBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestGenerateChildren_PassesTagsAndCount(t *testing.T) {
	p := &fakeProvider{}
	g := NewWithProvider(p, Options{ChildrenPerExpand: 3}, nil)

	drafts, err := g.GenerateChildren(context.Background(), "History", []string{"rome"})
	require.NoError(t, err)
	assert.Len(t, drafts, 3)
	require.Len(t, p.requests, 1)
	assert.Equal(t, providers.Request{Topic: "History", Tags: []string{"rome"}, Count: 3}, p.requests[0])
}

func TestCircuitBreaker_OpensAfterRepeatedFailures(t *testing.T) {
	p := &fakeProvider{fail: map[string]error{"x": errors.New("503")}}
	g := NewWithProvider(p, Options{}, nil)

	for range 5 {
		_, err := g.GenerateChildren(context.Background(), "x", nil)
		require.Error(t, err)
	}
	assert.Equal(t, "open", g.BreakerState())

	_, err := g.GenerateChildren(context.Background(), "x", nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 5, p.calls.Load(), "open breaker short-circuits the provider")
}

func TestRateLimiter_HonoursContext(t *testing.T) {
	p := &fakeProvider{}
	g := NewWithProvider(p, Options{RequestsPerSecond: 0.001, Concurrency: 1}, nil)

	_, err := g.GenerateChildren(context.Background(), "first", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.GenerateChildren(ctx, "second", nil)
	assert.Error(t, err)
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestNew_ProviderSelection(t *testing.T) {
	t.Setenv("DEEPFEED_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(t.TempDir())

	cfg := config.Default()
	cfg.Generation.Provider = config.ProviderFixture
	g, err := New(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderFixture, g.Name())

	drafts, err := g.GenerateBatch(context.Background(), []string{"Nature"})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Sample content about Nature", drafts[0].Content)

	cfg.Generation.Provider = config.ProviderOpenAI
	_, err = New(cfg, nil, nil)
	assert.ErrorIs(t, err, config.ErrConfigurationMissing)

	cfg.Generation.APIKey = "sk-test"
	g, err = New(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderOpenAI, g.Name())
}

func TestNew_LogsMissingWorkingDirectory(t *testing.T) {
	t.Setenv("DEEPFEED_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	orig := getwd
	getwd = func() (string, error) { return "", errors.New("getwd: no such file or directory") }
	t.Cleanup(func() { getwd = orig })

	core, logs := observer.New(zapcore.DebugLevel)
	cfg := config.Default()
	cfg.Generation.Provider = config.ProviderOpenAI
	_, err := New(cfg, nil, zap.New(core))
	assert.ErrorIs(t, err, config.ErrConfigurationMissing)

	entries := logs.FilterMessage("skipping .env lookup, no working directory").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "getwd: no such file or directory", entries[0].ContextMap()["error"])
}
