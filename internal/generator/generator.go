// Package generator is the feed's content provider. It turns topic lists into
// ordered batches of posts and guards the configured back end with a rate
// limiter and a circuit breaker.
package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ibeckermayer/deepfeed/internal/config"
	"github.com/ibeckermayer/deepfeed/internal/generator/providers"
	"github.com/ibeckermayer/deepfeed/internal/store"
	"github.com/ibeckermayer/deepfeed/internal/types"
)

var (
	ErrInvalidResponse = providers.ErrInvalidResponse
	ErrEncodingFailed  = providers.ErrEncodingFailed
)

// getwd locates the .env file; tests replace it.
var getwd = os.Getwd

// Options tunes a Generator independently of the back end.
type Options struct {
	PostsPerTopic     int
	ChildrenPerExpand int
	Concurrency       int
	// RequestsPerSecond of zero disables rate limiting.
	RequestsPerSecond float64
}

// Generator implements feed.ContentProvider on top of a providers.Provider.
type Generator struct {
	provider providers.Provider
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	opts     Options
	log      *zap.Logger

	closeOnce sync.Once
}

// New creates a generator with the provider named in cfg. A hosted provider
// without an API key yields config.ErrConfigurationMissing.
func New(cfg *config.Config, cache *store.Cache, log *zap.Logger) (*Generator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gen := cfg.Generation

	wd, err := getwd()
	if err != nil {
		log.Debug("skipping .env lookup, no working directory", zap.Error(err))
	}
	apiKey, err := gen.ResolveAPIKey(wd)
	if err != nil {
		return nil, err
	}

	llm := providers.LLMOptions{
		APIKey:      apiKey,
		Model:       gen.Model,
		Temperature: gen.Temperature,
		MaxTokens:   gen.MaxTokens,
		Cache:       cache,
		Logger:      log,
	}

	var provider providers.Provider
	switch gen.Provider {
	case config.ProviderOpenAI:
		provider = providers.NewOpenAIProvider(llm)
	case config.ProviderAnthropic:
		provider = providers.NewAnthropicProvider(llm)
	case config.ProviderFixture:
		var corpus providers.Corpus
		if gen.FixturePath != "" {
			if corpus, err = providers.LoadCorpus(gen.FixturePath); err != nil {
				return nil, err
			}
		}
		provider = providers.NewFixtureProvider(corpus, 0)
	case config.ProviderReference:
		provider = providers.NewReferenceProvider(cfg.Reference, log)
	default:
		return nil, fmt.Errorf("unknown content provider: %s", gen.Provider)
	}

	return NewWithProvider(provider, Options{
		PostsPerTopic:     gen.PostsPerTopic,
		ChildrenPerExpand: gen.ChildrenPerExpand,
		Concurrency:       gen.Concurrency,
		RequestsPerSecond: gen.RequestsPerSecond,
	}, log), nil
}

// NewWithProvider wraps an already constructed provider.
func NewWithProvider(p providers.Provider, opts Options, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	opts.PostsPerTopic = max(opts.PostsPerTopic, 1)
	opts.ChildrenPerExpand = max(opts.ChildrenPerExpand, 1)
	opts.Concurrency = max(opts.Concurrency, 1)

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(opts.Concurrency, 1)
	}

	g := &Generator{
		provider: p,
		limiter:  rate.NewLimiter(limit, burst),
		opts:     opts,
		log:      log.With(zap.String("provider", p.Name())),
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// a cancelled request says nothing about the back end
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return g
}

// Name of the underlying provider
func (g *Generator) Name() string { return g.provider.Name() }

// BreakerState reports the circuit breaker state: closed, half-open or open.
func (g *Generator) BreakerState() string { return g.breaker.State().String() }

// Close releases provider resources such as a browser.
func (g *Generator) Close() {
	g.closeOnce.Do(func() {
		if c, ok := g.provider.(interface{ Close() }); ok {
			c.Close()
		}
	})
}

// GenerateChildren produces the children of a post about topic.
func (g *Generator) GenerateChildren(ctx context.Context, topic string, tags []string) ([]types.Draft, error) {
	return g.call(ctx, providers.Request{Topic: topic, Tags: tags, Count: g.opts.ChildrenPerExpand})
}

// GenerateBatch produces posts for every topic concurrently. The result keeps
// topic order. Topics whose generation fails are dropped; the batch fails
// only when every topic does.
func (g *Generator) GenerateBatch(ctx context.Context, topics []string) ([]types.Draft, error) {
	if len(topics) == 0 {
		return nil, nil
	}

	results := make([][]types.Draft, len(topics))
	errs := make([]error, len(topics))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Concurrency)
	for i, topic := range topics {
		eg.Go(func() error {
			drafts, err := g.call(ctx, providers.Request{Topic: topic, Count: g.opts.PostsPerTopic})
			if err != nil {
				g.log.Warn("dropping topic from batch", zap.String("topic", topic), zap.Error(err))
				errs[i] = err
				return nil
			}
			results[i] = drafts
			return nil
		})
	}
	_ = eg.Wait()

	var all []types.Draft
	failed := 0
	for i := range topics {
		if errs[i] != nil {
			failed++
			continue
		}
		all = append(all, results[i]...)
	}
	if failed == len(topics) {
		return nil, fmt.Errorf("failed to generate batch: all %d topics failed: %w", failed, errors.Join(errs...))
	}
	return all, nil
}

func (g *Generator) call(ctx context.Context, req providers.Request) ([]types.Draft, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
	}
	start := time.Now()
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.provider.Generate(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate %q: %w", req.Topic, err)
	}
	drafts, _ := out.([]types.Draft)
	g.log.Debug("generated",
		zap.String("topic", req.Topic),
		zap.Int("count", len(drafts)),
		zap.Duration("took", time.Since(start)),
	)
	return drafts, nil
}
