// Package providers holds the content back ends: hosted language models, a
// local fixture corpus, and encyclopedia lookups through a headless browser.
package providers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/deepfeed/internal/store"
	"github.com/ibeckermayer/deepfeed/internal/types"
)

// Provider produces up to req.Count posts about one topic.
type Provider interface {
	Generate(ctx context.Context, req Request) ([]types.Draft, error)
	Name() string
}

// exchangeRecorder caches prompt/response pairs for debugging. A nil cache
// disables it.
type exchangeRecorder struct {
	cache *store.Cache
	log   *zap.Logger
}

func (r exchangeRecorder) record(provider, model, prompt, response string, callErr error) {
	if r.cache == nil {
		return
	}
	ex := store.LLMExchange{
		Timestamp: time.Now(),
		Provider:  provider,
		Model:     model,
		System:    SystemPrompt,
		Prompt:    prompt,
		Response:  response,
	}
	if callErr != nil {
		ex.Error = callErr.Error()
	}
	path, err := r.cache.SaveLLMExchange(ex)
	if err != nil {
		r.log.Warn("failed to cache llm exchange", zap.Error(err))
		return
	}
	r.log.Debug("cached llm exchange", zap.String("path", path))
}
