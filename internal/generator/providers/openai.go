package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ibeckermayer/deepfeed/internal/config"
	"github.com/ibeckermayer/deepfeed/internal/store"
	"github.com/ibeckermayer/deepfeed/internal/types"
)

// LLMOptions configures the hosted-model providers.
type LLMOptions struct {
	APIKey      string
	Model       string
	Temperature float64
	// MaxTokens is the budget per requested post.
	MaxTokens int
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	Cache   *store.Cache
	Logger  *zap.Logger
}

func (o LLMOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// OpenAIProvider implements Provider with the OpenAI chat completions API
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	rec         exchangeRecorder
	log         *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(opts LLMOptions) *OpenAIProvider {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	log := opts.logger().With(zap.String("provider", config.ProviderOpenAI))
	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: float32(opts.Temperature),
		maxTokens:   max(opts.MaxTokens, 1),
		rec:         exchangeRecorder{cache: opts.Cache, log: log},
		log:         log,
	}
}

func (p *OpenAIProvider) Name() string { return config.ProviderOpenAI }

// Generate asks the model for req.Count posts
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) ([]types.Draft, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens * max(req.Count, 1),
	})
	if err != nil {
		p.rec.record(p.Name(), p.model, prompt, "", err)
		return nil, fmt.Errorf("failed to call OpenAI API: %w", err)
	}

	var text string
	if len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		p.log.Debug("openai response", zap.String("finish_reason", string(resp.Choices[0].FinishReason)))
	}
	p.rec.record(p.Name(), p.model, prompt, text, nil)

	if text == "" {
		return nil, fmt.Errorf("%w: OpenAI returned no choices", ErrInvalidResponse)
	}
	return ParseDraftResponse(text, req, types.AIGenerated())
}
