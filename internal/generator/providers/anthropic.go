package providers

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/ibeckermayer/deepfeed/internal/config"
	"github.com/ibeckermayer/deepfeed/internal/types"
)

// AnthropicProvider implements Provider using Anthropic's Claude API
type AnthropicProvider struct {
	client      *anthropic.Client
	model       string
	temperature float64
	maxTokens   int
	rec         exchangeRecorder
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(opts LLMOptions) *AnthropicProvider {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(reqOpts...)
	model := opts.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	log := opts.logger().With(zap.String("provider", config.ProviderAnthropic))
	return &AnthropicProvider{
		client:      &client,
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   max(opts.MaxTokens, 1),
		rec:         exchangeRecorder{cache: opts.Cache, log: log},
	}
}

func (c *AnthropicProvider) Name() string { return config.ProviderAnthropic }

// Generate asks Claude for req.Count posts
func (c *AnthropicProvider) Generate(ctx context.Context, req Request) ([]types.Draft, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	// Use prefilling to ensure Claude continues with valid JSON (starting after the "[")
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(c.maxTokens * max(req.Count, 1)),
		Temperature: anthropic.Float(c.temperature),
		System:      []anthropic.TextBlockParam{{Text: SystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock("[")),
		},
	})
	if err != nil {
		c.rec.record(c.Name(), c.model, prompt, "", err)
		return nil, fmt.Errorf("failed to call Claude API: %w", err)
	}

	// Extract text from response
	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	c.rec.record(c.Name(), c.model, prompt, responseText, nil)

	if responseText == "" {
		return nil, fmt.Errorf("%w: Claude returned empty response", ErrInvalidResponse)
	}

	// Prepend "[" since we used prefilling - the response continues from after the "["
	return ParseDraftResponse("["+responseText, req, types.AIGenerated())
}
