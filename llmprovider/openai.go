package llmprovider

import (
	"context"
	"strings"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/tdevteam/upgradeforge/types"
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIProvider adapts github.com/openai/openai-go/v3 to the Provider
// interface.
type OpenAIProvider struct {
	sdk   sdk.Client
	model string
}

// NewOpenAIProvider builds an OpenAIProvider from cfg.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o"
	}

	return &OpenAIProvider{sdk: sdk.NewClient(opts...), model: model}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) pickModel(req GenerateRequest) string {
	if req.ModelID != "" {
		return req.ModelID
	}
	return p.model
}

func (p *OpenAIProvider) buildParams(req GenerateRequest) sdk.ChatCompletionNewParams {
	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, sdk.SystemMessage(req.SystemPrompt))
	}
	if req.Prompt != "" {
		messages = append(messages, sdk.UserMessage(req.Prompt))
	}

	return sdk.ChatCompletionNewParams{
		Model:               sdk.ChatModel(p.pickModel(req)),
		Messages:            messages,
		MaxCompletionTokens: param.NewOpt(int64(req.MaxTokens)),
		Temperature:         param.NewOpt(float64(req.Temperature)),
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	req = req.withDefaults()
	params := p.buildParams(req)

	comp, err := p.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		if isRateLimitError(err) {
			return GenerateResult{}, &RateLimitError{Provider: p.Name(), Cause: err}
		}
		return GenerateResult{}, err
	}

	var content string
	if len(comp.Choices) > 0 {
		content = comp.Choices[0].Message.Content
	}

	return GenerateResult{
		Content: content,
		Success: true,
		Model:   comp.Model,
		Usage: types.TokenUsage{
			PromptTokens:     int(comp.Usage.PromptTokens),
			CompletionTokens: int(comp.Usage.CompletionTokens),
			TotalTokens:      int(comp.Usage.TotalTokens),
		},
	}, nil
}

func (p *OpenAIProvider) StreamGenerate(ctx context.Context, req GenerateRequest) (<-chan GenerateChunk, error) {
	req = req.withDefaults()
	params := p.buildParams(req)

	stream := p.sdk.Chat.Completions.NewStreaming(ctx, params)
	ch := make(chan GenerateChunk, 8)

	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta != "" {
				ch <- GenerateChunk{Delta: delta}
			}
		}

		if err := stream.Err(); err != nil {
			if isRateLimitError(err) {
				err = &RateLimitError{Provider: p.Name(), Cause: err}
			}
			ch <- GenerateChunk{Done: true, Err: err}
			return
		}
		ch <- GenerateChunk{Done: true}
	}()

	return ch, nil
}
