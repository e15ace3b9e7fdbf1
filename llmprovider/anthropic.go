package llmprovider

import (
	"context"
	"errors"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tdevteam/upgradeforge/types"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// AnthropicProvider adapts github.com/anthropics/anthropic-sdk-go to the
// Provider interface.
type AnthropicProvider struct {
	sdk   anthropic.Client
	model string
}

// NewAnthropicProvider builds an AnthropicProvider from cfg.
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}

	return &AnthropicProvider{sdk: anthropic.NewClient(opts...), model: model}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) pickModel(req GenerateRequest) string {
	if req.ModelID != "" {
		return req.ModelID
	}
	return p.model
}

func (p *AnthropicProvider) buildParams(req GenerateRequest) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	if req.SystemPrompt != "" {
		system = append(system, anthropic.TextBlockParam{Text: req.SystemPrompt})
	}

	var messages []anthropic.MessageParam
	if req.Prompt != "" {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)))
	}

	return anthropic.MessageNewParams{
		Model:     anthropic.Model(p.pickModel(req)),
		Messages:  messages,
		System:    system,
		MaxTokens: int64(req.MaxTokens),
	}
}

func (p *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	req = req.withDefaults()
	params := p.buildParams(req)

	resp, err := p.sdk.Messages.New(ctx, params)
	if err != nil {
		if isRateLimitError(err) {
			return GenerateResult{}, &RateLimitError{Provider: p.Name(), Cause: err}
		}
		return GenerateResult{}, err
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}

	return GenerateResult{
		Content: content.String(),
		Success: true,
		Model:   string(resp.Model),
		Usage: types.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

func (p *AnthropicProvider) StreamGenerate(ctx context.Context, req GenerateRequest) (<-chan GenerateChunk, error) {
	req = req.withDefaults()
	params := p.buildParams(req)

	stream := p.sdk.Messages.NewStreaming(ctx, params)
	ch := make(chan GenerateChunk, 8)

	go func() {
		defer close(ch)
		defer stream.Close()

		var acc anthropic.Message
		for stream.Next() {
			event := stream.Current()
			_ = acc.Accumulate(event)

			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
					ch <- GenerateChunk{Delta: text.Text}
				}
			}
		}

		if err := stream.Err(); err != nil {
			if isRateLimitError(err) {
				err = &RateLimitError{Provider: p.Name(), Cause: err}
			}
			ch <- GenerateChunk{Done: true, Err: err}
			return
		}

		usage := types.TokenUsage{
			PromptTokens:     int(acc.Usage.InputTokens),
			CompletionTokens: int(acc.Usage.OutputTokens),
			TotalTokens:      int(acc.Usage.InputTokens + acc.Usage.OutputTokens),
		}
		ch <- GenerateChunk{Done: true, Usage: &usage}
	}()

	return ch, nil
}

// statusCoder is satisfied by both vendor SDKs' API error types.
type statusCoder interface {
	StatusCode() int
}

func isRateLimitError(err error) bool {
	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}
