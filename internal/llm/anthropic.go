package llm

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/capitalize-ai/chat-gateway/pkg/metrics"
)

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// AnthropicProvider is the Anthropic Messages API backend.
type AnthropicProvider struct {
	client      *anthropic.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, &Error{Kind: ErrConfig, Provider: string(ProviderAnthropic), Message: "Anthropic API key is required"}
	}

	p := &AnthropicProvider{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       orDefault(cfg.Model, defaultAnthropicModel),
		temperature: cfg.Temperature,
		maxTokens:   defaultMaxTokens,
	}
	if cfg.MaxTokens > 0 {
		p.maxTokens = cfg.MaxTokens
	}
	return p, nil
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return string(ProviderAnthropic)
}

func (p *AnthropicProvider) params(model, prompt string) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:       anthropic.F(model),
		MaxTokens:   anthropic.F(int64(p.maxTokens)),
		Temperature: anthropic.F(p.temperature),
		Messages: anthropic.F([]anthropic.MessageParam{
			{
				Role: anthropic.F(anthropic.MessageParamRoleUser),
				Content: anthropic.F([]anthropic.ContentBlockParamUnion{
					anthropic.TextBlockParam{
						Type: anthropic.F(anthropic.TextBlockParamTypeText),
						Text: anthropic.F(prompt),
					},
				}),
			},
		}),
	}
}

// Generate sends a completion request.
func (p *AnthropicProvider) Generate(ctx context.Context, req *Request) (string, error) {
	start := time.Now()
	model := resolveModel(req, p.model)

	resp, err := p.client.Messages.New(ctx, p.params(model, req.Prompt))
	recordCall(p.Name(), "generate", start, err)
	if err != nil {
		return "", wrapError(p.Name(), "generate", err, nil)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content.WriteString(block.Text)
		}
	}

	metrics.RecordLLMTokens(model, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
	return content.String(), nil
}

// GenerateStream streams text deltas from the Messages API.
func (p *AnthropicProvider) GenerateStream(ctx context.Context, req *Request, callback StreamCallback) error {
	start := time.Now()
	model := resolveModel(req, p.model)

	stream := p.client.Messages.NewStreaming(ctx, p.params(model, req.Prompt))

	index := 0
	var tokensOut int
	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case anthropic.MessageStreamEventTypeContentBlockDelta:
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				if err := callback(event.Delta.Text, index); err != nil {
					return err
				}
				index++
			}
		case anthropic.MessageStreamEventTypeMessageDelta:
			tokensOut = int(event.Usage.OutputTokens)
		}
	}

	err := stream.Err()
	recordCall(p.Name(), "stream", start, err)
	if err != nil {
		return wrapError(p.Name(), "stream", err, nil)
	}
	if index == 0 {
		return &Error{Kind: ErrEmptyResponse, Provider: p.Name(), Op: "stream", Message: model + " produced no text"}
	}

	metrics.RecordLLMTokens(model, 0, tokensOut)
	return nil
}
