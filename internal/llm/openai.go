package llm

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/pkg/logger"
	"github.com/capitalize-ai/chat-gateway/pkg/metrics"
)

const (
	defaultOpenAIModel         = "gpt-3.5-turbo"
	defaultOpenAIFallbackModel = "gpt-5-mini"
	defaultOpenAILegacyModel   = "gpt-3.5-turbo"
	defaultMaxTokens           = 500

	// gpt-5 models stay coherent with short outputs.
	gpt5DefaultMaxTokens = 200
	gpt5MaxTokensCeiling = 600

	replayChunkSize          = 5
	defaultOpenAIReplayDelay = 20 * time.Millisecond

	systemPrompt = "You are a helpful assistant."
)

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	FallbackModel string
	LegacyModel   string
	Temperature   float64
	MaxTokens     int
	// ReplayDelay is the pause between chunks replayed by fallback tiers.
	// Negative disables it.
	ReplayDelay time.Duration
	Tokens      TokenCounter
	Logger      *logger.Logger
}

// OpenAIProvider is the OpenAI backend.
type OpenAIProvider struct {
	client        *openai.Client
	model         string
	fallbackModel string
	legacyModel   string
	temperature   float32
	maxTokens     int
	replayDelay   time.Duration
	tokens        TokenCounter
	logger        *logger.Logger
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, &Error{Kind: ErrConfig, Provider: string(ProviderOpenAI), Message: "OpenAI API key is required"}
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	p := &OpenAIProvider{
		client:        openai.NewClientWithConfig(clientConfig),
		model:         orDefault(cfg.Model, defaultOpenAIModel),
		fallbackModel: orDefault(cfg.FallbackModel, defaultOpenAIFallbackModel),
		legacyModel:   orDefault(cfg.LegacyModel, defaultOpenAILegacyModel),
		temperature:   float32(cfg.Temperature),
		maxTokens:     defaultMaxTokens,
		replayDelay:   defaultOpenAIReplayDelay,
		tokens:        cfg.Tokens,
		logger:        logger.OrGlobal(cfg.Logger).Named("openai"),
	}
	if cfg.MaxTokens > 0 {
		p.maxTokens = cfg.MaxTokens
	}
	if cfg.ReplayDelay != 0 {
		p.replayDelay = max(cfg.ReplayDelay, 0)
	}
	if p.tokens == nil {
		p.tokens = estimateCounter{}
	}
	return p, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return string(ProviderOpenAI)
}

// isGPT5 reports whether model belongs to the gpt-5 family.
func isGPT5(model string) bool {
	return strings.HasPrefix(model, "gpt-5")
}

// isReasoningModel reports whether model takes max_completion_tokens and rejects
// a temperature.
func isReasoningModel(model string) bool {
	return isGPT5(model) || strings.HasPrefix(model, "o1")
}

// outputCap returns the output token cap for requests whose primary model is model.
// Fallback tiers reuse the primary's cap.
func (p *OpenAIProvider) outputCap(model string) int {
	if !isGPT5(model) {
		return p.maxTokens
	}
	if p.maxTokens == defaultMaxTokens {
		return gpt5DefaultMaxTokens
	}
	return min(p.maxTokens, gpt5MaxTokensCeiling)
}

// chatRequest builds the request for model. Legacy models get a system prompt,
// a token cap and a temperature; reasoning models get the token cap only.
func (p *OpenAIProvider) chatRequest(model, prompt string, maxTokens int) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{Model: model}
	if isReasoningModel(model) {
		req.Messages = []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		}
		req.MaxCompletionTokens = maxTokens
		return req
	}

	req.Messages = []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}
	req.MaxTokens = maxTokens
	req.Temperature = p.temperature
	if req.Temperature == 0 {
		// omitempty drops a zero temperature, so send the smallest float32 instead.
		req.Temperature = math.SmallestNonzeroFloat32
	}
	return req
}

// textExtractors are tried in order until one yields text.
var textExtractors = []func(openai.ChatCompletionMessage) string{
	func(m openai.ChatCompletionMessage) string { return m.Content },
	func(m openai.ChatCompletionMessage) string {
		var b strings.Builder
		for _, part := range m.MultiContent {
			if part.Type == openai.ChatMessagePartTypeText {
				b.WriteString(part.Text)
			}
		}
		return b.String()
	},
	func(m openai.ChatCompletionMessage) string { return m.Refusal },
}

// extractText returns the first textual completion in resp, or "" if none of the
// known fields carries text.
func extractText(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	msg := resp.Choices[0].Message
	for _, extract := range textExtractors {
		if text := extract(msg); text != "" {
			return text
		}
	}
	return ""
}

// Generate sends a single completion request.
func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (string, error) {
	start := time.Now()
	model := resolveModel(req, p.model)

	text, err := p.complete(ctx, model, req.Prompt, p.outputCap(model))
	recordCall(p.Name(), "generate", start, err)
	if err != nil {
		return "", wrapError(p.Name(), "generate", err, classifyOpenAIError)
	}
	return text, nil
}

func (p *OpenAIProvider) complete(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.chatRequest(model, prompt, maxTokens))
	if err != nil {
		return "", err
	}

	metrics.RecordLLMTokens(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return extractText(resp), nil
}

// GenerateStream streams the completion. gpt-5 models fall back to a secondary
// model and then to a legacy model when a tier produces no output.
func (p *OpenAIProvider) GenerateStream(ctx context.Context, req *Request, callback StreamCallback) error {
	start := time.Now()
	model := resolveModel(req, p.model)

	err := runAttempts(ctx, p.Name(), p.streamAttempts(model), req.Prompt, callback, classifyOpenAIError, p.logger)
	recordCall(p.Name(), "stream", start, err)
	return err
}

// streamAttempts returns the ordered tiers for model.
func (p *OpenAIProvider) streamAttempts(model string) []streamAttempt {
	attempts := []streamAttempt{
		{tier: TierPrimary, model: model, run: p.streamTier(model)},
	}
	if !isGPT5(model) {
		return attempts
	}

	maxTokens := p.outputCap(model)
	seen := map[string]bool{model: true}
	for _, fb := range []struct{ tier, model string }{
		{TierFallback, p.fallbackModel},
		{TierLegacy, p.legacyModel},
	} {
		if fb.model == "" || seen[fb.model] {
			continue
		}
		seen[fb.model] = true
		attempts = append(attempts, streamAttempt{tier: fb.tier, model: fb.model, run: p.replayTier(fb.model, maxTokens)})
	}
	return attempts
}

// streamTier consumes a true incremental response from model.
func (p *OpenAIProvider) streamTier(model string) func(context.Context, string, StreamCallback) (int, error) {
	return func(ctx context.Context, prompt string, callback StreamCallback) (int, error) {
		req := p.chatRequest(model, prompt, p.outputCap(model))
		req.Stream = true

		stream, err := p.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return 0, err
		}
		defer stream.Close()

		var content strings.Builder
		delivered := 0
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return delivered, err
			}
			if len(response.Choices) == 0 {
				continue
			}
			delta := response.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			content.WriteString(delta)
			delivered++
			if err := callback(delta, delivered-1); err != nil {
				return delivered, err
			}
		}

		// Streaming responses carry no usage block.
		metrics.RecordLLMTokens(model, p.tokens.CountTokens(prompt), p.tokens.CountTokens(content.String()))
		return delivered, nil
	}
}

// replayTier generates a full response from model and replays it in chunks.
func (p *OpenAIProvider) replayTier(model string, maxTokens int) func(context.Context, string, StreamCallback) (int, error) {
	return func(ctx context.Context, prompt string, callback StreamCallback) (int, error) {
		text, err := p.complete(ctx, model, prompt, maxTokens)
		if err != nil {
			return 0, err
		}
		if text == "" {
			return 0, &Error{Kind: ErrEmptyResponse, Provider: p.Name(), Op: "generate", Message: model + " returned an empty response"}
		}
		p.logger.Debug("replaying fallback response", zap.String("model", model), zap.Int("chars", len(text)))
		return replay(ctx, text, replayChunkSize, p.replayDelay, callback)
	}
}

func classifyOpenAIError(err error) (ErrorKind, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return kindForStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return kindForStatus(reqErr.HTTPStatusCode)
	}
	return ErrUnknown, false
}

func recordCall(provider, op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordLLMCall(provider, op, status, time.Since(start).Seconds())
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
