// Package llm provides the provider abstraction and its backends.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StreamCallback is called for each chunk during streaming.
type StreamCallback func(chunk string, index int) error

// Request is a single, history-free generation request.
type Request struct {
	Prompt string
	// Model overrides the provider's configured model when set.
	Model string
}

// Provider is the interface for LLM backends.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Generate returns the full completion for req.
	Generate(ctx context.Context, req *Request) (string, error)

	// GenerateStream delivers the completion for req incrementally through callback.
	// It returns once the last chunk has been delivered. An error returned by
	// callback aborts the stream and is returned unchanged.
	GenerateStream(ctx context.Context, req *Request, callback StreamCallback) error
}

// ProviderName identifies a backend.
type ProviderName string

const (
	ProviderMock      ProviderName = "mock"
	ProviderOpenAI    ProviderName = "openai"
	ProviderBedrock   ProviderName = "bedrock"
	ProviderAnthropic ProviderName = "anthropic"
	ProviderGemini    ProviderName = "gemini"
)

// ProviderNames lists every supported backend.
var ProviderNames = []ProviderName{
	ProviderMock,
	ProviderOpenAI,
	ProviderBedrock,
	ProviderAnthropic,
	ProviderGemini,
}

// ParseProviderName normalizes name and checks it against ProviderNames.
func ParseProviderName(name string) (ProviderName, error) {
	p := ProviderName(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range ProviderNames {
		if p == known {
			return p, nil
		}
	}
	return "", &Error{
		Kind:    ErrConfig,
		Message: fmt.Sprintf("unknown provider %q (supported: mock, openai, bedrock, anthropic, gemini)", name),
	}
}

// Config selects and configures one backend.
type Config struct {
	Provider  ProviderName
	Mock      MockConfig
	OpenAI    OpenAIConfig
	Bedrock   BedrockConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig
}

// NewProvider creates the provider selected by cfg. Missing credentials are reported
// here so that they surface at startup rather than per request.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderMock:
		return NewMockProvider(cfg.Mock), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAI)
	case ProviderBedrock:
		return NewBedrockProvider(ctx, cfg.Bedrock)
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg.Anthropic)
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg.Gemini)
	default:
		_, err := ParseProviderName(string(cfg.Provider))
		return nil, err
	}
}

func resolveModel(req *Request, fallback string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	return fallback
}

// sleepCtx pauses for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
