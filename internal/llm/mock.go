package llm

import (
	"context"
	"time"
)

const (
	mockChunkSize         = 5
	defaultMockChunkDelay = 50 * time.Millisecond
)

// MockConfig configures the echo provider.
type MockConfig struct {
	// ChunkDelay is the pause between streamed chunks. Negative disables it.
	ChunkDelay time.Duration
}

// MockProvider echoes its input. It needs no credentials and is used for local
// development and tests.
type MockProvider struct {
	chunkDelay time.Duration
}

// NewMockProvider creates a new echo provider.
func NewMockProvider(cfg MockConfig) *MockProvider {
	delay := cfg.ChunkDelay
	if delay == 0 {
		delay = defaultMockChunkDelay
	}
	if delay < 0 {
		delay = 0
	}
	return &MockProvider{chunkDelay: delay}
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return string(ProviderMock)
}

// Generate returns "Echo: " followed by the prompt.
func (p *MockProvider) Generate(ctx context.Context, req *Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrapError(p.Name(), "generate", err, nil)
	}
	return "Echo: " + req.Prompt, nil
}

// GenerateStream streams the echo in chunks of five runes.
func (p *MockProvider) GenerateStream(ctx context.Context, req *Request, callback StreamCallback) error {
	text, err := p.Generate(ctx, req)
	if err != nil {
		return err
	}
	_, err = replay(ctx, text, mockChunkSize, p.chunkDelay, callback)
	return err
}
