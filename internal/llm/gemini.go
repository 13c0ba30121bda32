package llm

import (
	"context"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash-001"

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiProvider is the Google Gemini backend. Sampling parameters are left at
// the model defaults.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, &Error{Kind: ErrConfig, Provider: string(ProviderGemini), Message: "Gemini API key is required"}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &Error{Kind: ErrConfig, Provider: string(ProviderGemini), Message: "creating genai client: " + err.Error(), Cause: err}
	}

	return &GeminiProvider{
		client: client,
		model:  orDefault(cfg.Model, defaultGeminiModel),
	}, nil
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return string(ProviderGemini)
}

// Generate sends a single GenerateContent request.
func (p *GeminiProvider) Generate(ctx context.Context, req *Request) (string, error) {
	start := time.Now()
	model := resolveModel(req, p.model)

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), nil)
	recordCall(p.Name(), "generate", start, err)
	if err != nil {
		return "", wrapError(p.Name(), "generate", err, nil)
	}
	return resp.Text(), nil
}

// GenerateStream forwards each streamed response's text.
func (p *GeminiProvider) GenerateStream(ctx context.Context, req *Request, callback StreamCallback) error {
	start := time.Now()
	model := resolveModel(req, p.model)

	index := 0
	for resp, err := range p.client.Models.GenerateContentStream(ctx, model, genai.Text(req.Prompt), nil) {
		if err != nil {
			recordCall(p.Name(), "stream", start, err)
			return wrapError(p.Name(), "stream", err, nil)
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		if err := callback(text, index); err != nil {
			return err
		}
		index++
	}

	recordCall(p.Name(), "stream", start, nil)
	if index == 0 {
		return &Error{Kind: ErrEmptyResponse, Provider: p.Name(), Op: "stream", Message: model + " produced no text"}
	}
	return nil
}
