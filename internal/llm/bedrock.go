package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const (
	defaultBedrockModelID    = "anthropic.claude-3-sonnet-20240229-v1:0"
	defaultBedrockRegion     = "us-east-1"
	bedrockAnthropicVersion  = "bedrock-2023-05-31"
	bedrockChunkSize         = 10
	defaultBedrockChunkDelay = 10 * time.Millisecond
)

// BedrockInvoker abstracts the Bedrock InvokeModel call for testing.
type BedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockConfig configures the Bedrock provider.
type BedrockConfig struct {
	Region      string
	ModelID     string
	Temperature float64
	MaxTokens   int
	// ChunkDelay is the pause between simulated stream chunks. Negative disables it.
	ChunkDelay time.Duration
}

// BedrockProvider is the AWS Bedrock backend. Credentials come from the default
// AWS chain (environment, shared config, IAM role).
type BedrockProvider struct {
	invoker     BedrockInvoker
	modelID     string
	temperature float64
	maxTokens   int
	chunkDelay  time.Duration
}

// NewBedrockProvider creates a Bedrock provider backed by the runtime client.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	region := orDefault(cfg.Region, defaultBedrockRegion)
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, &Error{Kind: ErrConfig, Provider: string(ProviderBedrock), Message: "failed to load AWS config: " + err.Error(), Cause: err}
	}
	return NewBedrockProviderWithInvoker(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

// NewBedrockProviderWithInvoker creates a Bedrock provider around invoker.
func NewBedrockProviderWithInvoker(invoker BedrockInvoker, cfg BedrockConfig) *BedrockProvider {
	p := &BedrockProvider{
		invoker:     invoker,
		modelID:     orDefault(cfg.ModelID, defaultBedrockModelID),
		temperature: cfg.Temperature,
		maxTokens:   defaultMaxTokens,
		chunkDelay:  defaultBedrockChunkDelay,
	}
	if cfg.MaxTokens > 0 {
		p.maxTokens = cfg.MaxTokens
	}
	if cfg.ChunkDelay != 0 {
		p.chunkDelay = max(cfg.ChunkDelay, 0)
	}
	return p
}

// Name returns the provider name.
func (p *BedrockProvider) Name() string {
	return string(ProviderBedrock)
}

// --- request and response bodies ---

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeRequest is the conversational body used by Anthropic models.
type claudeRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	Messages         []bedrockMessage `json:"messages"`
}

// promptRequest is the flat body used by every other model family.
type promptRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type titanResponse struct {
	Results []struct {
		OutputText string `json:"outputText"`
	} `json:"results"`
}

func isClaudeModel(modelID string) bool {
	return strings.Contains(strings.ToLower(modelID), "claude")
}

func isAmazonModel(modelID string) bool {
	return strings.Contains(strings.ToLower(modelID), "amazon")
}

func (p *BedrockProvider) requestBody(modelID, prompt string) ([]byte, error) {
	if isClaudeModel(modelID) {
		return json.Marshal(claudeRequest{
			AnthropicVersion: bedrockAnthropicVersion,
			MaxTokens:        p.maxTokens,
			Temperature:      p.temperature,
			Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
		})
	}
	return json.Marshal(promptRequest{
		Prompt:      prompt,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
}

// parseResponse reads the family-specific text field. Unknown families get the
// raw body as text.
func parseResponse(modelID string, body []byte) (string, error) {
	switch {
	case isClaudeModel(modelID):
		var resp claudeResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		if len(resp.Content) == 0 {
			return "", errors.New("response has no content blocks")
		}
		return resp.Content[0].Text, nil
	case isAmazonModel(modelID):
		var resp titanResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		if len(resp.Results) == 0 {
			return "", errors.New("response has no results")
		}
		return resp.Results[0].OutputText, nil
	default:
		return strings.TrimSpace(string(body)), nil
	}
}

// Generate invokes the model synchronously.
func (p *BedrockProvider) Generate(ctx context.Context, req *Request) (string, error) {
	start := time.Now()
	text, err := p.invoke(ctx, resolveModel(req, p.modelID), req.Prompt)
	recordCall(p.Name(), "generate", start, err)
	if err != nil {
		return "", wrapError(p.Name(), "generate", err, classifyBedrockError)
	}
	return text, nil
}

func (p *BedrockProvider) invoke(ctx context.Context, modelID, prompt string) (string, error) {
	body, err := p.requestBody(modelID, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	out, err := p.invoker.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", err
	}
	return parseResponse(modelID, out.Body)
}

// GenerateStream generates the full response and replays it in ten-rune chunks.
// The first chunk arrives only after the whole response has been generated.
func (p *BedrockProvider) GenerateStream(ctx context.Context, req *Request, callback StreamCallback) error {
	text, err := p.Generate(ctx, req)
	if err != nil {
		return err
	}
	_, err = replay(ctx, text, bedrockChunkSize, p.chunkDelay, callback)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return wrapError(p.Name(), "stream", err, nil)
	}
	return err
}

func classifyBedrockError(err error) (ErrorKind, bool) {
	var accessDenied *types.AccessDeniedException
	var validation *types.ValidationException
	var notFound *types.ResourceNotFoundException
	var throttling *types.ThrottlingException
	var timeout *types.ModelTimeoutException
	var internal *types.InternalServerException
	var modelErr *types.ModelErrorException

	switch {
	case errors.As(err, &accessDenied):
		return ErrAuthentication, true
	case errors.As(err, &validation):
		return ErrInvalidRequest, true
	case errors.As(err, &notFound):
		return ErrNotFound, true
	case errors.As(err, &throttling):
		return ErrRateLimit, true
	case errors.As(err, &timeout), errors.As(err, &internal), errors.As(err, &modelErr):
		return ErrServer, true
	default:
		return ErrUnknown, false
	}
}
