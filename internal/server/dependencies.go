// Package server assembles the dependencies and HTTP routes of the gateway.
package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/config"
	"github.com/capitalize-ai/chat-gateway/internal/llm"
	natsclient "github.com/capitalize-ai/chat-gateway/internal/nats"
	"github.com/capitalize-ai/chat-gateway/internal/repository"
	"github.com/capitalize-ai/chat-gateway/internal/service"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

// Dependencies are the process-lifetime components shared by all requests.
type Dependencies struct {
	Provider      llm.Provider
	Repository    repository.Repository
	Conversations *service.ConversationService
	Chat          *service.ChatService
	Logger        *logger.Logger

	closers []func() error
}

// NewDependencies wires a provider and repository into the services.
func NewDependencies(provider llm.Provider, repo repository.Repository, log *logger.Logger) *Dependencies {
	log = logger.OrGlobal(log)
	convs := service.NewConversationService(repo, log)
	return &Dependencies{
		Provider:      provider,
		Repository:    repo,
		Conversations: convs,
		Chat:          service.NewChatService(provider, convs, log),
		Logger:        log,
	}
}

// BuildDependencies constructs the provider and repository selected by cfg.
// cfg must have passed Validate.
func BuildDependencies(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Dependencies, error) {
	log = logger.OrGlobal(log)

	provider, err := llm.NewProvider(ctx, llmConfig(cfg, log))
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	repo, closers, err := buildRepository(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	deps := NewDependencies(provider, repo, log)
	deps.closers = closers

	log.Info("dependencies ready",
		zap.String("provider", provider.Name()),
		zap.String("repository", cfg.RepositoryBackend),
	)
	return deps, nil
}

// Close releases the repository's resources.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

func llmConfig(cfg *config.Config, log *logger.Logger) llm.Config {
	var tokens llm.TokenCounter
	if cfg.TokenizerEnabled {
		counter, err := llm.NewTiktokenCounter("cl100k_base")
		if err != nil {
			log.Warn("tokenizer unavailable, estimating token counts", zap.Error(err))
		} else {
			tokens = counter
		}
	}

	name, _ := llm.ParseProviderName(cfg.LLMProvider)
	return llm.Config{
		Provider: name,
		OpenAI: llm.OpenAIConfig{
			APIKey:        cfg.OpenAIAPIKey,
			BaseURL:       cfg.OpenAIBaseURL,
			Model:         cfg.OpenAIModel,
			FallbackModel: cfg.OpenAIFallbackModel,
			LegacyModel:   cfg.OpenAILegacyModel,
			Temperature:   cfg.LLMTemperature,
			MaxTokens:     cfg.LLMMaxTokens,
			Tokens:        tokens,
			Logger:        log,
		},
		Bedrock: llm.BedrockConfig{
			Region:      cfg.AWSRegion,
			ModelID:     cfg.BedrockModelID,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.AnthropicModel,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
		},
		Gemini: llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		},
	}
}

func buildRepository(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.Repository, []func() error, error) {
	switch cfg.RepositoryBackend {
	case repository.BackendBolt:
		repo, err := repository.NewBoltRepository(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return repo, []func() error{repo.Close}, nil

	case repository.BackendNATS:
		client, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
			Bucket:   cfg.NATSBucket,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		kv, err := client.EnsureKeyValue(ctx, cfg.NATSBucket)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		journal := natsclient.NewStreamManager(client)
		if err := journal.EnsureStream(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		return repository.NewJetStreamRepository(kv, journal, log), []func() error{client.Close}, nil

	default:
		return repository.NewMemoryRepository(), nil, nil
	}
}
