// Package config provides environment configuration for the API server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"

	"github.com/capitalize-ai/chat-gateway/internal/llm"
	"github.com/capitalize-ai/chat-gateway/internal/repository"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	APIPrefix          string
	AppName            string
	AppVersion         string
	CORSAllowedOrigins []string

	// LLM settings
	LLMProvider         string
	LLMTemperature      float64
	LLMMaxTokens        int
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIFallbackModel string
	OpenAILegacyModel   string
	OpenAIBaseURL       string
	AWSRegion           string
	BedrockModelID      string
	AnthropicAPIKey     string
	AnthropicModel      string
	GeminiAPIKey        string
	GeminiModel         string
	TokenizerEnabled    bool

	// Repository settings
	RepositoryBackend string
	BoltPath          string

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string
	NATSBucket   string

	// JWT settings
	JWTSecret    string
	AuthRequired bool

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. Values from a .env file
// in the working directory fill in variables that are not already set.
func Load() *Config {
	_ = gotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		APIPrefix:          strings.TrimRight(getEnv("API_PREFIX", "/api/v1"), "/"),
		AppName:            getEnv("APP_NAME", "chat-gateway"),
		AppVersion:         getEnv("APP_VERSION", "1.0.0"),
		CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS"),

		// LLM
		LLMProvider:         strings.ToLower(getEnv("LLM_PROVIDER", string(llm.ProviderMock))),
		LLMTemperature:      getFloatEnv("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:        getIntEnv("LLM_MAX_TOKENS", 500),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAIFallbackModel: getEnv("OPENAI_FALLBACK_MODEL", "gpt-5-mini"),
		OpenAILegacyModel:   getEnv("OPENAI_LEGACY_MODEL", "gpt-3.5-turbo"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-sonnet-20240229-v1:0"),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:      getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash-001"),
		TokenizerEnabled:    getBoolEnv("TOKENIZER_ENABLED", false),

		// Repository
		RepositoryBackend: strings.ToLower(getEnv("REPOSITORY_BACKEND", repository.BackendMemory)),
		BoltPath:          getEnv("BOLT_PATH", "data/conversations.db"),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),
		NATSBucket:   getEnv("NATS_BUCKET", "conversations"),

		// JWT
		JWTSecret:    getEnv("JWT_SECRET", ""),
		AuthRequired: getBoolEnv("AUTH_REQUIRED", false),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate reports every setting that would keep the server from starting.
func (c *Config) Validate() error {
	var errs []error

	provider, err := llm.ParseProviderName(c.LLMProvider)
	if err != nil {
		errs = append(errs, err)
	}
	switch provider {
	case llm.ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when LLM_PROVIDER=openai"))
		}
	case llm.ProviderBedrock:
		if c.AWSRegion == "" {
			errs = append(errs, errors.New("AWS_REGION is required when LLM_PROVIDER=bedrock"))
		}
	case llm.ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic"))
		}
	case llm.ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when LLM_PROVIDER=gemini"))
		}
	}

	switch c.RepositoryBackend {
	case repository.BackendMemory:
	case repository.BackendBolt:
		if c.BoltPath == "" {
			errs = append(errs, errors.New("BOLT_PATH is required when REPOSITORY_BACKEND=bolt"))
		}
	case repository.BackendNATS:
		if c.NATSURL == "" {
			errs = append(errs, errors.New("NATS_URL is required when REPOSITORY_BACKEND=nats"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown REPOSITORY_BACKEND %q (supported: memory, bolt, nats)", c.RepositoryBackend))
	}

	if c.AuthRequired && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required when AUTH_REQUIRED=true"))
	}
	if c.LLMMaxTokens <= 0 {
		errs = append(errs, errors.New("LLM_MAX_TOKENS must be positive"))
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		errs = append(errs, fmt.Errorf("API_PREFIX %q must start with /", c.APIPrefix))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, dropping empty items.
func getListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
