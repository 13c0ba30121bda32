package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type fakeInvoker struct {
	body  string
	err   error
	input *bedrockruntime.InvokeModelInput
}

func (f *fakeInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestBedrockRequestBody(t *testing.T) {
	tests := []struct {
		name    string
		modelID string
		check   func(t *testing.T, body map[string]any)
	}{
		{
			name:    "claude",
			modelID: "anthropic.claude-3-sonnet-20240229-v1:0",
			check: func(t *testing.T, body map[string]any) {
				if body["anthropic_version"] != "bedrock-2023-05-31" {
					t.Errorf("anthropic_version = %v", body["anthropic_version"])
				}
				msgs, _ := body["messages"].([]any)
				if len(msgs) != 1 {
					t.Fatalf("messages = %v", body["messages"])
				}
				msg := msgs[0].(map[string]any)
				if msg["role"] != "user" || msg["content"] != "Hi" {
					t.Errorf("message = %v", msg)
				}
				if _, ok := body["prompt"]; ok {
					t.Error("claude body should not carry prompt")
				}
			},
		},
		{
			name:    "other family",
			modelID: "meta.llama3-8b-instruct-v1:0",
			check: func(t *testing.T, body map[string]any) {
				if body["prompt"] != "Hi" {
					t.Errorf("prompt = %v", body["prompt"])
				}
				if _, ok := body["messages"]; ok {
					t.Error("flat body should not carry messages")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &fakeInvoker{body: `{"content":[{"type":"text","text":"x"}]}`}
			p := NewBedrockProviderWithInvoker(inv, BedrockConfig{ModelID: tt.modelID, Temperature: 0.7})
			p.Generate(context.Background(), &Request{Prompt: "Hi"})

			if aws.ToString(inv.input.ModelId) != tt.modelID {
				t.Errorf("ModelId = %q", aws.ToString(inv.input.ModelId))
			}
			var body map[string]any
			if err := json.Unmarshal(inv.input.Body, &body); err != nil {
				t.Fatalf("body: %v", err)
			}
			if body["max_tokens"] != float64(500) || body["temperature"] != 0.7 {
				t.Errorf("max_tokens = %v, temperature = %v", body["max_tokens"], body["temperature"])
			}
			tt.check(t, body)
		})
	}
}

func TestBedrockZeroTemperature(t *testing.T) {
	for _, modelID := range []string{"anthropic.claude-3-sonnet-20240229-v1:0", "meta.llama3-8b-instruct-v1:0"} {
		t.Run(modelID, func(t *testing.T) {
			inv := &fakeInvoker{body: `{"content":[{"type":"text","text":"x"}]}`}
			p := NewBedrockProviderWithInvoker(inv, BedrockConfig{ModelID: modelID, Temperature: 0})
			p.Generate(context.Background(), &Request{Prompt: "Hi"})

			var body map[string]any
			if err := json.Unmarshal(inv.input.Body, &body); err != nil {
				t.Fatalf("body: %v", err)
			}
			temp, ok := body["temperature"]
			if !ok || temp != float64(0) {
				t.Errorf("temperature = %v (present %v), want 0", temp, ok)
			}
		})
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		modelID string
		body    string
		want    string
		wantErr bool
	}{
		{"claude", "anthropic.claude-v2", `{"content":[{"type":"text","text":"Hello"}]}`, "Hello", false},
		{"claude empty", "anthropic.claude-v2", `{"content":[]}`, "", true},
		{"claude malformed", "anthropic.claude-v2", `not json`, "", true},
		{"amazon", "amazon.titan-text-express-v1", `{"results":[{"outputText":"Titan says hi"}]}`, "Titan says hi", false},
		{"amazon empty", "amazon.titan-text-express-v1", `{"results":[]}`, "", true},
		{"generic", "cohere.command-text-v14", `  raw text  `, "raw text", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse(tt.modelID, []byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBedrockGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"throttled", &types.ThrottlingException{Message: aws.String("slow down")}, ErrRateLimit},
		{"denied", &types.AccessDeniedException{Message: aws.String("no access")}, ErrAuthentication},
		{"validation", &types.ValidationException{Message: aws.String("bad input")}, ErrInvalidRequest},
		{"missing model", &types.ResourceNotFoundException{Message: aws.String("no model")}, ErrNotFound},
		{"internal", &types.InternalServerException{Message: aws.String("oops")}, ErrServer},
		{"plain", errors.New("connection reset"), ErrServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewBedrockProviderWithInvoker(&fakeInvoker{err: tt.err}, BedrockConfig{})
			_, err := p.Generate(context.Background(), &Request{Prompt: "Hi"})

			var llmErr *Error
			if !errors.As(err, &llmErr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if llmErr.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", llmErr.Kind, tt.want)
			}
			if llmErr.Message != tt.err.Error() {
				t.Errorf("Message = %q, want %q", llmErr.Message, tt.err.Error())
			}
		})
	}
}

func TestBedrockGenerateStream(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog"
	inv := &fakeInvoker{body: `{"content":[{"type":"text","text":"` + text + `"}]}`}
	p := NewBedrockProviderWithInvoker(inv, BedrockConfig{ChunkDelay: -1})

	chunks, err := streamAll(p, "", "Hi")
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if len(chunks) != 5 {
		t.Errorf("%d chunks, want 5", len(chunks))
	}
	if strings.Join(chunks, "") != text {
		t.Errorf("joined = %q", strings.Join(chunks, ""))
	}
	if chunks[0] != "The quick " {
		t.Errorf("first chunk = %q", chunks[0])
	}
}

func TestBedrockGenerateStreamError(t *testing.T) {
	p := NewBedrockProviderWithInvoker(&fakeInvoker{err: errors.New("boom")}, BedrockConfig{ChunkDelay: -1})
	calls := 0
	err := p.GenerateStream(context.Background(), &Request{Prompt: "Hi"}, func(string, int) error {
		calls++
		return nil
	})
	var llmErr *Error
	if !errors.As(err, &llmErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if calls != 0 {
		t.Errorf("callback called %d times", calls)
	}
}
