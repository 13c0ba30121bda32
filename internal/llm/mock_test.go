package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func collect(t *testing.T, p Provider, prompt string) []string {
	t.Helper()
	var chunks []string
	err := p.GenerateStream(context.Background(), &Request{Prompt: prompt}, func(chunk string, index int) error {
		if index != len(chunks) {
			t.Errorf("index = %d, want %d", index, len(chunks))
		}
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	return chunks
}

func TestMockGenerate(t *testing.T) {
	p := NewMockProvider(MockConfig{ChunkDelay: -1})
	tests := []string{"Hello, AI!", "a", "Hello! @#$%^&*() 中文 🚀", strings.Repeat("A", 4000)}
	for _, msg := range tests {
		got, err := p.Generate(context.Background(), &Request{Prompt: msg})
		if err != nil {
			t.Fatal(err)
		}
		if got != "Echo: "+msg {
			t.Errorf("Generate(%q) = %q", msg, got)
		}
	}
}

func TestMockGenerateStream(t *testing.T) {
	p := NewMockProvider(MockConfig{ChunkDelay: -1})
	tests := []struct {
		msg        string
		wantChunks int
	}{
		// "Echo: Hello, AI!" is 16 runes
		{"Hello, AI!", 4},
		// "Echo: 1234" is 10 runes
		{"1234", 2},
		// "Echo: 中文🚀" is 9 runes
		{"中文🚀", 2},
		{strings.Repeat("x", 4000), 802},
	}
	for _, tt := range tests {
		chunks := collect(t, p, tt.msg)
		if len(chunks) != tt.wantChunks {
			t.Errorf("%q: %d chunks, want %d", tt.msg, len(chunks), tt.wantChunks)
		}
		if got := strings.Join(chunks, ""); got != "Echo: "+tt.msg {
			t.Errorf("%q: joined = %q", tt.msg, got)
		}
		for i, c := range chunks[:len(chunks)-1] {
			if n := len([]rune(c)); n != 5 {
				t.Errorf("%q: chunk %d has %d runes, want 5", tt.msg, i, n)
			}
		}
	}
}

func TestMockGenerateStreamCallbackError(t *testing.T) {
	p := NewMockProvider(MockConfig{ChunkDelay: -1})
	stop := errors.New("client gone")
	calls := 0
	err := p.GenerateStream(context.Background(), &Request{Prompt: "Hello, AI!"}, func(string, int) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want %v", err, stop)
	}
	if calls != 1 {
		t.Errorf("callback called %d times, want 1", calls)
	}
}

func TestMockGenerateCanceled(t *testing.T) {
	p := NewMockProvider(MockConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, &Request{Prompt: "hi"})
	var llmErr *Error
	if !errors.As(err, &llmErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if llmErr.Kind != ErrCanceled {
		t.Errorf("Kind = %v, want canceled", llmErr.Kind)
	}
}

func TestSplitRunes(t *testing.T) {
	tests := []struct {
		text string
		size int
		want []string
	}{
		{"", 5, []string{}},
		{"abcde", 5, []string{"abcde"}},
		{"abcdef", 5, []string{"abcde", "f"}},
		{"héllo wörld", 5, []string{"héllo", " wörl", "d"}},
		{"abc", 0, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		got := splitRunes(tt.text, tt.size)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitRunes(%q, %d) = %q, want %q", tt.text, tt.size, got, tt.want)
		}
	}
}
