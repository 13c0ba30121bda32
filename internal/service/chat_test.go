package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/capitalize-ai/chat-gateway/internal/llm"
	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/internal/repository"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

// failingProvider fails every call, optionally after streaming some chunks.
type failingProvider struct {
	chunks []string
	err    error
	calls  int
}

func (p *failingProvider) Name() string { return "failing" }

func (p *failingProvider) Generate(ctx context.Context, req *llm.Request) (string, error) {
	p.calls++
	return "", p.err
}

func (p *failingProvider) GenerateStream(ctx context.Context, req *llm.Request, cb llm.StreamCallback) error {
	p.calls++
	for i, c := range p.chunks {
		if err := cb(c, i); err != nil {
			return err
		}
	}
	return p.err
}

// countingRepository wraps a repository and can fail saves.
type countingRepository struct {
	repository.Repository
	saves   int
	saveErr error
	findErr error
}

func (r *countingRepository) Save(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	r.saves++
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	return r.Repository.Save(ctx, conv)
}

func (r *countingRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.Repository.FindByID(ctx, id)
}

type recordingSink struct {
	frames []any
	err    error
}

func (s *recordingSink) Send(frame any) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, frame)
	return nil
}

func newTestService(provider llm.Provider) (*ChatService, *countingRepository) {
	repo := &countingRepository{Repository: repository.NewMemoryRepository()}
	convs := NewConversationService(repo, logger.NewNop())
	return NewChatService(provider, convs, logger.NewNop()), repo
}

func mockProvider() llm.Provider {
	return llm.NewMockProvider(llm.MockConfig{ChunkDelay: -1})
}

func TestExecuteNewConversation(t *testing.T) {
	svc, repo := newTestService(mockProvider())
	ctx := context.Background()

	resp, err := svc.Execute(ctx, Input{UserID: "default_user", Content: "Hello, AI!"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.ConversationID == "" {
		t.Fatal("empty conversation id")
	}
	if resp.Response != "Echo: Hello, AI!" || resp.AssistantMessage != resp.Response {
		t.Errorf("response = %q, assistant = %q", resp.Response, resp.AssistantMessage)
	}
	if resp.UserMessage != "Hello, AI!" {
		t.Errorf("user_message = %q", resp.UserMessage)
	}

	conv, err := repo.FindByID(ctx, resp.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if conv.UserID != "default_user" || len(conv.Messages) != 2 {
		t.Errorf("stored = %+v", conv)
	}

	other, err := svc.Execute(ctx, Input{UserID: "default_user", Content: "again"})
	if err != nil {
		t.Fatal(err)
	}
	if other.ConversationID == resp.ConversationID {
		t.Error("new conversations should get distinct ids")
	}
}

func TestExecuteContinuesConversation(t *testing.T) {
	svc, repo := newTestService(mockProvider())
	ctx := context.Background()

	first, _ := svc.Execute(ctx, Input{UserID: "u", Content: "one"})
	second, err := svc.Execute(ctx, Input{UserID: "u", Content: "two", ConversationID: first.ConversationID})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Errorf("id = %q, want %q", second.ConversationID, first.ConversationID)
	}

	conv, _ := repo.FindByID(ctx, first.ConversationID)
	var got []string
	for _, m := range conv.Messages {
		got = append(got, string(m.Role)+":"+m.Content)
	}
	want := "user:one,assistant:Echo: one,user:two,assistant:Echo: two"
	if strings.Join(got, ",") != want {
		t.Errorf("messages = %v", got)
	}
}

func TestExecuteUnknownConversation(t *testing.T) {
	provider := &failingProvider{err: errors.New("should not be called")}
	svc, repo := newTestService(provider)

	_, err := svc.Execute(context.Background(), Input{UserID: "u", Content: "hi", ConversationID: "missing"})
	var repoErr *RepositoryError
	if !errors.As(err, &repoErr) {
		t.Fatalf("err = %v, want RepositoryError", err)
	}
	if !IsNotFound(err) {
		t.Error("error should be classified as not found")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("error %q should name the id", err)
	}
	if repo.saves != 0 || provider.calls != 0 {
		t.Errorf("saves = %d, provider calls = %d; want none", repo.saves, provider.calls)
	}
}

func TestExecuteProviderFailure(t *testing.T) {
	cause := &llm.Error{Kind: llm.ErrServer, Provider: "failing", Message: "upstream exploded"}
	svc, repo := newTestService(&failingProvider{err: cause})

	_, err := svc.Execute(context.Background(), Input{UserID: "u", Content: "hi"})
	var llmErr *LLMError
	if !errors.As(err, &llmErr) {
		t.Fatalf("err = %v, want LLMError", err)
	}
	if !strings.Contains(err.Error(), "upstream exploded") {
		t.Errorf("error %q should carry the provider message", err)
	}
	if repo.saves != 0 {
		t.Errorf("saves = %d, want 0", repo.saves)
	}
}

func TestExecuteSaveFailure(t *testing.T) {
	svc, repo := newTestService(mockProvider())
	repo.saveErr = errors.New("disk full")

	_, err := svc.Execute(context.Background(), Input{UserID: "u", Content: "hi"})
	var repoErr *RepositoryError
	if !errors.As(err, &repoErr) {
		t.Fatalf("err = %v, want RepositoryError", err)
	}
	if IsNotFound(err) {
		t.Error("save failure is not a not-found error")
	}
}

func TestExecuteLookupFailure(t *testing.T) {
	svc, repo := newTestService(mockProvider())
	repo.findErr = errors.New("connection refused")

	_, err := svc.Execute(context.Background(), Input{UserID: "u", Content: "hi", ConversationID: "abc"})
	var repoErr *RepositoryError
	if !errors.As(err, &repoErr) {
		t.Fatalf("err = %v, want RepositoryError", err)
	}
}

func TestStreamTurn(t *testing.T) {
	svc, repo := newTestService(mockProvider())
	ctx := context.Background()

	turn, err := svc.PrepareStream(ctx, Input{UserID: "u", Content: "Hello, AI!"})
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	if err := turn.Run(ctx, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// "Echo: Hello, AI!" is 16 runes: four chunks and a done frame.
	if len(sink.frames) != 5 {
		t.Fatalf("frames = %+v", sink.frames)
	}
	var joined strings.Builder
	for _, f := range sink.frames[:4] {
		chunk, ok := f.(model.ChunkEvent)
		if !ok {
			t.Fatalf("frame %T, want ChunkEvent", f)
		}
		joined.WriteString(chunk.Chunk)
	}
	if joined.String() != "Echo: Hello, AI!" {
		t.Errorf("joined = %q", joined.String())
	}
	done, ok := sink.frames[4].(model.DoneEvent)
	if !ok || !done.Done || done.ConversationID == "" {
		t.Fatalf("last frame = %+v", sink.frames[4])
	}

	conv, err := repo.FindByID(ctx, done.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if last := conv.Messages[len(conv.Messages)-1]; last.Content != "Echo: Hello, AI!" {
		t.Errorf("stored reply = %q", last.Content)
	}
}

func TestStreamTurnProviderFailure(t *testing.T) {
	svc, repo := newTestService(&failingProvider{chunks: []string{"par", "tial"}, err: errors.New("stream broke")})
	ctx := context.Background()

	turn, _ := svc.PrepareStream(ctx, Input{UserID: "u", Content: "hi"})
	sink := &recordingSink{}
	err := turn.Run(ctx, sink)

	var llmErr *LLMError
	if !errors.As(err, &llmErr) {
		t.Fatalf("err = %v, want LLMError", err)
	}
	if len(sink.frames) != 3 {
		t.Fatalf("frames = %+v", sink.frames)
	}
	errFrame, ok := sink.frames[2].(model.ErrorEvent)
	if !ok || errFrame.Error != "stream broke" {
		t.Errorf("last frame = %+v", sink.frames[2])
	}
	if repo.saves != 0 {
		t.Errorf("saves = %d, want 0", repo.saves)
	}
}

func TestStreamTurnSinkFailure(t *testing.T) {
	svc, repo := newTestService(mockProvider())
	gone := errors.New("broken pipe")

	turn, _ := svc.PrepareStream(context.Background(), Input{UserID: "u", Content: "hi"})
	err := turn.Run(context.Background(), &recordingSink{err: gone})
	if !errors.Is(err, gone) {
		t.Errorf("err = %v, want sink error", err)
	}
	if repo.saves != 0 {
		t.Errorf("saves = %d, want 0", repo.saves)
	}
}

func TestPrepareStreamUnknownConversation(t *testing.T) {
	svc, _ := newTestService(mockProvider())
	_, err := svc.PrepareStream(context.Background(), Input{UserID: "u", Content: "hi", ConversationID: "nope"})
	if !IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestPing(t *testing.T) {
	repo := &countingRepository{Repository: repository.NewMemoryRepository()}
	convs := NewConversationService(repo, logger.NewNop())
	if err := convs.Ping(context.Background()); err != nil {
		t.Errorf("Ping on healthy repository: %v", err)
	}

	repo.findErr = errors.New("bucket unavailable")
	if err := convs.Ping(context.Background()); err == nil {
		t.Error("Ping should report lookup failures")
	}
}
