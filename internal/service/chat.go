// Package service implements the chat use case on top of a provider and a repository.
package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/llm"
	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

const tracerName = "github.com/capitalize-ai/chat-gateway/internal/service"

// Input is one user turn.
type Input struct {
	UserID  string
	Content string
	// ConversationID continues an existing conversation when set.
	ConversationID string
	// ModelID overrides the provider's default model when set.
	ModelID string
}

// ChatService sends user turns to the provider and records the exchange.
// Each provider call sees only the current turn, never earlier ones.
type ChatService struct {
	provider      llm.Provider
	conversations *ConversationService
	tracer        trace.Tracer
	logger        *logger.Logger
}

// NewChatService creates a new chat service.
func NewChatService(provider llm.Provider, conversations *ConversationService, log *logger.Logger) *ChatService {
	return &ChatService{
		provider:      provider,
		conversations: conversations,
		tracer:        otel.Tracer(tracerName),
		logger:        logger.OrGlobal(log).Named("chat"),
	}
}

// Provider returns the configured provider.
func (s *ChatService) Provider() llm.Provider {
	return s.provider
}

// Execute runs one exchange: it resolves the conversation, generates the reply
// and saves both turns. Nothing is saved when the provider fails.
func (s *ChatService) Execute(ctx context.Context, in Input) (*model.MessageResponse, error) {
	ctx, span := s.startSpan(ctx, "chat.execute", in)
	defer span.End()

	conv, err := s.conversations.Resolve(ctx, in.UserID, in.ConversationID)
	if err != nil {
		return nil, fail(span, err)
	}
	conv.AddMessage(model.NewMessage(model.RoleUser, in.Content))

	response, err := s.provider.Generate(ctx, s.request(in))
	if err != nil {
		s.logger.Warn("generation failed",
			zap.String("provider", s.provider.Name()),
			zap.String("conversation_id", in.ConversationID),
			zap.Error(err),
		)
		return nil, fail(span, &LLMError{Err: err})
	}
	conv.AddMessage(model.NewMessage(model.RoleAssistant, response))

	saved, err := s.conversations.Persist(ctx, conv)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("chat.conversation_id", saved.ID))

	return &model.MessageResponse{
		ConversationID:   saved.ID,
		Response:         response,
		UserMessage:      in.Content,
		AssistantMessage: response,
	}, nil
}

// FrameSink delivers stream frames to a client, in order.
type FrameSink interface {
	Send(frame any) error
}

// StreamTurn is a streamed exchange whose conversation has been resolved.
type StreamTurn struct {
	svc  *ChatService
	conv *model.Conversation
	in   Input
}

// PrepareStream resolves the conversation for a streamed exchange. Errors returned
// here happen before any frame is sent.
func (s *ChatService) PrepareStream(ctx context.Context, in Input) (*StreamTurn, error) {
	conv, err := s.conversations.Resolve(ctx, in.UserID, in.ConversationID)
	if err != nil {
		return nil, err
	}
	return &StreamTurn{svc: s, conv: conv, in: in}, nil
}

// Run sends one chunk frame per provider chunk, then a done frame carrying the
// conversation id. A provider or save failure ends the stream with an error frame
// instead. An error from sink aborts the stream and is returned as is.
func (t *StreamTurn) Run(ctx context.Context, sink FrameSink) error {
	s := t.svc
	ctx, span := s.startSpan(ctx, "chat.stream", t.in)
	defer span.End()

	t.conv.AddMessage(model.NewMessage(model.RoleUser, t.in.Content))

	var reply strings.Builder
	var sinkErr error
	chunks := 0
	err := s.provider.GenerateStream(ctx, s.request(t.in), func(chunk string, _ int) error {
		if err := sink.Send(model.ChunkEvent{Chunk: chunk}); err != nil {
			sinkErr = err
			return err
		}
		reply.WriteString(chunk)
		chunks++
		return nil
	})
	if sinkErr != nil {
		s.logger.Info("stream client went away",
			zap.Int("chunks", chunks),
			zap.Error(sinkErr),
		)
		return fail(span, sinkErr)
	}
	if err != nil {
		s.logger.Warn("streaming failed",
			zap.String("provider", s.provider.Name()),
			zap.Int("chunks", chunks),
			zap.Error(err),
		)
		sink.Send(model.ErrorEvent{Error: err.Error()})
		return fail(span, &LLMError{Err: err})
	}
	span.SetAttributes(attribute.Int("chat.chunks", chunks))

	t.conv.AddMessage(model.NewMessage(model.RoleAssistant, reply.String()))
	saved, err := s.conversations.Persist(ctx, t.conv)
	if err != nil {
		sink.Send(model.ErrorEvent{Error: err.Error()})
		return fail(span, err)
	}
	span.SetAttributes(attribute.String("chat.conversation_id", saved.ID))

	return sink.Send(model.DoneEvent{Done: true, ConversationID: saved.ID})
}

func (s *ChatService) request(in Input) *llm.Request {
	return &llm.Request{Prompt: in.Content, Model: in.ModelID}
}

func (s *ChatService) startSpan(ctx context.Context, name string, in Input) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("llm.provider", s.provider.Name()),
		attribute.String("llm.model", in.ModelID),
		attribute.Bool("chat.continued", in.ConversationID != ""),
		attribute.Int("chat.message_length", len(in.Content)),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
