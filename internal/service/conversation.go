package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/internal/repository"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
	"github.com/capitalize-ai/chat-gateway/pkg/metrics"
)

// ConversationService loads and stores conversations on behalf of the chat use case.
type ConversationService struct {
	repo   repository.Repository
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(repo repository.Repository, log *logger.Logger) *ConversationService {
	return &ConversationService{
		repo:   repo,
		logger: logger.OrGlobal(log).Named("conversations"),
	}
}

// Resolve loads the conversation with id, or starts a new one for userID when id is empty.
func (s *ConversationService) Resolve(ctx context.Context, userID, id string) (*model.Conversation, error) {
	if id == "" {
		return model.NewConversation(userID), nil
	}

	conv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, &RepositoryError{Err: fmt.Errorf("conversation %s not found: %w", id, repository.ErrNotFound)}
		}
		return nil, &RepositoryError{Err: fmt.Errorf("failed to load conversation %s: %w", id, err)}
	}
	return conv, nil
}

// Persist saves conv after an exchange of one user turn and one reply.
func (s *ConversationService) Persist(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	isNew := conv.ID == ""

	saved, err := s.repo.Save(ctx, conv)
	if err != nil {
		return nil, &RepositoryError{Err: fmt.Errorf("failed to save conversation: %w", err)}
	}

	if isNew {
		metrics.ConversationsTotal.Inc()
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()
	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()

	s.logger.Debug("conversation saved",
		zap.String("conversation_id", saved.ID),
		zap.Int("messages", len(saved.Messages)),
		zap.Bool("new", isNew),
	)
	return saved, nil
}

// Ping probes the repository with a lookup that is expected to miss.
func (s *ConversationService) Ping(ctx context.Context) error {
	_, err := s.repo.FindByID(ctx, "health-check-test-id")
	if err == nil || IsNotFound(err) {
		return nil
	}
	return err
}
