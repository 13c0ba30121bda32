package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

// MessageJournal records appended messages outside the key-value store.
type MessageJournal interface {
	PublishMessage(ctx context.Context, conversationID string, msg model.Message) (uint64, error)
}

// JetStreamRepository stores conversations in a JetStream key-value bucket so
// that several gateway instances share them.
type JetStreamRepository struct {
	kv      jetstream.KeyValue
	journal MessageJournal
	logger  *logger.Logger
}

// NewJetStreamRepository creates a repository on kv. journal may be nil.
func NewJetStreamRepository(kv jetstream.KeyValue, journal MessageJournal, log *logger.Logger) *JetStreamRepository {
	return &JetStreamRepository{
		kv:      kv,
		journal: journal,
		logger:  logger.OrGlobal(log).Named("repository"),
	}
}

// FindByID loads the latest revision of the conversation with id.
func (r *JetStreamRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	entry, err := r.kv.Get(ctx, id)
	if err != nil {
		// An id that is not a valid key can never have been stored.
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrInvalidKey) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}

	conv := &model.Conversation{}
	if err := json.Unmarshal(entry.Value(), conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	return conv, nil
}

// Save puts conv and journals the messages appended since the stored revision.
func (r *JetStreamRepository) Save(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	if err := assignID(conv); err != nil {
		return nil, err
	}

	stored := 0
	if r.journal != nil {
		if prev, err := r.FindByID(ctx, conv.ID); err == nil {
			stored = len(prev.Messages)
		}
	}

	data, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation: %w", err)
	}
	if _, err := r.kv.Put(ctx, conv.ID, data); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}

	if r.journal != nil && stored < len(conv.Messages) {
		for _, msg := range conv.Messages[stored:] {
			if _, err := r.journal.PublishMessage(ctx, conv.ID, msg); err != nil {
				// The key-value entry is authoritative.
				r.logger.Warn("failed to journal message",
					zap.String("conversation_id", conv.ID),
					zap.String("role", string(msg.Role)),
					zap.Error(err),
				)
			}
		}
	}
	return conv, nil
}
