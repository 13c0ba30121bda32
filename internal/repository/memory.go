package repository

import (
	"context"
	"sync"

	"github.com/capitalize-ai/chat-gateway/internal/model"
)

// MemoryRepository keeps conversations in process memory. Contents are lost on
// restart. Concurrent saves of the same conversation are last-write-wins.
type MemoryRepository struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		conversations: make(map[string]*model.Conversation),
	}
}

// FindByID returns a copy of the stored conversation.
func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[id]
	if !ok {
		return nil, notFound(id)
	}
	return conv.Clone(), nil
}

// Save stores a copy of conv.
func (r *MemoryRepository) Save(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	if err := assignID(conv); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.conversations[conv.ID] = conv.Clone()
	r.mu.Unlock()

	return conv, nil
}
