// Package repository stores conversations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/capitalize-ai/chat-gateway/internal/model"
)

// ErrNotFound is returned when no conversation has the requested id.
var ErrNotFound = errors.New("conversation not found")

// Repository persists conversations.
type Repository interface {
	// FindByID returns the conversation with id, or an error wrapping ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Conversation, error)

	// Save stores conv, replacing any previous version. A conversation without an
	// id is assigned one; the returned conversation carries it.
	Save(ctx context.Context, conv *model.Conversation) (*model.Conversation, error)
}

// Backend names accepted by configuration.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendNATS   = "nats"
)

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// assignID gives conv a fresh time-ordered id if it has none.
func assignID(conv *model.Conversation) error {
	if conv.ID != "" {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate conversation id: %w", err)
	}
	conv.ID = id.String()
	return nil
}
