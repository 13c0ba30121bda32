// Package model defines data structures for the chat gateway.
package model

import (
	"time"
)

// Conversation is an append-only record of user and assistant turns owned by one user.
// ID is empty until the conversation is first saved by a repository.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an empty, unsaved conversation for userID.
func NewConversation(userID string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		UserID:    userID,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddMessage appends msg and refreshes UpdatedAt.
func (c *Conversation) AddMessage(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy so that callers holding the copy cannot affect stored state.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return &out
}
