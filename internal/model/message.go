package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn. Messages are values: once appended to a
// conversation they are never modified.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// MessageRequest is the request body for the chat endpoints.
type MessageRequest struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id,omitempty"`
	ModelID        *string `json:"model_id,omitempty"`
}

// MessageResponse is the response body for POST /chat/message.
type MessageResponse struct {
	ConversationID   string `json:"conversation_id"`
	Response         string `json:"response"`
	UserMessage      string `json:"user_message"`
	AssistantMessage string `json:"assistant_message"`
}
