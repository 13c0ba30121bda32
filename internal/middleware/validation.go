package middleware

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/capitalize-ai/chat-gateway/internal/model"
)

// Message request limits, in characters.
const (
	MaxMessageLength        = 4000
	MaxConversationIDLength = 100
	MaxModelIDLength        = 200
)

// forbiddenPatterns are rejected anywhere in a message, case-insensitively.
var forbiddenPatterns = []string{
	"<script",
	"javascript:",
	"onerror=",
	"onclick=",
	"onload=",
	"onmouseover=",
	"vbscript:",
	"data:text/html",
}

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidateMessageRequest checks req and returns a copy with the message trimmed
// of surrounding whitespace.
func ValidateMessageRequest(req *model.MessageRequest) (*model.MessageRequest, error) {
	if req == nil {
		return nil, &ValidationError{Field: "message", Message: "field required"}
	}

	message, err := ValidateMessageContent(req.Message)
	if err != nil {
		return nil, err
	}
	if err := validateOptional("conversation_id", req.ConversationID, MaxConversationIDLength); err != nil {
		return nil, err
	}
	if err := validateOptional("model_id", req.ModelID, MaxModelIDLength); err != nil {
		return nil, err
	}

	out := *req
	out.Message = message
	return &out, nil
}

// ValidateMessageContent checks the length and content of a message and returns
// it trimmed.
func ValidateMessageContent(content string) (string, error) {
	if !utf8.ValidString(content) {
		return "", &ValidationError{Field: "message", Message: "must be valid UTF-8"}
	}
	n := utf8.RuneCountInString(content)
	if n < 1 {
		return "", &ValidationError{Field: "message", Message: "ensure this value has at least 1 characters"}
	}
	if n > MaxMessageLength {
		return "", &ValidationError{Field: "message", Message: fmt.Sprintf("ensure this value has at most %d characters", MaxMessageLength)}
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", &ValidationError{Field: "message", Message: "Message cannot be empty or only whitespace"}
	}

	lower := strings.ToLower(content)
	for _, pattern := range forbiddenPatterns {
		if strings.Contains(lower, pattern) {
			return "", &ValidationError{
				Field:   "message",
				Message: "Message contains potentially malicious content. Pattern detected: " + pattern,
			}
		}
	}
	return content, nil
}

func validateOptional(field string, value *string, maxLen int) error {
	if value == nil {
		return nil
	}
	n := utf8.RuneCountInString(*value)
	if n < 1 {
		return &ValidationError{Field: field, Message: "ensure this value has at least 1 characters"}
	}
	if n > maxLen {
		return &ValidationError{Field: field, Message: fmt.Sprintf("ensure this value has at most %d characters", maxLen)}
	}
	return nil
}
