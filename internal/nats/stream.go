package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/chat-gateway/internal/model"
)

const (
	// StreamName is the name of the message journal stream.
	StreamName = "CHAT_MESSAGES"

	// SubjectPrefix is the prefix for all journal subjects.
	SubjectPrefix = "chat"
)

// StreamManager journals conversation messages on a JetStream stream.
type StreamManager struct {
	js jetstream.JetStream
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{js: client.JetStream()}
}

// EnsureStream ensures the journal stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	_, err := m.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = m.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Messages appended to conversations",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// MessageSubject returns the subject for a message.
func MessageSubject(conversationID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.msg.%s", SubjectPrefix, conversationID, role)
}

// PublishMessage publishes msg and returns its stream sequence.
func (m *StreamManager) PublishMessage(ctx context.Context, conversationID string, msg model.Message) (uint64, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	ack, err := m.js.Publish(ctx, MessageSubject(conversationID, msg.Role), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish message: %w", err)
	}
	return ack.Sequence, nil
}
