package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/capitalize-ai/chat-gateway/internal/model"
)

var conversationsBucket = []byte("conversations")

// BoltRepository stores conversations as JSON documents in a single bbolt file.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository opens (or creates) the database at path.
func NewBoltRepository(path string) (*BoltRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(conversationsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltRepository{db: db}, nil
}

// FindByID loads the conversation with id.
func (r *BoltRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv *model.Conversation
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(conversationsBucket).Get([]byte(id))
		if v == nil {
			return notFound(id)
		}
		conv = &model.Conversation{}
		if err := json.Unmarshal(v, conv); err != nil {
			return fmt.Errorf("failed to decode conversation %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// Save writes conv, replacing any previous version.
func (r *BoltRepository) Save(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	if err := assignID(conv); err != nil {
		return nil, err
	}
	data, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation: %w", err)
	}

	err = r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).Put([]byte(conv.ID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}
	return conv, nil
}

// Close closes the database file.
func (r *BoltRepository) Close() error {
	return r.db.Close()
}
