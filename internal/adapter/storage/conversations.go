package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thushan/porter/internal/core/domain"
)

// ErrConversationNotFound is returned when a conversation id doesn't exist
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationStore persists conversations and their ownership
type ConversationStore struct {
	db *sql.DB
}

// Get looks up a conversation by id
func (s *ConversationStore) Get(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	var c domain.Conversation
	var convID string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, model, created_at, updated_at
		 FROM conversations WHERE id = ?`, id.String()).
		Scan(&convID, &c.UserID, &c.Title, &c.Model, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	c.ID, _ = uuid.Parse(convID)
	return &c, nil
}

// Create writes a new conversation, assigning an ID and timestamps if unset
func (s *ConversationStore) Create(ctx context.Context, conv *domain.Conversation) (uuid.UUID, error) {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, model, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID.String(), conv.UserID, conv.Title, conv.Model, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert conversation: %w", err)
	}

	return conv.ID, nil
}
