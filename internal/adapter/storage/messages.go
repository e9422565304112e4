package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thushan/porter/internal/core/domain"
)

// MessageStore persists conversation turns in SQLite
type MessageStore struct {
	db *sql.DB
}

// Append writes a message, assigning an ID and timestamp if unset
func (s *MessageStore) Append(ctx context.Context, msg *domain.Message) (uuid.UUID, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, prompt_tokens, completion_tokens, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID.String(), msg.ConversationID.String(), msg.Role, msg.Content,
		msg.PromptTokens, msg.CompletionTokens, msg.LatencyMs, msg.CreatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert message: %w", err)
	}

	return msg.ID, nil
}

// ListByConversation returns all messages for a conversation, oldest first
func (s *MessageStore) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, prompt_tokens, completion_tokens, latency_ms, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at, id`,
		conversationID.String())
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var id, convID string
		if err := rows.Scan(&id, &convID, &m.Role, &m.Content,
			&m.PromptTokens, &m.CompletionTokens, &m.LatencyMs, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ID, _ = uuid.Parse(id)
		m.ConversationID, _ = uuid.Parse(convID)
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
