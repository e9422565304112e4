package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thushan/porter/internal/core/domain"
)

// UsageStore persists append-only token accounting rows
type UsageStore struct {
	db *sql.DB
}

// Append writes a usage record, assigning an ID and timestamp if unset
func (s *UsageStore) Append(ctx context.Context, rec *domain.UsageRecord) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_logs (id, user_id, model, prompt_tokens, completion_tokens, total_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.UserID, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.CreatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert usage record: %w", err)
	}

	return rec.ID, nil
}

// TotalTokensByUser sums total tokens recorded for a user since a given time
func (s *UsageStore) TotalTokensByUser(ctx context.Context, userID string, since time.Time) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(total_tokens) FROM usage_logs WHERE user_id = ? AND created_at >= ?`,
		userID, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum usage: %w", err)
	}
	return total.Int64, nil
}

// ListByUser returns usage records for a user, newest first
func (s *UsageStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, model, prompt_tokens, completion_tokens, total_tokens, created_at
		 FROM usage_logs WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []domain.UsageRecord
	for rows.Next() {
		var r domain.UsageRecord
		var id string
		if err := rows.Scan(&id, &r.UserID, &r.Model,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		r.ID, _ = uuid.Parse(id)
		records = append(records, r)
	}

	return records, rows.Err()
}
