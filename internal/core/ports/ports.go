package ports

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/thushan/porter/internal/core/domain"
)

// InferenceClient talks to the local OpenAI-compatible inference server.
// StreamChatCompletion returns the raw response body; the caller owns
// closing it.
type InferenceClient interface {
	ListModels(ctx context.Context) ([]domain.ModelInfo, error)
	StreamChatCompletion(ctx context.Context, req domain.ChatRequest) (io.ReadCloser, error)
}

// MessageStore persists conversation turns
type MessageStore interface {
	Append(ctx context.Context, msg *domain.Message) (uuid.UUID, error)
}

// UsageStore persists per-session token accounting, append-only
type UsageStore interface {
	Append(ctx context.Context, rec *domain.UsageRecord) (uuid.UUID, error)
}

// ConversationStore provides conversation lookup and creation. The
// streaming core only ever reads ownership; creation is for the HTTP layer.
type ConversationStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	Create(ctx context.Context, conv *domain.Conversation) (uuid.UUID, error)
}

// StatsCollector tracks per-model gateway activity
type StatsCollector interface {
	RecordRequest(model string)
	RecordRejection(model string)
	RecordCompletion(model string, latency time.Duration, bytesOut int64)
	Snapshot() map[string]ModelStats
}

// ModelStats is a point-in-time view of one model's counters
type ModelStats struct {
	Requests       int64
	Rejections     int64
	Completions    int64
	BytesOut       int64
	TotalLatencyMs int64
}
