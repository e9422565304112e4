package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a persisted conversation turn. Every completed or aborted
// streaming session produces exactly two of these: the user turn and the
// assistant turn (possibly empty if the upstream failed immediately).
type Message struct {
	ID               uuid.UUID
	ConversationID   uuid.UUID
	Role             string
	Content          string
	PromptTokens     int
	CompletionTokens int
	LatencyMs        int64
	CreatedAt        time.Time
}

// UsageRecord is the append-only accounting row written once per session
type UsageRecord struct {
	ID               uuid.UUID
	UserID           string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CreatedAt        time.Time
}

// Conversation groups messages under an owning user
type Conversation struct {
	ID        uuid.UUID
	UserID    string
	Title     string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
