package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/porter/internal/core/domain"
	"github.com/thushan/porter/internal/logger"
	"github.com/thushan/porter/theme"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	loggerCfg := &logger.Config{Level: "error", Theme: "default"}
	log, _, _ := logger.New(loggerCfg)
	styled := logger.NewStyledLogger(log, theme.Default())

	store, err := Open(":memory:", styled)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConversationStore_CreateAndGet(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	id, err := store.Conversations().Create(ctx, &domain.Conversation{
		UserID: "alice",
		Title:  "weekend plans",
		Model:  "llama3",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	conv, err := store.Conversations().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", conv.UserID)
	assert.Equal(t, "weekend plans", conv.Title)
	assert.Equal(t, "llama3", conv.Model)
	assert.False(t, conv.CreatedAt.IsZero())
}

func TestConversationStore_GetMissing(t *testing.T) {
	store := createTestStore(t)

	_, err := store.Conversations().Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestMessageStore_AppendAndList(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	convID, err := store.Conversations().Create(ctx, &domain.Conversation{UserID: "alice"})
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	turns := []*domain.Message{
		{ConversationID: convID, Role: domain.RoleUser, Content: "hello", PromptTokens: 3, CreatedAt: base},
		{ConversationID: convID, Role: domain.RoleAssistant, Content: "hi there", CompletionTokens: 5, LatencyMs: 120, CreatedAt: base.Add(time.Second)},
	}
	for _, msg := range turns {
		_, err := store.Messages().Append(ctx, msg)
		require.NoError(t, err)
	}

	got, err := store.Messages().ListByConversation(ctx, convID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.RoleUser, got[0].Role)
	assert.Equal(t, "hello", got[0].Content)
	assert.Equal(t, 3, got[0].PromptTokens)

	assert.Equal(t, domain.RoleAssistant, got[1].Role)
	assert.Equal(t, 5, got[1].CompletionTokens)
	assert.Equal(t, int64(120), got[1].LatencyMs)
}

func TestMessageStore_ListEmptyConversation(t *testing.T) {
	store := createTestStore(t)

	got, err := store.Messages().ListByConversation(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUsageStore_AppendAndTotals(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	for _, rec := range []*domain.UsageRecord{
		{UserID: "alice", Model: "llama3", PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		{UserID: "alice", Model: "qwen", PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12},
		{UserID: "bob", Model: "llama3", PromptTokens: 100, CompletionTokens: 100, TotalTokens: 200},
	} {
		_, err := store.Usage().Append(ctx, rec)
		require.NoError(t, err)
	}

	total, err := store.Usage().TotalTokensByUser(ctx, "alice", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)

	total, err = store.Usage().TotalTokensByUser(ctx, "nobody", time.Time{})
	require.NoError(t, err)
	assert.Zero(t, total, "no rows must sum to zero, not error")

	records, err := store.Usage().ListByUser(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
