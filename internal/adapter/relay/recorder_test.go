package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/porter/internal/core/domain"
)

func TestRecorder_WritesTwoMessagesAndOneUsageRecord(t *testing.T) {
	messages := &memMessageStore{}
	usage := &memUsageStore{}
	rec := NewRecorder(messages, usage, DecodeRaw, createTestLogger())

	session := testSession()
	session.StartTime = time.Now().Add(-250 * time.Millisecond)

	err := rec.Record(context.Background(), session, []byte("the assistant reply"))
	require.NoError(t, err)

	msgs := messages.all()
	require.Len(t, msgs, 2)

	user, assistant := msgs[0], msgs[1]
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, "hello", user.Content)
	assert.Zero(t, user.LatencyMs, "latency belongs to the assistant turn")

	assert.Equal(t, domain.RoleAssistant, assistant.Role)
	assert.Equal(t, "the assistant reply", assistant.Content)
	assert.GreaterOrEqual(t, assistant.LatencyMs, int64(250))

	recs := usage.all()
	require.Len(t, recs, 1)
	assert.Equal(t, "alice", recs[0].UserID)
	assert.Equal(t, "llama3", recs[0].Model)
}

func TestRecorder_EmptyBufferStillRecorded(t *testing.T) {
	messages := &memMessageStore{}
	usage := &memUsageStore{}
	rec := NewRecorder(messages, usage, DecodeRaw, createTestLogger())

	err := rec.Record(context.Background(), testSession(), nil)
	require.NoError(t, err)

	msgs := messages.all()
	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[1].Content)
	assert.Len(t, usage.all(), 1)
}

func TestRecorder_TokenCountsFlowFromDecoder(t *testing.T) {
	messages := &memMessageStore{}
	usage := &memUsageStore{}

	decode := func(raw []byte) (string, domain.TokenUsage) {
		return "decoded", domain.TokenUsage{PromptTokens: 11, CompletionTokens: 42}
	}
	rec := NewRecorder(messages, usage, decode, createTestLogger())

	require.NoError(t, rec.Record(context.Background(), testSession(), []byte("ignored")))

	msgs := messages.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, 11, msgs[0].PromptTokens)
	assert.Equal(t, 42, msgs[1].CompletionTokens)

	recs := usage.all()
	require.Len(t, recs, 1)
	assert.Equal(t, 11, recs[0].PromptTokens)
	assert.Equal(t, 42, recs[0].CompletionTokens)
	assert.Equal(t, 53, recs[0].TotalTokens)
}

func TestRecorder_PersistenceFailureIsWrapped(t *testing.T) {
	messages := &memMessageStore{failWith: errors.New("locked")}
	usage := &memUsageStore{}
	rec := NewRecorder(messages, usage, nil, createTestLogger())

	err := rec.Record(context.Background(), testSession(), []byte("x"))
	require.Error(t, err)

	var perr *domain.PersistenceError
	assert.ErrorAs(t, err, &perr)
	assert.Empty(t, usage.all())
}

func TestRecorder_NilDecodeDefaultsToRaw(t *testing.T) {
	messages := &memMessageStore{}
	usage := &memUsageStore{}
	rec := NewRecorder(messages, usage, nil, createTestLogger())

	require.NoError(t, rec.Record(context.Background(), testSession(), []byte("verbatim")))

	msgs := messages.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, "verbatim", msgs[1].Content)
}
