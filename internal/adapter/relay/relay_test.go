package relay

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/porter/internal/core/domain"
	"github.com/thushan/porter/internal/logger"
	"github.com/thushan/porter/theme"
)

func createTestLogger() *logger.StyledLogger {
	loggerCfg := &logger.Config{Level: "error", Theme: "default"}
	log, _, _ := logger.New(loggerCfg)
	return logger.NewStyledLogger(log, theme.Default())
}

// memMessageStore collects appended messages, optionally failing every call
type memMessageStore struct {
	mu       sync.Mutex
	messages []*domain.Message
	failWith error
}

func (s *memMessageStore) Append(_ context.Context, msg *domain.Message) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return uuid.Nil, s.failWith
	}
	s.messages = append(s.messages, msg)
	return uuid.New(), nil
}

func (s *memMessageStore) all() []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Message(nil), s.messages...)
}

type memUsageStore struct {
	mu      sync.Mutex
	records []*domain.UsageRecord
}

func (s *memUsageStore) Append(_ context.Context, rec *domain.UsageRecord) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return uuid.New(), nil
}

func (s *memUsageStore) all() []*domain.UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.UsageRecord(nil), s.records...)
}

// faultyReader yields its payload then fails with the given error
type faultyReader struct {
	data   *strings.Reader
	err    error
	closed bool
}

func (f *faultyReader) Read(p []byte) (int, error) {
	n, err := f.data.Read(p)
	if err == io.EOF {
		return n, f.err
	}
	return n, err
}

func (f *faultyReader) Close() error {
	f.closed = true
	return nil
}

func testSession() Session {
	return Session{
		StartTime:      time.Now(),
		UserID:         "alice",
		ConversationID: uuid.New(),
		Request: domain.ChatRequest{
			Model:    "llama3",
			Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "hello"}},
		},
	}
}

func newTestRelay(upstream io.ReadCloser, messages *memMessageStore, usage *memUsageStore, released *int) *Relay {
	log := createTestLogger()
	rec := NewRecorder(messages, usage, DecodeRaw, log)
	return New(upstream, testSession(), rec, func() { *released++ }, log)
}

func TestRelay_DeliveredBytesMatchCapture(t *testing.T) {
	const payload = "streamed response body, chunk by chunk"

	messages := &memMessageStore{}
	usage := &memUsageStore{}
	released := 0
	r := newTestRelay(io.NopCloser(strings.NewReader(payload)), messages, usage, &released)

	// read in deliberately small chunks to exercise multiple Read calls
	var out strings.Builder
	buf := make([]byte, 7)
	for {
		n, err := r.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, payload, out.String())
	assert.Equal(t, len(payload), r.BytesRelayed())

	// draining to EOF finalised the session: slot back, both turns recorded
	assert.Equal(t, 1, released)
	msgs := messages.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, payload, msgs[1].Content)
	require.Len(t, usage.all(), 1)
}

func TestRelay_EarlyCloseRecordsPartialResponse(t *testing.T) {
	const payload = "first-chunk|second-chunk"

	messages := &memMessageStore{}
	usage := &memUsageStore{}
	released := 0
	r := newTestRelay(io.NopCloser(strings.NewReader(payload)), messages, usage, &released)

	buf := make([]byte, 12)
	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 12, n)

	// client walked away mid-stream
	require.NoError(t, r.Close())

	assert.Equal(t, 1, released)
	msgs := messages.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first-chunk|", msgs[1].Content, "only bytes actually relayed get recorded")
	require.Len(t, usage.all(), 1)
}

func TestRelay_UpstreamErrorFinalisesWithoutClose(t *testing.T) {
	upstream := &faultyReader{
		data: strings.NewReader("partial "),
		err:  errors.New("connection reset"),
	}

	messages := &memMessageStore{}
	usage := &memUsageStore{}
	released := 0
	r := newTestRelay(upstream, messages, usage, &released)

	_, err := io.ReadAll(r)
	require.Error(t, err)

	// the failed Read alone must have torn everything down
	assert.Equal(t, 1, released)
	assert.True(t, upstream.closed)
	msgs := messages.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, "partial ", msgs[1].Content)
}

func TestRelay_FinalisationIsExactlyOnce(t *testing.T) {
	messages := &memMessageStore{}
	usage := &memUsageStore{}
	released := 0
	r := newTestRelay(io.NopCloser(strings.NewReader("done")), messages, usage, &released)

	_, err := io.ReadAll(r) // finalises at EOF
	require.NoError(t, err)
	require.NoError(t, r.Close()) // and again via Close
	require.NoError(t, r.Close()) // and again

	assert.Equal(t, 1, released, "slot released exactly once")
	assert.Len(t, messages.all(), 2, "session recorded exactly once")
	assert.Len(t, usage.all(), 1)
}

func TestRelay_SlotReleasedEvenWhenRecorderFails(t *testing.T) {
	messages := &memMessageStore{failWith: errors.New("disk full")}
	usage := &memUsageStore{}
	released := 0
	r := newTestRelay(io.NopCloser(strings.NewReader("x")), messages, usage, &released)

	_, _ = io.ReadAll(r)
	require.NoError(t, r.Close(), "persistence failure is logged, not surfaced")

	assert.Equal(t, 1, released)
	assert.Empty(t, usage.all(), "usage write never reached after message failure")
}

func TestRelay_ImmediateCloseRecordsEmptySession(t *testing.T) {
	messages := &memMessageStore{}
	usage := &memUsageStore{}
	released := 0
	r := newTestRelay(io.NopCloser(strings.NewReader("never read")), messages, usage, &released)

	require.NoError(t, r.Close())

	assert.Equal(t, 1, released)
	msgs := messages.all()
	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[1].Content, "assistant turn is empty but still recorded")
	require.Len(t, usage.all(), 1)
}
