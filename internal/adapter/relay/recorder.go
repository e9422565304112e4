package relay

import (
	"context"
	"time"

	"github.com/thushan/porter/internal/core/domain"
	"github.com/thushan/porter/internal/core/ports"
	"github.com/thushan/porter/internal/logger"
)

// DecodeFunc turns the captured upstream bytes into assistant text plus
// whatever token usage the wire format exposed. The recorder treats the
// buffer as opaque; the decoder owns the protocol.
type DecodeFunc func(raw []byte) (content string, usage domain.TokenUsage)

// Recorder finalises a relay session: it computes latency, decodes the
// captured bytes and writes the user message, the assistant message and
// one usage record. The relay guarantees it runs at most once per session.
type Recorder struct {
	messages ports.MessageStore
	usage    ports.UsageStore
	decode   DecodeFunc
	logger   *logger.StyledLogger
}

func NewRecorder(messages ports.MessageStore, usage ports.UsageStore, decode DecodeFunc, logger *logger.StyledLogger) *Recorder {
	if decode == nil {
		decode = DecodeRaw
	}
	return &Recorder{
		messages: messages,
		usage:    usage,
		decode:   decode,
		logger:   logger,
	}
}

// Record persists the exchange. A zero-length assistant response from a
// failed or aborted generation is still recorded - a session is never
// silently dropped.
func (rec *Recorder) Record(ctx context.Context, session Session, raw []byte) error {
	latency := time.Since(session.StartTime).Milliseconds()
	content, tokens := rec.decode(raw)

	userMsg := &domain.Message{
		ConversationID: session.ConversationID,
		Role:           domain.RoleUser,
		Content:        session.Request.LastUserContent(),
		PromptTokens:   tokens.PromptTokens,
	}

	assistantMsg := &domain.Message{
		ConversationID:   session.ConversationID,
		Role:             domain.RoleAssistant,
		Content:          content,
		CompletionTokens: tokens.CompletionTokens,
		LatencyMs:        latency,
	}

	if _, err := rec.messages.Append(ctx, userMsg); err != nil {
		return domain.NewPersistenceError("append user message", err)
	}
	if _, err := rec.messages.Append(ctx, assistantMsg); err != nil {
		return domain.NewPersistenceError("append assistant message", err)
	}

	usageRec := &domain.UsageRecord{
		UserID:           session.UserID,
		Model:            session.Request.Model,
		PromptTokens:     tokens.PromptTokens,
		CompletionTokens: tokens.CompletionTokens,
		TotalTokens:      tokens.PromptTokens + tokens.CompletionTokens,
	}

	if _, err := rec.usage.Append(ctx, usageRec); err != nil {
		return domain.NewPersistenceError("append usage record", err)
	}

	rec.logger.Debug("chat session recorded",
		"conversation_id", session.ConversationID,
		"model", session.Request.Model,
		"latency_ms", latency,
		"prompt_tokens", tokens.PromptTokens,
		"completion_tokens", tokens.CompletionTokens)

	return nil
}

// DecodeRaw is the fallback decoder: the buffer is handed through as-is
// with no token accounting
func DecodeRaw(raw []byte) (string, domain.TokenUsage) {
	return string(raw), domain.TokenUsage{}
}
