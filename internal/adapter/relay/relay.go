package relay

/*
				Porter Relay - Streaming Response Relay
	Relay sits between the upstream inference stream and the caller. Every
	byte handed out through Read is appended to a capture buffer in the
	same call, so the caller can never observe bytes that weren't also
	recorded for persistence. Order is preserved exactly; the relay never
	reorders, drops or duplicates.

	Teardown can be triggered three ways: the caller drains to EOF, the
	caller closes early (client disconnect), or the upstream read fails.
	Whichever fires first wins - an atomic already-closed flag makes the
	finalisation exactly-once and every later trigger a no-op.
*/

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/thushan/porter/internal/core/domain"
	"github.com/thushan/porter/internal/logger"
)

// Session carries everything the recorder needs to finalise an exchange
type Session struct {
	StartTime      time.Time
	UserID         string
	Request        domain.ChatRequest
	ConversationID uuid.UUID
}

// Relay is an io.ReadCloser over the upstream body. It is not safe for
// concurrent Read calls; the HTTP layer drains it from a single goroutine.
type Relay struct {
	upstream    io.ReadCloser
	recorder    *Recorder
	releaseSlot func()
	logger      *logger.StyledLogger
	capture     bytes.Buffer
	session     Session
	finalised   atomic.Bool
}

func New(upstream io.ReadCloser, session Session, recorder *Recorder, releaseSlot func(), logger *logger.StyledLogger) *Relay {
	return &Relay{
		upstream:    upstream,
		session:     session,
		recorder:    recorder,
		releaseSlot: releaseSlot,
		logger:      logger,
	}
}

// Read pulls from upstream and records the bytes before returning them.
// EOF and upstream read failures both trigger finalisation so a session
// is recorded even when nobody bothers to call Close afterwards.
func (r *Relay) Read(p []byte) (int, error) {
	n, err := r.upstream.Read(p)
	if n > 0 {
		r.capture.Write(p[:n])
	}

	if err != nil {
		if err != io.EOF {
			r.logger.Warn("upstream read failed mid-stream",
				"conversation_id", r.session.ConversationID,
				"bytes_so_far", r.capture.Len(),
				"error", err)
		}
		r.finalise()
	}

	return n, err
}

// Close tears the relay down. Safe to call any number of times and after
// Read has already finalised; only the first trigger does any work.
func (r *Relay) Close() error {
	r.finalise()
	return nil
}

// BytesRelayed reports how many bytes have flowed through so far
func (r *Relay) BytesRelayed() int {
	return r.capture.Len()
}

func (r *Relay) finalise() {
	if !r.finalised.CompareAndSwap(false, true) {
		return
	}

	// the user's stream slot comes back unconditionally, before anything
	// that could fail - a persistence error must never leak a slot
	r.releaseSlot()

	_ = r.upstream.Close()

	// finalisation runs on a fresh context: the caller's request context
	// is usually already cancelled by the time we get here
	if err := r.recorder.Record(context.Background(), r.session, r.capture.Bytes()); err != nil {
		r.logger.Error("failed to record chat session",
			"conversation_id", r.session.ConversationID,
			"user_id", r.session.UserID,
			"error", err)
	}
}
