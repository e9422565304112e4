package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/thushan/porter/internal/adapter/storage"
	"github.com/thushan/porter/internal/core/domain"
	"github.com/thushan/porter/internal/logger"
	"github.com/thushan/porter/internal/util"
)

// UserIDHeader carries the caller's identity. Authentication itself lives
// in front of porter (reverse proxy, auth sidecar); we only need a stable
// identity to key stream slots and usage records on.
const UserIDHeader = "X-Porter-User"

const maxChatRequestBytes = 1 << 20 // 1MB of chat history is plenty

// chatHandler runs a streaming chat exchange end to end: admission,
// upstream dispatch, SSE relay to the client and (via the relay) recording.
func (a *Application) chatHandler(w http.ResponseWriter, r *http.Request) {
	rlog := a.logger.WithRequestID(util.GenerateRequestID())

	userID := r.Header.Get(UserIDHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+UserIDHeader+" header")
		return
	}

	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	conv, err := a.store.Conversations().Get(r.Context(), conversationID)
	if errors.Is(err, storage.ErrConversationNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		rlog.Error("conversation lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if conv.UserID != userID {
		// don't leak that the conversation exists
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	// bound the whole exchange; generations that outlive this are cut off
	ctx := r.Context()
	if a.config.Upstream.ResponseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Upstream.ResponseTimeout)
		defer cancel()
	}

	startTime := time.Now()
	stream, err := a.chatService.ProcessChat(ctx, userID, conversationID, req)
	if err != nil {
		a.writeChatError(w, rlog, err)
		return
	}
	// stream teardown releases the user slot and records the session;
	// make sure it happens even if we bail out while copying
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	bytesOut := a.copyStream(w, stream, rlog)

	a.stats.RecordCompletion(req.Model, time.Since(startTime), bytesOut)

	rlog.Debug("chat stream finished",
		"conversation_id", conversationID,
		"model", req.Model,
		"bytes_out", bytesOut,
		"duration_ms", time.Since(startTime).Milliseconds())
}

// copyStream pumps upstream bytes to the client, flushing after every
// chunk so tokens appear as they're generated
func (a *Application) copyStream(w http.ResponseWriter, stream io.Reader, rlog *logger.StyledLogger) int64 {
	flusher, canFlush := w.(http.Flusher)

	buf := make([]byte, a.config.Upstream.StreamBufferSize)
	var total int64

	for {
		n, err := stream.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				// client went away - the relay's teardown handles the rest
				rlog.Debug("client write failed during streaming", "bytes_out", total, "error", werr)
				return total
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				rlog.Debug("upstream ended with error during streaming", "bytes_out", total, "error", err)
			}
			return total
		}
	}
}

// writeChatError maps orchestrator failures onto HTTP status codes. These
// all fire before any bytes have been streamed, so a clean error response
// is still possible.
func (a *Application) writeChatError(w http.ResponseWriter, rlog *logger.StyledLogger, err error) {
	var upstreamErr *domain.UpstreamError

	switch {
	case errors.Is(err, domain.ErrTooManyActiveStreams):
		writeError(w, http.StatusTooManyRequests, "too many active streams, try again once one finishes")
	case errors.As(err, &upstreamErr):
		rlog.Error("upstream unavailable", "error", err)
		writeError(w, http.StatusBadGateway, "inference server unavailable")
	case errors.Is(err, context.Canceled):
		// client gave up while queued for the model gate
		rlog.Debug("chat request cancelled before dispatch")
	default:
		rlog.Error("chat request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
