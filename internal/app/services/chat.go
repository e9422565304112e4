package services

/*
				Porter Chat Service
	The orchestrator for a chat request. Admission happens in two steps:
	the user's stream slot (non-blocking, rejected outright when full)
	and then the model gate (blocking, cancellable). Only after both does
	the upstream call go out.

	Slot ownership is the tricky part. The service owns the user slot
	from TryAcquire until a relay exists; every failure in between must
	give it back. The moment the relay is constructed, ownership moves to
	the relay's teardown and the service never touches the slot again.

	The model gate is narrower: it bounds how many upstream requests can
	be *started* concurrently per model, and is released when ProcessChat
	returns - not when the stream finishes draining.
*/

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/thushan/porter/internal/adapter/admission"
	"github.com/thushan/porter/internal/adapter/relay"
	"github.com/thushan/porter/internal/core/domain"
	"github.com/thushan/porter/internal/core/ports"
	"github.com/thushan/porter/internal/logger"
)

type ChatService struct {
	client   ports.InferenceClient
	slots    *admission.SlotRegistry
	gates    *admission.GateRegistry
	recorder *relay.Recorder
	stats    ports.StatsCollector
	logger   *logger.StyledLogger
}

func NewChatService(
	client ports.InferenceClient,
	slots *admission.SlotRegistry,
	gates *admission.GateRegistry,
	recorder *relay.Recorder,
	stats ports.StatsCollector,
	logger *logger.StyledLogger,
) *ChatService {
	return &ChatService{
		client:   client,
		slots:    slots,
		gates:    gates,
		recorder: recorder,
		stats:    stats,
		logger:   logger,
	}
}

// ProcessChat admits, dispatches and wraps a chat request. On success the
// returned stream carries the upstream bytes verbatim; closing it (or
// draining it to EOF) releases the user's slot and records the exchange.
func (s *ChatService) ProcessChat(ctx context.Context, userID string, conversationID uuid.UUID, req domain.ChatRequest) (io.ReadCloser, error) {
	startTime := time.Now()
	s.stats.RecordRequest(req.Model)

	if !s.slots.TryAcquire(userID) {
		s.stats.RecordRejection(req.Model)
		return nil, domain.ErrTooManyActiveStreams
	}

	gate, err := s.gates.Acquire(ctx, req.Model)
	if err != nil {
		// cancelled while queued for the model - the gate consumed
		// nothing, but the user slot is ours to give back
		s.slots.Release(userID)
		return nil, err
	}
	defer gate.Release()

	upstream, err := s.client.StreamChatCompletion(ctx, req)
	if err != nil {
		s.slots.Release(userID)
		s.logger.ErrorWithModel("upstream call failed", req.Model, "user_id", userID, "error", err)
		return nil, err
	}

	session := relay.Session{
		UserID:         userID,
		ConversationID: conversationID,
		Request:        req,
		StartTime:      startTime,
	}

	// from here the relay owns slot release; it happens on teardown no
	// matter how the stream ends
	return relay.New(upstream, session, s.recorder, func() {
		s.slots.Release(userID)
	}, s.logger), nil
}

// ListModels passes through the upstream model catalog
func (s *ChatService) ListModels(ctx context.Context) ([]domain.ModelInfo, error) {
	return s.client.ListModels(ctx)
}
