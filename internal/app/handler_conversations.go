package app

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/thushan/porter/internal/core/domain"
)

type createConversationRequest struct {
	Title string `json:"title"`
	Model string `json:"model"`
}

type createConversationResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Model string `json:"model"`
}

// createConversationHandler creates an empty conversation owned by the
// calling user; the chat endpoint requires one to exist
func (a *Application) createConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserIDHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+UserIDHeader+" header")
		return
	}

	var req createConversationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatRequestBytes)).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv := &domain.Conversation{
		UserID: userID,
		Title:  req.Title,
		Model:  req.Model,
	}

	id, err := a.store.Conversations().Create(r.Context(), conv)
	if err != nil {
		a.logger.Error("failed to create conversation", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createConversationResponse{
		ID:    id.String(),
		Title: conv.Title,
		Model: conv.Model,
	})
}
