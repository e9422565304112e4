package app

import (
	"encoding/json"
	"net/http"

	"github.com/thushan/porter/internal/core/domain"
)

type modelsResponse struct {
	Object string             `json:"object"`
	Data   []domain.ModelInfo `json:"data"`
}

// modelsHandler passes the upstream model catalog through in openai format
func (a *Application) modelsHandler(w http.ResponseWriter, r *http.Request) {
	models, err := a.chatService.ListModels(r.Context())
	if err != nil {
		a.logger.Error("failed to list upstream models", "error", err)
		writeError(w, http.StatusBadGateway, "inference server unavailable")
		return
	}

	if models == nil {
		models = []domain.ModelInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(modelsResponse{Object: "list", Data: models})
}
