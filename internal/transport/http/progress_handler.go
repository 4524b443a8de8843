package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"bahasa-quiz-service/internal/app"
	"bahasa-quiz-service/internal/domain"
	"go.uber.org/zap"
)

type ProgressHandler struct {
	service *app.SessionService
	log     *zap.Logger
}

func NewProgressHandler(service *app.SessionService, log *zap.Logger) *ProgressHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProgressHandler{service: service, log: log}
}

type progressResponse struct {
	UserID   string            `json:"userId"`
	Language string            `json:"language"`
	Games    []domain.Progress `json:"games"`
}

// ServeHTTP answers GET /progress?userId=&language= with the learner's
// per-game standing.
func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	language := r.URL.Query().Get("language")
	if language == "" {
		http.Error(w, "missing language", http.StatusBadRequest)
		return
	}

	games, err := h.service.Progress(r.Context(), userID, language)
	switch {
	case errors.Is(err, domain.ErrUserRequired):
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	case errors.Is(err, domain.ErrInvalidSetKey):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.log.Error("list progress failed", zap.String("user", userID), zap.Error(err))
		http.Error(w, "progress unavailable", http.StatusInternalServerError)
		return
	}
	if games == nil {
		games = []domain.Progress{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(progressResponse{UserID: userID, Language: language, Games: games}); err != nil {
		h.log.Debug("write progress response failed", zap.Error(err))
	}
}
