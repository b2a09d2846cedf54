package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/middleware"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/study"
)

// StudyServiceInterface は学習キューハンドラーが必要とするサービスインターフェース。
type StudyServiceInterface interface {
	// BuildQueue はユーザーの学習キューを構築する。deckIDは空可。
	BuildQueue(ctx context.Context, userID, classID, deckID, mode string) (*study.Queue, error)
}

// StudyHandler は学習キューのHTTPハンドラー。
type StudyHandler struct {
	service StudyServiceInterface
}

// NewStudyHandler はStudyHandlerを生成する。
func NewStudyHandler(service StudyServiceInterface) *StudyHandler {
	return &StudyHandler{service: service}
}

// queueResponse は学習キューのAPIレスポンス。
type queueResponse struct {
	ClassID string         `json:"class_id"`
	DeckID  *string        `json:"deck_id,omitempty"`
	Mode    string         `json:"mode"`
	Total   int            `json:"total"`
	Cards   []cardResponse `json:"cards"`
}

// GetStudyQueue はクラスの学習キューを返す。
// GET /api/classes/:id/study?mode=progressive|random|all&deck_id=xxx
func (h *StudyHandler) GetStudyQueue(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	classID := chi.URLParam(r, "id")
	mode := r.URL.Query().Get("mode")
	deckID := r.URL.Query().Get("deck_id")

	queue, err := h.service.BuildQueue(r.Context(), userID, classID, deckID, mode)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := queueResponse{
		ClassID: queue.ClassID,
		DeckID:  queue.DeckID,
		Mode:    string(queue.Mode),
		Total:   queue.Total,
		Cards:   make([]cardResponse, len(queue.Cards)),
	}
	for i, c := range queue.Cards {
		resp.Cards[i] = toCardResponse(c)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
