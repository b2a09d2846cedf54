package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/middleware"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/progress"
)

// ProgressServiceInterface は進捗ハンドラーが必要とするサービスインターフェース。
type ProgressServiceInterface interface {
	// RecordConfidence はカードの確信度を記録し、更新後の進捗を返す。
	RecordConfidence(ctx context.Context, userID, cardID string, confidence int) (*model.CardProgress, error)
	// GetClassProgress はクラス単位の習熟度サマリーを返す。
	GetClassProgress(ctx context.Context, userID, classID string) (*progress.ClassProgress, error)
	// StartSession は学習セッションを開始する。
	StartSession(ctx context.Context, userID, classID, mode string) (*model.StudySession, error)
	// RecordSessionCard はセッション内のカード学習を記録する。
	RecordSessionCard(ctx context.Context, userID, sessionID, cardID string, confidence, responseMs int) (*model.CardProgress, error)
	// EndSession はセッションを終了し集計値を確定する。
	EndSession(ctx context.Context, userID, sessionID string) (*model.StudySession, error)
	// GetStats はユーザーの学習統計を返す。
	GetStats(ctx context.Context, userID string) (*model.UserStats, error)
}

// ProgressHandler は学習進捗・セッション・統計のHTTPハンドラー。
type ProgressHandler struct {
	service ProgressServiceInterface
}

// NewProgressHandler はProgressHandlerを生成する。
func NewProgressHandler(service ProgressServiceInterface) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// recordProgressRequest は進捗記録リクエストのボディ。
type recordProgressRequest struct {
	FlashcardID string `json:"flashcard_id"`
	Confidence  int    `json:"confidence"`
}

// startSessionRequest はセッション開始リクエストのボディ。
type startSessionRequest struct {
	ClassID string `json:"class_id"`
	Mode    string `json:"mode"`
}

// sessionCardRequest はセッションカード記録リクエストのボディ。
type sessionCardRequest struct {
	FlashcardID string `json:"flashcard_id"`
	Confidence  int    `json:"confidence"`
	ResponseMs  int    `json:"response_ms"`
}

// progressResponse はカード進捗のAPIレスポンス。
type progressResponse struct {
	FlashcardID  string    `json:"flashcard_id"`
	Confidence   int       `json:"confidence"`
	TimesSeen    int       `json:"times_seen"`
	Mastery      string    `json:"mastery"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	NextReviewAt time.Time `json:"next_review_at"`
}

// classProgressResponse はクラス単位の習熟度サマリーのAPIレスポンス。
type classProgressResponse struct {
	ClassID    string `json:"class_id"`
	TotalCards int    `json:"total_cards"`
	New        int    `json:"new"`
	Learning   int    `json:"learning"`
	Mastered   int    `json:"mastered"`
}

// sessionResponse は学習セッションのAPIレスポンス。
type sessionResponse struct {
	ID              string     `json:"id"`
	ClassID         string     `json:"class_id"`
	Mode            string     `json:"mode"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	CardsStudied    int        `json:"cards_studied"`
	AvgConfidence   float64    `json:"avg_confidence"`
}

// statsResponse はユーザー統計のAPIレスポンス。
type statsResponse struct {
	TotalCardsStudied int        `json:"total_cards_studied"`
	TotalStudySeconds int        `json:"total_study_seconds"`
	StreakDays        int        `json:"streak_days"`
	LastStudyDay      *time.Time `json:"last_study_day,omitempty"`
}

// RecordProgress はカードの確信度を記録する。
// POST /api/progress
func (h *ProgressHandler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req recordProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}
	if req.FlashcardID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("flashcard_idは必須です。"))
		return
	}

	p, err := h.service.RecordConfidence(r.Context(), userID, req.FlashcardID, req.Confidence)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProgressResponse(p))
}

// GetClassProgress はクラス単位の習熟度サマリーを返す。
// GET /api/progress/classes/:id
func (h *ProgressHandler) GetClassProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	classID := chi.URLParam(r, "id")

	cp, err := h.service.GetClassProgress(r.Context(), userID, classID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(classProgressResponse{
		ClassID:    cp.ClassID,
		TotalCards: cp.TotalCards,
		New:        cp.New,
		Learning:   cp.Learning,
		Mastered:   cp.Mastered,
	})
}

// StartSession は学習セッションを開始する。
// POST /api/sessions
func (h *ProgressHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}
	if req.ClassID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("class_idは必須です。"))
		return
	}

	session, err := h.service.StartSession(r.Context(), userID, req.ClassID, req.Mode)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toSessionResponse(session))
}

// RecordSessionCard はセッション内のカード学習を記録する。
// POST /api/sessions/:id/cards
func (h *ProgressHandler) RecordSessionCard(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	sessionID := chi.URLParam(r, "id")

	var req sessionCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}
	if req.FlashcardID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("flashcard_idは必須です。"))
		return
	}

	p, err := h.service.RecordSessionCard(r.Context(), userID, sessionID, req.FlashcardID, req.Confidence, req.ResponseMs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProgressResponse(p))
}

// EndSession は学習セッションを終了する。
// POST /api/sessions/:id/end
func (h *ProgressHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	sessionID := chi.URLParam(r, "id")

	session, err := h.service.EndSession(r.Context(), userID, sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSessionResponse(session))
}

// GetStats はユーザーの学習統計を返す。
// GET /api/stats/me
func (h *ProgressHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	stats, err := h.service.GetStats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{
		TotalCardsStudied: stats.TotalCardsStudied,
		TotalStudySeconds: stats.TotalStudySeconds,
		StreakDays:        stats.StreakDays,
		LastStudyDay:      stats.LastStudyDay,
	})
}

// toProgressResponse はmodel.CardProgressからAPIレスポンスに変換する。
func toProgressResponse(p *model.CardProgress) progressResponse {
	return progressResponse{
		FlashcardID:  p.FlashcardID,
		Confidence:   p.Confidence,
		TimesSeen:    p.TimesSeen,
		Mastery:      string(p.Mastery),
		LastSeenAt:   p.LastSeenAt,
		NextReviewAt: p.NextReviewAt,
	}
}

// toSessionResponse はmodel.StudySessionからAPIレスポンスに変換する。
func toSessionResponse(s *model.StudySession) sessionResponse {
	return sessionResponse{
		ID:              s.ID,
		ClassID:         s.ClassID,
		Mode:            string(s.Mode),
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		DurationSeconds: s.DurationSeconds,
		CardsStudied:    s.CardsStudied,
		AvgConfidence:   s.AvgConfidence,
	}
}
