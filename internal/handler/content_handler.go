// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/content"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/middleware"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
)

// ContentServiceInterface はコンテンツハンドラーが必要とするサービスインターフェース。
type ContentServiceInterface interface {
	// ListClasses は公開クラス一覧を返す。
	ListClasses(ctx context.Context) ([]model.Class, error)
	// GetClassDetail はクラス詳細（デッキ一覧付き）を返す。
	GetClassDetail(ctx context.Context, classID string) (*content.ClassDetail, error)
	// GetDeckCards はデッキのカード一覧と選択式問題を返す。
	GetDeckCards(ctx context.Context, userID, deckID string) (*content.DeckCards, error)
	// ListBookmarks はユーザーのブックマーク一覧を返す。
	ListBookmarks(ctx context.Context, userID string) ([]model.Bookmark, error)
	// AddBookmark はカードをブックマークする。
	AddBookmark(ctx context.Context, userID, cardID string) error
	// RemoveBookmark はブックマークを解除する。
	RemoveBookmark(ctx context.Context, userID, cardID string) error
}

// ContentHandler はコンテンツ参照とブックマークのHTTPハンドラー。
type ContentHandler struct {
	service ContentServiceInterface
}

// NewContentHandler はContentHandlerを生成する。
func NewContentHandler(service ContentServiceInterface) *ContentHandler {
	return &ContentHandler{service: service}
}

// classResponse はクラス情報のAPIレスポンス。
type classResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

// deckResponse はデッキ情報のAPIレスポンス。
type deckResponse struct {
	ID          string `json:"id"`
	ClassID     string `json:"class_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
	IsPremium   bool   `json:"is_premium"`
}

// cardResponse はフラッシュカードのAPIレスポンス。
type cardResponse struct {
	ID              string `json:"id"`
	DeckID          string `json:"deck_id"`
	FrontHTML       string `json:"front_html"`
	BackHTML        string `json:"back_html"`
	ExplanationHTML string `json:"explanation_html"`
	Position        int    `json:"position"`
}

// questionResponse は選択式問題のAPIレスポンス。
type questionResponse struct {
	ID              string   `json:"id"`
	FlashcardID     string   `json:"flashcard_id"`
	QuestionHTML    string   `json:"question_html"`
	Options         []string `json:"options"`
	CorrectIndex    int      `json:"correct_index"`
	ExplanationHTML string   `json:"explanation_html"`
	Position        int      `json:"position"`
}

// classDetailResponse はクラス詳細のAPIレスポンス。
type classDetailResponse struct {
	classResponse
	Decks []deckResponse `json:"decks"`
}

// deckCardsResponse はデッキのカード一覧のAPIレスポンス。
type deckCardsResponse struct {
	Deck      deckResponse       `json:"deck"`
	Cards     []cardResponse     `json:"cards"`
	Questions []questionResponse `json:"questions"`
}

// bookmarkResponse はブックマークのAPIレスポンス。
type bookmarkResponse struct {
	FlashcardID string    `json:"flashcard_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ListClasses は公開クラス一覧を返す。
// GET /api/classes
func (h *ContentHandler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.service.ListClasses(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result := make([]classResponse, len(classes))
	for i, c := range classes {
		result[i] = toClassResponse(c)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetClass はクラス詳細（デッキ一覧付き）を返す。
// GET /api/classes/:id
func (h *ContentHandler) GetClass(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "id")

	detail, err := h.service.GetClassDetail(r.Context(), classID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := classDetailResponse{
		classResponse: toClassResponse(detail.Class),
		Decks:         make([]deckResponse, len(detail.Decks)),
	}
	for i, d := range detail.Decks {
		resp.Decks[i] = toDeckResponse(d)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetDeckCards はデッキのカード一覧と選択式問題を返す。
// GET /api/decks/:id/cards
func (h *ContentHandler) GetDeckCards(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	deckID := chi.URLParam(r, "id")

	result, err := h.service.GetDeckCards(r.Context(), userID, deckID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := deckCardsResponse{
		Deck:      toDeckResponse(result.Deck),
		Cards:     make([]cardResponse, len(result.Cards)),
		Questions: make([]questionResponse, len(result.Questions)),
	}
	for i, c := range result.Cards {
		resp.Cards[i] = toCardResponse(c)
	}
	for i, q := range result.Questions {
		resp.Questions[i] = questionResponse{
			ID:              q.ID,
			FlashcardID:     q.FlashcardID,
			QuestionHTML:    q.QuestionHTML,
			Options:         q.Options,
			CorrectIndex:    q.CorrectIndex,
			ExplanationHTML: q.ExplanationHTML,
			Position:        q.Position,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListBookmarks はユーザーのブックマーク一覧を返す。
// GET /api/bookmarks
func (h *ContentHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	bookmarks, err := h.service.ListBookmarks(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result := make([]bookmarkResponse, len(bookmarks))
	for i, b := range bookmarks {
		result[i] = bookmarkResponse{
			FlashcardID: b.FlashcardID,
			CreatedAt:   b.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// AddBookmark はカードをブックマークする。冪等。
// PUT /api/bookmarks/:cardID
func (h *ContentHandler) AddBookmark(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	cardID := chi.URLParam(r, "cardID")

	if err := h.service.AddBookmark(r.Context(), userID, cardID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveBookmark はブックマークを解除する。
// DELETE /api/bookmarks/:cardID
func (h *ContentHandler) RemoveBookmark(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	cardID := chi.URLParam(r, "cardID")

	if err := h.service.RemoveBookmark(r.Context(), userID, cardID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toClassResponse はmodel.ClassからAPIレスポンスに変換する。
func toClassResponse(c model.Class) classResponse {
	return classResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Position:    c.Position,
	}
}

// toDeckResponse はmodel.DeckからAPIレスポンスに変換する。
func toDeckResponse(d model.Deck) deckResponse {
	return deckResponse{
		ID:          d.ID,
		ClassID:     d.ClassID,
		Title:       d.Title,
		Description: d.Description,
		Position:    d.Position,
		IsPremium:   d.IsPremium,
	}
}

// toCardResponse はmodel.FlashcardからAPIレスポンスに変換する。
func toCardResponse(c model.Flashcard) cardResponse {
	return cardResponse{
		ID:              c.ID,
		DeckID:          c.DeckID,
		FrontHTML:       c.FrontHTML,
		BackHTML:        c.BackHTML,
		ExplanationHTML: c.ExplanationHTML,
		Position:        c.Position,
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidConfidence, model.ErrCodeInvalidStudyMode:
		return http.StatusBadRequest
	case model.ErrCodeClassNotFound, model.ErrCodeDeckNotFound, model.ErrCodeCardNotFound,
		model.ErrCodeSessionNotFound, model.ErrCodeBookmarkNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeSessionEnded:
		return http.StatusConflict
	case model.ErrCodePremiumRequired:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
