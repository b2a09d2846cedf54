// Package content はクラス・デッキ・カードの参照とブックマークのドメインロジックを提供する。
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/cache"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/metrics"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/repository"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/security"
)

// EntitlementChecker はプレミアムコンテンツの利用資格を判定するインターフェース。
type EntitlementChecker interface {
	Entitlement(ctx context.Context, userID string) (bool, error)
}

// ClassDetail はクラスとその配下のデッキ一覧を表す。
type ClassDetail struct {
	Class model.Class
	Decks []model.Deck
}

// DeckCards はデッキとその配下のカード・選択式問題を表す。
type DeckCards struct {
	Deck      model.Deck
	Cards     []model.Flashcard
	Questions []model.QuizQuestion
}

// ServiceConfig はコンテンツサービスの設定。
type ServiceConfig struct {
	CacheTTL time.Duration
}

// Service はコンテンツ参照のサービス層。
// 読み取りはキャッシュアサイドで行い、キャッシュ不整合時はDBに縮退する。
type Service struct {
	classRepo    repository.ClassRepository
	deckRepo     repository.DeckRepository
	cardRepo     repository.FlashcardRepository
	quizRepo     repository.QuizQuestionRepository
	bookmarkRepo repository.BookmarkRepository
	entitlements EntitlementChecker
	sanitizer    security.CardSanitizerService
	store        cache.Store
	collector    metrics.MetricsCollector
	config       ServiceConfig
	now          func() time.Time
}

// NewService はServiceを生成する。storeとcollectorはnil許容。
func NewService(
	classRepo repository.ClassRepository,
	deckRepo repository.DeckRepository,
	cardRepo repository.FlashcardRepository,
	quizRepo repository.QuizQuestionRepository,
	bookmarkRepo repository.BookmarkRepository,
	entitlements EntitlementChecker,
	sanitizer security.CardSanitizerService,
	store cache.Store,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	return &Service{
		classRepo:    classRepo,
		deckRepo:     deckRepo,
		cardRepo:     cardRepo,
		quizRepo:     quizRepo,
		bookmarkRepo: bookmarkRepo,
		entitlements: entitlements,
		sanitizer:    sanitizer,
		store:        store,
		collector:    collector,
		config:       config,
		now:          time.Now,
	}
}

// ListClasses は公開クラス一覧を返す。
func (s *Service) ListClasses(ctx context.Context) ([]model.Class, error) {
	var cached []model.Class
	if s.cacheGet(cache.KeyClassList(), &cached) {
		return cached, nil
	}

	classes, err := s.classRepo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("クラス一覧の取得に失敗しました: %w", err)
	}

	result := make([]model.Class, len(classes))
	for i, c := range classes {
		result[i] = *c
	}

	s.cacheSet(cache.KeyClassList(), result)
	return result, nil
}

// GetClassDetail はクラス詳細（デッキ一覧付き）を返す。
func (s *Service) GetClassDetail(ctx context.Context, classID string) (*ClassDetail, error) {
	var cached ClassDetail
	if s.cacheGet(cache.KeyClassDetail(classID), &cached) {
		return &cached, nil
	}

	class, err := s.classRepo.FindPublishedByID(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("クラスの取得に失敗しました: %w", err)
	}
	if class == nil {
		return nil, model.NewClassNotFoundError(classID)
	}

	decks, err := s.deckRepo.ListPublishedByClassID(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("デッキ一覧の取得に失敗しました: %w", err)
	}

	detail := &ClassDetail{Class: *class, Decks: make([]model.Deck, len(decks))}
	for i, d := range decks {
		detail.Decks[i] = *d
	}

	s.cacheSet(cache.KeyClassDetail(classID), detail)
	return detail, nil
}

// GetDeckCards はデッキのカード一覧と選択式問題を返す。
// プレミアムデッキは利用資格のないユーザーにはPREMIUM_REQUIREDエラーとなる。
// カード本文はキャッシュ格納前にサニタイズされる。
func (s *Service) GetDeckCards(ctx context.Context, userID, deckID string) (*DeckCards, error) {
	deck, err := s.deckRepo.FindPublishedByID(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("デッキの取得に失敗しました: %w", err)
	}
	if deck == nil {
		return nil, model.NewDeckNotFoundError(deckID)
	}

	if deck.IsPremium {
		entitled, err := s.entitlements.Entitlement(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("利用資格の判定に失敗しました: %w", err)
		}
		if !entitled {
			return nil, model.NewPremiumRequiredError()
		}
	}

	var cached DeckCards
	if s.cacheGet(cache.KeyDeckCards(deckID), &cached) {
		return &cached, nil
	}

	cards, err := s.cardRepo.ListPublishedByDeckID(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("カード一覧の取得に失敗しました: %w", err)
	}

	questions, err := s.quizRepo.ListByDeckID(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("問題一覧の取得に失敗しました: %w", err)
	}

	result := &DeckCards{
		Deck:      *deck,
		Cards:     make([]model.Flashcard, len(cards)),
		Questions: make([]model.QuizQuestion, len(questions)),
	}
	for i, c := range cards {
		card := *c
		card.FrontHTML = s.sanitizer.Sanitize(card.FrontHTML)
		card.BackHTML = s.sanitizer.Sanitize(card.BackHTML)
		card.ExplanationHTML = s.sanitizer.Sanitize(card.ExplanationHTML)
		result.Cards[i] = card
	}
	for i, q := range questions {
		question := *q
		question.QuestionHTML = s.sanitizer.Sanitize(question.QuestionHTML)
		question.ExplanationHTML = s.sanitizer.Sanitize(question.ExplanationHTML)
		result.Questions[i] = question
	}

	s.cacheSet(cache.KeyDeckCards(deckID), result)
	return result, nil
}

// ListBookmarks はユーザーのブックマーク一覧を返す。
func (s *Service) ListBookmarks(ctx context.Context, userID string) ([]model.Bookmark, error) {
	var cached []model.Bookmark
	if s.cacheGet(cache.KeyUserBookmarks(userID), &cached) {
		return cached, nil
	}

	bookmarks, err := s.bookmarkRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ブックマーク一覧の取得に失敗しました: %w", err)
	}

	result := make([]model.Bookmark, len(bookmarks))
	for i, b := range bookmarks {
		result[i] = *b
	}

	s.cacheSet(cache.KeyUserBookmarks(userID), result)
	return result, nil
}

// AddBookmark はカードをブックマークする。すでに登録済みの場合も成功扱い（冪等）。
func (s *Service) AddBookmark(ctx context.Context, userID, cardID string) error {
	card, err := s.cardRepo.FindPublishedByID(ctx, cardID)
	if err != nil {
		return fmt.Errorf("カードの取得に失敗しました: %w", err)
	}
	if card == nil {
		return model.NewCardNotFoundError(cardID)
	}

	bookmark := &model.Bookmark{
		ID:          uuid.New().String(),
		UserID:      userID,
		FlashcardID: cardID,
		CreatedAt:   s.now(),
	}
	if err := s.bookmarkRepo.Upsert(ctx, bookmark); err != nil {
		return fmt.Errorf("ブックマークの作成に失敗しました: %w", err)
	}

	s.invalidateUser(userID)
	return nil
}

// RemoveBookmark はブックマークを解除する。
func (s *Service) RemoveBookmark(ctx context.Context, userID, cardID string) error {
	found, err := s.bookmarkRepo.Delete(ctx, userID, cardID)
	if err != nil {
		return fmt.Errorf("ブックマークの削除に失敗しました: %w", err)
	}
	if !found {
		return model.NewBookmarkNotFoundError(cardID)
	}

	s.invalidateUser(userID)
	return nil
}

// cacheGet はキャッシュから値をデコードする。失敗はミス扱いでDBに縮退する。
func (s *Service) cacheGet(key string, out any) bool {
	if s.store == nil {
		return false
	}

	data, ok := s.store.Get(key)
	if !ok {
		if s.collector != nil {
			s.collector.RecordCacheMiss()
		}
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		slog.Warn("failed to decode cached value", slog.String("key", key), slog.String("error", err.Error()))
		s.store.Delete(key)
		return false
	}

	if s.collector != nil {
		s.collector.RecordCacheHit()
	}
	return true
}

// cacheSet は値をエンコードしてキャッシュに格納する。失敗は警告ログのみ。
func (s *Service) cacheSet(key string, value any) {
	if s.store == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("failed to encode value for cache", slog.String("key", key), slog.String("error", err.Error()))
		return
	}

	s.store.Set(key, data, s.config.CacheTTL)
}

// invalidateUser はユーザースコープのキャッシュビューをまとめて無効化する。
func (s *Service) invalidateUser(userID string) {
	if s.store != nil {
		s.store.DeleteByPrefix(cache.UserPrefix(userID))
	}
}
