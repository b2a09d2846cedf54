package study

import (
	"context"
	"fmt"
	"time"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/metrics"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/repository"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/security"
)

// EntitlementChecker はプレミアムコンテンツの利用資格を判定するインターフェース。
type EntitlementChecker interface {
	Entitlement(ctx context.Context, userID string) (bool, error)
}

// Queue は構築済みの学習キューを表す。
// Totalは選択された全カード数で、CardsはQueueLimitで切り詰められた配信分。
type Queue struct {
	ClassID string
	DeckID  *string
	Mode    model.StudyMode
	Cards   []model.Flashcard
	Total   int
}

// ServiceConfig は学習キューサービスの設定。
type ServiceConfig struct {
	QueueLimit int // 1回のキューで配信するカードの上限
}

// Service は学習キュー構築のサービス層。
// クラス・デッキの対象カードを進捗と突き合わせ、モード別に選択・整列する。
type Service struct {
	classRepo    repository.ClassRepository
	deckRepo     repository.DeckRepository
	cardRepo     repository.FlashcardRepository
	progressRepo repository.CardProgressRepository
	entitlements EntitlementChecker
	sanitizer    security.CardSanitizerService
	collector    metrics.MetricsCollector
	config       ServiceConfig
	now          func() time.Time
}

// NewService はServiceを生成する。collectorはnil許容。
func NewService(
	classRepo repository.ClassRepository,
	deckRepo repository.DeckRepository,
	cardRepo repository.FlashcardRepository,
	progressRepo repository.CardProgressRepository,
	entitlements EntitlementChecker,
	sanitizer security.CardSanitizerService,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	return &Service{
		classRepo:    classRepo,
		deckRepo:     deckRepo,
		cardRepo:     cardRepo,
		progressRepo: progressRepo,
		entitlements: entitlements,
		sanitizer:    sanitizer,
		collector:    collector,
		config:       config,
		now:          time.Now,
	}
}

// BuildQueue はユーザーの学習キューを構築する。
// deckIDが空の場合はクラス全体、指定された場合はそのデッキのみを対象とする。
// プレミアムデッキは利用資格のないユーザーには選択対象から除外され、
// デッキを直接指定した場合はPREMIUM_REQUIREDエラーとなる。
func (s *Service) BuildQueue(ctx context.Context, userID, classID, deckID, modeStr string) (*Queue, error) {
	started := s.now()

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	class, err := s.classRepo.FindPublishedByID(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("クラスの取得に失敗しました: %w", err)
	}
	if class == nil {
		return nil, model.NewClassNotFoundError(classID)
	}

	entitled, err := s.entitlements.Entitlement(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("利用資格の判定に失敗しました: %w", err)
	}

	var cards []*model.Flashcard
	var queueDeckID *string

	if deckID != "" {
		deck, err := s.deckRepo.FindPublishedByID(ctx, deckID)
		if err != nil {
			return nil, fmt.Errorf("デッキの取得に失敗しました: %w", err)
		}
		if deck == nil || deck.ClassID != classID {
			return nil, model.NewDeckNotFoundError(deckID)
		}
		if deck.IsPremium && !entitled {
			return nil, model.NewPremiumRequiredError()
		}

		cards, err = s.cardRepo.ListPublishedByDeckID(ctx, deckID)
		if err != nil {
			return nil, fmt.Errorf("カード一覧の取得に失敗しました: %w", err)
		}
		queueDeckID = &deck.ID
	} else {
		cards, err = s.cardRepo.ListPublishedByClassID(ctx, classID, entitled)
		if err != nil {
			return nil, fmt.Errorf("カード一覧の取得に失敗しました: %w", err)
		}
	}

	progressList, err := s.progressRepo.ListByUserAndClass(ctx, userID, classID)
	if err != nil {
		return nil, fmt.Errorf("進捗の取得に失敗しました: %w", err)
	}

	progressByCard := make(map[string]*model.CardProgress, len(progressList))
	for _, p := range progressList {
		progressByCard[p.FlashcardID] = p
	}

	eligible := make([]model.Flashcard, len(cards))
	for i, c := range cards {
		eligible[i] = *c
	}

	selected, err := SelectCards(eligible, progressByCard, mode, s.now())
	if err != nil {
		return nil, err
	}

	total := len(selected)
	if s.config.QueueLimit > 0 && len(selected) > s.config.QueueLimit {
		selected = selected[:s.config.QueueLimit]
	}

	for i := range selected {
		selected[i].FrontHTML = s.sanitizer.Sanitize(selected[i].FrontHTML)
		selected[i].BackHTML = s.sanitizer.Sanitize(selected[i].BackHTML)
		selected[i].ExplanationHTML = s.sanitizer.Sanitize(selected[i].ExplanationHTML)
	}

	if s.collector != nil {
		s.collector.RecordCardsServed(string(mode), len(selected))
		s.collector.RecordSelectionLatency(s.now().Sub(started))
	}

	return &Queue{
		ClassID: classID,
		DeckID:  queueDeckID,
		Mode:    mode,
		Cards:   selected,
		Total:   total,
	}, nil
}
