// Package progress は学習進捗・セッション・統計のドメインロジックを提供する。
package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/cache"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/metrics"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/repository"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/study"
)

// ClassProgress はクラス単位の習熟度サマリーを表す。
// Newには進捗レコードの存在しない未学習カードも含まれる。
type ClassProgress struct {
	ClassID    string
	TotalCards int
	New        int
	Learning   int
	Mastered   int
}

// Service は進捗記録・学習セッション・統計のサービス層。
type Service struct {
	progressRepo repository.CardProgressRepository
	sessionRepo  repository.StudySessionRepository
	statsRepo    repository.UserStatsRepository
	cardRepo     repository.FlashcardRepository
	classRepo    repository.ClassRepository
	store        cache.Store
	collector    metrics.MetricsCollector
	now          func() time.Time
}

// NewService はServiceを生成する。storeとcollectorはnil許容。
func NewService(
	progressRepo repository.CardProgressRepository,
	sessionRepo repository.StudySessionRepository,
	statsRepo repository.UserStatsRepository,
	cardRepo repository.FlashcardRepository,
	classRepo repository.ClassRepository,
	store cache.Store,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		progressRepo: progressRepo,
		sessionRepo:  sessionRepo,
		statsRepo:    statsRepo,
		cardRepo:     cardRepo,
		classRepo:    classRepo,
		store:        store,
		collector:    collector,
		now:          time.Now,
	}
}

// RecordConfidence はカードの確信度を記録し、更新後の進捗を返す。
// masteryとnext_review_atは確信度から決定的に導出され、times_seenの
// インクリメントは単一のUPSERT文でDB側で行われる。
func (s *Service) RecordConfidence(ctx context.Context, userID, cardID string, confidence int) (*model.CardProgress, error) {
	if !study.IsValidConfidence(confidence) {
		return nil, model.NewInvalidConfidenceError(confidence)
	}

	card, err := s.cardRepo.FindPublishedByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("カードの取得に失敗しました: %w", err)
	}
	if card == nil {
		return nil, model.NewCardNotFoundError(cardID)
	}

	now := s.now()
	mastery := study.MasteryForConfidence(confidence)
	nextReview := study.NextReviewAt(confidence, now)

	p, err := s.progressRepo.Upsert(ctx, userID, cardID, confidence, mastery, now, nextReview)
	if err != nil {
		return nil, fmt.Errorf("進捗の更新に失敗しました: %w", err)
	}

	// ユーザースコープのキャッシュビューをまとめて無効化
	if s.store != nil {
		s.store.DeleteByPrefix(cache.UserPrefix(userID))
	}
	if s.collector != nil {
		s.collector.RecordProgressUpdate(string(mastery))
	}

	return p, nil
}

// GetClassProgress はクラス単位の習熟度サマリーを返す。
// 進捗レコードのない公開カードはNewに計上される。
func (s *Service) GetClassProgress(ctx context.Context, userID, classID string) (*ClassProgress, error) {
	class, err := s.classRepo.FindPublishedByID(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("クラスの取得に失敗しました: %w", err)
	}
	if class == nil {
		return nil, model.NewClassNotFoundError(classID)
	}

	cards, err := s.cardRepo.ListPublishedByClassID(ctx, classID, true)
	if err != nil {
		return nil, fmt.Errorf("カード一覧の取得に失敗しました: %w", err)
	}

	summary, err := s.progressRepo.SummaryByUserAndClass(ctx, userID, classID)
	if err != nil {
		return nil, fmt.Errorf("進捗サマリの取得に失敗しました: %w", err)
	}

	total := len(cards)
	tracked := summary[model.MasteryNew] + summary[model.MasteryLearning] + summary[model.MasteryMastered]
	unstudied := total - tracked
	if unstudied < 0 {
		unstudied = 0
	}

	return &ClassProgress{
		ClassID:    classID,
		TotalCards: total,
		New:        summary[model.MasteryNew] + unstudied,
		Learning:   summary[model.MasteryLearning],
		Mastered:   summary[model.MasteryMastered],
	}, nil
}

// StartSession は学習セッションを開始する。
func (s *Service) StartSession(ctx context.Context, userID, classID, modeStr string) (*model.StudySession, error) {
	mode, err := study.ParseMode(modeStr)
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

	session := &model.StudySession{
		ID:        uuid.New().String(),
		UserID:    userID,
		ClassID:   classID,
		Mode:      mode,
		StartedAt: s.now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("学習セッションの作成に失敗しました: %w", err)
	}

	return session, nil
}

// RecordSessionCard はセッション内のカード学習を記録する。
// session_cardsへの追記とカード進捗の更新を同時に行う。
func (s *Service) RecordSessionCard(ctx context.Context, userID, sessionID, cardID string, confidence, responseMs int) (*model.CardProgress, error) {
	session, err := s.findOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.EndedAt != nil {
		return nil, model.NewSessionEndedError()
	}

	p, err := s.RecordConfidence(ctx, userID, cardID, confidence)
	if err != nil {
		return nil, err
	}

	card := &model.SessionCard{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		FlashcardID: cardID,
		Confidence:  confidence,
		ResponseMs:  responseMs,
		CreatedAt:   s.now(),
	}
	if err := s.sessionRepo.AddCard(ctx, card); err != nil {
		return nil, fmt.Errorf("セッションカードの記録に失敗しました: %w", err)
	}

	return p, nil
}

// EndSession はセッションを終了し、集計値を確定してユーザー統計にマージする。
// すでに終了済みの場合はSESSION_ENDEDエラーを返す。
func (s *Service) EndSession(ctx context.Context, userID, sessionID string) (*model.StudySession, error) {
	session, err := s.findOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.EndedAt != nil {
		return nil, model.NewSessionEndedError()
	}

	cards, err := s.sessionRepo.ListCards(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションカードの取得に失敗しました: %w", err)
	}

	now := s.now()
	duration := int(now.Sub(session.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	var avgConfidence float64
	if len(cards) > 0 {
		var sum int
		for _, c := range cards {
			sum += c.Confidence
		}
		avgConfidence = float64(sum) / float64(len(cards))
	}

	ok, err := s.sessionRepo.End(ctx, sessionID, now, duration, len(cards), avgConfidence)
	if err != nil {
		return nil, fmt.Errorf("学習セッションの終了に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewSessionEndedError()
	}

	// カード0枚のセッションは統計に影響させない（連続日数も進めない）
	if len(cards) > 0 {
		if err := s.mergeStats(ctx, userID, len(cards), duration, now); err != nil {
			return nil, err
		}
	}

	if s.store != nil {
		s.store.DeleteByPrefix(cache.UserPrefix(userID))
	}
	if s.collector != nil {
		s.collector.RecordSessionCompleted()
	}

	session.EndedAt = &now
	session.DurationSeconds = duration
	session.CardsStudied = len(cards)
	session.AvgConfidence = avgConfidence

	return session, nil
}

// GetStats はユーザーの学習統計を返す。未作成の場合はゼロ値を返す。
func (s *Service) GetStats(ctx context.Context, userID string) (*model.UserStats, error) {
	stats, err := s.statsRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("統計の取得に失敗しました: %w", err)
	}
	if stats == nil {
		return &model.UserStats{UserID: userID}, nil
	}
	return stats, nil
}

// CloseStaleSessions は指定期間を超えて放置された未終了セッションを自動終了する。
// 経過時間は最後のカード記録時刻から算出し、記録がない場合は0とする。
// 放置セッションはユーザー統計にはマージしない。閉じた件数を返す。
func (s *Service) CloseStaleSessions(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)

	sessions, err := s.sessionRepo.ListStaleOpen(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("未終了セッションの取得に失敗しました: %w", err)
	}

	closed := 0
	for _, session := range sessions {
		cards, err := s.sessionRepo.ListCards(ctx, session.ID)
		if err != nil {
			return closed, fmt.Errorf("セッションカードの取得に失敗しました: %w", err)
		}

		var duration int
		var avgConfidence float64
		endedAt := session.StartedAt

		if len(cards) > 0 {
			last := cards[len(cards)-1]
			endedAt = last.CreatedAt
			duration = int(last.CreatedAt.Sub(session.StartedAt).Seconds())
			if duration < 0 {
				duration = 0
			}
			var sum int
			for _, c := range cards {
				sum += c.Confidence
			}
			avgConfidence = float64(sum) / float64(len(cards))
		}

		ok, err := s.sessionRepo.End(ctx, session.ID, endedAt, duration, len(cards), avgConfidence)
		if err != nil {
			return closed, fmt.Errorf("学習セッションの終了に失敗しました: %w", err)
		}
		if ok {
			closed++
		}
	}

	if closed > 0 && s.collector != nil {
		s.collector.RecordStaleSessionsClosed(closed)
	}

	return closed, nil
}

// findOwnedSession はユーザー自身の学習セッションを取得する。
// 他ユーザーのセッションは存在を漏らさないようSESSION_NOT_FOUNDにする。
func (s *Service) findOwnedSession(ctx context.Context, userID, sessionID string) (*model.StudySession, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("学習セッションの取得に失敗しました: %w", err)
	}
	if session == nil || session.UserID != userID {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	return session, nil
}

// mergeStats はセッション集計をユーザー統計にマージする。
func (s *Service) mergeStats(ctx context.Context, userID string, cardsStudied, durationSeconds int, now time.Time) error {
	stats, err := s.statsRepo.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("統計の取得に失敗しました: %w", err)
	}
	if stats == nil {
		stats = &model.UserStats{UserID: userID}
	}

	today := utcDay(now)
	stats.StreakDays = nextStreak(stats.StreakDays, stats.LastStudyDay, now)
	stats.TotalCardsStudied += cardsStudied
	stats.TotalStudySeconds += durationSeconds
	stats.LastStudyDay = &today
	stats.UpdatedAt = now

	if err := s.statsRepo.Upsert(ctx, stats); err != nil {
		return fmt.Errorf("統計の更新に失敗しました: %w", err)
	}

	return nil
}
