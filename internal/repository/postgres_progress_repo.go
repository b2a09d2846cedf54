package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
)

// PostgresCardProgressRepo はPostgreSQLを使用したカード進捗リポジトリ。
type PostgresCardProgressRepo struct {
	db *sql.DB
}

// NewPostgresCardProgressRepo はPostgresCardProgressRepoを生成する。
func NewPostgresCardProgressRepo(db *sql.DB) *PostgresCardProgressRepo {
	return &PostgresCardProgressRepo{db: db}
}

// FindByUserAndCard はユーザー×カードの進捗を取得する。見つからない場合はnilを返す。
func (r *PostgresCardProgressRepo) FindByUserAndCard(ctx context.Context, userID, cardID string) (*model.CardProgress, error) {
	p := &model.CardProgress{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, flashcard_id, confidence, times_seen, mastery,
		        last_seen_at, next_review_at, created_at, updated_at
		 FROM card_progress WHERE user_id = $1 AND flashcard_id = $2`,
		userID, cardID,
	).Scan(
		&p.ID, &p.UserID, &p.FlashcardID, &p.Confidence, &p.TimesSeen, &p.Mastery,
		&p.LastSeenAt, &p.NextReviewAt, &p.CreatedAt, &p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カード進捗の取得に失敗しました: %w", err)
	}

	return p, nil
}

// Upsert はカード進捗を単一文でUPSERTする。
// times_seenのインクリメントをDB側で行うことで、並行リクエスト時も
// 記録回数が失われないことを保証する。
func (r *PostgresCardProgressRepo) Upsert(ctx context.Context, userID, cardID string, confidence int, mastery model.Mastery, lastSeenAt, nextReviewAt time.Time) (*model.CardProgress, error) {
	p := &model.CardProgress{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO card_progress
		     (id, user_id, flashcard_id, confidence, times_seen, mastery,
		      last_seen_at, next_review_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 1, $5, $6, $7, $6, $6)
		 ON CONFLICT (user_id, flashcard_id) DO UPDATE SET
		     confidence = EXCLUDED.confidence,
		     times_seen = card_progress.times_seen + 1,
		     mastery = EXCLUDED.mastery,
		     last_seen_at = EXCLUDED.last_seen_at,
		     next_review_at = EXCLUDED.next_review_at,
		     updated_at = EXCLUDED.updated_at
		 RETURNING id, user_id, flashcard_id, confidence, times_seen, mastery,
		           last_seen_at, next_review_at, created_at, updated_at`,
		uuid.New().String(), userID, cardID, confidence, mastery, lastSeenAt, nextReviewAt,
	).Scan(
		&p.ID, &p.UserID, &p.FlashcardID, &p.Confidence, &p.TimesSeen, &p.Mastery,
		&p.LastSeenAt, &p.NextReviewAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("カード進捗の更新に失敗しました: %w", err)
	}

	return p, nil
}

// ListByUserAndClass はクラス配下の公開済みカードに対するユーザーの進捗を返す。
func (r *PostgresCardProgressRepo) ListByUserAndClass(ctx context.Context, userID, classID string) ([]*model.CardProgress, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.user_id, p.flashcard_id, p.confidence, p.times_seen, p.mastery,
		        p.last_seen_at, p.next_review_at, p.created_at, p.updated_at
		 FROM card_progress p
		 JOIN flashcards f ON f.id = p.flashcard_id
		 JOIN decks d ON d.id = f.deck_id
		 WHERE p.user_id = $1 AND d.class_id = $2
		   AND d.is_published = true AND f.is_published = true`,
		userID, classID,
	)
	if err != nil {
		return nil, fmt.Errorf("クラス進捗の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var list []*model.CardProgress
	for rows.Next() {
		p := &model.CardProgress{}
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.FlashcardID, &p.Confidence, &p.TimesSeen, &p.Mastery,
			&p.LastSeenAt, &p.NextReviewAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("進捗行の読み取りに失敗しました: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("クラス進捗の走査に失敗しました: %w", err)
	}

	return list, nil
}

// SummaryByUserAndClass はクラス配下カードの習熟度別カウントを返す。
// 進捗レコードが存在しないカードはカウントに含まれない。
func (r *PostgresCardProgressRepo) SummaryByUserAndClass(ctx context.Context, userID, classID string) (map[model.Mastery]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.mastery, COUNT(*)
		 FROM card_progress p
		 JOIN flashcards f ON f.id = p.flashcard_id
		 JOIN decks d ON d.id = f.deck_id
		 WHERE p.user_id = $1 AND d.class_id = $2
		   AND d.is_published = true AND f.is_published = true
		 GROUP BY p.mastery`,
		userID, classID,
	)
	if err != nil {
		return nil, fmt.Errorf("進捗サマリの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	summary := make(map[model.Mastery]int)
	for rows.Next() {
		var mastery model.Mastery
		var count int
		if err := rows.Scan(&mastery, &count); err != nil {
			return nil, fmt.Errorf("サマリ行の読み取りに失敗しました: %w", err)
		}
		summary[mastery] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("進捗サマリの走査に失敗しました: %w", err)
	}

	return summary, nil
}

// compile-time interface check
var _ CardProgressRepository = (*PostgresCardProgressRepo)(nil)
