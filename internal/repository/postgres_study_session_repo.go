package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
)

// PostgresStudySessionRepo はPostgreSQLを使用した学習セッションリポジトリ。
type PostgresStudySessionRepo struct {
	db *sql.DB
}

// NewPostgresStudySessionRepo はPostgresStudySessionRepoを生成する。
func NewPostgresStudySessionRepo(db *sql.DB) *PostgresStudySessionRepo {
	return &PostgresStudySessionRepo{db: db}
}

// Create は学習セッションを作成する。
func (r *PostgresStudySessionRepo) Create(ctx context.Context, session *model.StudySession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO study_sessions (id, user_id, class_id, mode, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.UserID, session.ClassID, session.Mode, session.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("学習セッションの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの学習セッションを取得する。見つからない場合はnilを返す。
func (r *PostgresStudySessionRepo) FindByID(ctx context.Context, id string) (*model.StudySession, error) {
	s := &model.StudySession{}
	var endedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, class_id, mode, started_at, ended_at,
		        duration_seconds, cards_studied, avg_confidence
		 FROM study_sessions WHERE id = $1`,
		id,
	).Scan(
		&s.ID, &s.UserID, &s.ClassID, &s.Mode, &s.StartedAt, &endedAt,
		&s.DurationSeconds, &s.CardsStudied, &s.AvgConfidence,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("学習セッションの取得に失敗しました: %w", err)
	}

	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}

	return s, nil
}

// AddCard はセッションにカード記録を追加する。
func (r *PostgresStudySessionRepo) AddCard(ctx context.Context, card *model.SessionCard) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_cards (id, session_id, flashcard_id, confidence, response_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		card.ID, card.SessionID, card.FlashcardID, card.Confidence, card.ResponseMs, card.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("セッションカードの記録に失敗しました: %w", err)
	}
	return nil
}

// ListCards はセッションのカード記録を記録順で返す。
func (r *PostgresStudySessionRepo) ListCards(ctx context.Context, sessionID string) ([]*model.SessionCard, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, flashcard_id, confidence, response_ms, created_at
		 FROM session_cards WHERE session_id = $1 ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("セッションカードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var cards []*model.SessionCard
	for rows.Next() {
		c := &model.SessionCard{}
		if err := rows.Scan(&c.ID, &c.SessionID, &c.FlashcardID, &c.Confidence, &c.ResponseMs, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("セッションカード行の読み取りに失敗しました: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("セッションカードの走査に失敗しました: %w", err)
	}

	return cards, nil
}

// End はセッションを終了済みにする。既に終了済みの場合はfalseを返す。
// WHERE ended_at IS NULLにより、二重終了しても集計値が上書きされない。
func (r *PostgresStudySessionRepo) End(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds, cardsStudied int, avgConfidence float64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE study_sessions
		 SET ended_at = $2, duration_seconds = $3, cards_studied = $4, avg_confidence = $5
		 WHERE id = $1 AND ended_at IS NULL`,
		sessionID, endedAt, durationSeconds, cardsStudied, avgConfidence,
	)
	if err != nil {
		return false, fmt.Errorf("学習セッションの終了に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListStaleOpen は指定時刻より前に開始された未終了セッションを返す。
func (r *PostgresStudySessionRepo) ListStaleOpen(ctx context.Context, startedBefore time.Time) ([]*model.StudySession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, class_id, mode, started_at, ended_at,
		        duration_seconds, cards_studied, avg_confidence
		 FROM study_sessions
		 WHERE ended_at IS NULL AND started_at < $1
		 ORDER BY started_at`,
		startedBefore,
	)
	if err != nil {
		return nil, fmt.Errorf("未終了セッションの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sessions []*model.StudySession
	for rows.Next() {
		s := &model.StudySession{}
		var endedAt sql.NullTime
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.ClassID, &s.Mode, &s.StartedAt, &endedAt,
			&s.DurationSeconds, &s.CardsStudied, &s.AvgConfidence,
		); err != nil {
			return nil, fmt.Errorf("セッション行の読み取りに失敗しました: %w", err)
		}
		if endedAt.Valid {
			s.EndedAt = &endedAt.Time
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("未終了セッションの走査に失敗しました: %w", err)
	}

	return sessions, nil
}

// compile-time interface check
var _ StudySessionRepository = (*PostgresStudySessionRepo)(nil)
