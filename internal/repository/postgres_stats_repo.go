package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
)

// PostgresUserStatsRepo はPostgreSQLを使用したユーザー統計リポジトリ。
type PostgresUserStatsRepo struct {
	db *sql.DB
}

// NewPostgresUserStatsRepo はPostgresUserStatsRepoを生成する。
func NewPostgresUserStatsRepo(db *sql.DB) *PostgresUserStatsRepo {
	return &PostgresUserStatsRepo{db: db}
}

// FindByUserID はユーザーの統計を取得する。見つからない場合はnilを返す。
func (r *PostgresUserStatsRepo) FindByUserID(ctx context.Context, userID string) (*model.UserStats, error) {
	stats := &model.UserStats{}
	var lastStudyDay sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, total_cards_studied, total_study_seconds, streak_days, last_study_day, updated_at
		 FROM user_stats WHERE user_id = $1`,
		userID,
	).Scan(
		&stats.UserID, &stats.TotalCardsStudied, &stats.TotalStudySeconds,
		&stats.StreakDays, &lastStudyDay, &stats.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("統計の取得に失敗しました: %w", err)
	}

	if lastStudyDay.Valid {
		stats.LastStudyDay = &lastStudyDay.Time
	}

	return stats, nil
}

// Upsert は統計を冪等にUPSERTする。user_idが主キーのため1ユーザー1行となる。
func (r *PostgresUserStatsRepo) Upsert(ctx context.Context, stats *model.UserStats) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_stats
		     (user_id, total_cards_studied, total_study_seconds, streak_days, last_study_day, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		     total_cards_studied = EXCLUDED.total_cards_studied,
		     total_study_seconds = EXCLUDED.total_study_seconds,
		     streak_days = EXCLUDED.streak_days,
		     last_study_day = EXCLUDED.last_study_day,
		     updated_at = EXCLUDED.updated_at`,
		stats.UserID, stats.TotalCardsStudied, stats.TotalStudySeconds,
		stats.StreakDays, stats.LastStudyDay, stats.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("統計の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserStatsRepository = (*PostgresUserStatsRepo)(nil)
