// Package cleanup は期限切れデータの自動整理ジョブを提供する。
// 期限切れの認証セッションの削除と、放置された学習セッションの
// 自動終了を日次バッチで行う。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionDeleter は期限切れ認証セッションの削除を抽象化するインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// StaleSessionCloser は放置された学習セッションの自動終了を抽象化するインターフェース。
type StaleSessionCloser interface {
	CloseStaleSessions(ctx context.Context, maxAge time.Duration) (int, error)
}

// CleanupJob は期限切れデータの自動整理ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な処理を保証する。
type CleanupJob struct {
	sessions        SessionDeleter
	staleCloser     StaleSessionCloser
	logger          *slog.Logger
	StaleSessionAge time.Duration // 学習セッションの放置許容時間（デフォルト: 24時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの放置許容時間は24時間。
func NewCleanupJob(sessions SessionDeleter, staleCloser StaleSessionCloser, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:        sessions,
		staleCloser:     staleCloser,
		logger:          logger,
		StaleSessionAge: 24 * time.Hour,
	}
}

// Run は期限切れの認証セッションを削除し、放置された学習セッションを終了する。
// 冪等: 対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	closedCount, err := j.staleCloser.CloseStaleSessions(ctx, j.StaleSessionAge)
	if err != nil {
		j.logger.Error("放置学習セッションの終了に失敗しました",
			slog.String("error", err.Error()),
			slog.Float64("stale_session_age_hours", j.StaleSessionAge.Hours()),
		)
		return fmt.Errorf("放置学習セッションの終了に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", deletedCount),
		slog.Int("closed_study_sessions", closedCount),
		slog.Float64("stale_session_age_hours", j.StaleSessionAge.Hours()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
