package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
)

// PostgresBookmarkRepo はPostgreSQLを使用したブックマークリポジトリ。
type PostgresBookmarkRepo struct {
	db *sql.DB
}

// NewPostgresBookmarkRepo はPostgresBookmarkRepoを生成する。
func NewPostgresBookmarkRepo(db *sql.DB) *PostgresBookmarkRepo {
	return &PostgresBookmarkRepo{db: db}
}

// ListByUserID はユーザーのブックマークをcreated_at降順で返す。
func (r *PostgresBookmarkRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Bookmark, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, flashcard_id, created_at
		 FROM bookmarks WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ブックマーク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var bookmarks []*model.Bookmark
	for rows.Next() {
		b := &model.Bookmark{}
		if err := rows.Scan(&b.ID, &b.UserID, &b.FlashcardID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("ブックマーク行の読み取りに失敗しました: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ブックマーク一覧の走査に失敗しました: %w", err)
	}

	return bookmarks, nil
}

// Upsert はブックマークを冪等に作成する。既存の場合は何もしない。
func (r *PostgresBookmarkRepo) Upsert(ctx context.Context, bookmark *model.Bookmark) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookmarks (id, user_id, flashcard_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, flashcard_id) DO NOTHING`,
		bookmark.ID, bookmark.UserID, bookmark.FlashcardID, bookmark.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ブックマークの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete はユーザーIDとカードIDでブックマークを削除する。
// 削除対象が存在した場合はtrueを返す。
func (r *PostgresBookmarkRepo) Delete(ctx context.Context, userID, cardID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE user_id = $1 AND flashcard_id = $2`,
		userID, cardID,
	)
	if err != nil {
		return false, fmt.Errorf("ブックマークの削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}

	return rowsAffected > 0, nil
}

// compile-time interface check
var _ BookmarkRepository = (*PostgresBookmarkRepo)(nil)
