// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// 初回の認証済みリクエストでのユーザー自動作成に使用する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連する進捗・セッション・ブックマークはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// PlanSubscriptionRepository はサブスクリプション状態の永続化インターフェース。
// 行の作成・更新は決済プロバイダのWebhook処理側が担い、本サービスは参照が主。
type PlanSubscriptionRepository interface {
	// FindByUserID はユーザーのサブスクリプションを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.PlanSubscription, error)

	// Upsert はサブスクリプション状態を冪等にUPSERTする。
	// UNIQUE(user_id)制約を利用し、既存行があれば状態を上書きする。
	Upsert(ctx context.Context, sub *model.PlanSubscription) error
}

// ClassRepository はクラスデータの永続化インターフェース。
type ClassRepository interface {
	// ListPublished は公開済みクラスをposition昇順で返す。
	ListPublished(ctx context.Context) ([]*model.Class, error)

	// FindPublishedByID は指定IDの公開済みクラスを取得する。見つからない場合はnilを返す。
	FindPublishedByID(ctx context.Context, id string) (*model.Class, error)
}

// DeckRepository はデッキデータの永続化インターフェース。
type DeckRepository interface {
	// FindPublishedByID は指定IDの公開済みデッキを取得する。見つからない場合はnilを返す。
	FindPublishedByID(ctx context.Context, id string) (*model.Deck, error)

	// ListPublishedByClassID はクラス配下の公開済みデッキをposition昇順で返す。
	ListPublishedByClassID(ctx context.Context, classID string) ([]*model.Deck, error)
}

// FlashcardRepository はフラッシュカードデータの永続化インターフェース。
type FlashcardRepository interface {
	// FindPublishedByID は指定IDの公開済みカードを取得する。見つからない場合はnilを返す。
	FindPublishedByID(ctx context.Context, id string) (*model.Flashcard, error)

	// ListPublishedByDeckID はデッキ配下の公開済みカードをposition昇順で返す。
	ListPublishedByDeckID(ctx context.Context, deckID string) ([]*model.Flashcard, error)

	// ListPublishedByClassID はクラス配下の公開済みデッキに属する公開済みカードを
	// デッキposition→カードposition順で返す。
	// includePremiumがfalseの場合、プレミアムデッキのカードは除外される。
	ListPublishedByClassID(ctx context.Context, classID string, includePremium bool) ([]*model.Flashcard, error)
}

// QuizQuestionRepository は選択式問題の永続化インターフェース。
type QuizQuestionRepository interface {
	// ListByDeckID はデッキ配下の全カードに紐づく問題をカード・position順で返す。
	ListByDeckID(ctx context.Context, deckID string) ([]*model.QuizQuestion, error)
}

// CardProgressRepository はユーザーごとのカード進捗の永続化インターフェース。
type CardProgressRepository interface {
	// FindByUserAndCard はユーザーIDとカードIDで進捗を取得する。見つからない場合はnilを返す。
	FindByUserAndCard(ctx context.Context, userID, cardID string) (*model.CardProgress, error)

	// Upsert は進捗を単一の条件付きUPSERTで記録する。
	// 既存行がある場合はtimes_seenをSQL内で+1し、confidence・mastery・
	// next_review_at・last_seen_atを上書きする。読み取り後書き込みの
	// 競合を避けるため、ここは必ず1文で実行する。
	Upsert(ctx context.Context, userID, cardID string, confidence int, mastery model.Mastery, lastSeenAt, nextReviewAt time.Time) (*model.CardProgress, error)

	// ListByUserAndClass はクラス配下の公開カードに対するユーザーの進捗を返す。
	ListByUserAndClass(ctx context.Context, userID, classID string) ([]*model.CardProgress, error)

	// SummaryByUserAndClass はクラス配下のカードに対する習熟状態別の件数を返す。
	SummaryByUserAndClass(ctx context.Context, userID, classID string) (map[model.Mastery]int, error)
}

// StudySessionRepository は学習セッションの永続化インターフェース。
type StudySessionRepository interface {
	// Create は学習セッションを作成する。
	Create(ctx context.Context, session *model.StudySession) error

	// FindByID は指定IDの学習セッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.StudySession, error)

	// AddCard はセッションにカード学習記録を追加する。
	AddCard(ctx context.Context, card *model.SessionCard) error

	// ListCards はセッションのカード学習記録をcreated_at昇順で返す。
	ListCards(ctx context.Context, sessionID string) ([]*model.SessionCard, error)

	// End はセッションを終了状態にする。すでに終了済みの場合は変更しない
	// （rowsAffected=0となりok=falseを返す）。
	End(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds, cardsStudied int, avgConfidence float64) (bool, error)

	// ListStaleOpen は指定時刻より前に開始され、まだ終了していない
	// セッションを返す。クリーンアップワーカーが使用する。
	ListStaleOpen(ctx context.Context, startedBefore time.Time) ([]*model.StudySession, error)
}

// UserStatsRepository はユーザー統計の永続化インターフェース。
type UserStatsRepository interface {
	// FindByUserID はユーザーの統計を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserStats, error)

	// Upsert は統計を冪等にUPSERTする。
	Upsert(ctx context.Context, stats *model.UserStats) error
}

// BookmarkRepository はブックマークの永続化インターフェース。
type BookmarkRepository interface {
	// ListByUserID はユーザーのブックマークをcreated_at降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Bookmark, error)

	// Upsert はブックマークを冪等に作成する。既存の場合は何もしない。
	Upsert(ctx context.Context, bookmark *model.Bookmark) error

	// Delete はユーザーIDとカードIDでブックマークを削除する。
	// 削除対象が存在した場合はtrueを返す。
	Delete(ctx context.Context, userID, cardID string) (bool, error)
}
