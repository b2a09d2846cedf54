// Package model はドメインモデルを定義する。
package model

import "time"

// Mastery はカードの習熟状態を表す。
// confidenceから決定的に導出される（confidence≥4=mastered、≥3=learning、それ以外=new）。
type Mastery string

const (
	// MasteryNew は未習熟状態。
	MasteryNew Mastery = "new"
	// MasteryLearning は学習中状態。
	MasteryLearning Mastery = "learning"
	// MasteryMastered は習熟済み状態。
	MasteryMastered Mastery = "mastered"
)

// StudyMode は学習カードの選択モードを表す。
type StudyMode string

const (
	// StudyModeProgressive は未習熟・復習期限切れのカードを優先するモード。
	StudyModeProgressive StudyMode = "progressive"
	// StudyModeRandom は全対象カードを暗号論的乱数でシャッフルするモード。
	StudyModeRandom StudyMode = "random"
	// StudyModeAll は全対象カードを収録順で返すモード。
	StudyModeAll StudyMode = "all"
)

// CardProgress はユーザーとフラッシュカードごとの学習進捗を表す。
// UNIQUE(user_id, flashcard_id)制約により1ユーザー1カード1行。
// 初回学習時に作成され、以降の学習ごとにtimes_seenが単調増加する。
type CardProgress struct {
	ID           string
	UserID       string
	FlashcardID  string
	Confidence   int // 1-5
	TimesSeen    int
	Mastery      Mastery
	LastSeenAt   time.Time
	NextReviewAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StudySession はひと続きの学習セッションを表す。
// セッション終了時にduration_seconds、cards_studied、avg_confidenceが確定する。
type StudySession struct {
	ID              string
	UserID          string
	ClassID         string
	Mode            StudyMode
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationSeconds int
	CardsStudied    int
	AvgConfidence   float64
}

// SessionCard はセッション内の1カード分の学習記録を表す。
type SessionCard struct {
	ID          string
	SessionID   string
	FlashcardID string
	Confidence  int
	ResponseMs  int
	CreatedAt   time.Time
}

// UserStats はユーザー単位の学習統計の集計を表す。
// セッション終了時にインクリメンタルに更新される。
type UserStats struct {
	UserID            string
	TotalCardsStudied int
	TotalStudySeconds int
	StreakDays        int
	LastStudyDay      *time.Time // UTC日境界に正規化した日付
	UpdatedAt         time.Time
}
