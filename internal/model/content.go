// Package model はドメインモデルを定義する。
package model

import "time"

// Class はCISSPドメインに対応する学習クラスを表す。
// Class → Deck → Flashcard → QuizQuestion の包含階層の最上位。
type Class struct {
	ID          string
	Title       string
	Description string
	Position    int
	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Deck はクラス配下のフラッシュカードデッキを表す。
// IsPremiumがtrueのデッキは有効なサブスクリプションを持つユーザーのみ閲覧できる。
type Deck struct {
	ID          string
	ClassID     string
	Title       string
	Description string
	Position    int
	IsPublished bool
	IsPremium   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Flashcard はデッキ配下のフラッシュカードを表す。
// FrontHTML/BackHTML/ExplanationHTMLは保存前にサニタイズ済みのHTML。
type Flashcard struct {
	ID              string
	DeckID          string
	FrontHTML       string
	BackHTML        string
	ExplanationHTML string
	Position        int
	IsPublished     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// QuizQuestion はフラッシュカードに紐づく選択式問題を表す。
type QuizQuestion struct {
	ID              string
	FlashcardID     string
	QuestionHTML    string
	Options         []string
	CorrectIndex    int
	ExplanationHTML string
	Position        int
}

// Bookmark はユーザーによるフラッシュカードのブックマークを表す。
// UNIQUE(user_id, flashcard_id)制約により1ユーザー1カード1行。
type Bookmark struct {
	ID          string
	UserID      string
	FlashcardID string
	CreatedAt   time.Time
}
