package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
)

// PostgresClassRepo はPostgreSQLを使用したクラスリポジトリ。
type PostgresClassRepo struct {
	db *sql.DB
}

// NewPostgresClassRepo はPostgresClassRepoを生成する。
func NewPostgresClassRepo(db *sql.DB) *PostgresClassRepo {
	return &PostgresClassRepo{db: db}
}

// ListPublished は公開済みクラスをposition昇順で返す。
func (r *PostgresClassRepo) ListPublished(ctx context.Context) ([]*model.Class, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, position, is_published, created_at, updated_at
		 FROM classes WHERE is_published = true ORDER BY position, created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("クラス一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var classes []*model.Class
	for rows.Next() {
		c := &model.Class{}
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Position, &c.IsPublished, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("クラス行の読み取りに失敗しました: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("クラス一覧の走査に失敗しました: %w", err)
	}

	return classes, nil
}

// FindPublishedByID は指定IDの公開済みクラスを取得する。見つからない場合はnilを返す。
func (r *PostgresClassRepo) FindPublishedByID(ctx context.Context, id string) (*model.Class, error) {
	c := &model.Class{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, position, is_published, created_at, updated_at
		 FROM classes WHERE id = $1 AND is_published = true`,
		id,
	).Scan(&c.ID, &c.Title, &c.Description, &c.Position, &c.IsPublished, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("クラスの取得に失敗しました: %w", err)
	}

	return c, nil
}

// compile-time interface check
var _ ClassRepository = (*PostgresClassRepo)(nil)

// PostgresDeckRepo はPostgreSQLを使用したデッキリポジトリ。
type PostgresDeckRepo struct {
	db *sql.DB
}

// NewPostgresDeckRepo はPostgresDeckRepoを生成する。
func NewPostgresDeckRepo(db *sql.DB) *PostgresDeckRepo {
	return &PostgresDeckRepo{db: db}
}

// FindPublishedByID は指定IDの公開済みデッキを取得する。見つからない場合はnilを返す。
func (r *PostgresDeckRepo) FindPublishedByID(ctx context.Context, id string) (*model.Deck, error) {
	d := &model.Deck{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, class_id, title, description, position, is_published, is_premium, created_at, updated_at
		 FROM decks WHERE id = $1 AND is_published = true`,
		id,
	).Scan(&d.ID, &d.ClassID, &d.Title, &d.Description, &d.Position, &d.IsPublished, &d.IsPremium, &d.CreatedAt, &d.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("デッキの取得に失敗しました: %w", err)
	}

	return d, nil
}

// ListPublishedByClassID はクラス配下の公開済みデッキをposition昇順で返す。
func (r *PostgresDeckRepo) ListPublishedByClassID(ctx context.Context, classID string) ([]*model.Deck, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, class_id, title, description, position, is_published, is_premium, created_at, updated_at
		 FROM decks WHERE class_id = $1 AND is_published = true ORDER BY position, created_at`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("デッキ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var decks []*model.Deck
	for rows.Next() {
		d := &model.Deck{}
		if err := rows.Scan(&d.ID, &d.ClassID, &d.Title, &d.Description, &d.Position, &d.IsPublished, &d.IsPremium, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("デッキ行の読み取りに失敗しました: %w", err)
		}
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("デッキ一覧の走査に失敗しました: %w", err)
	}

	return decks, nil
}

// compile-time interface check
var _ DeckRepository = (*PostgresDeckRepo)(nil)

// PostgresFlashcardRepo はPostgreSQLを使用したフラッシュカードリポジトリ。
type PostgresFlashcardRepo struct {
	db *sql.DB
}

// NewPostgresFlashcardRepo はPostgresFlashcardRepoを生成する。
func NewPostgresFlashcardRepo(db *sql.DB) *PostgresFlashcardRepo {
	return &PostgresFlashcardRepo{db: db}
}

const flashcardColumns = `id, deck_id, front_html, back_html, explanation_html, position, is_published, created_at, updated_at`

func scanFlashcard(scanner interface{ Scan(...any) error }) (*model.Flashcard, error) {
	f := &model.Flashcard{}
	err := scanner.Scan(&f.ID, &f.DeckID, &f.FrontHTML, &f.BackHTML, &f.ExplanationHTML, &f.Position, &f.IsPublished, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// FindPublishedByID は指定IDの公開済みカードを取得する。見つからない場合はnilを返す。
func (r *PostgresFlashcardRepo) FindPublishedByID(ctx context.Context, id string) (*model.Flashcard, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+flashcardColumns+` FROM flashcards WHERE id = $1 AND is_published = true`,
		id,
	)

	f, err := scanFlashcard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カードの取得に失敗しました: %w", err)
	}

	return f, nil
}

// ListPublishedByDeckID はデッキ配下の公開済みカードをposition昇順で返す。
func (r *PostgresFlashcardRepo) ListPublishedByDeckID(ctx context.Context, deckID string) ([]*model.Flashcard, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+flashcardColumns+` FROM flashcards
		 WHERE deck_id = $1 AND is_published = true ORDER BY position, created_at`,
		deckID,
	)
	if err != nil {
		return nil, fmt.Errorf("カード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var cards []*model.Flashcard
	for rows.Next() {
		f, err := scanFlashcard(rows)
		if err != nil {
			return nil, fmt.Errorf("カード行の読み取りに失敗しました: %w", err)
		}
		cards = append(cards, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カード一覧の走査に失敗しました: %w", err)
	}

	return cards, nil
}

// ListPublishedByClassID はクラス配下の公開済みデッキに属する公開済みカードを返す。
// includePremiumがfalseの場合、プレミアムデッキのカードは除外される。
func (r *PostgresFlashcardRepo) ListPublishedByClassID(ctx context.Context, classID string, includePremium bool) ([]*model.Flashcard, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT f.id, f.deck_id, f.front_html, f.back_html, f.explanation_html,
		        f.position, f.is_published, f.created_at, f.updated_at
		 FROM flashcards f
		 JOIN decks d ON d.id = f.deck_id
		 WHERE d.class_id = $1
		   AND d.is_published = true
		   AND f.is_published = true
		   AND ($2 OR d.is_premium = false)
		 ORDER BY d.position, f.position, f.created_at`,
		classID, includePremium,
	)
	if err != nil {
		return nil, fmt.Errorf("クラス配下カードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var cards []*model.Flashcard
	for rows.Next() {
		f, err := scanFlashcard(rows)
		if err != nil {
			return nil, fmt.Errorf("カード行の読み取りに失敗しました: %w", err)
		}
		cards = append(cards, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("クラス配下カードの走査に失敗しました: %w", err)
	}

	return cards, nil
}

// compile-time interface check
var _ FlashcardRepository = (*PostgresFlashcardRepo)(nil)

// PostgresQuizQuestionRepo はPostgreSQLを使用した選択式問題リポジトリ。
type PostgresQuizQuestionRepo struct {
	db *sql.DB
}

// NewPostgresQuizQuestionRepo はPostgresQuizQuestionRepoを生成する。
func NewPostgresQuizQuestionRepo(db *sql.DB) *PostgresQuizQuestionRepo {
	return &PostgresQuizQuestionRepo{db: db}
}

// ListByDeckID はデッキ配下の全カードに紐づく問題をカード・position順で返す。
// optionsはJSONB列のため、読み取り時にデコードする。
func (r *PostgresQuizQuestionRepo) ListByDeckID(ctx context.Context, deckID string) ([]*model.QuizQuestion, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT q.id, q.flashcard_id, q.question_html, q.options, q.correct_index, q.explanation_html, q.position
		 FROM quiz_questions q
		 JOIN flashcards f ON f.id = q.flashcard_id
		 WHERE f.deck_id = $1 AND f.is_published = true
		 ORDER BY f.position, q.position`,
		deckID,
	)
	if err != nil {
		return nil, fmt.Errorf("問題一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var questions []*model.QuizQuestion
	for rows.Next() {
		q := &model.QuizQuestion{}
		var optionsJSON []byte
		if err := rows.Scan(&q.ID, &q.FlashcardID, &q.QuestionHTML, &optionsJSON, &q.CorrectIndex, &q.ExplanationHTML, &q.Position); err != nil {
			return nil, fmt.Errorf("問題行の読み取りに失敗しました: %w", err)
		}
		if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
			return nil, fmt.Errorf("選択肢のデコードに失敗しました: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("問題一覧の走査に失敗しました: %w", err)
	}

	return questions, nil
}

// compile-time interface check
var _ QuizQuestionRepository = (*PostgresQuizQuestionRepo)(nil)
