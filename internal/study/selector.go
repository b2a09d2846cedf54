package study

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
)

// ParseMode は文字列から学習モードを解析する。
// 空文字列はprogressiveとして扱う。不明な値はエラーを返す。
func ParseMode(s string) (model.StudyMode, error) {
	switch s {
	case "", string(model.StudyModeProgressive):
		return model.StudyModeProgressive, nil
	case string(model.StudyModeRandom):
		return model.StudyModeRandom, nil
	case string(model.StudyModeAll):
		return model.StudyModeAll, nil
	default:
		return "", model.NewInvalidStudyModeError(s)
	}
}

// SelectCards はユーザーの進捗に基づいて学習対象カードを選択・整列する。
//
//   - progressive: 進捗なし、confidence<4、または復習期限切れのカードのみを対象とし、
//     未学習→confidence昇順→last_seen_at昇順で整列する。
//     対象が空の場合は全カードにフォールバックする（全習熟、再スタート扱い）。
//   - random: 全カードを暗号論的乱数によるFisher-Yatesシャッフルで返す。
//   - all: 全カードを収録順のまま返す。
//
// cardsが空の場合はモードによらず空スライスを返す。エラーにはしない。
func SelectCards(cards []model.Flashcard, progress map[string]*model.CardProgress, mode model.StudyMode, now time.Time) ([]model.Flashcard, error) {
	if len(cards) == 0 {
		return []model.Flashcard{}, nil
	}

	switch mode {
	case model.StudyModeProgressive:
		return selectProgressive(cards, progress, now), nil
	case model.StudyModeRandom:
		return shuffle(cards)
	case model.StudyModeAll:
		result := make([]model.Flashcard, len(cards))
		copy(result, cards)
		return result, nil
	default:
		return nil, model.NewInvalidStudyModeError(string(mode))
	}
}

// selectProgressive はprogressiveモードのフィルタリングとソートを行う。
func selectProgressive(cards []model.Flashcard, progress map[string]*model.CardProgress, now time.Time) []model.Flashcard {
	due := make([]model.Flashcard, 0, len(cards))
	for _, card := range cards {
		p := progress[card.ID]
		if p == nil || p.Confidence < masteredThreshold || !p.NextReviewAt.After(now) {
			due = append(due, card)
		}
	}

	// 対象が空の場合は全カードにフォールバック（全習熟、再スタート扱い）
	if len(due) == 0 {
		due = make([]model.Flashcard, len(cards))
		copy(due, cards)
	}

	sort.SliceStable(due, func(i, j int) bool {
		pi, pj := progress[due[i].ID], progress[due[j].ID]

		// 第1優先: 未学習カード
		if pi == nil && pj != nil {
			return true
		}
		if pi != nil && pj == nil {
			return false
		}
		if pi == nil && pj == nil {
			return due[i].Position < due[j].Position
		}

		// 第2優先: confidence昇順（苦手なカードを先に）
		if pi.Confidence != pj.Confidence {
			return pi.Confidence < pj.Confidence
		}

		// 第3優先: last_seen_at昇順（最も長く見ていないカードを先に）
		if !pi.LastSeenAt.Equal(pj.LastSeenAt) {
			return pi.LastSeenAt.Before(pj.LastSeenAt)
		}

		return due[i].Position < due[j].Position
	})

	return due
}

// shuffle はcrypto/randを乱数源とするFisher-Yatesシャッフルで並び替えたコピーを返す。
func shuffle(cards []model.Flashcard) ([]model.Flashcard, error) {
	result := make([]model.Flashcard, len(cards))
	copy(result, cards)

	for i := len(result) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, fmt.Errorf("failed to generate random index: %w", err)
		}
		j := int(n.Int64())
		result[i], result[j] = result[j], result[i]
	}

	return result, nil
}
