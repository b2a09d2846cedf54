// Package study は学習モード別のカード選択と習熟度判定のドメインロジックを提供する。
package study

import (
	"time"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
)

// 確信度の有効範囲。
const (
	MinConfidence = 1
	MaxConfidence = 5
)

// masteredThreshold 以上の確信度でmastered、learningThreshold以上でlearningとなる。
const (
	masteredThreshold = 4
	learningThreshold = 3
)

// IsValidConfidence は確信度が有効範囲内かを返す。
func IsValidConfidence(confidence int) bool {
	return confidence >= MinConfidence && confidence <= MaxConfidence
}

// MasteryForConfidence は確信度から習熟状態を決定的に導出する。
// confidence≥4はmastered、≥3はlearning、それ以外はnew。
func MasteryForConfidence(confidence int) model.Mastery {
	switch {
	case confidence >= masteredThreshold:
		return model.MasteryMastered
	case confidence >= learningThreshold:
		return model.MasteryLearning
	default:
		return model.MasteryNew
	}
}

// ReviewOffsetForConfidence は確信度に応じた次回復習までのオフセットを返す。
// 5→7日、4→3日、3→1日、それ以外→12時間。
func ReviewOffsetForConfidence(confidence int) time.Duration {
	switch confidence {
	case 5:
		return 7 * 24 * time.Hour
	case 4:
		return 3 * 24 * time.Hour
	case 3:
		return 24 * time.Hour
	default:
		return 12 * time.Hour
	}
}

// NextReviewAt は確信度と現在時刻から次回復習日時を算出する。
func NextReviewAt(confidence int, now time.Time) time.Time {
	return now.Add(ReviewOffsetForConfidence(confidence))
}
