// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, content, study, billing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeClassNotFound     = "CLASS_NOT_FOUND"
	ErrCodeDeckNotFound      = "DECK_NOT_FOUND"
	ErrCodeCardNotFound      = "CARD_NOT_FOUND"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeSessionEnded      = "SESSION_ENDED"
	ErrCodeInvalidConfidence = "INVALID_CONFIDENCE"
	ErrCodeInvalidStudyMode  = "INVALID_STUDY_MODE"
	ErrCodePremiumRequired   = "PREMIUM_REQUIRED"
	ErrCodeBookmarkNotFound  = "BOOKMARK_NOT_FOUND"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeCSRFTokenInvalid  = "CSRF_TOKEN_INVALID"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエスト形式の不備エラーを生成する。
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewClassNotFoundError はクラス未検出エラーを生成する。
func NewClassNotFoundError(classID string) *APIError {
	return &APIError{
		Code:     ErrCodeClassNotFound,
		Message:  fmt.Sprintf("指定されたクラスが見つかりません: %s", classID),
		Category: "content",
		Action:   "クラスIDを確認してください。",
	}
}

// NewDeckNotFoundError はデッキ未検出エラーを生成する。
func NewDeckNotFoundError(deckID string) *APIError {
	return &APIError{
		Code:     ErrCodeDeckNotFound,
		Message:  fmt.Sprintf("指定されたデッキが見つかりません: %s", deckID),
		Category: "content",
		Action:   "デッキIDを確認してください。",
	}
}

// NewCardNotFoundError はフラッシュカード未検出エラーを生成する。
func NewCardNotFoundError(cardID string) *APIError {
	return &APIError{
		Code:     ErrCodeCardNotFound,
		Message:  fmt.Sprintf("指定されたカードが見つかりません: %s", cardID),
		Category: "content",
		Action:   "カードIDを確認してください。",
	}
}

// NewSessionNotFoundError は学習セッション未検出エラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定された学習セッションが見つかりません: %s", sessionID),
		Category: "study",
		Action:   "セッションIDを確認してください。",
	}
}

// NewSessionEndedError は終了済みセッションへの操作エラーを生成する。
func NewSessionEndedError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionEnded,
		Message:  "学習セッションはすでに終了しています。",
		Category: "study",
		Action:   "新しいセッションを開始してください。",
	}
}

// NewInvalidConfidenceError は確信度の範囲外エラーを生成する。
func NewInvalidConfidenceError(confidence int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidConfidence,
		Message:  fmt.Sprintf("無効な確信度です: %d", confidence),
		Category: "validation",
		Action:   "確信度は1から5の整数で指定してください。",
	}
}

// NewInvalidStudyModeError は無効な学習モードエラーを生成する。
func NewInvalidStudyModeError(mode string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStudyMode,
		Message:  fmt.Sprintf("無効な学習モードです: %s", mode),
		Category: "validation",
		Action:   "モードには progressive、random、all のいずれかを指定してください。",
	}
}

// NewPremiumRequiredError はプレミアム限定コンテンツへのアクセス拒否エラーを生成する。
func NewPremiumRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodePremiumRequired,
		Message:  "このデッキはプレミアムプラン限定です。",
		Category: "billing",
		Action:   "プランをアップグレードしてください。",
	}
}

// NewBookmarkNotFoundError はブックマーク未検出エラーを生成する。
func NewBookmarkNotFoundError(cardID string) *APIError {
	return &APIError{
		Code:     ErrCodeBookmarkNotFound,
		Message:  fmt.Sprintf("指定されたカードのブックマークが見つかりません: %s", cardID),
		Category: "content",
		Action:   "ブックマーク一覧を確認してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFTokenInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
