package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/auth"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/middleware"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
)

const (
	sessionCookieName = "session_id"

	// exchangeSecretHeader はBFFからのID交換リクエストを認証するヘッダー名。
	exchangeSecretHeader = "X-Exchange-Secret"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// ExchangeIdentity は検証済みIDアサーションからセッションを発行する。
	ExchangeIdentity(ctx context.Context, assertion auth.IdentityAssertion) (*model.Session, error)
	// Logout はセッションを破棄する。
	Logout(ctx context.Context, sessionID string) error
	// GetCurrentUser は指定IDのユーザーを取得する。
	GetCurrentUser(ctx context.Context, userID string) (*model.User, error)
	// DeleteAccount はユーザーと関連データを削除する。
	DeleteAccount(ctx context.Context, userID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain   string
	CookieSecure   bool
	SessionMaxAge  int    // セッションCookieの有効期間（秒）
	ExchangeSecret string // BFFとの共有シークレット
}

// AuthHandler は認証関連のHTTPハンドラー。
// OAuthのリダイレクトフローはBFF側で完結するため、本ハンドラーは
// 検証済みIDアサーションの交換とセッション管理のみを担う。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// exchangeRequest はID交換リクエストのボディ。
type exchangeRequest struct {
	Provider       string `json:"provider"`
	ProviderUserID string `json:"provider_user_id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Exchange はBFFで検証済みのIDアサーションをセッションに交換する。
// 共有シークレットヘッダーによる呼び出し元認証が必須。
// POST /auth/exchange
func (h *AuthHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get(exchangeSecretHeader)
	if h.config.ExchangeSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(h.config.ExchangeSecret)) != 1 {
		slog.Warn("identity exchange rejected: invalid secret")
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}

	session, err := h.service.ExchangeIdentity(r.Context(), auth.IdentityAssertion{
		Provider:       req.Provider,
		ProviderUserID: req.ProviderUserID,
		Email:          req.Email,
		Name:           req.Name,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"session_id": session.ID,
		"user_id":    session.UserID,
	})
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		// ログアウト失敗してもCookieはクリアする
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /api/users/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(userResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	})
}

// DeleteAccount はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	// 退会後のセッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}
