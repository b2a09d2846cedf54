// Package auth はセッション管理とユーザープロビジョニングを提供する。
//
// OAuthのリダイレクトフロー自体はBFF側で完結し、本サービスは検証済みの
// IDアサーションを受け取ってユーザー作成とセッション発行のみを担う。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/repository"
)

// IdentityAssertion はBFFで検証済みの外部IdPユーザー情報を表す。
type IdentityAssertion struct {
	Provider       string // "google", "apple" 等
	ProviderUserID string
	Email          string
	Name           string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	subRepo     repository.PlanSubscriptionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	subRepo repository.PlanSubscriptionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		subRepo:     subRepo,
		config:      config,
	}
}

// ExchangeIdentity は検証済みIDアサーションからセッションを発行する。
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを同時に自動作成し、
// 無料プランのサブスクリプション行を初期化する。
// 登録済みユーザーの場合はidentitiesテーブルで既存ユーザーを特定しログインする。
func (s *Service) ExchangeIdentity(ctx context.Context, assertion IdentityAssertion) (*model.Session, error) {
	if assertion.Provider == "" || assertion.ProviderUserID == "" {
		return nil, model.NewInvalidRequestError("providerとprovider_user_idは必須です")
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, assertion.Provider, assertion.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var userID string

	if identity != nil {
		userID = identity.UserID
		slog.Info("existing user logged in",
			slog.String("user_id", userID),
			slog.String("provider", assertion.Provider),
		)
	} else {
		newUserID := uuid.New().String()
		now := time.Now()

		newUser := &model.User{
			ID:        newUserID,
			Email:     assertion.Email,
			Name:      assertion.Name,
			Role:      model.RoleUser,
			CreatedAt: now,
			UpdatedAt: now,
		}

		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         newUserID,
			Provider:       assertion.Provider,
			ProviderUserID: assertion.ProviderUserID,
			CreatedAt:      now,
		}

		if err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
			return nil, fmt.Errorf("failed to create user and identity: %w", err)
		}

		// 無料プランの初期行。決済プロバイダの状態同期がこの行を上書きする。
		freeSub := &model.PlanSubscription{
			ID:        uuid.New().String(),
			UserID:    newUserID,
			Plan:      model.PlanFree,
			Status:    model.SubscriptionStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.subRepo.Upsert(ctx, freeSub); err != nil {
			return nil, fmt.Errorf("failed to initialize subscription: %w", err)
		}

		userID = newUserID
		slog.Info("new user created",
			slog.String("user_id", userID),
			slog.String("email", assertion.Email),
			slog.String("provider", assertion.Provider),
		)
	}

	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser は指定IDのユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	return user, nil
}

// DeleteAccount はユーザーと関連データを削除する。
// 進捗・学習セッション・ブックマークはDB側のCASCADEで削除される。
// 先に全セッションを破棄し、以降のリクエストを無効化する。
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user account deleted", slog.String("user_id", userID))
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
