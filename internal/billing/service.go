// Package billing はサブスクリプション状態の参照と利用資格判定を提供する。
//
// 決済プロバイダとの同期（Webhook処理）は本サービスの範囲外で、
// plan_subscriptionsテーブルに永続化された状態のみを参照する。
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/repository"
)

// SubscriptionInfo はユーザー向けのサブスクリプション表示情報。
type SubscriptionInfo struct {
	Plan             model.Plan
	Status           model.SubscriptionStatus
	CurrentPeriodEnd *time.Time
	Entitled         bool
}

// Service はサブスクリプション参照のサービス層。
type Service struct {
	subRepo repository.PlanSubscriptionRepository
	now     func() time.Time
}

// NewService はServiceを生成する。
func NewService(subRepo repository.PlanSubscriptionRepository) *Service {
	return &Service{
		subRepo: subRepo,
		now:     time.Now,
	}
}

// Entitlement はユーザーがプレミアムコンテンツを利用できるかを返す。
// 行が存在しない・無料プラン・canceled/past_due・期間満了はすべてfalse。
func (s *Service) Entitlement(ctx context.Context, userID string) (bool, error) {
	sub, err := s.subRepo.FindByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}
	return sub.IsEntitled(s.now()), nil
}

// GetSubscription はユーザーのサブスクリプション表示情報を返す。
// 行が存在しない場合は無料プラン相当の情報を返す。
func (s *Service) GetSubscription(ctx context.Context, userID string) (*SubscriptionInfo, error) {
	sub, err := s.subRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}

	if sub == nil {
		return &SubscriptionInfo{
			Plan:   model.PlanFree,
			Status: model.SubscriptionStatusActive,
		}, nil
	}

	return &SubscriptionInfo{
		Plan:             sub.Plan,
		Status:           sub.Status,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
		Entitled:         sub.IsEntitled(s.now()),
	}, nil
}
