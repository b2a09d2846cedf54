// Package model はドメインモデルを定義する。
package model

import "time"

// Plan はサブスクリプションのプラン種別を表す。
type Plan string

const (
	// PlanFree は無料プラン。
	PlanFree Plan = "free"
	// PlanMonthly は月額プラン。
	PlanMonthly Plan = "monthly"
	// PlanYearly は年額プラン。
	PlanYearly Plan = "yearly"
	// PlanLifetime は買い切りプラン。
	PlanLifetime Plan = "lifetime"
)

// SubscriptionStatus は決済プロバイダから同期されるサブスクリプション状態を表す。
type SubscriptionStatus string

const (
	// SubscriptionStatusActive は有効な状態。
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusTrialing はトライアル中の状態。
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	// SubscriptionStatusPastDue は支払い遅延の状態。
	SubscriptionStatusPastDue SubscriptionStatus = "past_due"
	// SubscriptionStatusCanceled は解約済みの状態。
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// PlanSubscription はユーザーのサブスクリプション状態を表す。
// 決済プロバイダのWebhookにより作成・更新された結果を永続化したもの。
// user_idにUNIQUE制約があり1ユーザー1行。
type PlanSubscription struct {
	ID                     string
	UserID                 string
	Plan                   Plan
	Status                 SubscriptionStatus
	ProviderCustomerID     string
	ProviderSubscriptionID string
	CurrentPeriodEnd       *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// IsEntitled はプレミアムコンテンツへのアクセス権があるかを返す。
// active/trialingのみ有効。lifetimeプランは状態がactiveである限り無期限。
func (s *PlanSubscription) IsEntitled(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.Plan == PlanFree {
		return false
	}
	if s.Status != SubscriptionStatusActive && s.Status != SubscriptionStatusTrialing {
		return false
	}
	if s.Plan == PlanLifetime {
		return true
	}
	if s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.Before(now) {
		return false
	}
	return true
}
