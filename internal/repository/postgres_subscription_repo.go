package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
)

// PostgresPlanSubscriptionRepo はPostgreSQLを使用したサブスクリプションリポジトリ。
type PostgresPlanSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresPlanSubscriptionRepo はPostgresPlanSubscriptionRepoを生成する。
func NewPostgresPlanSubscriptionRepo(db *sql.DB) *PostgresPlanSubscriptionRepo {
	return &PostgresPlanSubscriptionRepo{db: db}
}

// FindByUserID はユーザーのサブスクリプションを取得する。見つからない場合はnilを返す。
func (r *PostgresPlanSubscriptionRepo) FindByUserID(ctx context.Context, userID string) (*model.PlanSubscription, error) {
	sub := &model.PlanSubscription{}
	var periodEnd sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, plan, status, provider_customer_id, provider_subscription_id,
		        current_period_end, created_at, updated_at
		 FROM plan_subscriptions WHERE user_id = $1`,
		userID,
	).Scan(
		&sub.ID, &sub.UserID, &sub.Plan, &sub.Status,
		&sub.ProviderCustomerID, &sub.ProviderSubscriptionID,
		&periodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}

	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}

	return sub, nil
}

// Upsert はサブスクリプション状態を冪等にUPSERTする。
// UNIQUE(user_id)制約を利用したINSERT ON CONFLICTで実装する。
func (r *PostgresPlanSubscriptionRepo) Upsert(ctx context.Context, sub *model.PlanSubscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO plan_subscriptions
		     (id, user_id, plan, status, provider_customer_id, provider_subscription_id,
		      current_period_end, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id) DO UPDATE SET
		     plan = EXCLUDED.plan,
		     status = EXCLUDED.status,
		     provider_customer_id = EXCLUDED.provider_customer_id,
		     provider_subscription_id = EXCLUDED.provider_subscription_id,
		     current_period_end = EXCLUDED.current_period_end,
		     updated_at = EXCLUDED.updated_at`,
		sub.ID, sub.UserID, sub.Plan, sub.Status,
		sub.ProviderCustomerID, sub.ProviderSubscriptionID,
		sub.CurrentPeriodEnd, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("サブスクリプションの更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PlanSubscriptionRepository = (*PostgresPlanSubscriptionRepo)(nil)
