package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/billing"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/middleware"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/model"
)

// BillingServiceInterface はサブスクリプションハンドラーが必要とするサービスインターフェース。
type BillingServiceInterface interface {
	// GetSubscription はユーザーのサブスクリプション表示情報を返す。
	GetSubscription(ctx context.Context, userID string) (*billing.SubscriptionInfo, error)
}

// SubscriptionHandler はサブスクリプション参照のHTTPハンドラー。
type SubscriptionHandler struct {
	service BillingServiceInterface
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(service BillingServiceInterface) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// subscriptionResponse はサブスクリプション情報のAPIレスポンス。
type subscriptionResponse struct {
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	Entitled         bool       `json:"entitled"`
}

// GetMySubscription は現在のユーザーのサブスクリプション情報を返す。
// GET /api/subscriptions/me
func (h *SubscriptionHandler) GetMySubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	info, err := h.service.GetSubscription(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(subscriptionResponse{
		Plan:             string(info.Plan),
		Status:           string(info.Status),
		CurrentPeriodEnd: info.CurrentPeriodEnd,
		Entitled:         info.Entitled,
	})
}
