package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/metrics"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/middleware"
)

// DBPinger はヘルスチェックに必要なDB疎通確認のインターフェース。
// *sql.DB を受け付けることができる。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Collector         metrics.MetricsCollector

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// コンテンツ
	ContentService ContentServiceInterface

	// 学習キュー
	StudyService StudyServiceInterface

	// 進捗・セッション・統計
	ProgressService ProgressServiceInterface

	// サブスクリプション
	BillingService BillingServiceInterface

	// ヘルスチェック・メトリクス公開
	DB       DBPinger
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → Metrics → Session → CSRF → RateLimit(General)
//
// 公開ルート（/health /metrics /auth/*）はセッションミドルウェアの外に配置する。
// /auth/* はBFFがX-Exchange-Secretでサーバー間認証するため、CSRF検証の対象外。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェアを最上位に適用
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewMetricsMiddleware(deps.Collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	contentHandler := NewContentHandler(deps.ContentService)
	studyHandler := NewStudyHandler(deps.StudyService)
	progressHandler := NewProgressHandler(deps.ProgressService)
	subHandler := NewSubscriptionHandler(deps.BillingService)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.DB))

	if deps.Gatherer != nil {
		r.Get("/metrics", metrics.Handler(deps.Gatherer).ServeHTTP)
	}

	// 認証ルート（BFFからのID交換とログアウト）
	r.Route("/auth", func(r chi.Router) {
		r.Post("/exchange", authHandler.Exchange)
		r.Post("/logout", authHandler.Logout)
	})

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.AuthConfig.CookieSecure,
		CookieDomain: deps.AuthConfig.CookieDomain,
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// CSRFトークン取得
		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig).ServeHTTP)

		// コンテンツ参照
		r.Route("/api/classes", func(r chi.Router) {
			r.Get("/", contentHandler.ListClasses)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", contentHandler.GetClass)

				// GET /api/classes/{id}/study - 学習キュー構築
				r.Get("/study", studyHandler.GetStudyQueue)
			})
		})

		r.Get("/api/decks/{id}/cards", contentHandler.GetDeckCards)

		// 進捗記録（学習記録送信専用レート制限を追加）
		r.Route("/api/progress", func(r chi.Router) {
			r.With(deps.RateLimiter.StudySubmissionMiddleware()).Post("/", progressHandler.RecordProgress)
			r.Get("/classes/{id}", progressHandler.GetClassProgress)
		})

		// 学習セッション
		r.Route("/api/sessions", func(r chi.Router) {
			r.Post("/", progressHandler.StartSession)

			r.Route("/{id}", func(r chi.Router) {
				r.With(deps.RateLimiter.StudySubmissionMiddleware()).Post("/cards", progressHandler.RecordSessionCard)
				r.Post("/end", progressHandler.EndSession)
			})
		})

		// 統計
		r.Get("/api/stats/me", progressHandler.GetStats)

		// ブックマーク
		r.Route("/api/bookmarks", func(r chi.Router) {
			r.Get("/", contentHandler.ListBookmarks)
			r.Put("/{cardID}", contentHandler.AddBookmark)
			r.Delete("/{cardID}", contentHandler.RemoveBookmark)
		})

		// サブスクリプション
		r.Get("/api/subscriptions/me", subHandler.GetMySubscription)

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", authHandler.Me)
			r.Delete("/me", authHandler.DeleteAccount)
		})
	})

	return r
}

// NewHealthHandler はDB疎通確認付きのヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(db DBPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "unhealthy",
				})
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	}
}
