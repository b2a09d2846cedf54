package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/auth"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/billing"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/cache"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/config"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/content"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/database"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/handler"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/logger"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/metrics"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/middleware"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/progress"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/repository"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/security"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/study"
	"github.com/cybermate-sg/cybermatecissp-sub003/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	classRepo := repository.NewPostgresClassRepo(db)
	deckRepo := repository.NewPostgresDeckRepo(db)
	cardRepo := repository.NewPostgresFlashcardRepo(db)
	quizRepo := repository.NewPostgresQuizQuestionRepo(db)
	bookmarkRepo := repository.NewPostgresBookmarkRepo(db)
	progressRepo := repository.NewPostgresCardProgressRepo(db)
	studySessionRepo := repository.NewPostgresStudySessionRepo(db)
	statsRepo := repository.NewPostgresUserStatsRepo(db)
	subRepo := repository.NewPostgresPlanSubscriptionRepo(db)

	// 3. 共有インフラの初期化
	sanitizer := security.NewCardSanitizer()

	store := cache.NewMemoryStore(cfg.CacheTTL, cfg.CacheCleanupInterval)
	defer store.Stop()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	authService := auth.NewService(
		userRepo, identRepo, sessionRepo, subRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	billingService := billing.NewService(subRepo)

	contentService := content.NewService(
		classRepo, deckRepo, cardRepo, quizRepo, bookmarkRepo,
		billingService, sanitizer, store, collector,
		content.ServiceConfig{CacheTTL: cfg.CacheTTL},
	)

	studyService := study.NewService(
		classRepo, deckRepo, cardRepo, progressRepo,
		billingService, sanitizer, collector,
		study.ServiceConfig{QueueLimit: cfg.StudyQueueLimit},
	)

	progressService := progress.NewService(
		progressRepo, studySessionRepo, statsRepo, cardRepo, classRepo,
		store, collector,
	)

	// 5. レートリミッターの構築
	// configのレート値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitStudy > 0 {
		rateLimiterCfg.StudyRate = rate.Limit(float64(cfg.RateLimitStudy) / 60.0)
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Collector:         collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:   cfg.CookieDomain,
			CookieSecure:   cfg.CookieSecure,
			SessionMaxAge:  cfg.SessionMaxAge,
			ExchangeSecret: cfg.AuthExchangeSecret,
		},

		ContentService:  contentService,
		StudyService:    studyService,
		ProgressService: progressService,
		BillingService:  billingService,

		DB:       db,
		Gatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、クリーンアップジョブを日次で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	classRepo := repository.NewPostgresClassRepo(db)
	cardRepo := repository.NewPostgresFlashcardRepo(db)
	progressRepo := repository.NewPostgresCardProgressRepo(db)
	studySessionRepo := repository.NewPostgresStudySessionRepo(db)
	statsRepo := repository.NewPostgresUserStatsRepo(db)

	// 3. 放置セッションの自動終了に使う進捗サービス
	store := cache.NewMemoryStore(cfg.CacheTTL, cfg.CacheCleanupInterval)
	defer store.Stop()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	progressService := progress.NewService(
		progressRepo, studySessionRepo, statsRepo, cardRepo, classRepo,
		store, collector,
	)

	// 4. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, progressService, slog.Default())
	if cfg.StaleSessionMaxAge > 0 {
		cleanupJob.StaleSessionAge = cfg.StaleSessionMaxAge
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("stale_session_max_age", cleanupJob.StaleSessionAge),
	)

	// クリーンアップジョブを日次で実行（起動直後に1回実行）
	if err := cleanupJob.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped gracefully")
			return nil
		case <-ticker.C:
			if err := cleanupJob.Run(ctx); err != nil {
				slog.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
