// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
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

	"github.com/hitoshi/chatman/internal/auth"
	"github.com/hitoshi/chatman/internal/config"
	"github.com/hitoshi/chatman/internal/contact"
	"github.com/hitoshi/chatman/internal/database"
	"github.com/hitoshi/chatman/internal/handler"
	"github.com/hitoshi/chatman/internal/logger"
	"github.com/hitoshi/chatman/internal/metrics"
	"github.com/hitoshi/chatman/internal/middleware"
	"github.com/hitoshi/chatman/internal/mockstore"
	"github.com/hitoshi/chatman/internal/security"
	"github.com/hitoshi/chatman/internal/store"
	"github.com/hitoshi/chatman/internal/worker/poll"
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
	case CommandMockstore:
		return runMockstore(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// リモートストアのポーリングワーカーと全依存関係をワイヤリングし、
// HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. アウトバウンドガードの初期化とストアURLの検証
	guard := security.NewOutboundGuard(cfg.StoreAllowPrivate)
	if err := guard.ValidateBaseURL(cfg.UsersAPIURL); err != nil {
		return fmt.Errorf("invalid USERS_API_URL: %w", err)
	}
	if err := guard.ValidateBaseURL(cfg.EntriesAPIURL); err != nil {
		return fmt.Errorf("invalid ENTRIES_API_URL: %w", err)
	}

	// 2. メトリクスコレクター
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. ストアクライアントとスナップショット
	storeClient := store.NewClient(
		guard.NewSafeClient(cfg.StoreTimeout),
		slog.Default(),
		cfg.UsersAPIURL, cfg.EntriesAPIURL,
		collector,
	)
	snapshots := store.NewSnapshotHolder()

	// 4. セッションストアとポーリングワーカー
	sessions := auth.NewSessionStore()
	poller := poll.NewPoller(storeClient, snapshots, sessions, slog.Default(), collector)

	// 5. ドメインサービス
	authService := auth.NewService(storeClient, sessions, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	contactService := contact.NewService(
		storeClient, snapshots, poller,
		security.NewMessageSanitizer(),
		slog.Default(), collector,
	)

	// 6. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.RequestRate = rate.Limit(float64(cfg.RateLimitRequest) / 60.0)
	rateLimiterCfg.RequestBurst = cfg.RateLimitRequest

	deps := &handler.RouterDeps{
		SessionFinder:     sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ContactService:      contactService,
		ConversationService: contactService,

		Snapshots:     snapshots,
		StreamMetrics: collector,
		Metrics:       metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 7. ポーリングワーカーの起動
	pollCtx, cancelPoll := context.WithCancel(context.Background())
	defer cancelPoll()

	go poller.Start(pollCtx, cfg.PollInterval)

	// 8. HTTPサーバーの起動
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
			slog.Duration("poll_interval", cfg.PollInterval),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancelPoll()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMockstore はローカルモックストアモードで起動する。
// PostgreSQLバックエンドのUsers/Entriesコレクションを外部ストアと
// 同じワイヤフォーマットで提供する。
func runMockstore(cfg *config.Config) error {
	if err := cfg.RequireDatabaseURL(); err != nil {
		return err
	}

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (mockstore)")

	// 2. リポジトリとサーバーの構築
	server := mockstore.NewServer(
		mockstore.NewPostgresUserRepo(db),
		mockstore.NewPostgresEntryRepo(db),
	)

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("mockstore server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mockstore listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down mockstore server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("mockstore shutdown failed: %w", err)
	}

	slog.Info("mockstore server stopped gracefully")
	return nil
}

// runMigrate はモックストア用データベースのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if err := cfg.RequireDatabaseURL(); err != nil {
		return err
	}

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
