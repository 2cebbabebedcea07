package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/chatman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// コンタクト
	ContactService ContactServiceInterface

	// 会話
	ConversationService ConversationServiceInterface

	// スナップショット（ヘルスチェック・ストリーム配信で使用）
	Snapshots SnapshotSubscriber

	// Prometheusスクレイプハンドラー（nilの場合は/metricsを公開しない）
	Metrics http.Handler

	// ストリーム購読者数の計測（nil可）
	StreamMetrics StreamRecorder
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (認証ルート以降) Session → CSRF → RateLimit(General)
//
// 認証ルート（/auth/*）・/health・/api/csrf-tokenはセッション必須チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(nil))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	contactHandler := NewContactHandler(deps.ContactService)
	convHandler := NewConversationHandler(deps.ConversationService)
	streamHandler := NewStreamHandler(deps.Snapshots, deps.CORSAllowedOrigin, deps.StreamMetrics)

	// --- セッション不要のルート ---

	r.Get("/health", newHealthHandler(deps.Snapshots))
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// 認証ルート（register/loginはまだセッションを持たないため
	// CSRF検証の対象外。logout/meはCookie付きだが状態を持たない
	// meと、冪等なlogoutのみのため同じグループに置く）
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- セッションが必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// コンタクト管理
		r.Route("/api/contacts", func(r chi.Router) {
			r.Get("/", contactHandler.ListContacts)

			r.Route("/{id}", func(r chi.Router) {
				// POST /api/contacts/{id}/request - 申請送信（送信専用レート制限を追加)
				r.With(deps.RateLimiter.RequestSendMiddleware()).Post("/request", contactHandler.SendRequest)

				r.Post("/accept", contactHandler.AcceptRequest)
				r.Post("/decline", contactHandler.DeclineRequest)
				r.Delete("/request", contactHandler.CancelRequest)
			})
		})

		// 会話
		r.Route("/api/conversations/{id}", func(r chi.Router) {
			r.Get("/", convHandler.GetConversation)
			r.Post("/messages", convHandler.SendMessage)
		})

		// スナップショット更新ストリーム
		r.Get("/api/stream", streamHandler.Stream)
	})

	return r
}

// healthResponse は/healthのレスポンスボディ。
type healthResponse struct {
	Status        string `json:"status"`
	SnapshotReady bool   `json:"snapshotReady"`
}

// newHealthHandler はヘルスチェックハンドラーを返す。
// プロセスが応答可能であれば200を返し、スナップショットの
// 取得済みフラグをreadiness情報として併記する。
func newHealthHandler(snapshots SnapshotSubscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready := false
		if snapshots != nil {
			_, ready = snapshots.Current()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(healthResponse{Status: "ok", SnapshotReady: ready})
	}
}
