package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/subman/internal/metrics"
	"github.com/hitoshi/subman/internal/middleware"
	"github.com/hitoshi/subman/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector

	// 運用エンドポイント
	HealthChecker  repository.Pinger
	MetricsHandler http.Handler

	// サブスクリプション
	SubscriptionService SubscriptionServiceInterface

	// エクスポート・インポート
	TransferService TransferServiceInterface
	ImportMaxBytes  int64

	// ワークスペース・共有
	WorkspaceService WorkspaceServiceInterface
	ShareService     ShareServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Metrics → Logging → SecurityHeaders → CORS
//	  /api/workspaces/{workspaceID}/*: Workspace → RateLimit(General)
//	  /api/workspaces/{workspaceID}/import: さらにRateLimit(Import)
//
// ワークスペースIDを持たないルートはクライアントIP単位でレート制限する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(metrics.HTTPMiddleware(collector))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	subHandler := NewSubscriptionHandler(deps.SubscriptionService)
	transferHandler := NewTransferHandler(deps.TransferService, deps.ImportMaxBytes)
	wsHandler := NewWorkspaceHandler(deps.WorkspaceService, deps.ShareService)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// ワークスペース作成と共有リンク閲覧はIP単位で制限する
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Post("/workspaces", wsHandler.CreateWorkspace)

			r.Route("/share/{token}", func(r chi.Router) {
				r.Get("/", wsHandler.GetShared)
				r.Get("/stats", wsHandler.GetSharedStats)
			})
		})

		r.Route("/workspaces/{"+middleware.WorkspaceIDParam+"}", func(r chi.Router) {
			r.Use(middleware.NewWorkspaceMiddleware())
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/", wsHandler.GetWorkspace)
			r.Patch("/", wsHandler.UpdateWorkspace)
			r.Post("/share", wsHandler.ShareWorkspace)

			r.Route("/subscriptions", func(r chi.Router) {
				r.Get("/", subHandler.ListSubscriptions)
				r.Post("/", subHandler.CreateSubscription)

				r.Route("/{id}", func(r chi.Router) {
					r.Patch("/", subHandler.UpdateSubscription)
					r.Delete("/", subHandler.DeleteSubscription)
				})
			})

			r.Get("/stats", subHandler.GetStats)
			r.Get("/labels", subHandler.ListLabels)
			r.Get("/calendar", subHandler.GetCalendar)

			r.Get("/export.json", transferHandler.ExportJSON)
			r.Get("/export.xlsx", transferHandler.ExportTable)

			// POST /import - インポート（インポート専用レート制限を追加）
			r.With(deps.RateLimiter.ImportMiddleware()).Post("/import", transferHandler.Import)
		})
	})

	return r
}
