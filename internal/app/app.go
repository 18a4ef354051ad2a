package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/subman/internal/cache"
	"github.com/hitoshi/subman/internal/config"
	"github.com/hitoshi/subman/internal/currency"
	"github.com/hitoshi/subman/internal/database"
	"github.com/hitoshi/subman/internal/enrich"
	"github.com/hitoshi/subman/internal/handler"
	"github.com/hitoshi/subman/internal/logger"
	"github.com/hitoshi/subman/internal/metrics"
	"github.com/hitoshi/subman/internal/middleware"
	"github.com/hitoshi/subman/internal/report"
	"github.com/hitoshi/subman/internal/repository"
	"github.com/hitoshi/subman/internal/security"
	"github.com/hitoshi/subman/internal/subscription"
	"github.com/hitoshi/subman/internal/transfer"
	"github.com/hitoshi/subman/internal/workspace"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。wはログの出力先で、reportの表はstdoutに出力する。
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
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandReport:
		return runReport(context.Background(), cfg, os.Stdout, args[1:])
	default:
		return runServe(cfg)
	}
}

// stores はバックエンドに応じて開いたストア群。
type stores struct {
	subscriptions repository.SubscriptionStore
	workspaces    repository.WorkspaceRepository
	pinger        repository.Pinger
	close         func() error
}

// openStores はSTORE_BACKENDに応じてPostgreSQLまたはメモリのストアを開く。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreBackend == config.BackendMemory {
		mem, err := repository.NewMemoryStore(cfg.DataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open memory store: %w", err)
		}
		slog.Info("memory store opened", slog.String("data_file", cfg.DataFile))
		return &stores{
			subscriptions: mem,
			workspaces:    mem,
			pinger:        mem,
			close:         func() error { return nil },
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	return &stores{
		subscriptions: repository.NewPostgresSubscriptionStore(db),
		workspaces:    repository.NewPostgresWorkspaceRepo(db),
		pinger:        db,
		close:         db.Close,
	}, nil
}

// loadNormalizer はRATES_FILEがあればそのレート表を、無ければ組み込みのレート表を使う。
func loadNormalizer(cfg *config.Config) (*currency.Normalizer, error) {
	if cfg.RatesFile == "" {
		return currency.NewDefaultNormalizer(), nil
	}
	n, err := currency.LoadRates(cfg.RatesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load rates: %w", err)
	}
	slog.Info("currency rates loaded",
		slog.String("rates_file", cfg.RatesFile),
		slog.String("reference", n.Reference()),
	)
	return n, nil
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストア
	st, err := openStores(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.close()

	normalizer, err := loadNormalizer(cfg)
	if err != nil {
		return err
	}

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. キャッシュ（CACHE_TTL=0で無効）
	subStore := st.subscriptions
	if cfg.CacheTTL > 0 {
		subStore = cache.Wrap(subStore, cfg.CacheTTL, collector)
	}

	// 4. セキュリティ・補完
	sanitizer := security.NewTextSanitizer()
	opts := subscription.Options{
		Sanitizer: sanitizer,
		Metrics:   collector,
		OnRefresh: func(ctx context.Context, result subscription.RolloverResult) {
			slog.InfoContext(ctx, "subscriptions rolled over",
				slog.Int("updated", result.Updated),
				slog.Int("failed", result.Failed),
			)
		},
	}
	if cfg.EnrichIcons {
		fetcher := enrich.NewIconFetcher(security.NewURLGuard(), cfg.IconFetchTimeout, cfg.IconMaxSize)
		opts.Enricher = enrich.NewEnricher(fetcher, collector)
	}

	// 5. ドメインサービスとハンドラーアダプタ
	workspaceService := workspace.NewService(st.workspaces, subStore, cfg.BaseURL)
	importer := transfer.NewImporter(sanitizer, collector)

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitImport),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,

		HealthChecker:  st.pinger,
		MetricsHandler: metrics.Handler(registry),

		SubscriptionService: handler.NewSubscriptionServiceAdapter(subStore, workspaceService, normalizer, opts),
		TransferService:     handler.NewTransferServiceAdapter(subStore, importer, normalizer, opts, time.Local),
		ImportMaxBytes:      cfg.ImportMaxBytes,

		WorkspaceService: workspaceService,
		ShareService:     handler.NewShareServiceAdapter(workspaceService, normalizer, time.Now),
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("migrate requires STORE_BACKEND=%s", config.BackendPostgres)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runReport は指定ワークスペースのサブスクリプションを表形式でoutに出力する。
// args[0]はワークスペースID、args[1]は任意の並び順。省略時は保存された並び順を使う。
func runReport(ctx context.Context, cfg *config.Config, out io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: subman report <workspace-id> [sort]")
	}
	parsed, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid workspace id %q: %w", args[0], err)
	}
	workspaceID := parsed.String()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	normalizer, err := loadNormalizer(cfg)
	if err != nil {
		return err
	}

	workspaceService := workspace.NewService(st.workspaces, st.subscriptions, cfg.BaseURL)
	opt, err := workspaceService.SortPreference(ctx, workspaceID)
	if err != nil {
		return err
	}
	if len(args) > 1 {
		if opt, err = subscription.ParseSortOption(args[1]); err != nil {
			return err
		}
	}

	svc := subscription.NewService(repository.ForWorkspace(st.subscriptions, workspaceID), normalizer, subscription.Options{})
	subs, err := svc.List(ctx, nil, opt)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}

	report.Render(out, subs, normalizer, svc.Now())
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

var _ repository.Pinger = (*sql.DB)(nil)
