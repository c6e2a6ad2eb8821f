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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/resultadmin/internal/apiclient"
	"github.com/hitoshi/resultadmin/internal/config"
	"github.com/hitoshi/resultadmin/internal/credential"
	"github.com/hitoshi/resultadmin/internal/database"
	"github.com/hitoshi/resultadmin/internal/handler"
	"github.com/hitoshi/resultadmin/internal/logger"
	"github.com/hitoshi/resultadmin/internal/metrics"
	"github.com/hitoshi/resultadmin/internal/middleware"
	"github.com/hitoshi/resultadmin/internal/repository"
	"github.com/hitoshi/resultadmin/internal/security"
	"github.com/hitoshi/resultadmin/internal/session"
	"github.com/hitoshi/resultadmin/internal/worker/cleanup"
)

const pingTimeout = 5 * time.Second

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
		slog.String("credential_backend", cfg.CredentialBackend),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// credentialBackend は選択された資格情報バックエンドと、その後始末・疎通確認をまとめる。
type credentialBackend struct {
	backend credential.Backend
	check   handler.HealthCheck
	close   func() error
	sweeper cleanup.Sweeper // PostgreSQLのみ
}

// openCredentialBackend はcfg.CredentialBackendに応じてバックエンドを開き、疎通を確認する。
func openCredentialBackend(ctx context.Context, cfg *config.Config) (*credentialBackend, error) {
	switch cfg.CredentialBackend {
	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.Ping(ctx, db, pingTimeout); err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("database connection established")
		repo := repository.NewPostgresCredentialRepo(db)
		return &credentialBackend{
			backend: repo,
			check:   func(ctx context.Context) error { return db.PingContext(ctx) },
			close:   db.Close,
			sweeper: repo,
		}, nil

	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		repo := repository.NewRedisCredentialRepo(rdb, cfg.CredentialTTL)

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := repo.Ping(pingCtx); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established")
		return &credentialBackend{
			backend: repo,
			check:   repo.Ping,
			close:   rdb.Close,
		}, nil

	default:
		slog.Warn("using in-memory credential store; tokens are lost on restart")
		return &credentialBackend{
			backend: credential.NewMemoryBackend(),
			check:   func(context.Context) error { return nil },
			close:   func() error { return nil },
		}, nil
	}
}

// newAPIHTTPClient はバックエンドAPI用のHTTPクライアントを生成する。
// API_STRICT_EGRESS=true の場合はオリジンを検証し、送信制御付きクライアントを使う。
func newAPIHTTPClient(cfg *config.Config) (*http.Client, error) {
	if !cfg.APIStrictEgress {
		return &http.Client{Timeout: cfg.APITimeout}, nil
	}
	guard := security.NewEgressGuard()
	port, err := guard.ValidateOrigin(cfg.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("API_BASE_URL rejected by egress policy: %w", err)
	}
	return guard.NewSafeClient(cfg.APITimeout, port), nil
}

// application はserveモードで組み立てた依存関係を保持する。
type application struct {
	router      http.Handler
	registry    *session.Registry
	rateLimiter *middleware.RateLimiter
	creds       *credentialBackend
	cleanup     *cleanup.CleanupJob // PostgreSQL以外ではnil
}

// Close はバックグラウンドのgoroutineと接続を停止する。
func (a *application) Close() {
	a.registry.Stop()
	a.rateLimiter.Stop()
	if err := a.creds.close(); err != nil {
		slog.Warn("failed to close credential backend", slog.String("error", err.Error()))
	}
}

// newApplication は全依存関係をワイヤリングしてルーターを構築する。
func newApplication(ctx context.Context, cfg *config.Config, reg *prometheus.Registry) (*application, error) {
	// 1. 資格情報バックエンド
	creds, err := openCredentialBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. メトリクス
	collector := metrics.NewCollector(reg)

	// 3. バックエンドAPIクライアント
	httpClient, err := newAPIHTTPClient(cfg)
	if err != nil {
		creds.close()
		return nil, err
	}
	api, err := apiclient.New(cfg.APIBaseURL, httpClient, slog.Default(),
		apiclient.WithMetrics(collector),
		apiclient.WithMaxBodySize(cfg.APIMaxBodySize),
	)
	if err != nil {
		creds.close()
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	// 4. テンプレート
	renderer, err := handler.NewRenderer()
	if err != nil {
		creds.close()
		return nil, err
	}

	// 5. セッションとレート制限
	registry := session.NewRegistry(creds.backend, session.RegistryConfig{
		IdleTTL:         cfg.SessionIdleTTL,
		CleanupInterval: session.DefaultRegistryConfig().CleanupInterval,
	}, collector)
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)

	// 6. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		Handler: handler.NewHandler(api, renderer, handler.Config{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		}),
		Logger:            slog.Default(),
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		BrowsingContext: middleware.BrowsingContextConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.BrowsingContextMaxAge,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Sessions:      registry,
		RateLimiter:   rateLimiter,
		GuardRecorder: collector,
		HealthChecks: map[string]handler.HealthCheck{
			"credential_store": creds.check,
		},
		Metrics: metrics.Handler(reg),
	})

	a := &application{
		router:      router,
		registry:    registry,
		rateLimiter: rateLimiter,
		creds:       creds,
	}
	if creds.sweeper != nil && cfg.CleanupInterval > 0 {
		a.cleanup = newCleanupJob(creds.sweeper, cfg, collector)
	}
	return a, nil
}

// runServe はWebサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApplication(context.Background(), cfg, reg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if a.cleanup != nil {
		go a.cleanup.Start(ctx, cfg.CleanupInterval)
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      a.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.APITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("web server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down web server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// PostgreSQLバックエンドの古い資格情報をCLEANUP_INTERVAL毎に削除する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.CredentialBackend != config.BackendPostgres {
		return fmt.Errorf("worker requires the postgres credential backend (current: %s)", cfg.CredentialBackend)
	}
	if cfg.CleanupInterval <= 0 {
		return fmt.Errorf("worker requires a positive CLEANUP_INTERVAL")
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, pingTimeout); err != nil {
		return err
	}
	slog.Info("database connection established (worker)")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	newCleanupJob(repository.NewPostgresCredentialRepo(db), cfg, nil).Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// newCleanupJob は保持日数を設定したクリーンアップジョブを生成する。
// serveではPostgreSQLバックエンドのときに同一プロセスで、workerでは単独で実行される。
func newCleanupJob(sweeper cleanup.Sweeper, cfg *config.Config, rec cleanup.Recorder) *cleanup.CleanupJob {
	job := cleanup.NewCleanupJob(sweeper, slog.Default(), rec)
	job.RetentionDays = cfg.CredentialRetentionDays

	slog.Info("credential cleanup scheduled",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("retention_days", job.RetentionDays),
	)
	return job
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("migrate requires DATABASE_URL")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
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
