package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/portal/internal/config"
	"github.com/hitoshi/portal/internal/handler"
	"github.com/hitoshi/portal/internal/logger"
	"github.com/hitoshi/portal/internal/metrics"
	"github.com/hitoshi/portal/internal/middleware"
	"github.com/hitoshi/portal/internal/news"
	"github.com/hitoshi/portal/internal/news/adapter"
	"github.com/hitoshi/portal/internal/news/cache"
	"github.com/hitoshi/portal/internal/news/normalize"
	"github.com/hitoshi/portal/internal/news/source"
	"github.com/hitoshi/portal/internal/security"
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	config.LoadDotEnv()

	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。serveではwにログを、それ以外のコマンドではwに表示を出力する。
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

	// CLIコマンドの表示とログが混ざらないよう、ログは標準エラーに出す
	logOut := w
	if cmd != CommandServe {
		logOut = os.Stderr
	}

	cfg, err := Init(logOut)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}

	switch cmd {
	case CommandNews:
		return runNews(ctx, cfg, w, rest)
	case CommandWatchlist:
		return runWatchlist(ctx, cfg, w, rest)
	case CommandQuotes:
		return runQuotes(ctx, cfg, w)
	default:
		slog.Info("starting application",
			slog.String("command", string(cmd)),
			slog.String("port", cfg.ServerPort),
			slog.String("provider", cfg.NewsProvider),
			slog.String("cache_backend", cfg.CacheBackend),
		)
		return runServe(ctx, cfg)
	}
}

// server はAPIサーバーの構築結果。closeで確保したリソースを解放する。
type server struct {
	handler http.Handler
	close   func()
}

// buildServer は設定から全依存関係をワイヤリングし、ルーターを構築する。
// ソースURLは起動時に静的検証し、不正な定義があれば起動を中止する。
func buildServer(ctx context.Context, cfg *config.Config, log *slog.Logger, reg *prometheus.Registry) (*server, error) {
	// 1. ソース定義の読み込みと検証
	registry, err := source.Load(cfg.NewsProvider, cfg.NewsSourcesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load news sources: %w", err)
	}

	guard := security.NewOutboundGuard()
	if err := registry.ValidateURLs(guard); err != nil {
		return nil, fmt.Errorf("invalid news source: %w", err)
	}

	// 2. メトリクス
	collector := metrics.NewCollector(reg)

	// 3. キャッシュ
	closers := []func(){}
	var newsCache cache.Cache
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() { client.Close() })
		newsCache = cache.NewRedis(client, cfg.CacheTTL, log)
		log.Info("redis cache connected", slog.String("addr", cfg.RedisAddr))
	default:
		newsCache = cache.NewMemory(cfg.CacheTTL)
	}

	// 4. ニュースサービス
	feedAdapter := adapter.New(
		registry,
		guard.NewClient(cfg.FetchTimeout),
		cfg.Credentials(registry.CredentialEnvs()...),
		cfg.FetchMaxSize,
		log,
		adapter.WithRecorder(collector),
	)
	normalizer := normalize.New(security.NewTitleCleaner())
	newsService := news.NewService(feedAdapter, normalizer, newsCache, log, news.WithRecorder(collector))

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteConfig(cfg.RateLimitPerMinute),
		collector,
		log,
	)
	closers = append(closers, rateLimiter.Stop)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		StatusRecorder:    collector,
		TrustProxy:        cfg.TrustProxyHeaders,
		NewsHandler:       handler.NewNewsHandler(newsService, cfg.CacheTTL, log),
		MetricsHandler:    metrics.Handler(reg),
	})

	return &server{
		handler: router,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	srv, err := buildServer(ctx, cfg, slog.Default(), prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer srv.close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
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
