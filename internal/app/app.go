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

	"github.com/hitoshi/docupicks/internal/config"
	"github.com/hitoshi/docupicks/internal/database"
	"github.com/hitoshi/docupicks/internal/handler"
	"github.com/hitoshi/docupicks/internal/logger"
	"github.com/hitoshi/docupicks/internal/middleware"
	"github.com/hitoshi/docupicks/internal/worker/cleanup"
	"github.com/hitoshi/docupicks/internal/worker/refresh"
)

// refreshTimeout はrefreshサブコマンドの実行時間の上限。
const refreshTimeout = 5 * time.Minute

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

	// 3. 設定に従ってログレベルと出力先を反映する
	logger.ConfigureDefault(w, logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。wはログの出力先、outはrefreshの結果の出力先。
func Run(w, out io.Writer, args []string) error {
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
		if cmd == CommandRefresh {
			writeHandlerResponse(out, failureResponse(os.Getenv("CORS_ALLOWED_ORIGIN")))
		}
		return fmt.Errorf("initialization failed: %w", err)
	}

	if name, unknown := unknownCommand(args); unknown {
		slog.Warn("未知のサブコマンドのためserveとして起動します", slog.String("command", name))
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("cache_backend", cfg.CacheBackend),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandRefresh:
		return runRefresh(cfg, out)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// キャッシュストアに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	c, err := buildComponents(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	rateLimiter := middleware.NewRateLimiter(
		middleware.DefaultRateLimiterConfig(cfg.RateLimitGeneral), slog.Default(),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Lister:            c.readThrough,
		Searcher:          c.pipeline,
		HealthChecker:     c.store,
		Gatherer:          c.registry,
	})

	// 初回アクセスでパイプラインが同期実行されるため、書き込みタイムアウトは長めに取る
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

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
// 定期更新スケジューラを起動し、PostgreSQLバックエンドでは期限切れエントリの削除も行う。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	slog.Info("worker starting",
		slog.Duration("refresh_interval", cfg.RefreshInterval),
	)

	if cfg.CacheBackend == config.CacheBackendPostgres {
		cleanupJob := cleanup.NewCleanupJob(c.store, slog.Default())
		go cleanupJob.Start(ctx, 24*time.Hour)
	}

	// 定期更新スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler := refresh.NewScheduler(c.readThrough, slog.Default(), c.collector)
	scheduler.Start(ctx, cfg.RefreshInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runRefresh は当日のキャッシュを1回だけ用意し、ハンドラーレスポンス形式で出力する。
// 一覧を返せなかった場合はエラーを返す。
func runRefresh(cfg *config.Config, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, refreshTimeout)
	defer cancelTimeout()

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		writeHandlerResponse(out, failureResponse(cfg.CORSAllowedOrigin))
		return err
	}
	defer c.Close()

	result, err := c.readThrough.Documentaries(ctx)
	if err == nil && result == nil {
		err = errNoResult
	}
	resp := buildHandlerResponse(result, err, cfg.CORSAllowedOrigin)
	if werr := writeHandlerResponse(out, resp); werr != nil {
		return fmt.Errorf("failed to write response: %w", werr)
	}
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	slog.Info("refresh completed",
		slog.String("cache_key", result.Key),
		slog.String("source", string(result.Source)),
		slog.Int("documentary_count", len(result.Documentaries)),
	)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
// Redisバックエンドではスキーマが不要なため何もしない。
func runMigrate(cfg *config.Config) error {
	if cfg.CacheBackend != config.CacheBackendPostgres {
		slog.Info("migrations skipped", slog.String("cache_backend", cfg.CacheBackend))
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("schema_version", uint64(version)))
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

// errNoResult はread-throughが結果もエラーも返さなかった場合に使う。
var errNoResult = errors.New("no result")
