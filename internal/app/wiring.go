package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/docupicks/internal/cache"
	"github.com/hitoshi/docupicks/internal/config"
	"github.com/hitoshi/docupicks/internal/curation"
	"github.com/hitoshi/docupicks/internal/database"
	"github.com/hitoshi/docupicks/internal/metrics"
	"github.com/hitoshi/docupicks/internal/omdb"
	"github.com/hitoshi/docupicks/internal/pipeline"
	"github.com/hitoshi/docupicks/internal/repository"
	"github.com/hitoshi/docupicks/internal/security"
	"github.com/hitoshi/docupicks/internal/tmdb"
)

// components は各サブコマンドが共有する依存関係。
type components struct {
	store       repository.CacheRepository
	closeStore  func() error
	pipeline    *pipeline.Pipeline
	readThrough *cache.ReadThrough
	collector   *metrics.Collector
	registry    *prometheus.Registry
}

// Close はストア接続を閉じる。
func (c *components) Close() error {
	if c.closeStore == nil {
		return nil
	}
	return c.closeStore()
}

// pipelineConfig は環境変数の設定からパイプライン設定を組み立てる。
func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		TopicKeywords:         append([]string(nil), cfg.TopicKeywords...),
		MinYear:               cfg.MinYear,
		MaxYear:               cfg.MaxYear,
		YearTolerance:         cfg.YearTolerance,
		DiscoveryYearLookback: cfg.DiscoveryYearLookback,
		MaxPages:              cfg.MaxPages,
		MinVoteCount:          cfg.MinVoteCount,
		MinVoteAverage:        cfg.MinVoteAverage,
		Region:                cfg.WatchRegion,
		DocumentaryTerms:      append([]string(nil), cfg.DocumentaryTerms...),
		BatchSize:             cfg.BatchSize,
		BatchDelay:            cfg.BatchDelay,
		ResultLimit:           cfg.ResultLimit,
		FallbackPolicy:        pipeline.FallbackPolicy(cfg.FallbackPolicy),
		EnrichFallback:        cfg.FallbackEnrich,
	}
}

// newRegistry はアプリケーションとランタイムのメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// openStore は設定に応じたキャッシュストアを開き、疎通を確認する。
func openStore(ctx context.Context, cfg *config.Config) (repository.CacheRepository, func() error, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		client, err := repository.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open redis: %w", err)
		}
		repo := repository.NewRedisCacheRepo(client)
		if err := repo.Ping(ctx); err != nil {
			repo.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established")
		return repo, repo.Close, nil
	default:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return repository.NewPostgresCacheRepo(db), db.Close, nil
	}
}

// newPipeline は外部APIクライアントとセキュリティ部品を組み立ててPipelineを生成する。
func newPipeline(cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) (*pipeline.Pipeline, error) {
	titles, err := curation.Load(cfg.FallbackTitlesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load fallback titles: %w", err)
	}

	guard := security.NewOutboundGuard()
	httpClient := guard.NewSafeClient(cfg.APITimeout)

	catalog := tmdb.NewClient(httpClient, cfg.TMDBAPIKey, logger).WithObserver(collector)
	validation := omdb.NewClient(httpClient, cfg.OMDBAPIKey, logger).WithObserver(collector)

	return pipeline.New(pipelineConfig(cfg), titles, pipeline.Deps{
		Catalog:    catalog,
		Validation: validation,
		Sanitizer:  security.NewTextSanitizer(),
		Posters:    guard,
		Recorder:   collector,
		Logger:     logger,
	}), nil
}

// newReadThrough はストアとパイプラインからキャッシュのread-throughを組み立てる。
func newReadThrough(cfg *config.Config, store cache.Store, runner cache.Runner, collector *metrics.Collector, logger *slog.Logger) *cache.ReadThrough {
	gateway := cache.NewGateway(store, cfg.CacheTTL, logger)
	return cache.NewReadThrough(gateway, runner, cache.ReadThroughOptions{
		Prefix:       cfg.CacheKeyPrefix,
		SingleFlight: cfg.SingleFlight,
		Recorder:     collector,
		Logger:       logger,
	})
}

// buildComponents はストア接続からread-throughまでを組み立てる。
func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	logger := slog.Default()
	reg, collector := newRegistry()

	p, err := newPipeline(cfg, collector, logger)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &components{
		store:       store,
		closeStore:  closeStore,
		pipeline:    p,
		readThrough: newReadThrough(cfg, store, p, collector, logger),
		collector:   collector,
		registry:    reg,
	}, nil
}
