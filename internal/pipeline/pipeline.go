// Package pipeline はドキュメンタリー作品の収集・検証・整列を行う。
//
// キーワード解決、ディスカバリー、バッチ検証、結果の組み立ての順に処理し、
// 各段階の外部API障害は空の結果に縮退させる。呼び出し元にエラーを返すのは
// コンテキストがキャンセルされた場合のみ。
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/docupicks/internal/model"
)

// Deps はPipelineが利用する外部コンポーネント。
type Deps struct {
	Catalog    CatalogSource
	Validation ValidationSource
	Sanitizer  TextSanitizer
	Posters    PosterGuard
	Recorder   Recorder
	Logger     *slog.Logger
}

// Pipeline はドキュメンタリー一覧を生成する。
type Pipeline struct {
	cfg            Config
	fallbackTitles []string
	resolver       *KeywordResolver
	discovery      *DiscoveryClient
	scheduler      *BatchScheduler
	assembler      *Assembler
	fallback       *FallbackFetcher
	validation     ValidationSource
	catalog        CatalogSource
	enricher       *ProviderEnricher
	classifier     *Classifier
	sanitizer      TextSanitizer
	posters        PosterGuard
	logger         *slog.Logger
	recorder       Recorder
}

// New はPipelineを生成する。
func New(cfg Config, fallbackTitles []string, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if cfg.FallbackPolicy == "" {
		cfg.FallbackPolicy = FallbackBelowLimit
	}
	terms := cfg.DocumentaryTerms
	if len(terms) == 0 {
		terms = DefaultDocumentaryTerms
	}

	classifier := NewClassifier(terms)
	enricher := NewProviderEnricher(deps.Catalog, cfg.Region, logger)
	validator := NewValidator(deps.Validation, enricher, classifier, deps.Sanitizer, deps.Posters, cfg, logger, recorder)
	fallback := NewFallbackFetcher(deps.Validation, deps.Catalog, enricher, deps.Sanitizer, deps.Posters, cfg, logger)

	return &Pipeline{
		cfg:            cfg,
		fallbackTitles: fallbackTitles,
		resolver:       NewKeywordResolver(deps.Catalog, logger),
		discovery:      NewDiscoveryClient(deps.Catalog, cfg, logger, recorder),
		scheduler:      NewBatchScheduler(validator, logger),
		assembler:      NewAssembler(cfg.FallbackPolicy, fallback, logger, recorder),
		fallback:       fallback,
		validation:     deps.Validation,
		catalog:        deps.Catalog,
		enricher:       enricher,
		classifier:     classifier,
		sanitizer:      deps.Sanitizer,
		posters:        deps.Posters,
		logger:         logger,
		recorder:       recorder,
	}
}

// Run はパイプラインを1回実行し、表示用のドキュメンタリー一覧を返す。
func (p *Pipeline) Run(ctx context.Context) ([]model.Documentary, error) {
	start := time.Now()
	logger := p.logger.With(slog.String("run_id", uuid.NewString()))
	logger.Info("パイプラインを開始します",
		slog.Int("keyword_count", len(p.cfg.TopicKeywords)),
	)

	keywordIDs := p.resolver.Resolve(ctx, p.cfg.TopicKeywords)
	candidates := p.discovery.Collect(ctx, JoinKeywordFilter(keywordIDs))
	logger.Info("候補作品を収集しました",
		slog.Int("keyword_id_count", len(keywordIDs)),
		slog.Int("candidate_count", len(candidates)),
	)

	validated, err := p.scheduler.ValidateAll(ctx, candidates, p.cfg.BatchSize, p.cfg.BatchDelay)
	if err != nil {
		p.recorder.ObservePipeline("cancelled", time.Since(start))
		logger.Warn("パイプラインが中断されました", slog.String("error", err.Error()))
		return nil, err
	}

	result := p.assembler.Assemble(ctx, validated, p.cfg.ResultLimit, p.fallbackTitles)
	if err := ctx.Err(); err != nil {
		p.recorder.ObservePipeline("cancelled", time.Since(start))
		return nil, err
	}

	outcome := "success"
	if len(result) == 0 {
		outcome = "empty"
	}
	p.recorder.ObservePipeline(outcome, time.Since(start))
	logger.Info("パイプラインが完了しました",
		slog.Int("validated_count", len(validated)),
		slog.Int("result_count", len(result)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return result, nil
}

// FetchFallback は推薦作品リストを直接取得し、評価順に並べ替えて返す。
// キャッシュもパイプラインも結果を返せない場合の復旧に使用する。
func (p *Pipeline) FetchFallback(ctx context.Context) []model.Documentary {
	return SortAndLimit(p.fallback.FetchTitles(ctx, p.fallbackTitles), p.cfg.ResultLimit)
}

// FallbackTitles は推薦作品のタイトルのコピーを返す。
func (p *Pipeline) FallbackTitles() []string {
	return append([]string(nil), p.fallbackTitles...)
}
