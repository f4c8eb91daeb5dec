package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/docupicks/internal/model"
)

// FallbackFetcher は推薦作品リストのタイトルをバリデーションソースから直接取得する。
// ディスカバリーとドキュメンタリー判定は行わない。
type FallbackFetcher struct {
	validation ValidationSource
	catalog    CatalogSource
	enricher   *ProviderEnricher
	sanitizer  TextSanitizer
	posters    PosterGuard
	enrich     bool
	batchSize  int
	delay      time.Duration
	logger     *slog.Logger
}

// NewFallbackFetcher はFallbackFetcherを生成する。
// enrichがtrueの場合、タイトルと公開年でカタログを検索して配信サービス情報を付与する。
func NewFallbackFetcher(
	validation ValidationSource,
	catalog CatalogSource,
	enricher *ProviderEnricher,
	sanitizer TextSanitizer,
	posters PosterGuard,
	cfg Config,
	logger *slog.Logger,
) *FallbackFetcher {
	return &FallbackFetcher{
		validation: validation,
		catalog:    catalog,
		enricher:   enricher,
		sanitizer:  sanitizer,
		posters:    posters,
		enrich:     cfg.EnrichFallback,
		batchSize:  cfg.BatchSize,
		delay:      cfg.BatchDelay,
		logger:     logger,
	}
}

// FetchTitles は各タイトルを取得し、見つかった作品を入力順に返す。
// 取得はバッチ単位で行い、通常の検証と同じ呼び出しレートを守る。
func (f *FallbackFetcher) FetchTitles(ctx context.Context, titles []string) []model.Documentary {
	items := make([]model.CandidateItem, 0, len(titles))
	for _, t := range titles {
		items = append(items, model.CandidateItem{Title: t})
	}

	docs, err := NewBatchScheduler(f, f.logger).ValidateAll(ctx, items, f.batchSize, f.delay)
	if err != nil {
		f.logger.Warn("推薦作品の取得が中断されました",
			slog.Int("fetched_count", len(docs)),
			slog.String("error", err.Error()),
		)
	}
	return docs
}

// Validate はタイトル1件を取得する。ItemValidatorを実装する。
func (f *FallbackFetcher) Validate(ctx context.Context, item model.CandidateItem) *model.Documentary {
	title, err := f.validation.LookupByTitle(ctx, item.Title, 0)
	if err != nil {
		f.logger.Warn("推薦作品の取得に失敗しました",
			slog.String("title", item.Title),
			slog.String("error", err.Error()),
		)
		return nil
	}

	doc := newDocumentary(title, f.sanitizer, f.posters)
	if f.enrich {
		doc.CatalogID = f.lookupCatalogID(ctx, title.Title, doc.NormalizedYear)
		doc.WatchProviders = f.enricher.Providers(ctx, doc.CatalogID)
	}
	return &doc
}

func (f *FallbackFetcher) lookupCatalogID(ctx context.Context, title string, year int) int {
	movies, err := f.catalog.SearchMovie(ctx, title, year)
	if err != nil {
		f.logger.Warn("推薦作品のカタログ検索に失敗しました",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return 0
	}
	if len(movies) == 0 {
		return 0
	}
	return movies[0].ID
}
