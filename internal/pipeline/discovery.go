package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/docupicks/internal/model"
	"github.com/hitoshi/docupicks/internal/tmdb"
)

// discoverySortOrder はディスカバリー結果の並び順。
const discoverySortOrder = "vote_average.desc"

// DiscoveryClient はカタログソースから候補作品を取得する。
type DiscoveryClient struct {
	catalog  CatalogSource
	cfg      Config
	logger   *slog.Logger
	recorder Recorder
}

// NewDiscoveryClient はDiscoveryClientを生成する。
func NewDiscoveryClient(catalog CatalogSource, cfg Config, logger *slog.Logger, recorder Recorder) *DiscoveryClient {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &DiscoveryClient{catalog: catalog, cfg: cfg, logger: logger, recorder: recorder}
}

// Discover は指定ページの候補作品を取得する。
// 通信エラーや異常ステータスの場合は空のリストを返し、エラーは記録のみ行う。
func (d *DiscoveryClient) Discover(ctx context.Context, page int, keywordFilter string) []model.CandidateItem {
	movies, err := d.catalog.Discover(ctx, tmdb.DiscoverParams{
		Page:           page,
		GenreID:        tmdb.DocumentaryGenreID,
		SortBy:         discoverySortOrder,
		MinVoteCount:   d.cfg.MinVoteCount,
		MinVoteAverage: d.cfg.MinVoteAverage,
		ReleasedAfter:  fmt.Sprintf("%d-01-01", d.cfg.MinYear-d.cfg.DiscoveryYearLookback),
		ReleasedBefore: fmt.Sprintf("%d-12-31", d.cfg.MaxYear),
		Region:         d.cfg.Region,
		Keywords:       keywordFilter,
	})
	if err != nil {
		d.logger.Error("候補作品の取得に失敗しました",
			slog.Int("page", page),
			slog.String("error", err.Error()),
		)
		return []model.CandidateItem{}
	}

	items := make([]model.CandidateItem, 0, len(movies))
	for _, m := range movies {
		items = append(items, model.CandidateItem{
			CatalogID:   m.ID,
			Title:       m.Title,
			ReleaseDate: m.ReleaseDate,
			Synopsis:    m.Overview,
			VoteAverage: m.VoteAverage,
			VoteCount:   m.VoteCount,
		})
	}
	return items
}

// Collect は最大ページ数まで、または件数が表示上限に達するまで候補作品を収集する。
// 公開年が範囲外の作品と、正規化タイトルが重複する作品は除外する。
func (d *DiscoveryClient) Collect(ctx context.Context, keywordFilter string) []model.CandidateItem {
	seen := make(map[string]struct{})
	var collected []model.CandidateItem

	for page := 1; page <= d.cfg.MaxPages && len(collected) < d.cfg.ResultLimit; page++ {
		if ctx.Err() != nil {
			break
		}
		results := d.Discover(ctx, page, keywordFilter)
		for _, item := range results {
			year := item.ReleaseYear()
			if !d.cfg.inWindow(year, 0) {
				continue
			}
			key := model.NormalizeTitle(item.Title)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			collected = append(collected, item)
		}
		d.logger.Debug("候補作品ページを取得しました",
			slog.Int("page", page),
			slog.Int("page_count", len(results)),
			slog.Int("collected_count", len(collected)),
		)
	}

	d.recorder.AddCandidates(len(collected))
	return collected
}
