package pipeline

import (
	"context"
	"log/slog"

	"github.com/hitoshi/docupicks/internal/model"
)

// ProviderEnricher はカタログソースから作品の配信サービス情報を取得する。
type ProviderEnricher struct {
	catalog CatalogSource
	region  string
	logger  *slog.Logger
}

// NewProviderEnricher はProviderEnricherを生成する。
func NewProviderEnricher(catalog CatalogSource, region string, logger *slog.Logger) *ProviderEnricher {
	return &ProviderEnricher{catalog: catalog, region: region, logger: logger}
}

// Providers は作品の配信サービスを返す。
// 取得に失敗した場合や配信が無い場合は空のリストを返す。
func (e *ProviderEnricher) Providers(ctx context.Context, catalogID int) []model.StreamingProvider {
	if catalogID <= 0 {
		return []model.StreamingProvider{}
	}
	providers, err := e.catalog.WatchProviders(ctx, catalogID, e.region)
	if err != nil {
		e.logger.Warn("配信サービス情報の取得に失敗しました",
			slog.Int("catalog_id", catalogID),
			slog.String("error", err.Error()),
		)
		return []model.StreamingProvider{}
	}

	out := make([]model.StreamingProvider, 0, len(providers))
	for _, p := range providers {
		out = append(out, model.StreamingProvider{
			ID:       p.ProviderID,
			Name:     p.ProviderName,
			LogoPath: p.LogoPath,
		})
	}
	return out
}
