package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/iter"
)

// KeywordResolver はトピックキーワードをカタログのキーワードIDに変換する。
type KeywordResolver struct {
	catalog CatalogSource
	logger  *slog.Logger
}

// NewKeywordResolver はKeywordResolverを生成する。
func NewKeywordResolver(catalog CatalogSource, logger *slog.Logger) *KeywordResolver {
	return &KeywordResolver{catalog: catalog, logger: logger}
}

// Resolve は各キーワードを並行に検索し、最初の検索結果のIDを入力順に返す。
// 検索に失敗した、または結果が無いキーワードは結果から除外される。
func (r *KeywordResolver) Resolve(ctx context.Context, keywords []string) []int {
	if len(keywords) == 0 {
		return []int{}
	}

	mapper := iter.Mapper[string, int]{MaxGoroutines: len(keywords)}
	resolved := mapper.Map(keywords, func(kw *string) int {
		return r.resolveOne(ctx, *kw)
	})

	seen := make(map[int]struct{}, len(resolved))
	ids := make([]int, 0, len(resolved))
	for _, id := range resolved {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func (r *KeywordResolver) resolveOne(ctx context.Context, keyword string) int {
	results, err := r.catalog.SearchKeyword(ctx, keyword)
	if err != nil {
		r.logger.Warn("キーワードIDの取得に失敗しました",
			slog.String("keyword", keyword),
			slog.String("error", err.Error()),
		)
		return 0
	}
	if len(results) == 0 {
		r.logger.Info("キーワードに一致するIDがありません",
			slog.String("keyword", keyword),
		)
		return 0
	}
	return results[0].ID
}

// JoinKeywordFilter はキーワードIDをOR条件のフィルタ文字列（"|" 区切り）に変換する。
func JoinKeywordFilter(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, "|")
}
