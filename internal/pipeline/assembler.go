package pipeline

import (
	"context"
	"log/slog"
	"slices"

	"github.com/hitoshi/docupicks/internal/model"
)

// TitleFetcher は推薦作品のタイトルから作品情報を取得する。
type TitleFetcher interface {
	FetchTitles(ctx context.Context, titles []string) []model.Documentary
}

// Assembler は検証済み作品を並べ替えて表示上限で切り詰め、
// 件数が不足する場合は推薦作品リストで補完する。
type Assembler struct {
	policy   FallbackPolicy
	fetcher  TitleFetcher
	logger   *slog.Logger
	recorder Recorder
}

// NewAssembler はAssemblerを生成する。
func NewAssembler(policy FallbackPolicy, fetcher TitleFetcher, logger *slog.Logger, recorder Recorder) *Assembler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Assembler{policy: policy, fetcher: fetcher, logger: logger, recorder: recorder}
}

// Assemble は評価の降順に並べ替え、limit件に切り詰めた結果を返す。
// 入力のスライスは変更しない。
func (a *Assembler) Assemble(ctx context.Context, validated []model.Documentary, limit int, fallbackTitles []string) []model.Documentary {
	result := SortAndLimit(dedupeByExternalID(nil, validated), limit)
	if !a.policy.shouldFallback(len(result), limit) || len(fallbackTitles) == 0 {
		return result
	}

	a.recorder.IncFallback(string(a.policy))
	a.logger.Info("検証済み作品が不足しているため推薦作品で補完します",
		slog.Int("validated_count", len(result)),
		slog.Int("limit", limit),
		slog.String("policy", string(a.policy)),
	)

	fetched := a.fetcher.FetchTitles(ctx, fallbackTitles)
	return SortAndLimit(dedupeByExternalID(result, fetched), limit)
}

// SortAndLimit は評価の降順で安定ソートし、limit件に切り詰めたコピーを返す。
// 評価が数値として解釈できない作品は最下位として扱う。
func SortAndLimit(docs []model.Documentary, limit int) []model.Documentary {
	out := slices.Clone(docs)
	if out == nil {
		out = []model.Documentary{}
	}
	slices.SortStableFunc(out, func(a, b model.Documentary) int {
		ra, okA := a.NumericRating()
		rb, okB := b.NumericRating()
		switch {
		case okA && !okB:
			return -1
		case !okA && okB:
			return 1
		case ra > rb:
			return -1
		case ra < rb:
			return 1
		default:
			return 0
		}
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// dedupeByExternalID はbaseにextraを連結し、外部IDが重複する作品を除外する。先に現れた作品を残す。
// 外部IDが空の作品は正規化タイトルで比較する。
func dedupeByExternalID(base, extra []model.Documentary) []model.Documentary {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]model.Documentary, 0, len(base)+len(extra))
	for _, list := range [][]model.Documentary{base, extra} {
		for _, d := range list {
			key := d.ExternalID
			if key == "" {
				key = "title:" + model.NormalizeTitle(d.Title)
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, d)
		}
	}
	return out
}
