package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/hitoshi/docupicks/internal/model"
)

// BatchScheduler は候補作品を固定サイズのバッチに分けて検証する。
// バッチ内は並行に検証し、バッチ間には待機時間を挟んで外部APIの呼び出しレートを抑える。
type BatchScheduler struct {
	validator ItemValidator
	logger    *slog.Logger
}

// NewBatchScheduler はBatchSchedulerを生成する。
func NewBatchScheduler(validator ItemValidator, logger *slog.Logger) *BatchScheduler {
	return &BatchScheduler{validator: validator, logger: logger}
}

// ValidateAll はitemsをbatchSize件ずつ検証し、検証を通過した作品を入力順に返す。
// 最後のバッチの後には待機しない。
// 待機中にコンテキストがキャンセルされた場合は、それまでの結果とエラーを返す。
func (s *BatchScheduler) ValidateAll(ctx context.Context, items []model.CandidateItem, batchSize int, delay time.Duration) ([]model.Documentary, error) {
	if batchSize <= 0 {
		batchSize = len(items)
	}

	validated := make([]model.Documentary, 0, len(items))
	for start := 0; start < len(items); start += batchSize {
		if err := ctx.Err(); err != nil {
			return validated, err
		}

		end := min(start+batchSize, len(items))
		// バッチ内の全件を同時に検証する（CPU数で頭打ちにしない）
		mapper := iter.Mapper[model.CandidateItem, *model.Documentary]{MaxGoroutines: end - start}
		results := mapper.Map(items[start:end], func(item *model.CandidateItem) *model.Documentary {
			return s.validator.Validate(ctx, *item)
		})
		for _, doc := range results {
			if doc != nil {
				validated = append(validated, *doc)
			}
		}

		s.logger.Debug("検証バッチが完了しました",
			slog.Int("batch_start", start),
			slog.Int("batch_size", end-start),
			slog.Int("validated_count", len(validated)),
		)

		if end >= len(items) || delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return validated, ctx.Err()
		case <-time.After(delay):
		}
	}

	return validated, nil
}
