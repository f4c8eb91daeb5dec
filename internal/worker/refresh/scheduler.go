// Package refresh は日次キャッシュを事前に温める定期更新ジョブを提供する。
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/docupicks/internal/cache"
)

// 実行結果
const (
	OutcomeWarmed  = "warmed"
	OutcomeSkipped = "skipped"
	OutcomeFailure = "failure"
)

// Warmer は当日のキャッシュを用意する。*cache.ReadThroughが実装する。
type Warmer interface {
	Warm(ctx context.Context) (*cache.Result, error)
}

// Recorder は定期更新の実行結果を受け取る。
type Recorder interface {
	RecordRefresh(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRefresh(string) {}

// Scheduler は一定間隔でキャッシュを温める。
// 失敗が続いた場合は指数バックオフで再試行間隔を短くする。
type Scheduler struct {
	warmer   Warmer
	logger   *slog.Logger
	recorder Recorder

	consecutiveFailures int
	after               func(time.Duration) <-chan time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// recorderがnilの場合は記録しない。
func NewScheduler(warmer Warmer, logger *slog.Logger, recorder Recorder) *Scheduler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Scheduler{
		warmer:   warmer,
		logger:   logger,
		recorder: recorder,
		after:    time.After,
	}
}

// Start は起動直後に1回実行し、以降intervalごとに実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("定期更新スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("定期更新の実行に失敗しました",
				slog.String("error", err.Error()),
				slog.Int("consecutive_failures", s.consecutiveFailures),
			)
		}

		delay := NextDelay(interval, s.consecutiveFailures)
		select {
		case <-ctx.Done():
			s.logger.Info("定期更新スケジューラを停止しました")
			return
		case <-s.after(delay):
		}
	}
}

// RunOnce は当日のキャッシュを1回温める。
// キャッシュが既にある場合はパイプラインを実行しない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	result, err := s.warmer.Warm(ctx)
	if err != nil {
		s.consecutiveFailures++
		s.recorder.RecordRefresh(OutcomeFailure)
		return err
	}
	s.consecutiveFailures = 0

	outcome := OutcomeWarmed
	if result.Source == cache.SourceCache {
		outcome = OutcomeSkipped
	}
	s.recorder.RecordRefresh(outcome)

	s.logger.Info("定期更新が完了しました",
		slog.String("cache_key", result.Key),
		slog.String("outcome", outcome),
		slog.Int("documentary_count", len(result.Documentaries)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// ConsecutiveFailures は連続失敗回数を返す。
func (s *Scheduler) ConsecutiveFailures() int {
	return s.consecutiveFailures
}
