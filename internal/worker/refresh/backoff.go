package refresh

import "time"

const (
	// initialBackoff は指数バックオフの初回遅延（30分）。
	initialBackoff = 30 * time.Minute
	// maxBackoff は指数バックオフの最大遅延（12時間）。
	maxBackoff = 12 * time.Hour
)

// CalculateBackoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回30分、2倍ずつ増加、最大12時間。
func CalculateBackoff(consecutiveFailures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveFailures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// NextDelay は次回実行までの待機時間を返す。
// 失敗が続いている場合はバックオフ遅延を使うが、通常の間隔より長くはしない。
func NextDelay(interval time.Duration, consecutiveFailures int) time.Duration {
	if consecutiveFailures == 0 {
		return interval
	}
	if backoff := CalculateBackoff(consecutiveFailures - 1); backoff < interval {
		return backoff
	}
	return interval
}
