package pipeline

import "time"

// FallbackPolicy は推薦作品リストによる補完を発動する条件。
type FallbackPolicy string

const (
	// FallbackBelowLimit は検証済み件数が表示上限に満たない場合に補完する。
	FallbackBelowLimit FallbackPolicy = "below_limit"
	// FallbackZero は検証済み件数が0件の場合のみ補完する。
	FallbackZero FallbackPolicy = "zero"
)

// Config はパイプラインの各コンポーネントに渡す設定。
// 生成時に1回だけ組み立て、以降は変更しない。
type Config struct {
	TopicKeywords []string

	MinYear               int
	MaxYear               int
	YearTolerance         int // 検証時の公開年の許容幅（±）
	DiscoveryYearLookback int // ディスカバリー時の公開日下限をMinYearから何年遡るか
	MaxPages              int
	MinVoteCount          int
	MinVoteAverage        float64
	Region                string
	DocumentaryTerms      []string

	BatchSize  int
	BatchDelay time.Duration

	ResultLimit    int
	FallbackPolicy FallbackPolicy
	EnrichFallback bool
}

// inWindow はyearが年の範囲内にあるかを許容幅込みで判定する。
func (c Config) inWindow(year, tolerance int) bool {
	return year >= c.MinYear-tolerance && year <= c.MaxYear+tolerance
}

// shouldFallback は検証済み件数に対して補完が必要かを判定する。
func (p FallbackPolicy) shouldFallback(count, limit int) bool {
	if p == FallbackZero {
		return count == 0
	}
	return count < limit
}
