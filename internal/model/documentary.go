// Package model はドメインモデルを定義する。
package model

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// NotAvailable はバリデーションソースが値なしを表すセンチネル文字列。
const NotAvailable = "N/A"

// PlaceholderPoster はポスター画像が無い場合に使用するパス。
const PlaceholderPoster = "/placeholder.jpg"

// CandidateItem はディスカバリーで取得した候補作品を表す。
// 1回のパイプライン実行の中でのみ存在する。
type CandidateItem struct {
	CatalogID   int
	Title       string
	ReleaseDate string // YYYY-MM-DD
	Synopsis    string
	VoteAverage float64
	VoteCount   int
}

// ReleaseYear はリリース日から年を取り出す。取得できない場合は0を返す。
func (c CandidateItem) ReleaseYear() int {
	return ParseYear(c.ReleaseDate)
}

// StreamingProvider は配信サービス情報を表す。
type StreamingProvider struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	LogoPath string `json:"logo_path"`
}

// Documentary は検証済みのドキュメンタリー作品を表す。
// JSONのフィールド名はフロントエンドが参照するOMDb形式に合わせている。
type Documentary struct {
	ExternalID     string              `json:"imdbID"`
	CatalogID      int                 `json:"tmdbId,omitempty"`
	Title          string              `json:"Title"`
	Year           string              `json:"Year"`
	NormalizedYear int                 `json:"normalizedYear,omitempty"`
	ReleaseDate    string              `json:"releaseDate,omitempty"`
	Synopsis       string              `json:"overview,omitempty"`
	Genre          string              `json:"Genre"`
	Plot           string              `json:"Plot"`
	Rating         string              `json:"imdbRating"`
	Poster         string              `json:"Poster"`
	Director       string              `json:"Director"`
	Runtime        string              `json:"Runtime"`
	Rated          string              `json:"Rated"`
	Actors         string              `json:"Actors,omitempty"`
	Writer         string              `json:"Writer,omitempty"`
	Awards         string              `json:"Awards,omitempty"`
	WatchProviders []StreamingProvider `json:"WatchProviders"`
}

// NumericRating は評価値を数値として返す。
// 数値として解釈できない場合はokがfalseになる。NaNと無限大も解釈できない値として扱う。
func (d Documentary) NumericRating() (rating float64, ok bool) {
	if d.Rating == "" || d.Rating == NotAvailable {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(d.Rating), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// CacheEntry は日次キャッシュの1エントリを表す。
// 書き込み後に変更されることはなく、翌日のキーで置き換えられる。
type CacheEntry struct {
	Key       string        `json:"id"`
	Payload   []Documentary `json:"data"`
	ExpiresAt int64         `json:"ttl"` // エポック秒
}

// Expired は指定時刻においてエントリが期限切れかどうかを返す。
// ExpiresAtが0の場合は期限なしとして扱う。
func (e *CacheEntry) Expired(now time.Time) bool {
	if e.ExpiresAt == 0 {
		return false
	}
	return now.Unix() >= e.ExpiresAt
}

// CacheRecord はキャッシュストアに保存される生のレコード。
type CacheRecord struct {
	Key       string
	Data      []byte
	ExpiresAt *time.Time // nilの場合は期限なし
	CreatedAt time.Time
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// ParseYear は文字列中の最初の4桁の数字を年として返す。
// "2019-05-01" や "2019–2021" の形式に対応する。見つからない場合は0を返す。
func ParseYear(s string) int {
	m := yearPattern.FindString(s)
	if m == "" {
		return 0
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return y
}

// NormalizeTitle はタイトル重複排除用に正規化した文字列を返す。
// 小文字化し、前後の空白を除去し、連続する空白を1つにまとめる。
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
