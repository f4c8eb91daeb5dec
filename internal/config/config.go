package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 対応するキャッシュバックエンド
const (
	CacheBackendPostgres = "postgres"
	CacheBackendRedis    = "redis"
)

// フォールバック発動条件
const (
	FallbackPolicyBelowLimit = "below_limit"
	FallbackPolicyZero       = "zero"
)

// defaultDocumentaryTerms はドキュメンタリー判定に使う既定の語句リスト。
var defaultDocumentaryTerms = []string{
	"documentary", "docu", "non-fiction", "true story", "biography", "investigative",
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// External APIs
	TMDBAPIKey string
	OMDBAPIKey string
	APITimeout time.Duration

	// Discovery
	TopicKeywords         []string
	MinYear               int
	MaxYear               int
	YearTolerance         int
	DiscoveryYearLookback int
	MaxPages              int
	MinVoteCount          int
	MinVoteAverage        float64
	WatchRegion           string
	DocumentaryTerms      []string

	// Validation batches
	BatchSize  int
	BatchDelay time.Duration

	// Result
	ResultLimit        int
	FallbackPolicy     string
	FallbackEnrich     bool
	FallbackTitlesFile string

	// Cache
	CacheBackend   string
	CacheKeyPrefix string
	CacheTTL       time.Duration
	SingleFlight   bool
	DatabaseURL    string
	RedisURL       string

	// Worker
	RefreshInterval time.Duration

	// Rate Limit
	RateLimitGeneral int

	// Logging
	LogLevel string
	LogFile  string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.TMDBAPIKey = os.Getenv("TMDB_API_KEY")
	if cfg.TMDBAPIKey == "" {
		missing = append(missing, "TMDB_API_KEY")
	}

	cfg.OMDBAPIKey = os.Getenv("OMDB_API_KEY")
	if cfg.OMDBAPIKey == "" {
		missing = append(missing, "OMDB_API_KEY")
	}

	cfg.TopicKeywords = splitList(os.Getenv("KEYWORDS"))
	if len(cfg.TopicKeywords) == 0 {
		missing = append(missing, "KEYWORDS")
	}

	cfg.CacheBackend = strings.ToLower(getEnvString("CACHE_BACKEND", CacheBackendPostgres))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	switch cfg.CacheBackend {
	case CacheBackendPostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case CacheBackendRedis:
		if cfg.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported CACHE_BACKEND: %q (allowed: %s, %s)",
			cfg.CacheBackend, CacheBackendPostgres, CacheBackendRedis)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.APITimeout = getEnvDuration("API_TIMEOUT", 10*time.Second)
	cfg.MinYear = getEnvInt("MIN_YEAR", 2000)
	cfg.MaxYear = getEnvInt("MAX_YEAR", 2025)
	cfg.YearTolerance = getEnvInt("YEAR_TOLERANCE", 0)
	cfg.DiscoveryYearLookback = getEnvInt("DISCOVERY_YEAR_LOOKBACK", 2)
	cfg.MaxPages = getEnvInt("MAX_PAGES", 1)
	cfg.MinVoteCount = getEnvInt("MIN_VOTE_COUNT", 10)
	cfg.MinVoteAverage = getEnvFloat("MIN_VOTE_AVERAGE", 6.0)
	cfg.WatchRegion = getEnvString("WATCH_REGION", "US")
	cfg.DocumentaryTerms = splitList(os.Getenv("DOCUMENTARY_TERMS"))
	if len(cfg.DocumentaryTerms) == 0 {
		cfg.DocumentaryTerms = append([]string(nil), defaultDocumentaryTerms...)
	}
	cfg.BatchSize = getEnvInt("BATCH_SIZE", 5)
	cfg.BatchDelay = getEnvDuration("BATCH_DELAY", 500*time.Millisecond)
	cfg.ResultLimit = getEnvInt("RESULT_LIMIT", 40)
	cfg.FallbackPolicy = getEnvString("FALLBACK_POLICY", FallbackPolicyBelowLimit)
	cfg.FallbackEnrich = getEnvBool("FALLBACK_ENRICH", true)
	cfg.FallbackTitlesFile = getEnvString("FALLBACK_TITLES_FILE", "")
	cfg.CacheKeyPrefix = getEnvString("CACHE_KEY_PREFIX", "DOCS")
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 24*time.Hour)
	cfg.SingleFlight = getEnvBool("SINGLE_FLIGHT", true)
	cfg.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", 24*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.LogFile = getEnvString("LOG_FILE", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は値の整合性を検証する。
func (c *Config) validate() error {
	if c.MinYear > c.MaxYear {
		return fmt.Errorf("MIN_YEAR (%d) must not be greater than MAX_YEAR (%d)", c.MinYear, c.MaxYear)
	}
	if c.ResultLimit <= 0 {
		return fmt.Errorf("RESULT_LIMIT must be positive: %d", c.ResultLimit)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive: %d", c.BatchSize)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("MAX_PAGES must be positive: %d", c.MaxPages)
	}
	if c.YearTolerance < 0 {
		return fmt.Errorf("YEAR_TOLERANCE must not be negative: %d", c.YearTolerance)
	}
	switch c.FallbackPolicy {
	case FallbackPolicyBelowLimit, FallbackPolicyZero:
	default:
		return fmt.Errorf("unsupported FALLBACK_POLICY: %q", c.FallbackPolicy)
	}
	return nil
}

// splitList はカンマ区切りの文字列を分割し、前後の空白と空要素を取り除く。
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
