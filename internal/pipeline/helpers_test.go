package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/docupicks/internal/omdb"
	"github.com/hitoshi/docupicks/internal/security"
	"github.com/hitoshi/docupicks/internal/tmdb"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// mockCatalog はCatalogSourceのモック。
type mockCatalog struct {
	discoverFn       func(ctx context.Context, p tmdb.DiscoverParams) ([]tmdb.Movie, error)
	searchKeywordFn  func(ctx context.Context, query string) ([]tmdb.Keyword, error)
	watchProvidersFn func(ctx context.Context, movieID int, region string) ([]tmdb.Provider, error)
	searchMovieFn    func(ctx context.Context, title string, year int) ([]tmdb.Movie, error)
	findByIMDbIDFn   func(ctx context.Context, imdbID string) (*tmdb.Movie, error)
}

func (m *mockCatalog) Discover(ctx context.Context, p tmdb.DiscoverParams) ([]tmdb.Movie, error) {
	if m.discoverFn != nil {
		return m.discoverFn(ctx, p)
	}
	return nil, nil
}

func (m *mockCatalog) SearchKeyword(ctx context.Context, query string) ([]tmdb.Keyword, error) {
	if m.searchKeywordFn != nil {
		return m.searchKeywordFn(ctx, query)
	}
	return nil, nil
}

func (m *mockCatalog) WatchProviders(ctx context.Context, movieID int, region string) ([]tmdb.Provider, error) {
	if m.watchProvidersFn != nil {
		return m.watchProvidersFn(ctx, movieID, region)
	}
	return []tmdb.Provider{}, nil
}

func (m *mockCatalog) SearchMovie(ctx context.Context, title string, year int) ([]tmdb.Movie, error) {
	if m.searchMovieFn != nil {
		return m.searchMovieFn(ctx, title, year)
	}
	return nil, nil
}

func (m *mockCatalog) FindByIMDbID(ctx context.Context, imdbID string) (*tmdb.Movie, error) {
	if m.findByIMDbIDFn != nil {
		return m.findByIMDbIDFn(ctx, imdbID)
	}
	return nil, tmdb.ErrNotFound
}

// titleBook はタイトルをキーにしたOMDbのモック。並行に呼び出しても安全。
type titleBook struct {
	mu      sync.Mutex
	titles  map[string]*omdb.Title
	lookups []string
}

func newTitleBook(titles ...*omdb.Title) *titleBook {
	b := &titleBook{titles: make(map[string]*omdb.Title)}
	for _, t := range titles {
		b.titles[t.Title] = t
	}
	return b
}

func (b *titleBook) LookupByTitle(_ context.Context, title string, _ int) (*omdb.Title, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lookups = append(b.lookups, title)
	t, ok := b.titles[title]
	if !ok {
		return nil, fmt.Errorf("%w: %s", omdb.ErrNotFound, title)
	}
	copied := *t
	return &copied, nil
}

func (b *titleBook) lookupCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lookups)
}

// docTitle はドキュメンタリーとして検証を通過するOMDbの結果を生成する。
func docTitle(title, year, rating, imdbID string) *omdb.Title {
	return &omdb.Title{
		Response:   "True",
		Title:      title,
		Year:       year,
		Genre:      "Documentary, History",
		Plot:       "A film about " + title + ".",
		IMDbRating: rating,
		IMDbID:     imdbID,
		Poster:     "https://m.media-amazon.com/images/" + imdbID + ".jpg",
		Director:   "Someone",
		Runtime:    "90 min",
		Rated:      "PG-13",
	}
}

// countingRecorder はRecorderのテスト実装。
type countingRecorder struct {
	mu         sync.Mutex
	candidates int
	validated  int
	rejected   map[string]int
	fallbacks  int
	outcomes   []string
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{rejected: make(map[string]int)}
}

func (r *countingRecorder) AddCandidates(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates += n
}

func (r *countingRecorder) IncValidated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validated++
}

func (r *countingRecorder) IncRejected(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[reason]++
}

func (r *countingRecorder) IncFallback(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks++
}

func (r *countingRecorder) ObservePipeline(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func testConfig() Config {
	return Config{
		TopicKeywords:         []string{"police brutality", "civil rights"},
		MinYear:               2000,
		MaxYear:               2025,
		DiscoveryYearLookback: 2,
		MaxPages:              1,
		MinVoteCount:          10,
		MinVoteAverage:        6.0,
		Region:                "US",
		DocumentaryTerms:      DefaultDocumentaryTerms,
		BatchSize:             5,
		BatchDelay:            0,
		ResultLimit:           40,
		FallbackPolicy:        FallbackBelowLimit,
		EnrichFallback:        true,
	}
}

func newTestValidator(cfg Config, catalog CatalogSource, validation ValidationSource, rec Recorder, logger *slog.Logger) *Validator {
	enricher := NewProviderEnricher(catalog, cfg.Region, logger)
	return NewValidator(validation, enricher, NewClassifier(cfg.DocumentaryTerms),
		security.NewTextSanitizer(), security.NewOutboundGuard(), cfg, logger, rec)
}
