package pipeline

import (
	"context"
	"time"

	"github.com/hitoshi/docupicks/internal/omdb"
	"github.com/hitoshi/docupicks/internal/tmdb"
)

// CatalogSource はカタログソースへのアクセスを定義する。*tmdb.Clientが実装する。
type CatalogSource interface {
	Discover(ctx context.Context, p tmdb.DiscoverParams) ([]tmdb.Movie, error)
	SearchKeyword(ctx context.Context, query string) ([]tmdb.Keyword, error)
	WatchProviders(ctx context.Context, movieID int, region string) ([]tmdb.Provider, error)
	SearchMovie(ctx context.Context, title string, year int) ([]tmdb.Movie, error)
	FindByIMDbID(ctx context.Context, imdbID string) (*tmdb.Movie, error)
}

// ValidationSource はバリデーションソースへのアクセスを定義する。*omdb.Clientが実装する。
type ValidationSource interface {
	LookupByTitle(ctx context.Context, title string, year int) (*omdb.Title, error)
}

// TextSanitizer は外部から取得したテキストのマークアップを除去する。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// PosterGuard はポスターURLの安全性を検証する。
type PosterGuard interface {
	SafePosterURL(rawURL, fallback string) string
}

// Recorder はパイプラインの計測値を受け取る。
type Recorder interface {
	AddCandidates(n int)
	IncValidated()
	IncRejected(reason string)
	IncFallback(policy string)
	ObservePipeline(outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) AddCandidates(int) {}
func (nopRecorder) IncValidated() {}
func (nopRecorder) IncRejected(string) {}
func (nopRecorder) IncFallback(string) {}
func (nopRecorder) ObservePipeline(string, time.Duration) {}
