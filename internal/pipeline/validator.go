package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/docupicks/internal/model"
	"github.com/hitoshi/docupicks/internal/omdb"
)

// 検証で除外した理由
const (
	RejectNoMatch        = "no_match"
	RejectYear           = "year"
	RejectNotDocumentary = "not_documentary"
	RejectNoRating       = "no_rating"
	RejectError          = "error"
)

// ItemValidator は候補作品を検証する。除外した場合はnilを返す。
type ItemValidator interface {
	Validate(ctx context.Context, item model.CandidateItem) *model.Documentary
}

// Validator は候補作品をバリデーションソースと突き合わせて検証する。
type Validator struct {
	validation ValidationSource
	enricher   *ProviderEnricher
	classifier *Classifier
	sanitizer  TextSanitizer
	posters    PosterGuard
	cfg        Config
	logger     *slog.Logger
	recorder   Recorder
}

// NewValidator はValidatorを生成する。
func NewValidator(
	validation ValidationSource,
	enricher *ProviderEnricher,
	classifier *Classifier,
	sanitizer TextSanitizer,
	posters PosterGuard,
	cfg Config,
	logger *slog.Logger,
	recorder Recorder,
) *Validator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Validator{
		validation: validation,
		enricher:   enricher,
		classifier: classifier,
		sanitizer:  sanitizer,
		posters:    posters,
		cfg:        cfg,
		logger:     logger,
		recorder:   recorder,
	}
}

// Validate は候補作品を検証し、条件を満たした場合にDocumentaryを返す。
// 最初に満たさなかった条件で打ち切り、nilを返す。エラーは返さない。
func (v *Validator) Validate(ctx context.Context, item model.CandidateItem) *model.Documentary {
	releaseYear := item.ReleaseYear()
	title, err := v.validation.LookupByTitle(ctx, item.Title, releaseYear)
	if err != nil {
		if errors.Is(err, omdb.ErrNotFound) {
			return v.reject(item, RejectNoMatch)
		}
		v.logger.Warn("作品の検証に失敗しました",
			slog.String("title", item.Title),
			slog.String("error", err.Error()),
		)
		return v.reject(item, RejectError)
	}

	year := model.ParseYear(title.Year)
	if year == 0 {
		year = releaseYear
	}
	if !v.cfg.inWindow(year, v.cfg.YearTolerance) {
		return v.reject(item, RejectYear)
	}

	if !v.classifier.IsDocumentary(title.Genre, title.Plot, item.Synopsis) {
		return v.reject(item, RejectNotDocumentary)
	}

	doc := newDocumentary(title, v.sanitizer, v.posters)
	if _, ok := doc.NumericRating(); !ok {
		return v.reject(item, RejectNoRating)
	}

	doc.CatalogID = item.CatalogID
	doc.NormalizedYear = year
	doc.ReleaseDate = item.ReleaseDate
	doc.Synopsis = v.sanitizer.SanitizeText(item.Synopsis)
	doc.WatchProviders = v.enricher.Providers(ctx, item.CatalogID)

	v.recorder.IncValidated()
	return &doc
}

func (v *Validator) reject(item model.CandidateItem, reason string) *model.Documentary {
	v.recorder.IncRejected(reason)
	v.logger.Debug("候補作品を除外しました",
		slog.String("title", item.Title),
		slog.String("reason", reason),
	)
	return nil
}

// newDocumentary はバリデーションソースの結果からDocumentaryを組み立てる。
// 配信サービス情報は空のリストで初期化される。
func newDocumentary(t *omdb.Title, sanitizer TextSanitizer, posters PosterGuard) model.Documentary {
	return model.Documentary{
		ExternalID:     t.IMDbID,
		Title:          t.Title,
		Year:           t.Year,
		NormalizedYear: model.ParseYear(t.Year),
		Genre:          t.Genre,
		Plot:           sanitizer.SanitizeText(t.Plot),
		Rating:         t.IMDbRating,
		Poster:         posters.SafePosterURL(t.Poster, model.PlaceholderPoster),
		Director:       t.Director,
		Runtime:        t.Runtime,
		Rated:          t.Rated,
		Actors:         t.Actors,
		Writer:         t.Writer,
		Awards:         t.Awards,
		WatchProviders: []model.StreamingProvider{},
	}
}
