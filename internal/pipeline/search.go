package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/docupicks/internal/model"
	"github.com/hitoshi/docupicks/internal/omdb"
)

var (
	// ErrTitleNotFound はタイトル検索で作品が見つからない場合のエラー。
	ErrTitleNotFound = errors.New("pipeline: title not found")
	// ErrNotDocumentary は検索した作品がドキュメンタリーではない場合のエラー。
	ErrNotDocumentary = errors.New("pipeline: not a documentary")
)

// LookupTitle はユーザーが入力したタイトルで作品を検索する。
// ジャンルがドキュメンタリーと判定できない場合はErrNotDocumentaryを返す。
func (p *Pipeline) LookupTitle(ctx context.Context, title string) (*model.Documentary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleNotFound
	}

	t, err := p.validation.LookupByTitle(ctx, title, 0)
	if err != nil {
		if errors.Is(err, omdb.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTitleNotFound, title)
		}
		return nil, fmt.Errorf("作品の検索に失敗しました: %w", err)
	}
	if !p.classifier.IsDocumentary(t.Genre) {
		return nil, fmt.Errorf("%w: %s", ErrNotDocumentary, t.Title)
	}

	doc := newDocumentary(t, p.sanitizer, p.posters)
	if t.IMDbID != "" {
		movie, err := p.catalog.FindByIMDbID(ctx, t.IMDbID)
		if err != nil {
			p.logger.Info("カタログに作品が見つかりません",
				slog.String("imdb_id", t.IMDbID),
				slog.String("error", err.Error()),
			)
		} else {
			doc.CatalogID = movie.ID
			doc.ReleaseDate = movie.ReleaseDate
			doc.Synopsis = p.sanitizer.SanitizeText(movie.Overview)
			doc.WatchProviders = p.enricher.Providers(ctx, movie.ID)
		}
	}
	return &doc, nil
}
