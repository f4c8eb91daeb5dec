// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/docupicks/internal/cache"
	"github.com/hitoshi/docupicks/internal/middleware"
	"github.com/hitoshi/docupicks/internal/model"
	"github.com/hitoshi/docupicks/internal/pipeline"
)

// レスポンスヘッダー
const (
	HeaderSource   = "X-Docupicks-Source"
	HeaderCacheKey = "X-Docupicks-Cache-Key"
)

// maxTitleQueryLength はタイトル検索で受け付ける最大文字数。
const maxTitleQueryLength = 200

// DocumentaryLister は当日のドキュメンタリー一覧を返す。*cache.ReadThroughが実装する。
type DocumentaryLister interface {
	Documentaries(ctx context.Context) (*cache.Result, error)
}

// TitleSearcher はタイトルで作品を検索する。*pipeline.Pipelineが実装する。
type TitleSearcher interface {
	LookupTitle(ctx context.Context, title string) (*model.Documentary, error)
}

// DocumentaryHandler はドキュメンタリー一覧と検索のHTTPハンドラー。
type DocumentaryHandler struct {
	lister   DocumentaryLister
	searcher TitleSearcher
	logger   *slog.Logger
}

// NewDocumentaryHandler はDocumentaryHandlerを生成する。
func NewDocumentaryHandler(lister DocumentaryLister, searcher TitleSearcher, logger *slog.Logger) *DocumentaryHandler {
	return &DocumentaryHandler{
		lister:   lister,
		searcher: searcher,
		logger:   logger,
	}
}

// ListDocumentaries は当日のドキュメンタリー一覧を返す。
// GET /api/documentaries, GET /cache
func (h *DocumentaryHandler) ListDocumentaries(w http.ResponseWriter, r *http.Request) {
	result, err := h.lister.Documentaries(r.Context())
	if err != nil {
		h.logger.Error("ドキュメンタリー一覧の取得に失敗しました",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		middleware.WriteLegacyError(w, http.StatusInternalServerError, model.NewPipelineFailedError().Message)
		return
	}

	docs := result.Documentaries
	if docs == nil {
		docs = []model.Documentary{}
	}

	w.Header().Set(HeaderSource, string(result.Source))
	w.Header().Set(HeaderCacheKey, result.Key)
	if err := middleware.WriteJSON(w, http.StatusOK, docs); err != nil {
		h.logger.Warn("レスポンスの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}

// SearchDocumentary はタイトルでドキュメンタリーを検索する。
// GET /api/documentaries/search?title=xxx
func (h *DocumentaryHandler) SearchDocumentary(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidQueryError("titleが空です"))
		return
	}
	if len([]rune(title)) > maxTitleQueryLength {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidQueryError("titleが長すぎます"))
		return
	}

	doc, err := h.searcher.LookupTitle(r.Context(), title)
	if err != nil {
		h.handleSearchError(w, r, title, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, doc)
}

// handleSearchError は検索エラーを適切なHTTPレスポンスに変換する。
func (h *DocumentaryHandler) handleSearchError(w http.ResponseWriter, r *http.Request, title string, err error) {
	switch {
	case errors.Is(err, pipeline.ErrTitleNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewTitleNotFoundError(title))
	case errors.Is(err, pipeline.ErrNotDocumentary):
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewNotADocumentaryError(title))
	default:
		h.logger.Error("タイトル検索に失敗しました",
			slog.String("title", title),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		middleware.WriteInternalServerError(w)
	}
}
