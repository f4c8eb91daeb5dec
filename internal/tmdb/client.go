// Package tmdb はカタログソース（The Movie Database）のAPIクライアントを提供する。
// ディスカバリー、キーワード検索、配信サービス情報、外部ID検索を扱う。
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// defaultBaseURL はTMDB API v3のベースURL。
	defaultBaseURL = "https://api.themoviedb.org/3"
	// DocumentaryGenreID はTMDBにおけるドキュメンタリーのジャンルID。
	DocumentaryGenreID = 99
	// maxBodySize はレスポンスボディの最大読み取りサイズ。
	maxBodySize = 5 << 20
)

var (
	// ErrUnauthorized はAPIキーが無効な場合のエラー。
	ErrUnauthorized = errors.New("tmdb: invalid API key")
	// ErrRateLimited はレート制限に達した場合のエラー。
	ErrRateLimited = errors.New("tmdb: rate limited")
	// ErrNotFound は該当するリソースが存在しない場合のエラー。
	ErrNotFound = errors.New("tmdb: not found")
)

// CallObserver は外部API呼び出しの結果を受け取る。メトリクス収集に使用する。
type CallObserver interface {
	ObserveExternalCall(source, endpoint string, statusCode int, duration time.Duration)
}

// Movie はディスカバリー・検索結果の作品を表す。
type Movie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Overview    string  `json:"overview"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
}

// Keyword はキーワード検索結果を表す。
type Keyword struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Provider は配信サービス情報を表す。
type Provider struct {
	ProviderID   int    `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	LogoPath     string `json:"logo_path"`
}

// DiscoverParams はディスカバリーの検索条件。
type DiscoverParams struct {
	Page           int
	GenreID        int
	SortBy         string
	MinVoteCount   int
	MinVoteAverage float64
	ReleasedAfter  string // YYYY-MM-DD
	ReleasedBefore string // YYYY-MM-DD
	Region         string
	Keywords       string // "|" 区切りのキーワードID（OR条件）
}

// Client はTMDB APIのクライアント。
type Client struct {
	httpClient *http.Client
	apiKey     string
	logger     *slog.Logger
	baseURL    string // テスト用にベースURLを差し替え可能
	observer   CallObserver
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		logger:     logger,
		baseURL:    defaultBaseURL,
	}
}

// WithObserver はAPI呼び出しの観測者を設定したClientを返す。
func (c *Client) WithObserver(o CallObserver) *Client {
	c.observer = o
	return c
}

// Discover は条件に一致する作品の1ページ分を取得する。
func (c *Client) Discover(ctx context.Context, p DiscoverParams) ([]Movie, error) {
	q := url.Values{}
	q.Set("with_genres", strconv.Itoa(p.GenreID))
	if p.SortBy != "" {
		q.Set("sort_by", p.SortBy)
	}
	q.Set("vote_count.gte", strconv.Itoa(p.MinVoteCount))
	q.Set("vote_average.gte", strconv.FormatFloat(p.MinVoteAverage, 'f', -1, 64))
	if p.ReleasedAfter != "" {
		q.Set("primary_release_date.gte", p.ReleasedAfter)
	}
	if p.ReleasedBefore != "" {
		q.Set("primary_release_date.lte", p.ReleasedBefore)
	}
	if p.Region != "" {
		q.Set("watch_region", p.Region)
		q.Set("region", p.Region)
	}
	q.Set("include_adult", "false")
	q.Set("language", "en-US")
	q.Set("page", strconv.Itoa(p.Page))
	if p.Keywords != "" {
		q.Set("with_keywords", p.Keywords)
	}

	var result struct {
		Results []Movie `json:"results"`
	}
	if err := c.get(ctx, "discover", "/discover/movie", q, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// SearchKeyword はキーワード文字列に一致するキーワードを検索する。
func (c *Client) SearchKeyword(ctx context.Context, query string) ([]Keyword, error) {
	q := url.Values{}
	q.Set("query", query)

	var result struct {
		Results []Keyword `json:"results"`
	}
	if err := c.get(ctx, "search_keyword", "/search/keyword", q, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// WatchProviders は作品の定額配信（flatrate）サービスを指定リージョンで取得する。
// リージョンのデータが無い場合は空のスライスを返す。
func (c *Client) WatchProviders(ctx context.Context, movieID int, region string) ([]Provider, error) {
	var result struct {
		Results map[string]struct {
			Flatrate []Provider `json:"flatrate"`
		} `json:"results"`
	}
	path := fmt.Sprintf("/movie/%d/watch/providers", movieID)
	if err := c.get(ctx, "watch_providers", path, url.Values{}, &result); err != nil {
		return nil, err
	}
	regional, ok := result.Results[region]
	if !ok {
		return []Provider{}, nil
	}
	if regional.Flatrate == nil {
		return []Provider{}, nil
	}
	return regional.Flatrate, nil
}

// SearchMovie はタイトルと公開年で作品を検索する。yearが0の場合は年を指定しない。
func (c *Client) SearchMovie(ctx context.Context, title string, year int) ([]Movie, error) {
	q := url.Values{}
	q.Set("query", title)
	q.Set("include_adult", "false")
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}

	var result struct {
		Results []Movie `json:"results"`
	}
	if err := c.get(ctx, "search_movie", "/search/movie", q, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// FindByIMDbID はIMDb IDからTMDBの作品を検索する。
// 該当が無い場合はErrNotFoundを返す。
func (c *Client) FindByIMDbID(ctx context.Context, imdbID string) (*Movie, error) {
	q := url.Values{}
	q.Set("external_source", "imdb_id")

	var result struct {
		MovieResults []Movie `json:"movie_results"`
	}
	path := "/find/" + url.PathEscape(imdbID)
	if err := c.get(ctx, "find", path, q, &result); err != nil {
		return nil, err
	}
	if len(result.MovieResults) == 0 {
		return nil, fmt.Errorf("%w: imdb_id=%s", ErrNotFound, imdbID)
	}
	return &result.MovieResults[0], nil
}

// get はTMDB APIにGETリクエストを送り、JSONレスポンスをdstにデコードする。
func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values, dst any) error {
	q.Set("api_key", c.apiKey)
	reqURL := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "DocuPicks/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, 0, time.Since(start))
		c.logger.Error("TMDB APIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("tmdb: request failed: %w", err)
	}
	defer resp.Body.Close()
	c.observe(endpoint, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Error("TMDB APIがエラーステータスを返しました",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("tmdb: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		c.logger.Error("TMDB APIのレスポンスのパースに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

func (c *Client) observe(endpoint string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveExternalCall("tmdb", endpoint, status, d)
	}
}
