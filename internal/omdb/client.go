// Package omdb はバリデーションソース（OMDb API）のクライアントを提供する。
package omdb

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
	defaultEndpoint = "https://www.omdbapi.com/"
	maxBodySize     = 1 << 20
)

// NotAvailable はOMDbが値なしを表すセンチネル文字列。
const NotAvailable = "N/A"

var (
	// ErrNotFound はOMDbが一致する作品なし（Response:"False"）を返した場合のエラー。
	ErrNotFound = errors.New("omdb: title not found")
	// ErrUnauthorized はAPIキーが無効な場合のエラー。
	ErrUnauthorized = errors.New("omdb: invalid API key")
)

// CallObserver は外部API呼び出しの結果を受け取る。
type CallObserver interface {
	ObserveExternalCall(source, endpoint string, statusCode int, duration time.Duration)
}

// Title はOMDbのタイトル検索結果を表す。
type Title struct {
	Response   string `json:"Response"`
	Error      string `json:"Error,omitempty"`
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Rated      string `json:"Rated"`
	Released   string `json:"Released"`
	Runtime    string `json:"Runtime"`
	Genre      string `json:"Genre"`
	Director   string `json:"Director"`
	Writer     string `json:"Writer"`
	Actors     string `json:"Actors"`
	Plot       string `json:"Plot"`
	Awards     string `json:"Awards"`
	Poster     string `json:"Poster"`
	IMDbRating string `json:"imdbRating"`
	IMDbID     string `json:"imdbID"`
	Type       string `json:"Type"`
}

// Client はOMDb APIのクライアント。
type Client struct {
	httpClient *http.Client
	apiKey     string
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
	observer   CallObserver
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		logger:     logger,
		endpoint:   defaultEndpoint,
	}
}

// WithObserver はAPI呼び出しの観測者を設定したClientを返す。
func (c *Client) WithObserver(o CallObserver) *Client {
	c.observer = o
	return c
}

// LookupByTitle はタイトルと公開年で作品を検索する。yearが0の場合は年を指定しない。
// 一致する作品が無い場合はErrNotFoundをラップしたエラーを返す。
func (c *Client) LookupByTitle(ctx context.Context, title string, year int) (*Title, error) {
	q := url.Values{}
	q.Set("t", title)
	if year > 0 {
		q.Set("y", strconv.Itoa(year))
	}
	q.Set("type", "movie")
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "DocuPicks/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(0, time.Since(start))
		c.logger.Warn("OMDb APIの呼び出しに失敗しました",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("omdb: request failed: %w", err)
	}
	defer resp.Body.Close()
	c.observe(resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("omdb: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var t Title
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if t.Response != "True" {
		if t.Error == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, title)
		}
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotFound, title, t.Error)
	}
	return &t, nil
}

func (c *Client) observe(status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveExternalCall("omdb", "title", status, d)
	}
}
