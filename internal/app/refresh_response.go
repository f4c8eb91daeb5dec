package app

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/hitoshi/docupicks/internal/cache"
	"github.com/hitoshi/docupicks/internal/model"
)

// handlerResponse はサーバーレス関数のレスポンス形式。
// bodyはJSONを文字列にエンコードしたもの。
type handlerResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// responseHeaders はCORS設定が複数オリジンの場合、先頭のオリジンを使う。
func responseHeaders(origin string) map[string]string {
	if i := strings.IndexByte(origin, ','); i >= 0 {
		origin = origin[:i]
	}
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = "*"
	}
	return map[string]string{
		"Content-Type":                "application/json",
		"Access-Control-Allow-Origin": origin,
	}
}

// failureResponse は {"error": "Failed to load movies"} を返す500レスポンス。
func failureResponse(origin string) handlerResponse {
	body, _ := json.Marshal(map[string]string{"error": model.NewPipelineFailedError().Message})
	return handlerResponse{
		StatusCode: http.StatusInternalServerError,
		Headers:    responseHeaders(origin),
		Body:       string(body),
	}
}

// buildHandlerResponse はread-throughの結果をレスポンス形式に変換する。
func buildHandlerResponse(result *cache.Result, err error, origin string) handlerResponse {
	if err == nil && result == nil {
		err = errNoResult
	}
	if err != nil {
		return failureResponse(origin)
	}

	docs := result.Documentaries
	if docs == nil {
		docs = []model.Documentary{}
	}
	body, merr := json.Marshal(docs)
	if merr != nil {
		return failureResponse(origin)
	}

	headers := responseHeaders(origin)
	headers["X-Docupicks-Source"] = string(result.Source)
	headers["X-Docupicks-Cache-Key"] = result.Key
	return handlerResponse{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       string(body),
	}
}

func writeHandlerResponse(w io.Writer, resp handlerResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
