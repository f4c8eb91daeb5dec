package middleware

import (
	"net/http"
	"strings"
)

// CORSで公開するレスポンスヘッダー。キャッシュの出所をフロントエンドから参照できるようにする。
var corsExposedHeaders = strings.Join([]string{
	"X-Docupicks-Source", "X-Docupicks-Cache-Key", RequestIDHeader,
}, ", ")

// NewCORSMiddleware はCORSミドルウェアを返す。
// allowedOriginはカンマ区切りで複数指定できる。1件の場合は常にそのオリジンを返し、
// 複数の場合はリクエストのOriginと一致したものだけを返す（Vary: Origin付き）。
// 読み取り専用APIのためcredentialsは許可しない。OPTIONSプリフライトには204で応答する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	var origins []string
	for _, o := range strings.Split(allowedOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if origin := matchOrigin(origins, r.Header.Get("Origin")); origin != "" {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			if len(origins) > 1 {
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
			h.Set("Access-Control-Expose-Headers", corsExposedHeaders)
			h.Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// matchOrigin はレスポンスに載せるAllow-Originを決める。一致しない場合は空文字を返す。
func matchOrigin(origins []string, requestOrigin string) string {
	if len(origins) == 1 {
		return origins[0]
	}
	for _, o := range origins {
		if o == "*" {
			return o
		}
		if requestOrigin != "" && strings.EqualFold(o, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
