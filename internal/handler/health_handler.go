package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/docupicks/internal/middleware"
)

// healthCheckTimeout はストアへの疎通確認のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// HealthChecker はキャッシュストアへの疎通を確認する。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// healthResponse は /health のレスポンス。
type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// NewHealthHandler はキャッシュストアの疎通を確認するハンドラーを返す。
// 疎通できない場合は503を返す。
func NewHealthHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := checker.Ping(ctx); err != nil {
			logger.Warn("キャッシュストアに接続できません", slog.String("error", err.Error()))
			middleware.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Store: "down"})
			return
		}

		middleware.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: "up"})
	}
}
