package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/docupicks/internal/cache"
	"github.com/hitoshi/docupicks/internal/metrics"
	"github.com/hitoshi/docupicks/internal/middleware"
	"github.com/hitoshi/docupicks/internal/model"
)

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

func createTestRouter(t *testing.T, health *mockHealthChecker) http.Handler {
	t.Helper()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	collector.IncCacheLookup("hit")

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    3,
		CleanupInterval: time.Minute,
	}, newTestLogger())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		CORSAllowedOrigin: "*",
		RateLimiter:       rl,
		Logger:            newTestLogger(),
		Lister: &mockLister{
			documentariesFn: func(ctx context.Context) (*cache.Result, error) {
				return &cache.Result{
					Key:           "DOCS-2026-10-17",
					Source:        cache.SourcePipeline,
					Documentaries: sampleDocumentaries(),
				}, nil
			},
		},
		Searcher: &mockSearcher{
			lookupTitleFn: func(ctx context.Context, title string) (*model.Documentary, error) {
				docs := sampleDocumentaries()
				return &docs[0], nil
			},
		},
		HealthChecker: health,
		Gatherer:      reg,
	})
}

func TestNewRouter_Routes(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{})

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"list", "/api/documentaries", http.StatusOK},
		{"list trailing slash", "/api/documentaries/", http.StatusOK},
		{"cache alias", "/cache", http.StatusOK},
		{"search", "/api/documentaries/search?title=I+am+not+your+negro", http.StatusOK},
		{"health", "/health", http.StatusOK},
		{"metrics", "/metrics", http.StatusOK},
		{"unknown", "/api/feeds", http.StatusNotFound},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			// レート制限に掛からないよう、ケースごとにクライアントを変える
			req.RemoteAddr = "192.0.2." + string(rune('1'+i)) + ":4000"
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Result().StatusCode != tt.wantStatus {
				t.Errorf("GET %s status = %d, want %d", tt.path, w.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestNewRouter_CacheAliasMatchesAPI(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{})

	get := func(path string) string {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Body.String()
	}

	if a, b := get("/api/documentaries"), get("/cache"); a != b {
		t.Errorf("/cache と /api/documentaries の応答が異なる:\n%s\n%s", a, b)
	}
}

func TestNewRouter_AppliesMiddleware(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{})

	req := httptest.NewRequest(http.MethodGet, "/api/documentaries", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Error("X-Request-ID should be set")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be applied")
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS headers should be applied")
	}
	if resp.Header.Get(HeaderSource) != "pipeline" {
		t.Errorf("%s = %q, want pipeline", HeaderSource, resp.Header.Get(HeaderSource))
	}
}

func TestNewRouter_RateLimitExcludesHealth(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{})

	var last int
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/cache", nil)
		req.RemoteAddr = "198.51.100.7:1000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		last = w.Result().StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("4回目のstatus = %d, want %d", last, http.StatusTooManyRequests)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.7:1000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("/health はレート制限の対象外であるべき: status = %d", w.Result().StatusCode)
	}
}

func TestNewRouter_HealthStoreDown_Returns503(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Status != "unavailable" || body.Store != "down" {
		t.Errorf("body = %+v", body)
	}
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	router := createTestRouter(t, &mockHealthChecker{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	body, _ := io.ReadAll(w.Result().Body)
	if !strings.Contains(string(body), "docupicks_cache_lookups_total") {
		t.Error("/metrics should expose docupicks_cache_lookups_total")
	}
}
