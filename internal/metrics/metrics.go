// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docupicks"

// MetricsCollector はメトリクス収集のインターフェース。
// パイプライン、キャッシュ、外部APIクライアント、ワーカーから利用する。
type MetricsCollector interface {
	AddCandidates(n int)
	IncValidated()
	IncRejected(reason string)
	IncFallback(policy string)
	ObservePipeline(outcome string, d time.Duration)
	IncCacheLookup(result string)
	ObserveExternalCall(source, endpoint string, statusCode int, duration time.Duration)
	RecordRefresh(outcome string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	candidates       prometheus.Counter
	validated        prometheus.Counter
	rejected         *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	pipelineRuns     *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	cacheLookups     *prometheus.CounterVec
	externalCalls    *prometheus.CounterVec
	externalLatency  *prometheus.HistogramVec
	refreshes        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_discovered_total",
			Help:      "ディスカバリーで収集した候補作品の合計数",
		}),
		validated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_validated_total",
			Help:      "検証を通過した作品の合計数",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_rejected_total",
			Help:      "除外理由別の除外作品数",
		}, []string{"reason"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_activations_total",
			Help:      "推薦作品による補完の発動回数",
		}, []string{"policy"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "結果別のパイプライン実行回数",
		}, []string{"outcome"}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "パイプライン1回の実行時間（秒）",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "結果別のキャッシュ参照数",
		}, []string{"result"}),
		externalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_api_calls_total",
			Help:      "外部API呼び出し数",
		}, []string{"source", "endpoint", "status_code"}),
		externalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_api_latency_seconds",
			Help:      "外部API呼び出しのレイテンシ（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source", "endpoint"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "結果別の定期更新の実行回数",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.candidates,
		c.validated,
		c.rejected,
		c.fallbacks,
		c.pipelineRuns,
		c.pipelineDuration,
		c.cacheLookups,
		c.externalCalls,
		c.externalLatency,
		c.refreshes,
	)

	return c
}

// AddCandidates は収集した候補作品数を記録する。
func (c *Collector) AddCandidates(n int) {
	c.candidates.Add(float64(n))
}

// IncValidated は検証通過を記録する。
func (c *Collector) IncValidated() {
	c.validated.Inc()
}

// IncRejected は除外を理由別に記録する。
func (c *Collector) IncRejected(reason string) {
	c.rejected.WithLabelValues(reason).Inc()
}

// IncFallback は補完の発動を記録する。
func (c *Collector) IncFallback(policy string) {
	c.fallbacks.WithLabelValues(policy).Inc()
}

// ObservePipeline はパイプラインの実行結果と実行時間を記録する。
func (c *Collector) ObservePipeline(outcome string, d time.Duration) {
	c.pipelineRuns.WithLabelValues(outcome).Inc()
	c.pipelineDuration.Observe(d.Seconds())
}

// IncCacheLookup はキャッシュ参照の結果を記録する。
func (c *Collector) IncCacheLookup(result string) {
	c.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveExternalCall は外部API呼び出しを記録する。statusCodeが0の場合は通信エラー。
func (c *Collector) ObserveExternalCall(source, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	if statusCode == 0 {
		status = "error"
	}
	c.externalCalls.WithLabelValues(source, endpoint, status).Inc()
	c.externalLatency.WithLabelValues(source, endpoint).Observe(duration.Seconds())
}

// RecordRefresh は定期更新の実行結果を記録する。
func (c *Collector) RecordRefresh(outcome string) {
	c.refreshes.WithLabelValues(outcome).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ MetricsCollector = (*Collector)(nil)
