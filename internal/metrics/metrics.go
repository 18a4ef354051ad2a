// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、キャッシュ、ミドルウェアから利用する。
type MetricsCollector interface {
	RecordRollover(updated, failed int)
	RecordImport(imported, skipped, errored int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordCacheResult(hit bool)
	RecordIconEnrichment(result string)
}

// アイコン取得結果のラベル値
const (
	IconResultKnownService = "known_service"
	IconResultFetched      = "fetched"
	IconResultNotFound     = "not_found"
	IconResultRejected     = "rejected"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	rolloverUpdates  prometheus.Counter
	rolloverFailures prometheus.Counter
	importRecords    *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
	cacheRequests    *prometheus.CounterVec
	iconEnrichment   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		rolloverUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subman_rollover_updates_total",
			Help: "自動更新で次回支払日を進めたサブスクリプションの合計数",
		}),
		rolloverFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subman_rollover_failures_total",
			Help: "自動更新の書き込みに失敗したサブスクリプションの合計数",
		}),
		importRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subman_import_records_total",
			Help: "インポート結果別のレコード数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "subman_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subman_cache_requests_total",
			Help: "キャッシュのヒット/ミス別の参照数",
		}, []string{"result"}),
		iconEnrichment: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subman_icon_enrichment_total",
			Help: "アイコン補完の結果別の件数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.rolloverUpdates,
		c.rolloverFailures,
		c.importRecords,
		c.httpStatus,
		c.requestLatency,
		c.cacheRequests,
		c.iconEnrichment,
	)

	return c
}

// RecordRollover は自動更新パスの結果を記録する。
func (c *Collector) RecordRollover(updated, failed int) {
	c.rolloverUpdates.Add(float64(updated))
	c.rolloverFailures.Add(float64(failed))
}

// RecordImport はインポート結果を記録する。
func (c *Collector) RecordImport(imported, skipped, errored int) {
	c.importRecords.WithLabelValues("imported").Add(float64(imported))
	c.importRecords.WithLabelValues("skipped").Add(float64(skipped))
	c.importRecords.WithLabelValues("error").Add(float64(errored))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordCacheResult はキャッシュのヒット/ミスを記録する。
func (c *Collector) RecordCacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheRequests.WithLabelValues(result).Inc()
}

// RecordIconEnrichment はアイコン補完の結果を記録する。
func (c *Collector) RecordIconEnrichment(result string) {
	c.iconEnrichment.WithLabelValues(result).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordRollover(int, int) {}
func (Nop) RecordImport(int, int, int) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordRequestLatency(time.Duration) {}
func (Nop) RecordCacheResult(bool) {}
func (Nop) RecordIconEnrichment(string) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// HTTPMiddleware はレスポンスのステータスコードと処理時間を記録するミドルウェアを返す。
func HTTPMiddleware(c MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			c.RecordHTTPStatus(rec.status)
			c.RecordRequestLatency(time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
