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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordCardsServed(mode string, count int)
	RecordSelectionLatency(duration time.Duration)
	RecordProgressUpdate(mastery string)
	RecordSessionCompleted()
	RecordCacheHit()
	RecordCacheMiss()
	RecordHTTPStatus(statusCode int)
	RecordStaleSessionsClosed(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cardsServed         *prometheus.CounterVec
	selectionLatency    prometheus.Histogram
	progressUpdates     *prometheus.CounterVec
	sessionsCompleted   prometheus.Counter
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	httpStatus          *prometheus.CounterVec
	staleSessionsClosed prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cardsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cissp_cards_served_total",
			Help: "学習モード別の配信カード合計数",
		}, []string{"mode"}),
		selectionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cissp_card_selection_seconds",
			Help:    "学習キュー構築のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		progressUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cissp_progress_updates_total",
			Help: "習熟状態別の進捗更新合計数",
		}, []string{"mastery"}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cissp_sessions_completed_total",
			Help: "完了した学習セッションの合計数",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cissp_cache_hits_total",
			Help: "キャッシュヒットの合計数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cissp_cache_misses_total",
			Help: "キャッシュミスの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cissp_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		staleSessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cissp_stale_sessions_closed_total",
			Help: "ワーカーが自動終了した学習セッションの合計数",
		}),
	}

	reg.MustRegister(
		c.cardsServed,
		c.selectionLatency,
		c.progressUpdates,
		c.sessionsCompleted,
		c.cacheHits,
		c.cacheMisses,
		c.httpStatus,
		c.staleSessionsClosed,
	)

	return c
}

// RecordCardsServed は配信したカード数をモード別に記録する。
func (c *Collector) RecordCardsServed(mode string, count int) {
	c.cardsServed.WithLabelValues(mode).Add(float64(count))
}

// RecordSelectionLatency は学習キュー構築のレイテンシを記録する。
func (c *Collector) RecordSelectionLatency(duration time.Duration) {
	c.selectionLatency.Observe(duration.Seconds())
}

// RecordProgressUpdate は進捗更新を習熟状態別に記録する。
func (c *Collector) RecordProgressUpdate(mastery string) {
	c.progressUpdates.WithLabelValues(mastery).Inc()
}

// RecordSessionCompleted はセッション完了を記録する。
func (c *Collector) RecordSessionCompleted() {
	c.sessionsCompleted.Inc()
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordStaleSessionsClosed は自動終了したセッション数を記録する。
func (c *Collector) RecordStaleSessionsClosed(count int) {
	c.staleSessionsClosed.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
