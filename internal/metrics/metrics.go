// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// モニターと配信タスクから利用する。
type MetricsCollector interface {
	RecordUpstreamStatus(site string, statusCode int)
	RecordUpstreamFailure(site string)
	RecordDecodeFailure(site string)
	RecordEvent(site string, kind string)
	RecordDelivery(outcome string)
	RecordRateLimitNoRetry()
	RecordInvalidEndpoint()
	SetOfflineSites(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamStatus   *prometheus.CounterVec
	upstreamFail     *prometheus.CounterVec
	decodeFail       *prometheus.CounterVec
	events           *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	rateLimitNoRetry prometheus.Counter
	invalidEndpoints prometheus.Counter
	offlineSites     prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopmon_upstream_status_total",
			Help: "サイト別・HTTPステータスコード別の商品フィード取得数",
		}, []string{"site", "status_code"}),
		upstreamFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopmon_upstream_failure_total",
			Help: "サイト別の商品フィード取得失敗（トランスポートエラー）数",
		}, []string{"site"}),
		decodeFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopmon_decode_failure_total",
			Help: "サイト別の商品フィードのデコード失敗数",
		}, []string{"site"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopmon_events_total",
			Help: "サイト別・種別ごとの検出イベント数",
		}, []string{"site", "kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopmon_webhook_deliveries_total",
			Help: "結果分類ごとのWebhook配信数",
		}, []string{"outcome"}),
		rateLimitNoRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shopmon_webhook_rate_limit_no_retry_total",
			Help: "待機秒数を伴わないレート制限応答で打ち切られた配信数",
		}),
		invalidEndpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shopmon_invalid_endpoints_total",
			Help: "無効と判定されたWebhookエンドポイントの登録数",
		}),
		offlineSites: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shopmon_offline_sites",
			Help: "現在オフラインと判定されているサイト数",
		}),
	}

	reg.MustRegister(
		c.upstreamStatus,
		c.upstreamFail,
		c.decodeFail,
		c.events,
		c.deliveries,
		c.rateLimitNoRetry,
		c.invalidEndpoints,
		c.offlineSites,
	)

	return c
}

// RecordUpstreamStatus は商品フィード取得のHTTPステータスを記録する。
func (c *Collector) RecordUpstreamStatus(site string, statusCode int) {
	c.upstreamStatus.WithLabelValues(site, strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamFailure は商品フィード取得のトランスポートエラーを記録する。
func (c *Collector) RecordUpstreamFailure(site string) {
	c.upstreamFail.WithLabelValues(site).Inc()
}

// RecordDecodeFailure は商品フィードのデコード失敗を記録する。
func (c *Collector) RecordDecodeFailure(site string) {
	c.decodeFail.WithLabelValues(site).Inc()
}

// RecordEvent は検出イベントを記録する。
func (c *Collector) RecordEvent(site string, kind string) {
	c.events.WithLabelValues(site, kind).Inc()
}

// RecordDelivery はWebhook配信の結果を記録する。
func (c *Collector) RecordDelivery(outcome string) {
	c.deliveries.WithLabelValues(outcome).Inc()
}

// RecordRateLimitNoRetry は待機秒数なしのレート制限による打ち切りを記録する。
func (c *Collector) RecordRateLimitNoRetry() {
	c.rateLimitNoRetry.Inc()
}

// RecordInvalidEndpoint は無効エンドポイントの登録を記録する。
func (c *Collector) RecordInvalidEndpoint() {
	c.invalidEndpoints.Inc()
}

// SetOfflineSites は現在のオフラインサイト数を設定する。
func (c *Collector) SetOfflineSites(count int) {
	c.offlineSites.Set(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
