// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReservationMetrics は予約サービスから利用するメトリクス収集のインターフェース。
type ReservationMetrics interface {
	RecordReservationCreated()
	RecordReservationUpdated()
	RecordReservationDeleted()
	// RecordReservationRejected は拒否理由（エラーコード）ごとに記録する。
	RecordReservationRejected(reason string)
	RecordStorageLatency(operation string, duration time.Duration)
}

// HTTPMetrics はミドルウェアから利用するメトリクス収集のインターフェース。
type HTTPMetrics interface {
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	created        prometheus.Counter
	updated        prometheus.Counter
	deleted        prometheus.Counter
	rejected       *prometheus.CounterVec
	storageLatency *prometheus.HistogramVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roombook_reservations_created_total",
			Help: "作成された予約の合計数",
		}),
		updated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roombook_reservations_updated_total",
			Help: "更新された予約の合計数",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roombook_reservations_deleted_total",
			Help: "削除された予約の合計数",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombook_reservations_rejected_total",
			Help: "拒否された予約操作の数（理由別）",
		}, []string{"reason"}),
		storageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roombook_storage_latency_seconds",
			Help:    "ストレージ操作のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombook_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.created,
		c.updated,
		c.deleted,
		c.rejected,
		c.storageLatency,
		c.httpStatus,
	)

	return c
}

// RecordReservationCreated は予約作成を記録する。
func (c *Collector) RecordReservationCreated() {
	c.created.Inc()
}

// RecordReservationUpdated は予約更新を記録する。
func (c *Collector) RecordReservationUpdated() {
	c.updated.Inc()
}

// RecordReservationDeleted は予約削除を記録する。
func (c *Collector) RecordReservationDeleted() {
	c.deleted.Inc()
}

// RecordReservationRejected は拒否された操作を理由別に記録する。
func (c *Collector) RecordReservationRejected(reason string) {
	c.rejected.WithLabelValues(reason).Inc()
}

// RecordStorageLatency はストレージ操作のレイテンシを記録する。
func (c *Collector) RecordStorageLatency(operation string, duration time.Duration) {
	c.storageLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Noop は何も記録しない実装。テストやメトリクス無効時に使う。
type Noop struct{}

func (Noop) RecordReservationCreated() {}
func (Noop) RecordReservationUpdated() {}
func (Noop) RecordReservationDeleted() {}
func (Noop) RecordReservationRejected(string) {}
func (Noop) RecordStorageLatency(string, time.Duration) {}
func (Noop) RecordHTTPStatus(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ ReservationMetrics = (*Collector)(nil)
	_ HTTPMetrics        = (*Collector)(nil)
	_ ReservationMetrics = Noop{}
	_ HTTPMetrics        = Noop{}
)
