// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// store.StatusRecorder、contact.MutationRecorder、poll.PollRecorderを実装する。
type Collector struct {
	pollSuccess     prometheus.Counter
	pollFail        prometheus.Counter
	pollLatency     prometheus.Histogram
	snapshotEntries prometheus.Gauge
	snapshotUsers   prometheus.Gauge
	mutations       *prometheus.CounterVec
	storeHTTPStatus *prometheus.CounterVec
	streamClients   prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pollSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatman_poll_success_total",
			Help: "ポーリングサイクル成功の合計数",
		}),
		pollFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatman_poll_fail_total",
			Help: "ポーリングサイクル失敗の合計数",
		}),
		pollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatman_poll_latency_seconds",
			Help:    "ポーリングサイクルのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		snapshotEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatman_snapshot_entries",
			Help: "最新スナップショットのエントリ数",
		}),
		snapshotUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatman_snapshot_users",
			Help: "最新スナップショットのユーザー数",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatman_mutations_total",
			Help: "接続リクエスト・メッセージのミューテーション実行数（種別ラベル付き）",
		}, []string{"kind"}),
		storeHTTPStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatman_store_http_status_total",
			Help: "リモートストアのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatman_stream_clients",
			Help: "接続中のWebSocketストリーム購読者数",
		}),
	}

	reg.MustRegister(
		c.pollSuccess,
		c.pollFail,
		c.pollLatency,
		c.snapshotEntries,
		c.snapshotUsers,
		c.mutations,
		c.storeHTTPStatus,
		c.streamClients,
	)

	return c
}

// RecordPollSuccess はポーリングサイクル成功を記録する。
func (c *Collector) RecordPollSuccess(duration time.Duration, entryCount, userCount int) {
	c.pollSuccess.Inc()
	c.pollLatency.Observe(duration.Seconds())
	c.snapshotEntries.Set(float64(entryCount))
	c.snapshotUsers.Set(float64(userCount))
}

// RecordPollFailure はポーリングサイクル失敗を記録する。
func (c *Collector) RecordPollFailure() {
	c.pollFail.Inc()
}

// RecordMutation はミューテーション実行を種別付きで記録する。
func (c *Collector) RecordMutation(kind string) {
	c.mutations.WithLabelValues(kind).Inc()
}

// RecordStoreHTTPStatus はリモートストアのHTTPステータスコードを記録する。
func (c *Collector) RecordStoreHTTPStatus(statusCode int) {
	c.storeHTTPStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// StreamClientConnected はWebSocket購読者の接続を記録する。
func (c *Collector) StreamClientConnected() {
	c.streamClients.Inc()
}

// StreamClientDisconnected はWebSocket購読者の切断を記録する。
func (c *Collector) StreamClientDisconnected() {
	c.streamClients.Dec()
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
