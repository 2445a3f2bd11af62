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
// 認証・同期サービスとレジストリクライアントから利用する。
type MetricsCollector interface {
	RecordLogin(success bool)
	RecordSync(performed bool)
	RecordRegistryRequest(endpoint string, statusCode int)
	RecordRegistryLatency(endpoint string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess    prometheus.Counter
	loginFail       prometheus.Counter
	syncPerformed   prometheus.Counter
	syncSkipped     prometheus.Counter
	registryStatus  *prometheus.CounterVec
	registryLatency *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unilib_login_success_total",
			Help: "HEMISログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unilib_login_fail_total",
			Help: "HEMISログイン失敗の合計数",
		}),
		syncPerformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unilib_sync_performed_total",
			Help: "実行されたプロフィール同期の合計数",
		}),
		syncSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unilib_sync_skipped_total",
			Help: "スキップされたプロフィール同期の合計数（鮮度・トークン失効）",
		}),
		registryStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unilib_registry_requests_total",
			Help: "HEMISレジストリへのリクエスト数（エンドポイント・ステータス別）",
		}, []string{"endpoint", "status_code"}),
		registryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unilib_registry_latency_seconds",
			Help:    "HEMISレジストリ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.syncPerformed,
		c.syncSkipped,
		c.registryStatus,
		c.registryLatency,
	)

	return c
}

// RecordLogin はログイン試行の成否を記録する。
func (c *Collector) RecordLogin(success bool) {
	if success {
		c.loginSuccess.Inc()
	} else {
		c.loginFail.Inc()
	}
}

// RecordSync は同期試行が実行されたかスキップされたかを記録する。
func (c *Collector) RecordSync(performed bool) {
	if performed {
		c.syncPerformed.Inc()
	} else {
		c.syncSkipped.Inc()
	}
}

// RecordRegistryRequest はレジストリ呼び出しの結果ステータスを記録する。
// ネットワーク到達失敗はstatusCode=0として記録される。
func (c *Collector) RecordRegistryRequest(endpoint string, statusCode int) {
	c.registryStatus.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
}

// RecordRegistryLatency はレジストリ呼び出しのレイテンシを記録する。
func (c *Collector) RecordRegistryLatency(endpoint string, duration time.Duration) {
	c.registryLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
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
