// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder はメトリクス収集のインターフェース。
// フェッチ/パースのパイプラインから利用する。
type Recorder interface {
	RecordFetchOutcome(status int)
	RecordFetchLatency(duration time.Duration)
	RecordParseSuccess(storyCount int)
	RecordParseFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchStatus   *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	parseSuccess  prometheus.Counter
	parseFail     prometheus.Counter
	storysUpdated prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedpipe_fetch_status_total",
			Help: "フェッチ結果のステータスコード別の合計数（センチネル含む）",
		}, []string{"status"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedpipe_fetch_latency_seconds",
			Help:    "フィードフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		parseSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedpipe_parse_success_total",
			Help: "フィードパース成功の合計数",
		}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedpipe_parse_fail_total",
			Help: "フィードパース失敗の合計数",
		}),
		storysUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedpipe_storys_updated_total",
			Help: "新規または変更として検出された記事の合計数",
		}),
	}

	reg.MustRegister(
		c.fetchStatus,
		c.fetchLatency,
		c.parseSuccess,
		c.parseFail,
		c.storysUpdated,
	)

	return c
}

// RecordFetchOutcome はフェッチ結果のステータスを記録する。
func (c *Collector) RecordFetchOutcome(status int) {
	c.fetchStatus.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordParseSuccess はパース成功と更新記事数を記録する。
func (c *Collector) RecordParseSuccess(storyCount int) {
	c.parseSuccess.Inc()
	c.storysUpdated.Add(float64(storyCount))
}

// RecordParseFailure はパース失敗を記録する。
func (c *Collector) RecordParseFailure() {
	c.parseFail.Inc()
}
