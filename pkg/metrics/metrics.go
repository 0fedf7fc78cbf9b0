package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 同步 pass 时长（秒）
	SyncPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_pass_duration_seconds",
			Help:    "Duration of one mailbox sync pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~400s
		},
	)

	// 同步 pass 计数
	SyncPassCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_pass_total",
			Help: "Total number of sync passes",
		},
		[]string{"result"}, // result: ok, error, skipped
	)

	// 邮件入库计数
	EmailIngestedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_ingested_total",
			Help: "Total number of emails persisted and published",
		},
	)

	// 邮件跳过计数
	EmailSkippedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_skipped_total",
			Help: "Total number of emails skipped during sync",
		},
		[]string{"reason"}, // reason: sender_policy, duplicate, failed
	)

	// Gmail API 调用延迟（秒）
	GmailCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gmail_call_duration_seconds",
			Help:    "Gmail API call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"op", "status"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordSyncPass 记录一次同步 pass
func RecordSyncPass(result string, duration time.Duration) {
	SyncPassCount.WithLabelValues(result).Inc()
	if result != "skipped" {
		SyncPassDuration.Observe(duration.Seconds())
	}
}

// RecordGmailCall 记录 Gmail API 调用延迟
func RecordGmailCall(op, status string, duration time.Duration) {
	GmailCallDuration.WithLabelValues(op, status).Observe(duration.Seconds())
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementEmailIngested 增加邮件入库计数
func IncrementEmailIngested() {
	EmailIngestedCount.Inc()
}

// IncrementEmailSkipped 增加邮件跳过计数
func IncrementEmailSkipped(reason string) {
	EmailSkippedCount.WithLabelValues(reason).Inc()
}
