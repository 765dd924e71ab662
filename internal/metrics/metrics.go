package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Outbound HTTP calls, by target ("splunkd", "ingest").
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfx_http_requests_total",
			Help: "Total number of outbound HTTP requests (by target, method and status).",
		},
		[]string{"target", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sfx_http_request_duration_seconds",
			Help:    "Duration of outbound HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"target", "method"},
	)

	SettingsOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfx_settings_outcomes_total",
			Help: "Settings load and submit outcomes (by event type).",
		},
		[]string{"outcome"},
	)

	ForwardedItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfx_forwarded_items_total",
			Help: "Datapoints and events sent to SignalFx ingest (by kind and status).",
		},
		[]string{"kind", "status"},
	)

	ForwardErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfx_forward_errors_total",
			Help: "Forward requests that failed before or during sending.",
		},
		[]string{"kind", "stage"},
	)

	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfx_publish_errors_total",
			Help: "Settings event publish failures (by sink).",
		},
		[]string{"sink"},
	)

	AuditPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sfx_settings_audit_pruned_total",
			Help: "Settings audit rows removed by the retention job.",
		},
	)
)

// ObserveHTTP matches httpclient.Observer so it can be installed on executors.
func ObserveHTTP(target, method string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	HTTPRequestsTotal.WithLabelValues(target, method, code).Inc()
	HTTPRequestDuration.WithLabelValues(target, method).Observe(elapsed.Seconds())
}

func IncSettingsOutcome(outcome string) {
	SettingsOutcomesTotal.WithLabelValues(outcome).Inc()
}

func AddForwarded(kind string, status int, n int) {
	ForwardedItemsTotal.WithLabelValues(kind, strconv.Itoa(status)).Add(float64(n))
}

func IncForwardError(kind, stage string) {
	ForwardErrorsTotal.WithLabelValues(kind, stage).Inc()
}

func IncPublishError(sink string) {
	PublishErrors.WithLabelValues(sink).Inc()
}

func AddAuditPruned(n int64) {
	AuditPrunedTotal.Add(float64(n))
}
