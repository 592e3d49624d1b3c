// Package observability registers the service's Prometheus collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	overviewDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gym",
		Subsystem: "attendance",
		Name:      "overview_duration_seconds",
		Help:      "Time spent fetching, resolving and aggregating a monthly overview.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})
	orphanedRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gym",
		Subsystem: "attendance",
		Name:      "orphaned_records_total",
		Help:      "Attendance records seen whose member reference no longer resolves.",
	})
	checkInsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gym",
		Subsystem: "attendance",
		Name:      "checkins_recorded_total",
		Help:      "Number of check-ins stored.",
	})
	lastCheckInGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gym",
		Subsystem: "attendance",
		Name:      "last_checkin_timestamp_seconds",
		Help:      "Unix timestamp of the most recent check-in stored.",
	})
	settingsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gym",
		Subsystem: "settings",
		Name:      "defaults_created_total",
		Help:      "Number of settings records materialized with defaults on first access.",
	})
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests handled, labeled by method and status code.",
	}, []string{"method", "code"})
)

func init() {
	prometheus.MustRegister(overviewDuration, orphanedRecords, checkInsRecorded, lastCheckInGauge, settingsCreated, httpRequests)
}

// ObserveOverview records how long an overview took to build.
func ObserveOverview(d time.Duration) {
	overviewDuration.Observe(d.Seconds())
}

// RecordOrphanedRecords counts integrity warnings.
func RecordOrphanedRecords(n int) {
	if n <= 0 {
		return
	}
	orphanedRecords.Add(float64(n))
}

// RecordCheckIn counts a stored check-in and updates the watermark gauge.
func RecordCheckIn(ts time.Time) {
	checkInsRecorded.Inc()
	if ts.IsZero() {
		return
	}
	lastCheckInGauge.Set(float64(ts.Unix()))
}

// RecordSettingsCreated counts a lazily created settings record.
func RecordSettingsCreated() {
	settingsCreated.Inc()
}

// RecordHTTPRequest counts a handled HTTP request.
func RecordHTTPRequest(method string, code int) {
	httpRequests.WithLabelValues(method, statusLabel(code)).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
