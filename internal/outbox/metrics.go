package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Number of events successfully published to Kafka, labeled by event type.",
	}, []string{"event_type"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym",
		Subsystem: "events",
		Name:      "publish_failed_total",
		Help:      "Number of events that could not be encoded or published, labeled by event type.",
	}, []string{"event_type"})

	publishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gym",
		Subsystem: "events",
		Name:      "publish_duration_seconds",
		Help:      "Time spent writing a single event to Kafka.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, publishDuration)
}
