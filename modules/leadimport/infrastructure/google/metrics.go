package google

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "leadimport",
	Subsystem: "provider",
	Name:      "call_duration_seconds",
	Help:      "Latency of spreadsheet provider calls by operation and result.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation", "result"})

func observeCall(op, result string, d time.Duration) {
	callDuration.WithLabelValues(op, result).Observe(d.Seconds())
}
