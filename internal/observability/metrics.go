package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danmuck/optwire/internal/protocol/options"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optwire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "optwire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	decodeRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optwire",
			Subsystem: "decode",
			Name:      "records_total",
			Help:      "Option records decoded, by family and record kind.",
		},
		[]string{"family", "kind"},
	)
	decodeFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optwire",
			Subsystem: "decode",
			Name:      "faults_total",
			Help:      "Option regions rejected, by family and fault kind.",
		},
		[]string{"family", "fault"},
	)
	regionBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "optwire",
			Subsystem: "decode",
			Name:      "region_bytes",
			Help:      "Size of option regions handed to the decoder.",
			Buckets:   prometheus.ExponentialBuckets(8, 2, 10),
		},
		[]string{"family"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, decodeRecords, decodeFaults, regionBytes)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordDecode counts the outcome of one decode of a size-byte region.
func RecordDecode(family string, size int, records []options.Record, err error) {
	RegisterMetrics()
	regionBytes.WithLabelValues(family).Observe(float64(size))
	if err != nil {
		fault := "other"
		if de, ok := options.FaultOf(err); ok {
			fault = de.Kind.String()
		}
		decodeFaults.WithLabelValues(family, fault).Inc()
		return
	}
	for _, r := range records {
		decodeRecords.WithLabelValues(family, r.Kind.String()).Inc()
	}
}
