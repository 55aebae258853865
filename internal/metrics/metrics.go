// Package metrics holds the Prometheus collectors of the review service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000}

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polymer_http_requests_total",
		Help: "HTTP requests by method and status code",
	}, []string{"method", "code"})
	HTTPDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymer_http_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: durationBuckets,
	})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "polymer_sessions_active",
		Help: "Review sessions held in memory",
	})
	SessionsStartedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polymer_sessions_started_total",
		Help: "Session form submissions by mode and outcome",
	}, []string{"mode", "outcome"})
	MarksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polymer_marks_total",
		Help: "Mark actions by kind and outcome",
	}, []string{"kind", "outcome"})
	WorklistsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "polymer_worklists_completed_total",
		Help: "Validation worklists run to completion",
	})
	BackendDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polymer_backend_duration_ms",
		Help:    "Feature backend call duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"op"})
	BackendFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polymer_backend_fail_total",
		Help: "Feature backend call failures",
	}, []string{"op"})
	SnapshotHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "polymer_snapshot_hits_total",
		Help: "Sessions rehydrated from a snapshot",
	})
	SnapshotMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "polymer_snapshot_misses_total",
		Help: "Session lookups with no snapshot",
	})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPDurationMs)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionsStartedTotal)
	prometheus.MustRegister(MarksTotal)
	prometheus.MustRegister(WorklistsCompletedTotal)
	prometheus.MustRegister(BackendDurationMs)
	prometheus.MustRegister(BackendFailTotal)
	prometheus.MustRegister(SnapshotHitsTotal)
	prometheus.MustRegister(SnapshotMissesTotal)
}

// ObserveHTTP records one served request.
func ObserveHTTP(method string, code int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	HTTPDurationMs.Observe(float64(d.Milliseconds()))
}

// ObserveBackend records one backend call.
func ObserveBackend(op string, start time.Time, err error) {
	BackendDurationMs.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		BackendFailTotal.WithLabelValues(op).Inc()
	}
}

// Outcome is the label value for an error.
func Outcome(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// Handler serves the registered collectors.
func Handler() http.Handler { return promhttp.Handler() }
