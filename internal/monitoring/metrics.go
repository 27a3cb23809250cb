package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the service's prometheus surface: HTTP traffic, collector runs,
// ingestion outcomes (inserted vs duplicate, since duplicates are expected
// no-ops rather than errors), and view-ledger write failures.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	requestCount    *prometheus.CounterVec

	collectorRuns   *prometheus.CounterVec
	pointsIngested  *prometheus.CounterVec
	viewWriteErrors prometheus.Counter
}

func New(namespace string) *Metrics {
	return &Metrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"handler", "method", "status"},
		),

		requestCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		collectorRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collector_runs_total",
				Help:      "Collector invocations by source and outcome",
			},
			[]string{"source", "outcome"},
		),

		pointsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "data_points_total",
				Help:      "Data point upserts by outcome (inserted or duplicate)",
			},
			[]string{"indicator_id", "outcome"},
		),

		viewWriteErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "view_write_errors_total",
				Help:      "Best-effort view ledger writes that failed",
			},
		),
	}
}

func (m *Metrics) ObserveRequest(handler, method string, status int, duration time.Duration) {
	labels := []string{handler, method, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestCount.WithLabelValues(labels...).Inc()
}

func (m *Metrics) ObserveCollectorRun(source string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.collectorRuns.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ObservePoint(indicatorID string, inserted bool) {
	outcome := "inserted"
	if !inserted {
		outcome = "duplicate"
	}
	m.pointsIngested.WithLabelValues(indicatorID, outcome).Inc()
}

func (m *Metrics) ObserveViewWriteError() {
	m.viewWriteErrors.Inc()
}

// Handler exposes the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
