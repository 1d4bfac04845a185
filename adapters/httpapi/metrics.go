package httpapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "godex"

// Metrics records test runs served over HTTP.
type Metrics struct {
	testsTotal   *prometheus.CounterVec
	testDuration *prometheus.HistogramVec
	genes        prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		testsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tests_total",
				Help:      "Total number of test requests by endpoint, test and outcome",
			},
			[]string{"endpoint", "test", "status"},
		),
		testDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "test_duration_seconds",
				Help:      "Duration of test evaluation in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"endpoint", "test"},
		),
		genes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_genes",
				Help:      "Number of genes per test request",
				Buckets:   prometheus.ExponentialBuckets(1, 10, 6),
			},
		),
	}
	for _, c := range []prometheus.Collector{m.testsTotal, m.testDuration, m.genes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(endpoint, test string, genes int, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.testsTotal.WithLabelValues(endpoint, test, status).Inc()
	m.testDuration.WithLabelValues(endpoint, test).Observe(elapsed.Seconds())
	m.genes.Observe(float64(genes))
}
