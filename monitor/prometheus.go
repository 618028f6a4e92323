package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector exports call metrics in the Prometheus format and
// keeps an in-memory summary for Flush.
type PrometheusCollector struct {
	*InMemoryCollector

	registry *prometheus.Registry
	latency  *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

// NewPrometheusCollector registers its metrics on a private registry.
func NewPrometheusCollector() *PrometheusCollector {
	c := &PrometheusCollector{
		InMemoryCollector: NewInMemoryCollector(),
		registry:          prometheus.NewRegistry(),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dupimg_operation_latency_seconds",
			Help:    "Latency of matching operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dupimg_outcomes_total",
			Help: "Matching outcomes by operation",
		}, []string{"op", "outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dupimg_errors_total",
			Help: "Failed matching operations",
		}, []string{"op"}),
	}

	c.registry.MustRegister(c.latency, c.outcomes, c.errors)
	c.registry.MustRegister(collectors.NewGoCollector())
	return c
}

func (c *PrometheusCollector) Record(metrics CallMetrics) {
	c.InMemoryCollector.Record(metrics)

	status := "success"
	if !metrics.Success {
		status = "error"
		c.errors.WithLabelValues(metrics.Op).Inc()
	} else {
		c.outcomes.WithLabelValues(metrics.Op, metrics.Outcome).Inc()
	}
	c.latency.WithLabelValues(metrics.Op, status).Observe(metrics.Duration.Seconds())
}

// Handler serves the registry for scraping.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}
