// Package observability holds the Prometheus metrics recorded by catalog
// loads and plugin lifecycle operations.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the collector.
type MetricsConfig struct {
	Namespace string `yaml:"namespace" json:"namespace"`
	Subsystem string `yaml:"subsystem" json:"subsystem"`
}

// DefaultMetricsConfig returns the default configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Namespace: "marketplace"}
}

// Metrics wraps the marketplace metric vectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Fetches           *prometheus.CounterVec
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	DownloadBytes     prometheus.Counter
	ActiveOperations  prometheus.Gauge
	CatalogSize       prometheus.Gauge
}

// NewMetrics creates a collector with its own Prometheus registry.
func NewMetrics(cfg MetricsConfig) *Metrics {
	reg := prometheus.NewRegistry()
	ns, sub := cfg.Namespace, cfg.Subsystem

	m := &Metrics{
		registry: reg,
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "fetches_total",
			Help:      "Catalog document fetches by kind (mirrorlist, manifest) and outcome",
		}, []string{"kind", "status"}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "operations_total",
			Help:      "Plugin lifecycle operations by result kind",
		}, []string{"operation", "result"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "operation_duration_seconds",
			Help:      "Duration of plugin lifecycle operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "download_bytes_total",
			Help:      "Bytes of plugin archives downloaded",
		}),
		ActiveOperations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "active_operations",
			Help:      "Lifecycle operations currently holding a slug lease",
		}),
		CatalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "catalog_manifests",
			Help:      "Manifests in the most recently loaded catalog",
		}),
	}
	reg.MustRegister(m.Fetches, m.Operations, m.OperationDuration, m.DownloadBytes, m.ActiveOperations, m.CatalogSize)
	return m
}

// RecordFetch counts one catalog fetch.
func (m *Metrics) RecordFetch(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Fetches.WithLabelValues(kind, status).Inc()
}

// RecordOperation counts a finished lifecycle operation and its duration.
func (m *Metrics) RecordOperation(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, result).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// AddDownloadBytes adds n downloaded archive bytes.
func (m *Metrics) AddDownloadBytes(n int) {
	if m == nil {
		return
	}
	m.DownloadBytes.Add(float64(n))
}

// OperationStarted increments the active operation gauge; the returned func decrements it.
func (m *Metrics) OperationStarted() func() {
	if m == nil {
		return func() {}
	}
	m.ActiveOperations.Inc()
	return m.ActiveOperations.Dec
}

// SetCatalogSize records the size of the latest catalog.
func (m *Metrics) SetCatalogSize(n int) {
	if m == nil {
		return
	}
	m.CatalogSize.Set(float64(n))
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
