package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for compilations and singleton
// declarations. A disabled Metrics is safe to use; every Record method
// is a no-op.
type Metrics struct {
	config MetricsConfig

	// Compilation metrics
	compilations        *prometheus.CounterVec
	compilationDuration *prometheus.HistogramVec
	catalogResources    prometheus.Gauge

	// Singleton metrics
	declarations *prometheus.CounterVec
	lookups      *prometheus.CounterVec
	itemErrors   *prometheus.CounterVec

	// Policy metrics
	policyViolations *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		compilations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compilations_total",
				Help:      "Total number of compilation passes",
			},
			[]string{"status"},
		),
		compilationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compilation_duration_seconds",
				Help:      "Duration of compilation passes in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		catalogResources: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_resources",
				Help:      "Number of resources in the last compiled catalog",
			},
		),

		declarations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "declarations_total",
				Help:      "Singleton request items by flavor and outcome",
			},
			[]string{"flavor", "outcome"},
		),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_total",
				Help:      "Configuration lookups by tier and result",
			},
			[]string{"tier", "found"},
		),
		itemErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "item_errors_total",
				Help:      "Per-item singleton errors by code",
			},
			[]string{"code"},
		),

		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Policy violations by policy and severity",
			},
			[]string{"policy", "severity"},
		),
	}

	collectors := []prometheus.Collector{
		m.compilations,
		m.compilationDuration,
		m.catalogResources,
		m.declarations,
		m.lookups,
		m.itemErrors,
		m.policyViolations,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry returns the metrics registry, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCompilation records a finished compilation pass.
func (m *Metrics) RecordCompilation(status string, duration time.Duration, resources int) {
	if m.compilations == nil {
		return
	}
	m.compilations.WithLabelValues(status).Inc()
	m.compilationDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.catalogResources.Set(float64(resources))
}

// RecordDeclaration records one singleton request item.
func (m *Metrics) RecordDeclaration(flavor, outcome string) {
	if m.declarations == nil {
		return
	}
	m.declarations.WithLabelValues(flavor, outcome).Inc()
}

// RecordLookup records one configuration lookup.
func (m *Metrics) RecordLookup(tier string, found bool) {
	if m.lookups == nil {
		return
	}
	label := "false"
	if found {
		label = "true"
	}
	m.lookups.WithLabelValues(tier, label).Inc()
}

// RecordItemError records a per-item error code.
func (m *Metrics) RecordItemError(code string) {
	if m.itemErrors == nil {
		return
	}
	if code == "" {
		code = "UNKNOWN"
	}
	m.itemErrors.WithLabelValues(code).Inc()
}

// RecordPolicyViolation records a policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer exposes metrics over HTTP when a listen address is set.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", m.config.ListenAddress).Msg("Metrics server stopped")
		}
	}()

	return nil
}
