package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/platform/logger"
)

// Sweep run results used as the "result" label.
const (
	SweepResultSuccess = "success"
	SweepResultFailure = "failure"
)

// MetricsManager holds the service's Prometheus collectors.
type MetricsManager struct {
	Registry *prometheus.Registry

	ListingsCreatedTotal     prometheus.Counter
	ListingsUpdatedTotal     prometheus.Counter
	ListingsDeletedTotal     prometheus.Counter
	MediaDeleteFailuresTotal prometheus.Counter
	ListingsExpiredTotal     prometheus.Counter
	SweepRunsTotal           *prometheus.CounterVec
	SweepDuration            prometheus.Histogram
	APIErrorsTotal           *prometheus.CounterVec
	APILatency               *prometheus.HistogramVec
}

// NewMetricsManager creates and registers all collectors on a private registry.
// serviceName becomes the metric namespace.
func NewMetricsManager(serviceName string) *MetricsManager {
	ns := strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(serviceName)
	registry := prometheus.NewRegistry()

	m := &MetricsManager{
		Registry: registry,
		ListingsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "listings_created_total",
			Help:      "Total number of listings created.",
		}),
		ListingsUpdatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "listings_updated_total",
			Help:      "Total number of listings updated.",
		}),
		ListingsDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "listings_deleted_total",
			Help:      "Total number of listings deleted.",
		}),
		MediaDeleteFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "media_delete_failures_total",
			Help:      "Media files that could not be removed from the media store.",
		}),
		ListingsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "listings_expired_total",
			Help:      "Total number of listings moved to the expired status.",
		}),
		SweepRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "expiry_sweep_runs_total",
			Help:      "Expiry sweep runs by result.",
		}, []string{"result"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "expiry_sweep_duration_seconds",
			Help:      "Duration of expiry sweep runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		APIErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "api_errors_total",
			Help:      "Total number of API errors by route and error type.",
		}, []string{"route", "error_type"}),
		APILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "api_request_latency_seconds",
			Help:      "Latency of API requests by route, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}

	registry.MustRegister(
		m.ListingsCreatedTotal,
		m.ListingsUpdatedTotal,
		m.ListingsDeletedTotal,
		m.MediaDeleteFailuresTotal,
		m.ListingsExpiredTotal,
		m.SweepRunsTotal,
		m.SweepDuration,
		m.APIErrorsTotal,
		m.APILatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveSweep records one expiry sweep run.
func (m *MetricsManager) ObserveSweep(expired int64, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(took.Seconds())
	if err != nil {
		m.SweepRunsTotal.WithLabelValues(SweepResultFailure).Inc()
		return
	}
	m.SweepRunsTotal.WithLabelValues(SweepResultSuccess).Inc()
	m.ListingsExpiredTotal.Add(float64(expired))
}

// NewMetricsServer returns an HTTP server exposing the registry on /metrics.
// It returns nil when port is empty.
func NewMetricsServer(port string, registry *prometheus.Registry) *http.Server {
	if port == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StartMetricsServer serves srv until it is shut down. A nil server is a no-op.
func StartMetricsServer(srv *http.Server, appLogger *logger.Logger) error {
	if srv == nil {
		appLogger.Info("Prometheus metrics server port not configured, server will not start")
		return nil
	}
	appLogger.Info("Prometheus metrics server starting", zap.String("addr", srv.Addr), zap.String("path", "/metrics"))
	return srv.ListenAndServe()
}
