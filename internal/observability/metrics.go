package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warelane/warelane/internal/ledger"
)

// Metrics collects Prometheus metrics on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics initialises the registry and the base HTTP metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warelane_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warelane_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	registry.MustRegister(requests, duration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

// LedgerMetrics counts stock engine outcomes. A nil receiver is a no-op so
// the engine can run without a registry in tests.
type LedgerMetrics struct {
	adjustments       *prometheus.CounterVec
	versionConflicts  prometheus.Counter
	insufficientStock prometheus.Counter
	batchCommitted    prometheus.Counter
	batchItems        prometheus.Counter
	batchAborted      prometheus.Counter
	reconcileDrift    prometheus.Gauge
}

// NewLedgerMetrics registers the stock engine counters.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		adjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warelane_ledger_adjustments_total",
			Help: "Committed stock adjustments by type.",
		}, []string{"type"}),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warelane_ledger_version_conflicts_total",
			Help: "Writes rejected because the row version moved.",
		}),
		insufficientStock: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warelane_ledger_insufficient_stock_total",
			Help: "Writes rejected because the quantity would go negative.",
		}),
		batchCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warelane_ledger_batches_committed_total",
			Help: "Batch transactions committed.",
		}),
		batchItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warelane_ledger_batch_items_total",
			Help: "Items committed through batch transactions.",
		}),
		batchAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warelane_ledger_batches_aborted_total",
			Help: "Batch transactions rolled back.",
		}),
		reconcileDrift: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "warelane_ledger_reconcile_drift_rows",
			Help: "Stock rows whose quantity disagrees with the log sum at the last sweep.",
		}),
	}
	reg.MustRegister(m.adjustments, m.versionConflicts, m.insufficientStock,
		m.batchCommitted, m.batchItems, m.batchAborted, m.reconcileDrift)
	return m
}

// AdjustmentCommitted counts a committed single adjustment.
func (m *LedgerMetrics) AdjustmentCommitted(typ ledger.AdjustmentType) {
	if m == nil {
		return
	}
	m.adjustments.WithLabelValues(string(typ)).Inc()
}

// VersionConflict counts an optimistic lock rejection.
func (m *LedgerMetrics) VersionConflict() {
	if m == nil {
		return
	}
	m.versionConflicts.Inc()
}

// InsufficientStock counts a rejected negative-quantity write.
func (m *LedgerMetrics) InsufficientStock() {
	if m == nil {
		return
	}
	m.insufficientStock.Inc()
}

// BatchCommitted counts a committed batch and its item count.
func (m *LedgerMetrics) BatchCommitted(items int) {
	if m == nil {
		return
	}
	m.batchCommitted.Inc()
	m.batchItems.Add(float64(items))
}

// BatchAborted counts a rolled back batch.
func (m *LedgerMetrics) BatchAborted() {
	if m == nil {
		return
	}
	m.batchAborted.Inc()
}

// SetReconcileDrift records the drift row count from the latest sweep.
func (m *LedgerMetrics) SetReconcileDrift(rows int) {
	if m == nil {
		return
	}
	m.reconcileDrift.Set(float64(rows))
}
