package telemetry

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LedgerMetrics holds the Prometheus collectors for payment recording and its side effects.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type LedgerMetrics struct {
	registry *prometheus.Registry

	paymentsRecorded   *prometheus.CounterVec
	amountRecorded     *prometheus.CounterVec
	paymentsRejected   *prometheus.CounterVec
	saveConflicts      prometheus.Counter
	recordDuration     prometheus.Histogram
	sideEffectFailures *prometheus.CounterVec
	eventDeliveries    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
}

// NewLedgerMetrics creates the collectors on a dedicated registry under the given namespace.
func NewLedgerMetrics(namespace string) *LedgerMetrics {
	if namespace == "" {
		namespace = "ledger"
	}
	m := &LedgerMetrics{
		registry: prometheus.NewRegistry(),
		paymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Payments successfully recorded against invoices.",
		}, []string{"method"}),
		amountRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_amount_minor_units_total",
			Help:      "Sum of recorded payment amounts in minor currency units.",
		}, []string{"currency"}),
		paymentsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_rejected_total",
			Help:      "Payment requests rejected, by error code.",
		}, []string{"code"}),
		saveConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_conflicts_total",
			Help:      "Invoice saves rejected because of a concurrent modification.",
		}),
		recordDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "record_payment_duration_seconds",
			Help:      "Time spent loading, validating and saving a payment.",
			Buckets:   prometheus.DefBuckets,
		}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Failures of asynchronous delivery and document handlers.",
		}, []string{"handler"}),
		eventDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "deliveries_total",
			Help:      "Event deliveries by handler, event type and outcome (processed, duplicate, failed, dropped).",
		}, []string{"handler", "event_type", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
	}

	m.registry.MustRegister(
		m.paymentsRecorded,
		m.amountRecorded,
		m.paymentsRejected,
		m.saveConflicts,
		m.recordDuration,
		m.sideEffectFailures,
		m.eventDeliveries,
		m.httpRequests,
		m.httpDuration,
		m.httpInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// PaymentRecorded counts a successful payment
func (m *LedgerMetrics) PaymentRecorded(method, currency string, minorUnits int64) {
	m.paymentsRecorded.WithLabelValues(method).Inc()
	m.amountRecorded.WithLabelValues(currency).Add(float64(minorUnits))
}

// PaymentRejected counts a rejected payment by its error code
func (m *LedgerMetrics) PaymentRejected(code string) {
	if code == "" {
		code = "INTERNAL"
	}
	m.paymentsRejected.WithLabelValues(code).Inc()
}

// SaveConflict counts an optimistic-lock conflict
func (m *LedgerMetrics) SaveConflict() {
	m.saveConflicts.Inc()
}

// ObserveRecordDuration records how long a recordPayment call took
func (m *LedgerMetrics) ObserveRecordDuration(d time.Duration) {
	m.recordDuration.Observe(d.Seconds())
}

// SideEffectFailed counts a failed asynchronous handler
func (m *LedgerMetrics) SideEffectFailed(handler string) {
	m.sideEffectFailures.WithLabelValues(handler).Inc()
}

// EventDelivered counts what an idempotent handler did with one delivery
func (m *LedgerMetrics) EventDelivered(handler, eventType, outcome string) {
	m.eventDeliveries.WithLabelValues(handler, eventType, outcome).Inc()
}

// HTTPRequestStarted tracks an in-flight request; call the returned func when it completes
func (m *LedgerMetrics) HTTPRequestStarted() func() {
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// ObserveHTTPRequest records a served request. route is the matched pattern, never the raw path.
func (m *LedgerMetrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RegisterDB exports the pool statistics of db (open, in use, idle, waits) labelled with dbName
func (m *LedgerMetrics) RegisterDB(db *sql.DB, dbName string) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, dbName))
}

// Registry returns the underlying registry
func (m *LedgerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the metrics in the Prometheus text format
func (m *LedgerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
