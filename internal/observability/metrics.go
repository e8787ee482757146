// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Analysis metrics
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	QualityFlags     *prometheus.CounterVec

	// Engine metrics
	PriceSelections      *prometheus.CounterVec
	PricesUndetermined   prometheus.Counter
	StabilizationResults *prometheus.CounterVec
	ConflictsDetected    *prometheus.CounterVec
	UnmappedLabels       prometheus.Counter

	// Provider metrics
	ProviderCallLatency *prometheus.HistogramVec
	ProviderCallErrors  *prometheus.CounterVec
	RPCCallLatency      *prometheus.HistogramVec
	CacheLookups        *prometheus.CounterVec
	CacheEvictions      *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulAnalysis prometheus.Gauge
	ReportsGenerated       *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a new Metrics instance registered with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_listing_lab"
	}
	f := promauto.With(reg)

	return &Metrics{
		// Analysis metrics
		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total number of token analyses by status",
		}, []string{"status"}),
		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Token analysis duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		QualityFlags: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "quality_flags_total",
			Help:      "Total number of data quality flags raised by severity",
		}, []string{"severity"}),

		// Engine metrics
		PriceSelections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "selections_total",
			Help:      "Total number of reference prices selected by method and confidence",
		}, []string{"method", "confidence"}),
		PricesUndetermined: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "undetermined_total",
			Help:      "Total number of analyses with no determinable reference price",
		}),
		StabilizationResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "convergence",
			Name:      "results_total",
			Help:      "Total number of DEX convergence checks by outcome",
		}, []string{"outcome"}),
		ConflictsDetected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocation",
			Name:      "conflicts_total",
			Help:      "Total number of cross-source allocation conflicts by bucket",
		}, []string{"bucket"}),
		UnmappedLabels: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocation",
			Name:      "unmapped_labels_total",
			Help:      "Total number of allocation labels that matched no rule",
		}),

		// Provider metrics
		ProviderCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "Data source call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source", "action"}),
		ProviderCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_errors_total",
			Help:      "Total number of failed data source calls",
		}, []string{"source", "action"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "cache_lookups_total",
			Help:      "Provider cache lookups by result (hit or miss)",
		}, []string{"source", "action", "result"}),
		CacheEvictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "cache_evictions_total",
			Help:      "Expired provider cache entries purged",
		}, []string{"source", "action"}),
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulAnalysis: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_analysis_timestamp",
			Help:      "Unix timestamp of last successful analysis",
		}),
		ReportsGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated by format",
		}, []string{"format"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordAnalysis records a finished analysis.
func (m *Metrics) RecordAnalysis(status string, durationSeconds float64, finishedUnix int64) {
	m.AnalysesTotal.WithLabelValues(status).Inc()
	m.AnalysisDuration.Observe(durationSeconds)
	if status == StatusOK {
		m.LastSuccessfulAnalysis.Set(float64(finishedUnix))
	}
}

// RecordQualityFlag counts a data quality flag.
func (m *Metrics) RecordQualityFlag(severity string) {
	m.QualityFlags.WithLabelValues(severity).Inc()
}

// RecordPriceSelection counts a selected reference price.
func (m *Metrics) RecordPriceSelection(method, confidence string) {
	m.PriceSelections.WithLabelValues(method, confidence).Inc()
}

// RecordPriceUndetermined counts an analysis without a reference price.
func (m *Metrics) RecordPriceUndetermined() {
	m.PricesUndetermined.Inc()
}

// RecordStabilization counts a convergence check outcome.
func (m *Metrics) RecordStabilization(found bool) {
	outcome := "not_found"
	if found {
		outcome = "found"
	}
	m.StabilizationResults.WithLabelValues(outcome).Inc()
}

// RecordConflict counts an allocation conflict.
func (m *Metrics) RecordConflict(bucket string) {
	m.ConflictsDetected.WithLabelValues(bucket).Inc()
}

// RecordUnmappedLabel counts a label that matched no rule.
func (m *Metrics) RecordUnmappedLabel() {
	m.UnmappedLabels.Inc()
}

// RecordProviderCall records a data source call.
func (m *Metrics) RecordProviderCall(source, action string, seconds float64, err error) {
	m.ProviderCallLatency.WithLabelValues(source, action).Observe(seconds)
	if err != nil {
		m.ProviderCallErrors.WithLabelValues(source, action).Inc()
	}
}

// Analysis status labels.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordCacheLookup counts a provider cache hit or miss.
func RecordCacheLookup(source, action string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(source, action, result).Inc()
}

// RecordCacheEvictions counts purged cache entries.
func RecordCacheEvictions(source, action string, n int) {
	if n > 0 {
		DefaultMetrics.CacheEvictions.WithLabelValues(source, action).Add(float64(n))
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordReport counts a generated report.
func RecordReport(format string) {
	DefaultMetrics.ReportsGenerated.WithLabelValues(format).Inc()
}
