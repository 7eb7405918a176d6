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
	// Runtime metrics
	TransactionsProcessed *prometheus.CounterVec
	TransactionErrors     *prometheus.CounterVec
	InstructionsProcessed *prometheus.CounterVec
	TransactionLatency    prometheus.Histogram
	CurrentSlot           prometheus.Gauge
	AccountsLocked        prometheus.Gauge

	// Event metrics
	EventsEmitted    *prometheus.CounterVec
	EventStoreErrors prometheus.Counter

	// RPC metrics
	RPCRequests     *prometheus.CounterVec
	RPCServeLatency *prometheus.HistogramVec
	RPCCallLatency  *prometheus.HistogramVec
	WSSubscriptions *prometheus.GaugeVec

	// Scenario metrics
	ScenarioRuns     *prometheus.CounterVec
	ScenarioDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastCommit prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on reg.
// A nil reg registers on the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "nftlab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Runtime metrics
		TransactionsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "transactions_total",
			Help:      "Total number of transactions by outcome",
		}, []string{"status"}),
		TransactionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "transaction_errors_total",
			Help:      "Total number of rejected transactions by error kind",
		}, []string{"kind"}),
		InstructionsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "instructions_total",
			Help:      "Total number of instructions by program and outcome, including inner invocations",
		}, []string{"program", "status"}),
		TransactionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "transaction_latency_seconds",
			Help:      "Transaction processing latency in seconds, lock wait included",
			Buckets:   prometheus.DefBuckets,
		}),
		CurrentSlot: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "slot",
			Help:      "Slot of the last committed transaction",
		}),
		AccountsLocked: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "accounts_locked",
			Help:      "Number of accounts currently locked or awaited",
		}),

		// Event metrics
		EventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Total number of NFT lifecycle events by kind",
		}, []string{"kind"}),
		EventStoreErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "store_errors_total",
			Help:      "Total number of failed event store writes",
		}),

		// RPC metrics
		RPCRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of JSON-RPC requests served by method and status",
		}, []string{"method", "status"}),
		RPCServeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "serve_latency_seconds",
			Help:      "JSON-RPC request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Client side Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSSubscriptions: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "ws_subscriptions",
			Help:      "Number of active WebSocket subscriptions by kind",
		}, []string{"kind"}),

		// Scenario metrics
		ScenarioRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "runs_total",
			Help:      "Total number of scenario runs by name and status",
		}, []string{"scenario", "status"}),
		ScenarioDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "duration_seconds",
			Help:      "Scenario duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"scenario"}),

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
		LastCommit: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_commit_timestamp",
			Help:      "Unix timestamp of the last committed transaction",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordTransaction records the outcome of one transaction. errKind is empty on success.
func (m *Metrics) RecordTransaction(errKind string, seconds float64) {
	m.TransactionLatency.Observe(seconds)
	if errKind == "" {
		m.TransactionsProcessed.WithLabelValues("success").Inc()
		return
	}
	m.TransactionsProcessed.WithLabelValues("failed").Inc()
	m.TransactionErrors.WithLabelValues(errKind).Inc()
}

// RecordInstruction records one top-level or inner instruction.
func (m *Metrics) RecordInstruction(program string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.InstructionsProcessed.WithLabelValues(program, status).Inc()
}

// RecordCommit updates slot and commit timestamp gauges.
func (m *Metrics) RecordCommit(slot uint64, unix int64) {
	m.CurrentSlot.Set(float64(slot))
	m.LastCommit.Set(float64(unix))
}

// RecordEvent increments the per-kind event counter.
func (m *Metrics) RecordEvent(kind string) {
	m.EventsEmitted.WithLabelValues(kind).Inc()
}

// RecordRPCServed records one JSON-RPC request handled by the server.
func (m *Metrics) RecordRPCServed(method string, err error, seconds float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RPCRequests.WithLabelValues(method, status).Inc()
	m.RPCServeLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCLatency records client side RPC call latency.
func (m *Metrics) RecordRPCLatency(method string, seconds float64) {
	m.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordScenario records a finished scenario run.
func (m *Metrics) RecordScenario(name string, passed bool, seconds float64) {
	status := "pass"
	if !passed {
		status = "fail"
	}
	m.ScenarioRuns.WithLabelValues(name, status).Inc()
	m.ScenarioDuration.WithLabelValues(name).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
