// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transaction outcomes.
const (
	StatusCommitted = "committed" // executed and applied
	StatusFailed    = "failed"    // executed, recorded with an error
	StatusRejected  = "rejected"  // never recorded
)

// Metrics holds the Prometheus metrics of one validator instance. Each
// instance owns its registry so tests can run several side by side.
type Metrics struct {
	registry *prometheus.Registry

	// Execution metrics
	TransactionsTotal *prometheus.CounterVec
	InstructionErrors *prometheus.CounterVec
	ExecutionLatency  prometheus.Histogram
	CurrentSlot       prometheus.Gauge
	LastCommitUnix    prometheus.Gauge

	// RPC metrics
	RPCRequestsTotal *prometheus.CounterVec
	RPCLatency       *prometheus.HistogramVec

	// Faucet metrics
	AirdropsTotal   prometheus.Counter
	AirdropLamports prometheus.Counter

	// Websocket metrics
	WSSubscriptions prometheus.Gauge
	WSNotifications prometheus.Counter
}

// NewMetrics creates a Metrics instance on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "issuance_lab"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TransactionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Total number of submitted transactions by outcome",
		}, []string{"status"}),
		InstructionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transaction_errors_total",
			Help:      "Total number of failed transactions by error variant",
		}, []string{"kind"}),
		ExecutionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "execution_latency_seconds",
			Help:      "Transaction execution latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		CurrentSlot: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "slot",
			Help:      "Last committed slot",
		}),
		LastCommitUnix: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "last_commit_timestamp_seconds",
			Help:      "Unix timestamp of the last committed transaction",
		}),

		RPCRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of JSON-RPC requests by method and status",
		}, []string{"method", "status"}),
		RPCLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "request_latency_seconds",
			Help:      "JSON-RPC request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		AirdropsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "faucet",
			Name:      "airdrops_total",
			Help:      "Total number of airdrops served",
		}),
		AirdropLamports: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "faucet",
			Name:      "airdrop_lamports_total",
			Help:      "Total lamports handed out by the faucet",
		}),

		WSSubscriptions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "subscriptions",
			Help:      "Current number of open signature subscriptions",
		}),
		WSNotifications: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "notifications_total",
			Help:      "Total number of signature notifications sent",
		}),
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordTransaction records one submitted transaction. kind is the error
// variant for failed and rejected transactions.
func (m *Metrics) RecordTransaction(status, kind string, seconds float64) {
	m.TransactionsTotal.WithLabelValues(status).Inc()
	m.ExecutionLatency.Observe(seconds)
	if kind != "" {
		m.InstructionErrors.WithLabelValues(kind).Inc()
	}
}

// RecordCommit updates the slot gauges after a commit.
func (m *Metrics) RecordCommit(slot uint64, unix int64) {
	m.CurrentSlot.Set(float64(slot))
	m.LastCommitUnix.Set(float64(unix))
}

// RecordRPC records one JSON-RPC request.
func (m *Metrics) RecordRPC(method, status string, seconds float64) {
	m.RPCRequestsTotal.WithLabelValues(method, status).Inc()
	m.RPCLatency.WithLabelValues(method).Observe(seconds)
}

// RecordAirdrop records a faucet transfer.
func (m *Metrics) RecordAirdrop(lamports uint64) {
	m.AirdropsTotal.Inc()
	m.AirdropLamports.Add(float64(lamports))
}
