package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ledger engine.
type Metrics struct {
	// --- Command processing ---
	CommandsApplied  *prometheus.CounterVec
	CommandsRejected *prometheus.CounterVec
	CommandDuration  *prometheus.HistogramVec

	// --- Ingestion ---
	RowsMalformed   prometheus.Counter
	CommandChanSize prometheus.Gauge
	IngestLatency   prometheus.Histogram

	// --- Ledger state ---
	ClientsTracked prometheus.Gauge
	AccountsLocked prometheus.Counter
	TxRecorded     prometheus.Counter
	DisputesOpen   prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		CommandsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payledger_commands_applied_total",
			Help: "Commands that passed validation and mutated the ledger.",
		}, []string{"kind"}),

		CommandsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payledger_commands_rejected_total",
			Help: "Commands rejected during validation, by rejection reason.",
		}, []string{"kind", "reason"}),

		CommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payledger_command_duration_seconds",
			Help:    "Time to fully process one command.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"kind"}),

		RowsMalformed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payledger_ingest_rows_malformed_total",
			Help: "Input rows that failed to parse and were skipped.",
		}),

		CommandChanSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "payledger_command_channel_size",
			Help: "Commands buffered between producer and consumer.",
		}),

		IngestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "payledger_ingest_latency_seconds",
			Help:    "Time a command waits between delivery and engine pickup.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),

		ClientsTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "payledger_clients_tracked",
			Help: "Client accounts created so far.",
		}),

		AccountsLocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payledger_accounts_locked_total",
			Help: "Accounts permanently locked by a chargeback.",
		}),

		TxRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payledger_transactions_recorded_total",
			Help: "Deposits and withdrawals posted to the history store.",
		}),

		DisputesOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "payledger_disputes_open",
			Help: "Transactions currently under dispute.",
		}),
	}
}
