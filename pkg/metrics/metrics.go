package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the indexer's collectors. A nil *Metrics is valid and
// records nothing, which keeps component tests free of registries.
type Metrics struct {
	depositsRecorded   *prometheus.CounterVec
	depositsDuplicate  *prometheus.CounterVec
	depositsUnresolved *prometheus.CounterVec
	depositsUnrecorded *prometheus.CounterVec

	confirmationOutcomes *prometheus.CounterVec

	watcherReconnects *prometheus.CounterVec
	lastHeight        *prometheus.GaugeVec
	failedBlocks      *prometheus.CounterVec

	sweeps *prometheus.CounterVec

	rpcCallDuration *prometheus.HistogramVec
}

// NewMetrics registers all collectors on registry, or on
// prometheus.DefaultRegisterer when registry is nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		depositsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deposit_recorded_total",
				Help: "Deposits inserted into the ledger as pending",
			},
			[]string{"chain"},
		),
		depositsDuplicate: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deposit_duplicate_total",
				Help: "Re-observed deposits that were already in the ledger",
			},
			[]string{"chain"},
		),
		depositsUnresolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deposit_unresolved_total",
				Help: "Matched transfers dropped because no owner could be resolved",
			},
			[]string{"chain"},
		),
		depositsUnrecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deposit_unrecorded_total",
				Help: "Watched transfers left without a ledger row, by reason",
			},
			[]string{"chain", "reason"},
		),
		confirmationOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confirmation_outcome_total",
				Help: "Tracker outcomes by chain (confirmed, failed, exhausted)",
			},
			[]string{"chain", "outcome"},
		),
		watcherReconnects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_reconnects_total",
				Help: "Stream re-subscriptions after an error",
			},
			[]string{"chain"},
		),
		lastHeight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watcher_last_processed_height",
				Help: "Last block height or slot fully scanned",
			},
			[]string{"chain"},
		),
		failedBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_failed_blocks_total",
				Help: "Blocks queued, rescanned or stuck in the failure queue",
			},
			[]string{"chain", "action"},
		),
		sweeps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_total",
				Help: "Sweep attempts by result (executed, skipped, failed)",
			},
			[]string{"chain", "result"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rpc_call_duration_seconds",
				Help:    "Duration of chain RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"chain", "method", "status"},
		),
	}
}

const (
	OutcomeConfirmed = "confirmed"
	OutcomeFailed    = "failed"
	OutcomeExhausted = "exhausted"

	SweepExecuted = "executed"
	SweepSkipped  = "skipped"
	SweepFailed   = "failed"

	FailedBlockQueued    = "queued"
	FailedBlockRescanned = "rescanned"
	FailedBlockStuck     = "stuck"
)

func (m *Metrics) DepositRecorded(chain string) {
	if m == nil {
		return
	}
	m.depositsRecorded.WithLabelValues(chain).Inc()
}

func (m *Metrics) DepositDuplicate(chain string) {
	if m == nil {
		return
	}
	m.depositsDuplicate.WithLabelValues(chain).Inc()
}

func (m *Metrics) DepositUnresolved(chain string) {
	if m == nil {
		return
	}
	m.depositsUnresolved.WithLabelValues(chain).Inc()
}

func (m *Metrics) DepositUnrecorded(chain, reason string) {
	if m == nil {
		return
	}
	m.depositsUnrecorded.WithLabelValues(chain, reason).Inc()
}

func (m *Metrics) ConfirmationOutcome(chain, outcome string) {
	if m == nil {
		return
	}
	m.confirmationOutcomes.WithLabelValues(chain, outcome).Inc()
}

func (m *Metrics) WatcherReconnect(chain string) {
	if m == nil {
		return
	}
	m.watcherReconnects.WithLabelValues(chain).Inc()
}

func (m *Metrics) SetLastHeight(chain string, height uint64) {
	if m == nil {
		return
	}
	m.lastHeight.WithLabelValues(chain).Set(float64(height))
}

func (m *Metrics) FailedBlock(chain, action string) {
	if m == nil {
		return
	}
	m.failedBlocks.WithLabelValues(chain, action).Inc()
}

func (m *Metrics) Sweep(chain, result string) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(chain, result).Inc()
}

// ObserveRPC records one call; status is "ok" or "error".
func (m *Metrics) ObserveRPC(chain, method string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.rpcCallDuration.WithLabelValues(chain, method, status).Observe(elapsed.Seconds())
}
