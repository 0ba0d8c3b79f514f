// Package metrics provides Prometheus metrics for the pool.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elys-network/tierpool/internal/types"
	"github.com/elys-network/tierpool/internal/utils"
)

// Metrics holds all Prometheus metrics for the pool.
type Metrics struct {
	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Ledger metrics
	RebalancesTotal      *prometheus.CounterVec
	EpochsFinalizedTotal prometheus.Counter
	SharePrice           prometheus.Gauge
	TotalShares          prometheus.Gauge
	TotalAssets          prometheus.Gauge
	TargetBps            prometheus.Gauge
	CurrentEpoch         prometheus.Gauge
	LastFinalizedEpoch   prometheus.Gauge

	// Scoring metrics
	ClaimsTotal       prometheus.Counter
	PointsDistributed prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "tierpool"
	}
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "operations_total",
			Help:      "Total number of participant operations by outcome",
		}, []string{"operation", "outcome"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "operation_duration_seconds",
			Help:      "Participant operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		RebalancesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rebalances_total",
			Help:      "Total number of capital moves by direction",
		}, []string{"direction"}),
		EpochsFinalizedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "epochs_finalized_total",
			Help:      "Total number of epochs frozen by the sweep",
		}),
		SharePrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "share_price",
			Help:      "Current share price in units of the base denom",
		}),
		TotalShares: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "total_shares",
			Help:      "Shares outstanding",
		}),
		TotalAssets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "total_assets",
			Help:      "Value held by the capital manager in base units",
		}),
		TargetBps: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "target_allocation_bps",
			Help:      "Weighted target allocation toward the secondary destination",
		}),
		CurrentEpoch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "current_epoch",
			Help:      "Live epoch index",
		}),
		LastFinalizedEpoch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "last_finalized_epoch",
			Help:      "Highest epoch index swept past",
		}),

		ClaimsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "claims_total",
			Help:      "Total number of successful point claims",
		}),
		PointsDistributed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "points_distributed_total",
			Help:      "Total points awarded",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// Outcome maps an operation error to its metric label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(types.KindOf(err))
}

// RecordOperation records a participant operation.
func RecordOperation(operation string, seconds float64, err error) {
	DefaultMetrics.OperationsTotal.WithLabelValues(operation, Outcome(err)).Inc()
	DefaultMetrics.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordRebalance counts a capital move.
func RecordRebalance(decision types.RebalanceDecision) {
	if !decision.Needed {
		return
	}
	DefaultMetrics.RebalancesTotal.WithLabelValues(string(decision.Direction)).Inc()
}

// RecordEpochsFinalized adds frozen epochs to the counter.
func RecordEpochsFinalized(n int) {
	if n > 0 {
		DefaultMetrics.EpochsFinalizedTotal.Add(float64(n))
	}
}

// UpdateLedger refreshes the ledger gauges from a summary.
func UpdateLedger(s types.LedgerSummary) {
	DefaultMetrics.SharePrice.Set(utils.MustFloat64(s.SharePrice, types.ScaleDecimals))
	DefaultMetrics.TotalShares.Set(utils.MustFloat64(s.TotalShares, 0))
	DefaultMetrics.TotalAssets.Set(utils.MustFloat64(s.TotalAssets, 0))
	DefaultMetrics.TargetBps.Set(float64(s.TargetBps))
	DefaultMetrics.CurrentEpoch.Set(float64(s.CurrentEpoch))
	DefaultMetrics.LastFinalizedEpoch.Set(float64(s.LastFinalizedEpoch))
}

// RecordClaim counts a successful claim and its award.
func RecordClaim(rec types.ClaimRecord) {
	DefaultMetrics.ClaimsTotal.Inc()
	DefaultMetrics.PointsDistributed.Add(utils.MustFloat64(rec.Points, types.ScaleDecimals))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}
