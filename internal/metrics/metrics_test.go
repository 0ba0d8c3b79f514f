package metrics

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/tierpool/internal/types"
)

func useRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	prev := DefaultMetrics
	DefaultMetrics = NewMetrics("test", reg)
	t.Cleanup(func() { DefaultMetrics = prev })
	return reg
}

// sample returns the value of the first series of a metric family.
func sample(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			return m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "input", Outcome(types.ErrZeroShares))
	assert.Equal(t, "state", Outcome(types.ErrNoPosition.Wrap("x")))
	assert.Equal(t, "invariant", Outcome(types.ErrZeroSharesMinted))
	assert.Equal(t, "unknown", Outcome(errors.New("boom")))
}

func TestRecorders(t *testing.T) {
	reg := useRegistry(t)

	RecordOperation("join", 0.01, nil)
	RecordOperation("join", 0.02, types.ErrBelowMinimumDeposit)
	RecordRebalance(types.NoRebalance(2000))
	RecordRebalance(types.RebalanceDecision{Needed: true, Direction: types.DirectionToSecondary, Amount: sdkmath.NewInt(5)})
	RecordEpochsFinalized(12)
	RecordEpochsFinalized(0)
	RecordClaim(types.ClaimRecord{Points: sdkmath.NewIntWithDecimal(5, 17)})
	UpdateLedger(types.LedgerSummary{
		SharePrice:         sdkmath.NewIntWithDecimal(15, 17),
		TotalAssets:        sdkmath.NewInt(3_000_000),
		TotalShares:        sdkmath.NewInt(2_000_000),
		TargetBps:          5000,
		CurrentEpoch:       7,
		LastFinalizedEpoch: 6,
	})

	assert.Equal(t, 1.0, sample(t, reg, "test_ledger_rebalances_total"))
	assert.Equal(t, 12.0, sample(t, reg, "test_ledger_epochs_finalized_total"))
	assert.Equal(t, 1.0, sample(t, reg, "test_scoring_claims_total"))
	assert.InDelta(t, 0.5, sample(t, reg, "test_scoring_points_distributed_total"), 1e-12)
	assert.InDelta(t, 1.5, sample(t, reg, "test_ledger_share_price"), 1e-12)
	assert.Equal(t, 5000.0, sample(t, reg, "test_ledger_target_allocation_bps"))
	assert.Equal(t, 7.0, sample(t, reg, "test_ledger_current_epoch"))
}
