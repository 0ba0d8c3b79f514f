package pool

import (
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/tierpool/internal/ledger"
	"github.com/elys-network/tierpool/internal/metrics"
	"github.com/elys-network/tierpool/internal/scoring"
	"github.com/elys-network/tierpool/internal/types"
	"github.com/elys-network/tierpool/internal/vault"
)

var genesis = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

const alice = types.Participant("alice")

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	svc      *Service
	capital  *vault.MemoryCapitalManager
	clock    *testClock
	reg      *prometheus.Registry
	recorded []types.LedgerChangeset
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{clock: &testClock{now: genesis.Add(time.Minute)}, reg: prometheus.NewRegistry()}
	prev := metrics.DefaultMetrics
	metrics.DefaultMetrics = metrics.NewMetrics("test", f.reg)
	t.Cleanup(func() { metrics.DefaultMetrics = prev })

	params := types.PoolParameters{
		Denom:            "uusdc",
		GenesisTime:      genesis,
		EpochDuration:    time.Hour,
		MinDeposit:       sdkmath.NewInt(1000),
		MaxCatchUpEpochs: 12,
	}
	sink := ledger.RecorderFunc(func(cs types.LedgerChangeset) error {
		f.recorded = append(f.recorded, cs)
		return nil
	})
	l, err := ledger.New(ledger.Config{Params: params, Clock: f.clock.Now, Recorder: NewLedgerRecorder(sink)})
	require.NoError(t, err)

	f.capital, err = vault.NewMemoryCapitalManager("uusdc")
	require.NoError(t, err)
	require.NoError(t, l.BindCapitalManager(f.capital))

	engine, err := scoring.NewEngine(scoring.Config{Source: l, Clock: f.clock.Now})
	require.NoError(t, err)

	f.svc, err = NewService(Config{Ledger: l, Engine: engine})
	require.NoError(t, err)
	return f
}

// counter sums every series of a counter family whose labels include want.
func (f *fixture) counter(t *testing.T, name string, want map[string]string) float64 {
	t.Helper()
	families, err := f.reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue series
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestNewService_ValidatesConfig(t *testing.T) {
	_, err := NewService(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger cannot be nil")
}

func TestService_JoinAccrueClaim(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Join(alice, sdkmath.NewInt(1_000_000), types.StrategyAggressive)
	require.NoError(t, err)
	assert.Equal(t, "1000000", res.SharesMinted.String())

	require.NoError(t, f.capital.Accrue(vault.DestinationPrimary, sdkmath.NewInt(500_000)))

	f.clock.Advance(time.Hour)
	_, err = f.svc.Heartbeat(alice)
	require.NoError(t, err)

	view, err := f.svc.EpochView(alice, 0)
	require.NoError(t, err)
	require.NotNil(t, view.Entry)
	assert.True(t, view.Epoch.Finalized)
	assert.Equal(t, "800000000000000000", view.PreviewPoints.String())
	assert.Nil(t, view.Claim)

	claim, err := f.svc.ClaimPoints(alice, 0)
	require.NoError(t, err)
	assert.Equal(t, "800000000000000000", claim.Points.String())

	_, err = f.svc.ClaimPoints(alice, 0)
	assert.ErrorIs(t, err, types.ErrAlreadyClaimed)

	participant, err := f.svc.ParticipantView(alice)
	require.NoError(t, err)
	assert.True(t, participant.HasPosition)
	require.NotNil(t, participant.Strategy)
	assert.Equal(t, types.StrategyAggressive, *participant.Strategy)
	assert.Equal(t, "1500000", participant.Value.String())
	assert.Equal(t, "800000000000000000", participant.CumulativePoints.String())

	summary, err := f.svc.PoolSummary()
	require.NoError(t, err)
	assert.Equal(t, "1.500000000000000000", summary.SharePriceDisplay)
	assert.Equal(t, uint64(1), summary.CurrentEpoch)
	assert.Equal(t, "800000000000000000", summary.PointsDistributed.String())

	assert.Equal(t, 1.0, f.counter(t, "test_ledger_epochs_finalized_total", nil))
	assert.Equal(t, 1.0, f.counter(t, "test_scoring_claims_total", nil))
	assert.Equal(t, 1.0, f.counter(t, "test_pool_operations_total", map[string]string{"operation": "join", "outcome": "ok"}))
	assert.Equal(t, 1.0, f.counter(t, "test_pool_operations_total", map[string]string{"operation": "claim", "outcome": "state"}))
	assert.Len(t, f.recorded, 2)
}

func TestService_RejectedOperations(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Join(alice, sdkmath.NewInt(10), types.StrategyBalanced)
	assert.ErrorIs(t, err, types.ErrBelowMinimumDeposit)

	_, err = f.svc.Exit(alice, sdkmath.NewInt(1))
	assert.True(t, types.IsStateError(err))

	_, err = f.svc.ChangeStrategy(alice, types.StrategyConservative)
	assert.True(t, types.IsStateError(err))

	assert.Equal(t, 1.0, f.counter(t, "test_pool_operations_total", map[string]string{"operation": "join", "outcome": "input"}))
	assert.Empty(t, f.recorded)
}

func TestService_ExitAndViews(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Join(alice, sdkmath.NewInt(2_000_000), types.StrategyConservative)
	require.NoError(t, err)

	res, err := f.svc.Exit(alice, sdkmath.NewInt(2_000_000))
	require.NoError(t, err)
	assert.Equal(t, "2000000", res.Payout.String())
	assert.True(t, res.Balance.IsZero())

	view, err := f.svc.ParticipantView(alice)
	require.NoError(t, err)
	assert.False(t, view.HasPosition)
	assert.Nil(t, view.Strategy)
	assert.True(t, view.Shares.IsZero())

	_, err = f.svc.Epoch(42)
	assert.True(t, errors.Is(err, types.ErrEpochNotFound))

	rec, err := f.svc.Epoch(0)
	require.NoError(t, err)
	assert.True(t, rec.Started)

	ledgerSnap, scoringSnap := f.svc.Snapshots()
	assert.Empty(t, ledgerSnap.Positions)
	assert.Empty(t, scoringSnap.Claims)
}
