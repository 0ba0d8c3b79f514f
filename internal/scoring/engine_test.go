package scoring

import (
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/tierpool/internal/ledger"
	"github.com/elys-network/tierpool/internal/types"
	"github.com/elys-network/tierpool/internal/vault"
)

const (
	alice = types.Participant("alice")
	bob   = types.Participant("bob")
)

type entryKey struct {
	p     types.Participant
	epoch uint64
}

type fakeSource struct {
	current uint64
	epochs  map[uint64]types.EpochRecord
	entries map[entryKey]types.ParticipantEntry
}

func newFakeSource(current uint64) *fakeSource {
	return &fakeSource{
		current: current,
		epochs:  make(map[uint64]types.EpochRecord),
		entries: make(map[entryKey]types.ParticipantEntry),
	}
}

func (s *fakeSource) CurrentEpoch() uint64 { return s.current }

func (s *fakeSource) Epoch(index uint64) (types.EpochRecord, bool) {
	rec, ok := s.epochs[index]
	return rec, ok
}

func (s *fakeSource) Entry(p types.Participant, epoch uint64) (types.ParticipantEntry, bool) {
	e, ok := s.entries[entryKey{p, epoch}]
	return e, ok
}

type claimSink struct {
	claims []types.ClaimRecord
	err    error
}

func (c *claimSink) RecordClaim(rec types.ClaimRecord) error {
	c.claims = append(c.claims, rec)
	return c.err
}

func scaled(numerator, denominator int64) sdkmath.Int {
	return types.Scale.MulRaw(numerator).QuoRaw(denominator)
}

func frozen(index uint64, end, peak, low sdkmath.Int) types.EpochRecord {
	return types.EpochRecord{
		Index:      index,
		StartPrice: types.Scale,
		EndPrice:   end,
		Peak:       peak,
		Low:        low,
		Started:    true,
		LowSet:     true,
		Finalized:  true,
	}
}

func entry(p types.Participant, epoch uint64, price sdkmath.Int, s types.Strategy) types.ParticipantEntry {
	return types.ParticipantEntry{
		Participant: p,
		Epoch:       epoch,
		Shares:      sdkmath.NewInt(1_000_000),
		EntryPrice:  price,
		Strategy:    s,
		Registered:  true,
	}
}

func TestComputePoints_WorkedExample(t *testing.T) {
	rec := frozen(0, scaled(13, 10), scaled(14, 10), scaled(12, 10))
	e := entry(alice, 0, types.Scale, types.StrategyBalanced)

	// roi 0.3, drawdown floor(0.2/1.4) = 0.142857142857142857
	assert.Equal(t, "334285714285714285", ComputePoints(rec, e).String())
}

func TestComputePoints(t *testing.T) {
	tests := []struct {
		name     string
		rec      types.EpochRecord
		entry    types.ParticipantEntry
		expected string
	}{
		{
			name:     "conservative without drawdown",
			rec:      frozen(0, scaled(11, 10), scaled(11, 10), scaled(11, 10)),
			entry:    entry(alice, 0, types.Scale, types.StrategyConservative),
			expected: "100000000000000000",
		},
		{
			name:     "aggressive with drawdown",
			rec:      frozen(0, scaled(11, 10), scaled(11, 10), types.Scale),
			entry:    entry(alice, 0, types.Scale, types.StrategyAggressive),
			// peak 1.1, low 1.0: drawdown 1/11
			expected: "145454545454545454",
		},
		{
			name:     "end below entry scores zero",
			rec:      frozen(0, scaled(9, 10), types.Scale, scaled(9, 10)),
			entry:    entry(alice, 0, types.Scale, types.StrategyAggressive),
			expected: "0",
		},
		{
			name:     "end equal to entry scores zero",
			rec:      frozen(0, types.Scale, types.Scale, types.Scale),
			entry:    entry(alice, 0, types.Scale, types.StrategyBalanced),
			expected: "0",
		},
		{
			name:     "zero entry price scores zero",
			rec:      frozen(0, types.Scale, types.Scale, types.Scale),
			entry:    entry(alice, 0, sdkmath.ZeroInt(), types.StrategyBalanced),
			expected: "0",
		},
		{
			name: "unset low is not a drawdown",
			rec: types.EpochRecord{
				EndPrice: scaled(12, 10), Peak: scaled(12, 10), Low: sdkmath.ZeroInt(),
				Started: true, Finalized: true,
			},
			entry:    entry(alice, 0, types.Scale, types.StrategyConservative),
			expected: "200000000000000000",
		},
		{
			name:     "full drawdown wipes the award",
			rec:      frozen(0, scaled(2, 1), scaled(2, 1), sdkmath.ZeroInt()),
			entry:    entry(alice, 0, types.Scale, types.StrategyAggressive),
			expected: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputePoints(tt.rec, tt.entry).String())
		})
	}
}

func TestMultiplier(t *testing.T) {
	assert.Equal(t, int64(10), Multiplier(types.StrategyConservative))
	assert.Equal(t, int64(13), Multiplier(types.StrategyBalanced))
	assert.Equal(t, int64(16), Multiplier(types.StrategyAggressive))
	assert.Equal(t, int64(0), Multiplier(types.Strategy(7)))
}

func TestNewEngine_RequiresSource(t *testing.T) {
	_, err := NewEngine(Config{})
	require.Error(t, err)
}

func TestClaimPoints(t *testing.T) {
	src := newFakeSource(2)
	src.epochs[0] = frozen(0, scaled(13, 10), scaled(14, 10), scaled(12, 10))
	src.entries[entryKey{alice, 0}] = entry(alice, 0, types.Scale, types.StrategyBalanced)

	sink := &claimSink{}
	claimedAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	engine, err := NewEngine(Config{Source: src, Recorder: sink, Clock: func() time.Time { return claimedAt }})
	require.NoError(t, err)

	assert.Equal(t, "334285714285714285", engine.PreviewPoints(alice, 0).String())

	claim, err := engine.ClaimPoints(alice, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, claim.ClaimID)
	assert.Equal(t, alice, claim.Participant)
	assert.Equal(t, "334285714285714285", claim.Points.String())
	assert.Equal(t, "334285714285714285", claim.CumulativePoints.String())
	assert.True(t, claim.ClaimedAt.Equal(claimedAt))
	require.Len(t, sink.claims, 1)
	assert.Equal(t, claim.ClaimID, sink.claims[0].ClaimID)

	assert.True(t, engine.IsClaimed(alice, 0))
	assert.Equal(t, "0", engine.PreviewPoints(alice, 0).String())
	assert.Equal(t, "334285714285714285", engine.TotalDistributed().String())

	stored, ok := engine.Claim(alice, 0)
	require.True(t, ok)
	assert.Equal(t, claim.ClaimID, stored.ClaimID)
}

func TestClaimPoints_TwiceFails(t *testing.T) {
	src := newFakeSource(1)
	src.epochs[0] = frozen(0, scaled(11, 10), scaled(11, 10), scaled(11, 10))
	src.entries[entryKey{alice, 0}] = entry(alice, 0, types.Scale, types.StrategyConservative)
	engine, err := NewEngine(Config{Source: src})
	require.NoError(t, err)

	_, err = engine.ClaimPoints(alice, 0)
	require.NoError(t, err)
	before := engine.CumulativePoints(alice)

	_, err = engine.ClaimPoints(alice, 0)
	require.ErrorIs(t, err, types.ErrAlreadyClaimed)
	assert.True(t, types.IsStateError(err))
	assert.Equal(t, before.String(), engine.CumulativePoints(alice).String())
	assert.Equal(t, before.String(), engine.TotalDistributed().String())
}

func TestClaimPoints_Disqualified(t *testing.T) {
	src := newFakeSource(3)
	src.epochs[0] = frozen(0, scaled(12, 10), scaled(12, 10), types.Scale)
	live := frozen(1, types.Scale, types.Scale, types.Scale)
	live.Finalized = false
	src.epochs[1] = live
	src.entries[entryKey{alice, 0}] = entry(alice, 0, types.Scale, types.StrategyBalanced)
	src.entries[entryKey{alice, 1}] = entry(alice, 1, types.Scale, types.StrategyBalanced)
	empty := entry(bob, 0, types.Scale, types.StrategyBalanced)
	empty.Shares = sdkmath.ZeroInt()
	src.entries[entryKey{bob, 0}] = empty

	engine, err := NewEngine(Config{Source: src})
	require.NoError(t, err)

	tests := []struct {
		name  string
		p     types.Participant
		epoch uint64
		err   error
	}{
		{"live epoch", alice, 3, types.ErrEpochNotEnded},
		{"future epoch", alice, 9, types.ErrEpochNotEnded},
		{"not finalized", alice, 1, types.ErrEpochNotFinalized},
		{"no record", alice, 2, types.ErrEpochNotFinalized},
		{"not registered", types.Participant("carol"), 0, types.ErrEntryNotRegistered},
		{"zero shares", bob, 0, types.ErrEntryNotRegistered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, engine.PreviewPoints(tt.p, tt.epoch).IsZero())

			_, err := engine.ClaimPoints(tt.p, tt.epoch)
			require.ErrorIs(t, err, tt.err)
			assert.False(t, engine.IsClaimed(tt.p, tt.epoch))
		})
	}
	assert.True(t, engine.TotalDistributed().IsZero())
}

func TestClaimPoints_LossClaimsZero(t *testing.T) {
	src := newFakeSource(1)
	src.epochs[0] = frozen(0, scaled(9, 10), types.Scale, scaled(9, 10))
	src.entries[entryKey{alice, 0}] = entry(alice, 0, types.Scale, types.StrategyAggressive)
	engine, err := NewEngine(Config{Source: src})
	require.NoError(t, err)

	claim, err := engine.ClaimPoints(alice, 0)
	require.NoError(t, err)
	assert.True(t, claim.Points.IsZero())
	assert.True(t, engine.IsClaimed(alice, 0))

	_, err = engine.ClaimPoints(alice, 0)
	require.ErrorIs(t, err, types.ErrAlreadyClaimed)
}

func TestClaimPoints_RecorderErrorKeepsClaim(t *testing.T) {
	src := newFakeSource(1)
	src.epochs[0] = frozen(0, scaled(11, 10), scaled(11, 10), scaled(11, 10))
	src.entries[entryKey{alice, 0}] = entry(alice, 0, types.Scale, types.StrategyConservative)
	engine, err := NewEngine(Config{Source: src, Recorder: &claimSink{err: errors.New("db down")}})
	require.NoError(t, err)

	_, err = engine.ClaimPoints(alice, 0)
	require.NoError(t, err)
	assert.True(t, engine.IsClaimed(alice, 0))
}

func TestRestore(t *testing.T) {
	src := newFakeSource(3)
	for i := uint64(0); i < 2; i++ {
		src.epochs[i] = frozen(i, scaled(11, 10), scaled(11, 10), scaled(11, 10))
		src.entries[entryKey{alice, i}] = entry(alice, i, types.Scale, types.StrategyConservative)
	}
	engine, err := NewEngine(Config{Source: src})
	require.NoError(t, err)
	_, err = engine.ClaimPoints(alice, 0)
	require.NoError(t, err)
	_, err = engine.ClaimPoints(alice, 1)
	require.NoError(t, err)
	snap := engine.Snapshot()
	require.Len(t, snap.Claims, 2)

	restored, err := NewEngine(Config{Source: src})
	require.NoError(t, err)
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, "200000000000000000", restored.CumulativePoints(alice).String())
	assert.Equal(t, "200000000000000000", restored.TotalDistributed().String())
	assert.True(t, restored.IsClaimed(alice, 1))

	_, err = restored.ClaimPoints(alice, 0)
	require.ErrorIs(t, err, types.ErrAlreadyClaimed)

	err = restored.Restore(snap)
	require.ErrorIs(t, err, types.ErrAlreadyInitialized)

	dup := types.ScoringSnapshot{Claims: []types.ClaimRecord{snap.Claims[0], snap.Claims[0]}}
	fresh, err := NewEngine(Config{Source: src})
	require.NoError(t, err)
	require.ErrorIs(t, fresh.Restore(dup), types.ErrInvariantBroken)
}

type ledgerClock struct{ now time.Time }

func (c *ledgerClock) Now() time.Time { return c.now }

func TestEngine_AgainstLedger(t *testing.T) {
	genesis := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &ledgerClock{now: genesis.Add(time.Minute)}
	l, err := ledger.New(ledger.Config{
		Params: types.PoolParameters{
			Denom:            "uusdc",
			GenesisTime:      genesis,
			EpochDuration:    time.Hour,
			MinDeposit:       sdkmath.NewInt(1000),
			MaxCatchUpEpochs: 12,
		},
		Clock: clock.Now,
	})
	require.NoError(t, err)
	m, err := vault.NewMemoryCapitalManager("uusdc")
	require.NoError(t, err)
	require.NoError(t, l.BindCapitalManager(m))

	engine, err := NewEngine(Config{Source: l, Clock: clock.Now})
	require.NoError(t, err)

	_, err = l.Join(alice, sdkmath.NewInt(1_000_000), types.StrategyBalanced)
	require.NoError(t, err)

	// Price path inside epoch 0: 1.0 -> 1.4 -> 1.2, frozen at 1.3. The join into the
	// empty pool does not start the epoch; the first heartbeat anchors it at 1.4, so
	// drawdown is 0.2/1.4.
	require.NoError(t, m.Accrue(vault.DestinationPrimary, sdkmath.NewInt(400_000)))
	_, err = l.Heartbeat(alice)
	require.NoError(t, err)
	require.NoError(t, m.Impair(vault.DestinationPrimary, sdkmath.NewInt(200_000)))
	_, err = l.Heartbeat(alice)
	require.NoError(t, err)

	_, err = engine.ClaimPoints(alice, 0)
	require.ErrorIs(t, err, types.ErrEpochNotEnded)

	clock.now = clock.now.Add(time.Hour)
	_, err = engine.ClaimPoints(alice, 0)
	require.ErrorIs(t, err, types.ErrEpochNotFinalized)

	require.NoError(t, m.Accrue(vault.DestinationPrimary, sdkmath.NewInt(100_000)))
	_, err = l.Heartbeat(alice)
	require.NoError(t, err)

	rec, ok := l.Epoch(0)
	require.True(t, ok)
	assert.Equal(t, scaled(13, 10).String(), rec.EndPrice.String())
	assert.Equal(t, scaled(14, 10).String(), rec.Peak.String())
	assert.Equal(t, scaled(12, 10).String(), rec.Low.String())
	assert.Equal(t, scaled(14, 10).String(), rec.StartPrice.String())

	claim, err := engine.ClaimPoints(alice, 0)
	require.NoError(t, err)
	assert.Equal(t, "334285714285714285", claim.Points.String())
	assert.Equal(t, "0", engine.PreviewPoints(alice, 0).String())
}
