/*

This file contains the share ledger: participant balances, the running per-tier weight
sums and the epoch timeline. Every participant action goes through the ledger, which
drives the capital manager and asks the rebalance calculator what to move.

Aggregates are maintained incrementally at each mutation. Nothing in this package
iterates the participant set except Restore, which runs once at startup.

*/

package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/tierpool/internal/logger"
	"github.com/elys-network/tierpool/internal/rebalance"
	"github.com/elys-network/tierpool/internal/types"
	"github.com/elys-network/tierpool/internal/vault"
)

// Ledger is the single writer of pool accounting state. All methods are safe for
// concurrent use; operations are serialized.
type Ledger struct {
	mu       sync.Mutex
	logger   zerolog.Logger
	params   types.PoolParameters
	clock    func() time.Time
	capital  vault.Binding
	recorder Recorder

	totalShares sdkmath.Int
	shares      map[types.Participant]sdkmath.Int
	strategies  map[types.Participant]types.Strategy
	weights     [types.NumStrategies]sdkmath.Int

	epochs             map[uint64]types.EpochRecord
	entries            map[entryKey]types.ParticipantEntry
	lastFinalizedEpoch uint64
}

// Config holds the configuration for creating a new Ledger.
type Config struct {
	Params types.PoolParameters
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Recorder defaults to a no-op.
	Recorder Recorder
}

// New creates an empty ledger. The capital manager is bound separately.
func New(cfg Config) (*Ledger, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("ledger configuration validation failed: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}

	l := &Ledger{
		logger:      logger.GetForComponent("share_ledger"),
		params:      cfg.Params,
		clock:       cfg.Clock,
		recorder:    cfg.Recorder,
		totalShares: sdkmath.ZeroInt(),
		shares:      make(map[types.Participant]sdkmath.Int),
		strategies:  make(map[types.Participant]types.Strategy),
		epochs:      make(map[uint64]types.EpochRecord),
		entries:     make(map[entryKey]types.ParticipantEntry),
	}
	for i := range l.weights {
		l.weights[i] = sdkmath.ZeroInt()
	}

	l.logger.Info().
		Str("denom", cfg.Params.Denom).
		Time("genesis", cfg.Params.GenesisTime).
		Dur("epochDuration", cfg.Params.EpochDuration).
		Str("minDeposit", cfg.Params.MinDeposit.String()).
		Msg("Share ledger created")
	return l, nil
}

func validateConfig(cfg Config) error {
	p := cfg.Params
	if p.EpochDuration <= 0 {
		return fmt.Errorf("epoch duration must be positive")
	}
	if p.MinDeposit.IsNil() || !p.MinDeposit.IsPositive() {
		return fmt.Errorf("minimum deposit must be positive")
	}
	if p.MaxCatchUpEpochs == 0 {
		return fmt.Errorf("max catch-up epochs must be positive")
	}
	if p.GenesisTime.IsZero() {
		return fmt.Errorf("genesis time must be set")
	}
	return nil
}

// BindCapitalManager wires the capital manager. It succeeds exactly once.
func (l *Ledger) BindCapitalManager(m vault.CapitalManager) error {
	if err := l.capital.Bind(m); err != nil {
		return err
	}
	l.logger.Info().Msg("Capital manager bound to ledger")
	return nil
}

// Params returns the fixed pool parameters.
func (l *Ledger) Params() types.PoolParameters {
	return l.params
}

// SharePrice returns total assets per share, scaled by types.Scale.
func (l *Ledger) SharePrice() (sdkmath.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, err := l.capital.Manager()
	if err != nil {
		return sdkmath.Int{}, err
	}
	price, _, err := l.priceLocked(m)
	return price, err
}

// TotalAssets returns the capital manager's total value.
func (l *Ledger) TotalAssets() (sdkmath.Int, error) {
	m, err := l.capital.Manager()
	if err != nil {
		return sdkmath.Int{}, err
	}
	return m.TotalValue()
}

func (l *Ledger) TotalShares() sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalShares
}

// SharesOf returns a participant's balance, zero if they hold nothing.
func (l *Ledger) SharesOf(p types.Participant) sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.shares[p]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}

// StrategyOf returns a participant's tier. ok is false for non-holders.
func (l *Ledger) StrategyOf(p types.Participant) (types.Strategy, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.strategies[p]
	return s, ok
}

// Position returns a participant's live holding.
func (l *Ledger) Position(p types.Participant) (types.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	shares, ok := l.shares[p]
	if !ok {
		return types.Position{Participant: p, Shares: sdkmath.ZeroInt()}, false
	}
	return types.Position{Participant: p, Shares: shares, Strategy: l.strategies[p]}, true
}

func (l *Ledger) Weights() [types.NumStrategies]sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.weights
}

// CurrentEpoch returns the live epoch index at the ledger clock's current time.
func (l *Ledger) CurrentEpoch() uint64 {
	return l.epochAt(l.clock())
}

func (l *Ledger) LastFinalizedEpoch() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastFinalizedEpoch
}

// Epoch returns an epoch record, frozen or live.
func (l *Ledger) Epoch(index uint64) (types.EpochRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.epochs[index]
	return rec, ok
}

// Entry returns a participant's scoring anchor for an epoch.
func (l *Ledger) Entry(p types.Participant, epoch uint64) (types.ParticipantEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[entryKey{participant: p, epoch: epoch}]
	return e, ok
}

// Summary returns the aggregate view of the pool.
func (l *Ledger) Summary() (types.LedgerSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, err := l.capital.Manager()
	if err != nil {
		return types.LedgerSummary{}, err
	}
	price, assets, err := l.priceLocked(m)
	if err != nil {
		return types.LedgerSummary{}, err
	}
	secondary, err := m.SecondaryValue()
	if err != nil {
		return types.LedgerSummary{}, fmt.Errorf("failed to read secondary value: %w", err)
	}
	return types.LedgerSummary{
		SharePrice:         price,
		TotalAssets:        assets,
		SecondaryValue:     secondary,
		TotalShares:        l.totalShares,
		Weights:            l.weights,
		TargetBps:          rebalance.ComputeTargetFromWeights(l.weights),
		CurrentEpoch:       l.epochAt(l.clock()),
		LastFinalizedEpoch: l.lastFinalizedEpoch,
	}, nil
}

// PreviewJoin quotes the shares a join of amount would mint right now.
func (l *Ledger) PreviewJoin(amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || amount.LT(l.params.MinDeposit) {
		return sdkmath.Int{}, types.ErrBelowMinimumDeposit.Wrapf("minimum is %s", l.params.MinDeposit)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m, err := l.capital.Manager()
	if err != nil {
		return sdkmath.Int{}, err
	}
	assets, err := m.TotalValue()
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to read total value: %w", err)
	}
	return l.sharesForDeposit(amount, assets)
}

// PreviewExit quotes the payout for burning shares right now.
func (l *Ledger) PreviewExit(shares sdkmath.Int) (sdkmath.Int, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.Int{}, types.ErrZeroShares
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if shares.GT(l.totalShares) {
		return sdkmath.Int{}, types.ErrInsufficientBalance.Wrapf("%s exceeds total shares %s", shares, l.totalShares)
	}
	m, err := l.capital.Manager()
	if err != nil {
		return sdkmath.Int{}, err
	}
	assets, err := m.TotalValue()
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to read total value: %w", err)
	}
	product, err := mulOverflow(shares, assets, "payout")
	if err != nil {
		return sdkmath.Int{}, err
	}
	return product.Quo(l.totalShares), nil
}

// Snapshot returns the full ledger state, sorted for stable output.
func (l *Ledger) Snapshot() types.LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := types.LedgerSnapshot{Totals: l.totalsLocked()}
	for p, s := range l.shares {
		snap.Positions = append(snap.Positions, types.Position{Participant: p, Shares: s, Strategy: l.strategies[p]})
	}
	for _, rec := range l.epochs {
		snap.Epochs = append(snap.Epochs, rec)
	}
	for _, e := range l.entries {
		snap.Entries = append(snap.Entries, e)
	}
	sort.Slice(snap.Positions, func(i, j int) bool { return snap.Positions[i].Participant < snap.Positions[j].Participant })
	sort.Slice(snap.Epochs, func(i, j int) bool { return snap.Epochs[i].Index < snap.Epochs[j].Index })
	sort.Slice(snap.Entries, func(i, j int) bool {
		if snap.Entries[i].Epoch != snap.Entries[j].Epoch {
			return snap.Entries[i].Epoch < snap.Entries[j].Epoch
		}
		return snap.Entries[i].Participant < snap.Entries[j].Participant
	})
	return snap
}

// Restore loads persisted state into a fresh ledger. The share and weight sums are
// re-derived from the positions and must match the stored totals.
func (l *Ledger) Restore(snap types.LedgerSnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.totalShares.IsZero() || len(l.epochs) > 0 || len(l.entries) > 0 || l.lastFinalizedEpoch > 0 {
		return types.ErrAlreadyInitialized.Wrap("ledger already holds state")
	}

	total := sdkmath.ZeroInt()
	var weights [types.NumStrategies]sdkmath.Int
	for i := range weights {
		weights[i] = sdkmath.ZeroInt()
	}
	shares := make(map[types.Participant]sdkmath.Int, len(snap.Positions))
	strategies := make(map[types.Participant]types.Strategy, len(snap.Positions))
	for _, pos := range snap.Positions {
		if pos.Shares.IsNil() || !pos.Shares.IsPositive() {
			return types.ErrInvariantBroken.Wrapf("position of %s has no shares", pos.Participant)
		}
		if !pos.Strategy.IsValid() {
			return types.ErrInvalidStrategy.Wrapf("position of %s", pos.Participant)
		}
		if _, dup := shares[pos.Participant]; dup {
			return types.ErrInvariantBroken.Wrapf("duplicate position for %s", pos.Participant)
		}
		shares[pos.Participant] = pos.Shares
		strategies[pos.Participant] = pos.Strategy
		total = total.Add(pos.Shares)
		weights[pos.Strategy] = weights[pos.Strategy].Add(pos.Shares)
	}

	if snap.Totals.TotalShares.IsNil() || !total.Equal(snap.Totals.TotalShares) {
		return types.ErrInvariantBroken.Wrapf("positions sum to %s, totals say %v", total, snap.Totals.TotalShares)
	}
	for i, w := range snap.Totals.Weights {
		if w.IsNil() || !w.Equal(weights[i]) {
			return types.ErrInvariantBroken.Wrapf("%s weight is %s, totals say %v", types.Strategy(i), weights[i], w)
		}
	}

	epochs := make(map[uint64]types.EpochRecord, len(snap.Epochs))
	for _, rec := range snap.Epochs {
		epochs[rec.Index] = rec
	}
	entries := make(map[entryKey]types.ParticipantEntry, len(snap.Entries))
	for _, e := range snap.Entries {
		entries[entryKey{participant: e.Participant, epoch: e.Epoch}] = e
	}

	l.totalShares = total
	l.weights = weights
	l.shares = shares
	l.strategies = strategies
	l.epochs = epochs
	l.entries = entries
	l.lastFinalizedEpoch = snap.Totals.LastFinalizedEpoch

	l.logger.Info().
		Int("positions", len(shares)).
		Int("epochs", len(epochs)).
		Int("entries", len(entries)).
		Uint64("lastFinalizedEpoch", l.lastFinalizedEpoch).
		Msg("Ledger restored from snapshot")
	return nil
}

func (l *Ledger) totalsLocked() types.Totals {
	return types.Totals{
		TotalShares:        l.totalShares,
		Weights:            l.weights,
		LastFinalizedEpoch: l.lastFinalizedEpoch,
	}
}

// priceLocked returns the share price and the total assets it was computed from.
func (l *Ledger) priceLocked(m vault.CapitalManager) (sdkmath.Int, sdkmath.Int, error) {
	assets, err := m.TotalValue()
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("failed to read total value: %w", err)
	}
	if l.totalShares.IsZero() {
		return types.Scale, assets, nil
	}
	scaled, err := mulOverflow(assets, types.Scale, "share price")
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return scaled.Quo(l.totalShares), assets, nil
}

// mulOverflow multiplies without panicking past the 256-bit limit of sdkmath.Int.
func mulOverflow(a, b sdkmath.Int, what string) (sdkmath.Int, error) {
	product, err := a.SafeMul(b)
	if err != nil {
		return sdkmath.Int{}, types.ErrAmountOverflow.Wrapf("%s: %s x %s", what, a, b)
	}
	return product, nil
}

// sharesForDeposit mints against the pre-deposit state so a joiner is not diluted by
// their own deposit.
func (l *Ledger) sharesForDeposit(amount, assetsBefore sdkmath.Int) (sdkmath.Int, error) {
	if l.totalShares.IsZero() {
		return amount, nil
	}
	if !assetsBefore.IsPositive() {
		return sdkmath.Int{}, types.ErrEmptyAssets.Wrapf("%s shares outstanding", l.totalShares)
	}
	product, err := mulOverflow(amount, l.totalShares, "mint")
	if err != nil {
		return sdkmath.Int{}, err
	}
	minted := product.Quo(assetsBefore)
	if minted.IsZero() {
		return sdkmath.Int{}, types.ErrZeroSharesMinted.Wrapf("deposit %s against %s assets", amount, assetsBefore)
	}
	return minted, nil
}
