/*

This file contains the epoch scoring engine. After an epoch is frozen, each participant
registered in it can claim a one-time point award derived from the share price path of
that epoch and the multiplier of the tier they held at first touch.

The engine owns only claim bookkeeping. Epoch records and entries are read from the
ledger through EpochSource and never written from here.

*/

package scoring

import (
	"fmt"
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/tierpool/internal/logger"
	"github.com/elys-network/tierpool/internal/types"
)

// multiplierDenominator turns the tier multipliers into tenths.
const multiplierDenominator = 10

// tierMultiplier is the scoring weight of each tier, in tenths.
var tierMultiplier = [types.NumStrategies]int64{
	types.StrategyConservative: 10,
	types.StrategyBalanced:     13,
	types.StrategyAggressive:   16,
}

// Multiplier returns a tier's multiplier in tenths (13 means 1.3x).
func Multiplier(s types.Strategy) int64 {
	if !s.IsValid() {
		return 0
	}
	return tierMultiplier[s]
}

// EpochSource is the read-only view of the ledger the engine scores against.
type EpochSource interface {
	CurrentEpoch() uint64
	Epoch(index uint64) (types.EpochRecord, bool)
	Entry(p types.Participant, epoch uint64) (types.ParticipantEntry, bool)
}

// ClaimRecorder persists claim records. Errors are logged and do not undo the claim.
type ClaimRecorder interface {
	RecordClaim(rec types.ClaimRecord) error
}

// ClaimRecorderFunc adapts a function to the ClaimRecorder interface.
type ClaimRecorderFunc func(rec types.ClaimRecord) error

func (f ClaimRecorderFunc) RecordClaim(rec types.ClaimRecord) error { return f(rec) }

type claimKey struct {
	participant types.Participant
	epoch       uint64
}

// Engine is the sole mutator of claim state. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	logger   zerolog.Logger
	source   EpochSource
	recorder ClaimRecorder
	clock    func() time.Time

	claims      map[claimKey]types.ClaimRecord
	cumulative  map[types.Participant]sdkmath.Int
	distributed sdkmath.Int
}

// Config holds the configuration for creating a new Engine.
type Config struct {
	Source   EpochSource
	Recorder ClaimRecorder
	Clock    func() time.Time
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("epoch source cannot be nil")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Engine{
		logger:      logger.GetForComponent("epoch_scoring"),
		source:      cfg.Source,
		recorder:    cfg.Recorder,
		clock:       cfg.Clock,
		claims:      make(map[claimKey]types.ClaimRecord),
		cumulative:  make(map[types.Participant]sdkmath.Int),
		distributed: sdkmath.ZeroInt(),
	}, nil
}

// ClaimPoints awards p's points for a frozen epoch. Each (participant, epoch) pair
// can be claimed once.
func (e *Engine) ClaimPoints(p types.Participant, epoch uint64) (types.ClaimRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := claimKey{participant: p, epoch: epoch}
	if _, done := e.claims[key]; done {
		return types.ClaimRecord{}, types.ErrAlreadyClaimed.Wrapf("%s epoch %d", p, epoch)
	}
	rec, entry, err := e.eligible(p, epoch)
	if err != nil {
		return types.ClaimRecord{}, err
	}

	// Marked before the award is computed.
	claim := types.ClaimRecord{
		ClaimID:     uuid.New().String(),
		Participant: p,
		Epoch:       epoch,
		ClaimedAt:   e.clock().UTC(),
	}
	e.claims[key] = claim

	points := ComputePoints(rec, entry)
	cumulative := e.cumulativeLocked(p).Add(points)
	e.cumulative[p] = cumulative
	e.distributed = e.distributed.Add(points)

	claim.Points = points
	claim.CumulativePoints = cumulative
	e.claims[key] = claim

	e.logger.Info().
		Str("claimId", claim.ClaimID).
		Str("participant", string(p)).
		Uint64("epoch", epoch).
		Str("points", points.String()).
		Str("cumulative", cumulative.String()).
		Msg("Points claimed")

	if e.recorder != nil {
		if err := e.recorder.RecordClaim(claim); err != nil {
			e.logger.Error().Err(err).Str("claimId", claim.ClaimID).Msg("Failed to record claim")
		}
	}
	return claim, nil
}

// PreviewPoints returns what ClaimPoints would award right now, or zero for any
// disqualifying condition. It never fails and never mutates.
func (e *Engine) PreviewPoints(p types.Participant, epoch uint64) sdkmath.Int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, done := e.claims[claimKey{participant: p, epoch: epoch}]; done {
		return sdkmath.ZeroInt()
	}
	rec, entry, err := e.eligible(p, epoch)
	if err != nil {
		return sdkmath.ZeroInt()
	}
	return ComputePoints(rec, entry)
}

func (e *Engine) eligible(p types.Participant, epoch uint64) (types.EpochRecord, types.ParticipantEntry, error) {
	if current := e.source.CurrentEpoch(); epoch >= current {
		return types.EpochRecord{}, types.ParticipantEntry{}, types.ErrEpochNotEnded.Wrapf("epoch %d, live epoch %d", epoch, current)
	}
	rec, ok := e.source.Epoch(epoch)
	if !ok || !rec.Finalized {
		return types.EpochRecord{}, types.ParticipantEntry{}, types.ErrEpochNotFinalized.Wrapf("epoch %d", epoch)
	}
	entry, ok := e.source.Entry(p, epoch)
	if !ok || !entry.Registered {
		return types.EpochRecord{}, types.ParticipantEntry{}, types.ErrEntryNotRegistered.Wrapf("%s epoch %d", p, epoch)
	}
	if entry.Shares.IsNil() || !entry.Shares.IsPositive() {
		return types.EpochRecord{}, types.ParticipantEntry{}, types.ErrEntryNotRegistered.Wrapf("%s epoch %d has no shares", p, epoch)
	}
	return rec, entry, nil
}

// ComputePoints scores a frozen epoch for one entry:
//
//	roi      = (end - entry) * SCALE / entry
//	drawdown = peak > low ? (peak - low) * SCALE / peak : 0
//	points   = roi * multiplier * (SCALE - drawdown) / (10 * SCALE)
//
// A non-positive return scores zero.
func ComputePoints(rec types.EpochRecord, entry types.ParticipantEntry) sdkmath.Int {
	entryPrice, endPrice := entry.EntryPrice, rec.EndPrice
	if entryPrice.IsNil() || endPrice.IsNil() || !entryPrice.IsPositive() || !endPrice.GT(entryPrice) {
		return sdkmath.ZeroInt()
	}

	roi := endPrice.Sub(entryPrice).Mul(types.Scale).Quo(entryPrice)

	drawdown := sdkmath.ZeroInt()
	if rec.LowSet && rec.Peak.GT(rec.Low) {
		drawdown = rec.Peak.Sub(rec.Low).Mul(types.Scale).Quo(rec.Peak)
	}

	return roi.
		MulRaw(Multiplier(entry.Strategy)).
		Mul(types.Scale.Sub(drawdown)).
		Quo(types.Scale.MulRaw(multiplierDenominator))
}

// IsClaimed reports whether p already claimed epoch.
func (e *Engine) IsClaimed(p types.Participant, epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, done := e.claims[claimKey{participant: p, epoch: epoch}]
	return done
}

// Claim returns the record of a past claim.
func (e *Engine) Claim(p types.Participant, epoch uint64) (types.ClaimRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.claims[claimKey{participant: p, epoch: epoch}]
	return rec, ok
}

func (e *Engine) CumulativePoints(p types.Participant) sdkmath.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cumulativeLocked(p)
}

// TotalDistributed is the sum of every point award so far.
func (e *Engine) TotalDistributed() sdkmath.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.distributed
}

// Snapshot returns every claim record, oldest epoch first.
func (e *Engine) Snapshot() types.ScoringSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := types.ScoringSnapshot{Claims: make([]types.ClaimRecord, 0, len(e.claims))}
	for _, c := range e.claims {
		snap.Claims = append(snap.Claims, c)
	}
	sort.Slice(snap.Claims, func(i, j int) bool {
		if snap.Claims[i].Epoch != snap.Claims[j].Epoch {
			return snap.Claims[i].Epoch < snap.Claims[j].Epoch
		}
		return snap.Claims[i].Participant < snap.Claims[j].Participant
	})
	return snap
}

// Restore loads persisted claims into a fresh engine. Cumulative totals are re-derived
// from the individual awards.
func (e *Engine) Restore(snap types.ScoringSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.claims) > 0 {
		return types.ErrAlreadyInitialized.Wrap("engine already holds claims")
	}

	claims := make(map[claimKey]types.ClaimRecord, len(snap.Claims))
	cumulative := make(map[types.Participant]sdkmath.Int)
	distributed := sdkmath.ZeroInt()
	for _, c := range snap.Claims {
		key := claimKey{participant: c.Participant, epoch: c.Epoch}
		if _, dup := claims[key]; dup {
			return types.ErrInvariantBroken.Wrapf("duplicate claim for %s epoch %d", c.Participant, c.Epoch)
		}
		if c.Points.IsNil() || c.Points.IsNegative() {
			return types.ErrInvariantBroken.Wrapf("claim %s has invalid points", c.ClaimID)
		}
		claims[key] = c
		prev, ok := cumulative[c.Participant]
		if !ok {
			prev = sdkmath.ZeroInt()
		}
		cumulative[c.Participant] = prev.Add(c.Points)
		distributed = distributed.Add(c.Points)
	}

	e.claims = claims
	e.cumulative = cumulative
	e.distributed = distributed

	e.logger.Info().
		Int("claims", len(claims)).
		Str("distributed", distributed.String()).
		Msg("Scoring engine restored from snapshot")
	return nil
}

func (e *Engine) cumulativeLocked(p types.Participant) sdkmath.Int {
	if c, ok := e.cumulative[p]; ok {
		return c
	}
	return sdkmath.ZeroInt()
}
