package ledger

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/tierpool/internal/types"
)

type entryKey struct {
	participant types.Participant
	epoch       uint64
}

// journal records every write of one operation so a failure can put the ledger back
// exactly as it was. It also collects what was touched for the recorder.
type journal struct {
	totals    types.Totals
	undo      []func()
	epochs    map[uint64]struct{}
	entries   map[entryKey]struct{}
	positions map[types.Participant]struct{}
}

func (l *Ledger) begin() *journal {
	return &journal{
		totals:    l.totalsLocked(),
		epochs:    make(map[uint64]struct{}),
		entries:   make(map[entryKey]struct{}),
		positions: make(map[types.Participant]struct{}),
	}
}

// revert runs the undo log newest first, then restores the aggregates.
func (l *Ledger) revert(j *journal) {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	l.totalShares = j.totals.TotalShares
	l.weights = j.totals.Weights
	l.lastFinalizedEpoch = j.totals.LastFinalizedEpoch
}

// compensate registers a capital-side undo. Compensation failures are logged only:
// the ledger revert itself cannot fail.
func (l *Ledger) compensate(j *journal, what string, fn func() error) {
	j.undo = append(j.undo, func() {
		if err := fn(); err != nil {
			l.logger.Error().Err(err).Str("compensation", what).Msg("Capital compensation failed during revert")
		}
	})
}

func (l *Ledger) putEpoch(j *journal, rec types.EpochRecord) {
	prev, existed := l.epochs[rec.Index]
	j.undo = append(j.undo, func() {
		if existed {
			l.epochs[rec.Index] = prev
		} else {
			delete(l.epochs, rec.Index)
		}
	})
	j.epochs[rec.Index] = struct{}{}
	l.epochs[rec.Index] = rec
}

// putEntry writes a participant entry. Callers check for an existing entry first.
func (l *Ledger) putEntry(j *journal, e types.ParticipantEntry) {
	key := entryKey{participant: e.Participant, epoch: e.Epoch}
	j.undo = append(j.undo, func() { delete(l.entries, key) })
	j.entries[key] = struct{}{}
	l.entries[key] = e
}

// putPosition sets a participant's balance and strategy. A zero balance removes the
// position and its tier membership.
func (l *Ledger) putPosition(j *journal, p types.Participant, shares sdkmath.Int, s types.Strategy) {
	prevShares, hadShares := l.shares[p]
	prevStrategy, hadStrategy := l.strategies[p]
	j.undo = append(j.undo, func() {
		if hadShares {
			l.shares[p] = prevShares
		} else {
			delete(l.shares, p)
		}
		if hadStrategy {
			l.strategies[p] = prevStrategy
		} else {
			delete(l.strategies, p)
		}
	})
	j.positions[p] = struct{}{}

	if shares.IsZero() {
		delete(l.shares, p)
		delete(l.strategies, p)
		return
	}
	l.shares[p] = shares
	l.strategies[p] = s
}

// changeset builds what the operation wrote, in the ledger's committed state.
func (l *Ledger) changeset(j *journal) types.LedgerChangeset {
	cs := types.LedgerChangeset{
		Totals: l.totalsLocked(),
		At:     l.clock(),
	}
	for idx := range j.epochs {
		cs.Epochs = append(cs.Epochs, l.epochs[idx])
	}
	for key := range j.entries {
		cs.Entries = append(cs.Entries, l.entries[key])
	}
	for p := range j.positions {
		pos := types.Position{Participant: p, Shares: sdkmath.ZeroInt()}
		if shares, ok := l.shares[p]; ok {
			pos.Shares = shares
			pos.Strategy = l.strategies[p]
		}
		cs.Positions = append(cs.Positions, pos)
	}
	return cs
}
