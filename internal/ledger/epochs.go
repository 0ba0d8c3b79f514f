package ledger

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/tierpool/internal/types"
)

// epochAt maps a timestamp to its epoch index. Times before genesis are epoch 0.
func (l *Ledger) epochAt(t time.Time) uint64 {
	if !t.After(l.params.GenesisTime) {
		return 0
	}
	return uint64(t.Sub(l.params.GenesisTime) / l.params.EpochDuration)
}

// epochLocked returns the stored record for index, or a fresh one.
func (l *Ledger) epochLocked(index uint64) types.EpochRecord {
	if rec, ok := l.epochs[index]; ok {
		return rec
	}
	return types.NewEpochRecord(index)
}

// sweep freezes at most MaxCatchUpEpochs overdue epochs at the current price and
// bootstraps the live epoch when the pool holds shares. It returns how many records
// were frozen.
func (l *Ledger) sweep(j *journal, current uint64, price sdkmath.Int) int {
	end := current
	if limit := l.lastFinalizedEpoch + l.params.MaxCatchUpEpochs; limit < end {
		end = limit
	}

	frozen := 0
	for idx := l.lastFinalizedEpoch; idx < end; idx++ {
		rec := l.epochLocked(idx)
		if rec.Finalized {
			continue
		}
		rec.EndPrice = price
		rec.Finalized = true
		l.putEpoch(j, rec)
		frozen++
	}
	if end > l.lastFinalizedEpoch {
		l.lastFinalizedEpoch = end
	}

	live := l.epochLocked(current)
	if !live.Started && l.totalShares.IsPositive() {
		live.StartPrice = price
		live.Peak = price
		live.Low = price
		live.Started = true
		live.LowSet = true
		l.putEpoch(j, live)
	}

	if frozen > 0 {
		l.logger.Debug().
			Int("frozen", frozen).
			Uint64("lastFinalizedEpoch", l.lastFinalizedEpoch).
			Uint64("currentEpoch", current).
			Msg("Finalized stale epochs")
	}
	return frozen
}

// observe folds a price into the live epoch's peak and low. It never starts an epoch:
// only the sweep bootstrap does, so an epoch first touched while the pool was empty is
// re-anchored by the first call that finds shares outstanding.
func (l *Ledger) observe(j *journal, current uint64, price sdkmath.Int) {
	rec := l.epochLocked(current)
	if rec.Finalized {
		return
	}
	changed := false
	if price.GT(rec.Peak) {
		rec.Peak = price
		changed = true
	}
	if !rec.LowSet || price.LT(rec.Low) {
		rec.Low = price
		rec.LowSet = true
		changed = true
	}
	if changed {
		l.putEpoch(j, rec)
	}
}

// register writes the participant's scoring anchor for the live epoch. Only the first
// touch in an epoch counts; later calls are no-ops.
func (l *Ledger) register(j *journal, p types.Participant, current uint64, price sdkmath.Int) bool {
	shares, ok := l.shares[p]
	if !ok || !shares.IsPositive() {
		return false
	}
	key := entryKey{participant: p, epoch: current}
	if _, exists := l.entries[key]; exists {
		return false
	}
	l.putEntry(j, types.ParticipantEntry{
		Participant: p,
		Epoch:       current,
		Shares:      shares,
		EntryPrice:  price,
		Strategy:    l.strategies[p],
		Registered:  true,
	})
	return true
}
