/*

This file contains the ledger-side types: participant positions, epoch records,
per-epoch entry snapshots and the changesets the ledger hands to its recorder.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Participant identifies a pool participant (bech32 account address).
type Participant string

// Position is a participant's live holding.
type Position struct {
	Participant Participant `json:"participant"`
	Shares      sdkmath.Int `json:"shares"`
	Strategy    Strategy    `json:"strategy"`
}

// EpochRecord tracks share-price movement across one scoring window.
// Started and LowSet replace zero-valued prices as "unset" markers. Started is set
// only by the bootstrap that runs once the pool holds shares.
type EpochRecord struct {
	Index      uint64      `json:"index"`
	StartPrice sdkmath.Int `json:"start_price"`
	EndPrice   sdkmath.Int `json:"end_price"`
	Peak       sdkmath.Int `json:"peak"`
	Low        sdkmath.Int `json:"low"`
	Started    bool        `json:"started"`
	LowSet     bool        `json:"low_set"`
	Finalized  bool        `json:"finalized"`
}

// NewEpochRecord returns an untouched record with all prices at zero.
func NewEpochRecord(index uint64) EpochRecord {
	return EpochRecord{
		Index:      index,
		StartPrice: sdkmath.ZeroInt(),
		EndPrice:   sdkmath.ZeroInt(),
		Peak:       sdkmath.ZeroInt(),
		Low:        sdkmath.ZeroInt(),
	}
}

// ParticipantEntry is the scoring anchor: the participant's position at first
// touch within an epoch. Written once, never updated.
type ParticipantEntry struct {
	Participant Participant `json:"participant"`
	Epoch       uint64      `json:"epoch"`
	Shares      sdkmath.Int `json:"shares"`
	EntryPrice  sdkmath.Int `json:"entry_price"`
	Strategy    Strategy    `json:"strategy"`
	Registered  bool        `json:"registered"`
}

// Totals holds the ledger aggregates maintained at every mutation.
type Totals struct {
	TotalShares        sdkmath.Int                `json:"total_shares"`
	Weights            [NumStrategies]sdkmath.Int `json:"weights"`
	LastFinalizedEpoch uint64                     `json:"last_finalized_epoch"`
}

// LedgerChangeset lists everything a single committed ledger operation wrote.
type LedgerChangeset struct {
	Epochs    []EpochRecord      `json:"epochs"`
	Entries   []ParticipantEntry `json:"entries"`
	Positions []Position         `json:"positions"`
	Totals    Totals             `json:"totals"`
	// Assets is the capital manager's total value once the operation settled.
	Assets    sdkmath.Int        `json:"assets"`
	At        time.Time          `json:"at"`
}

// IsEmpty reports whether the changeset carries no row-level writes.
func (c LedgerChangeset) IsEmpty() bool {
	return len(c.Epochs) == 0 && len(c.Entries) == 0 && len(c.Positions) == 0
}

// LedgerSnapshot is the full persisted ledger, used to restore after a restart.
// Assets is only filled by the store: it is the value recorded with the last
// committed operation, and Restore ignores it.
type LedgerSnapshot struct {
	Totals    Totals             `json:"totals"`
	Positions []Position         `json:"positions"`
	Epochs    []EpochRecord      `json:"epochs"`
	Entries   []ParticipantEntry `json:"entries"`
	Assets    sdkmath.Int        `json:"assets"`
}

// JoinResult reports the outcome of a join.
type JoinResult struct {
	Participant  Participant       `json:"participant"`
	Deposited    sdkmath.Int       `json:"deposited"`
	SharesMinted sdkmath.Int       `json:"shares_minted"`
	Balance      sdkmath.Int       `json:"balance"`
	Strategy     Strategy          `json:"strategy"`
	SharePrice   sdkmath.Int       `json:"share_price"`
	Epoch        uint64            `json:"epoch"`
	Rebalance    RebalanceDecision `json:"rebalance"`
}

// ExitResult reports the outcome of an exit.
type ExitResult struct {
	Participant  Participant       `json:"participant"`
	SharesBurned sdkmath.Int       `json:"shares_burned"`
	Payout       sdkmath.Int       `json:"payout"`
	Balance      sdkmath.Int       `json:"balance"`
	SharePrice   sdkmath.Int       `json:"share_price"`
	Epoch        uint64            `json:"epoch"`
	Rebalance    RebalanceDecision `json:"rebalance"`
}

// ActionResult reports the outcome of a strategy change or heartbeat.
type ActionResult struct {
	Participant Participant       `json:"participant"`
	Strategy    Strategy          `json:"strategy"`
	SharePrice  sdkmath.Int       `json:"share_price"`
	Epoch       uint64            `json:"epoch"`
	Rebalance   RebalanceDecision `json:"rebalance"`
}

// LedgerSummary is the read-only aggregate view of the pool.
type LedgerSummary struct {
	SharePrice         sdkmath.Int                `json:"share_price"`
	TotalAssets        sdkmath.Int                `json:"total_assets"`
	SecondaryValue     sdkmath.Int                `json:"secondary_value"`
	TotalShares        sdkmath.Int                `json:"total_shares"`
	Weights            [NumStrategies]sdkmath.Int `json:"weights"`
	TargetBps          uint64                     `json:"target_bps"`
	CurrentEpoch       uint64                     `json:"current_epoch"`
	LastFinalizedEpoch uint64                     `json:"last_finalized_epoch"`
}
