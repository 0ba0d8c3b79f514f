/*

This file contains the types for epoch point claims and the rebalance decision the
calculator hands back to the ledger.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Direction is which way capital moves between the two yield destinations.
type Direction string

const (
	DirectionNone        Direction = "NONE"
	DirectionToSecondary Direction = "TO_SECONDARY" // primary -> secondary
	DirectionToPrimary   Direction = "TO_PRIMARY"   // secondary -> primary
)

// RebalanceDecision is the calculator's verdict for one rebalance check.
type RebalanceDecision struct {
	Needed     bool        `json:"needed"`
	Direction  Direction   `json:"direction"`
	Amount     sdkmath.Int `json:"amount"`
	CurrentBps uint64      `json:"current_bps"`
	TargetBps  uint64      `json:"target_bps"`
}

// NoRebalance is the "no action" decision.
func NoRebalance(targetBps uint64) RebalanceDecision {
	return RebalanceDecision{
		Direction: DirectionNone,
		Amount:    sdkmath.ZeroInt(),
		TargetBps: targetBps,
	}
}

// ClaimRecord is emitted once per successful (participant, epoch) claim.
type ClaimRecord struct {
	ClaimID          string      `json:"claim_id"`
	Participant      Participant `json:"participant"`
	Epoch            uint64      `json:"epoch"`
	Points           sdkmath.Int `json:"points"`
	CumulativePoints sdkmath.Int `json:"cumulative_points"`
	ClaimedAt        time.Time   `json:"claimed_at"`
}

// ScoringSnapshot is the persisted claim bookkeeping, used to restore after a restart.
type ScoringSnapshot struct {
	Claims []ClaimRecord `json:"claims"`
}
