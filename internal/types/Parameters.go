/*

This file contains the fixed parameters of a pool. They are read once at startup and
never mutated afterwards.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PoolParameters holds the constants the ledger and scoring engine are built with.
type PoolParameters struct {
	// Base unit custodied by the capital manager (e.g. "uusdc").
	Denom string `json:"denom"`
	// Start of epoch 0.
	GenesisTime time.Time `json:"genesis_time"`
	// Length of a scoring window.
	EpochDuration time.Duration `json:"epoch_duration"`
	// Smallest accepted join amount, in base units.
	MinDeposit sdkmath.Int `json:"min_deposit"`
	// Upper bound on epochs finalized by a single call.
	MaxCatchUpEpochs uint64 `json:"max_catch_up_epochs"`
}

// ScaleDecimals is the number of decimals in the fixed-point unit.
const ScaleDecimals = 18

// Scale is the fixed-point unit: a share price of 1.0 is Scale.
var Scale = sdkmath.NewIntWithDecimal(1, ScaleDecimals)
