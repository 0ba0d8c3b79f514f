/*

This file contains the default parameters for the pool.

These values are fixed for the lifetime of a pool: there is no governance path that
changes them after startup. Environment variables can override a few of them before
the ledger is constructed (see General.go).

*/

package config

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/tierpool/internal/types"
)

const (
	// DefaultEpochDuration is the length of one scoring window.
	DefaultEpochDuration = 30 * 24 * time.Hour

	// DefaultMaxCatchUpEpochs bounds how many stale epochs one call finalizes.
	DefaultMaxCatchUpEpochs = 12

	// DefaultMinDeposit is 1 unit of a 6-decimal token.
	DefaultMinDeposit = 1_000_000
)

// DefaultPoolParameters provides the baseline parameters. Denom and GenesisTime have no
// sensible default and must come from the environment.
var DefaultPoolParameters = types.PoolParameters{
	EpochDuration: DefaultEpochDuration,
	// Rationale: a month is long enough for yield differences between tiers to show
	// up in the share price, and short enough that points are claimable regularly.

	MinDeposit: sdkmath.NewInt(DefaultMinDeposit),
	// Rationale: blocks dust deposits that would mint a handful of shares and could be
	// used to skew the share price of an almost-empty pool.

	MaxCatchUpEpochs: DefaultMaxCatchUpEpochs,
	// Rationale: a pool dormant for a year catches up in a single call. Longer gaps
	// take several calls, which keeps the worst-case cost of any one call bounded.
}
