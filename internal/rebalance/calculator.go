/*

This file contains the rebalance calculator: the share-weighted target allocation
toward the secondary destination and the threshold check that decides whether capital
should move. Everything here is a pure function over integers and must stay bit-exact.

*/

package rebalance

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/tierpool/internal/types"
)

const (
	// BpsDenominator is 100% in basis points.
	BpsDenominator = 10000

	// DefaultTargetBps is used when the pool holds no weight at all.
	DefaultTargetBps = 2000

	// ThresholdBps is the hysteresis band. A deviation must be strictly larger to move capital.
	ThresholdBps = 500
)

// tierTargetBps is each tier's allocation toward the secondary destination.
var tierTargetBps = [types.NumStrategies]int64{
	types.StrategyConservative: 2000,
	types.StrategyBalanced:     5000,
	types.StrategyAggressive:   8000,
}

// TierTargetBps returns the fixed allocation fraction of a single tier.
func TierTargetBps(s types.Strategy) uint64 {
	if !s.IsValid() {
		return DefaultTargetBps
	}
	return uint64(tierTargetBps[s])
}

// ComputeTargetAllocation returns the share-weighted average of the tier targets, in bps.
func ComputeTargetAllocation(wConservative, wBalanced, wAggressive sdkmath.Int) uint64 {
	return ComputeTargetFromWeights([types.NumStrategies]sdkmath.Int{wConservative, wBalanced, wAggressive})
}

// ComputeTargetFromWeights is ComputeTargetAllocation over a bucket array.
func ComputeTargetFromWeights(weights [types.NumStrategies]sdkmath.Int) uint64 {
	total := sdkmath.ZeroInt()
	weighted := sdkmath.ZeroInt()
	for i, w := range weights {
		if w.IsNil() || w.IsZero() {
			continue
		}
		total = total.Add(w)
		weighted = weighted.Add(w.MulRaw(tierTargetBps[i]))
	}
	if total.IsZero() {
		return DefaultTargetBps
	}
	// Weighted average of values <= 8000 always fits.
	return weighted.Quo(total).Uint64()
}

// Decide compares the current secondary exposure against the target and reports
// whether, which way and how much capital should move.
func Decide(totalAssets, currentSecondary sdkmath.Int, targetBps uint64) types.RebalanceDecision {
	decision := types.NoRebalance(targetBps)
	if totalAssets.IsNil() || !totalAssets.IsPositive() {
		return decision
	}
	if currentSecondary.IsNil() {
		currentSecondary = sdkmath.ZeroInt()
	}

	target := sdkmath.NewIntFromUint64(targetBps)
	currentBps := currentSecondary.MulRaw(BpsDenominator).Quo(totalAssets)
	targetAmount := totalAssets.Mul(target).QuoRaw(BpsDenominator)
	if currentBps.IsUint64() {
		decision.CurrentBps = currentBps.Uint64()
	}

	switch {
	case currentBps.Sub(target).GT(sdkmath.NewInt(ThresholdBps)):
		decision.Needed = true
		decision.Direction = types.DirectionToPrimary
		decision.Amount = currentSecondary.Sub(targetAmount)
	case target.Sub(currentBps).GT(sdkmath.NewInt(ThresholdBps)):
		decision.Needed = true
		decision.Direction = types.DirectionToSecondary
		decision.Amount = targetAmount.Sub(currentSecondary)
	}
	return decision
}
