package vault

import (
	sdkmath "cosmossdk.io/math"
)

// CapitalManager is the custody and execution layer the ledger drives.
// It owns the pool's actual capital across two yield destinations: the primary one,
// where new capital lands, and a secondary one the rebalancer shifts value into.
// All amounts are in the pool's base unit. Implementations complete synchronously;
// an error fails the enclosing ledger operation.
type CapitalManager interface {
	// TotalValue returns the value held across both destinations.
	TotalValue() (sdkmath.Int, error)

	// SecondaryValue returns the value currently held in the secondary destination.
	SecondaryValue() (sdkmath.Int, error)

	// Deploy takes custody of newly received capital and deploys it to the primary destination.
	Deploy(amount sdkmath.Int) error

	// Release frees capital for a participant payout.
	Release(amount sdkmath.Int) error

	// ShiftToSecondary moves value from the primary to the secondary destination.
	ShiftToSecondary(amount sdkmath.Int) error

	// ShiftToPrimary moves value from the secondary back to the primary destination.
	ShiftToPrimary(amount sdkmath.Int) error
}
