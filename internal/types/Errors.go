/*

This file contains the registered error codes for the pool.

Every failure is a precondition violation. Codes are grouped so callers can tell what
went wrong without string matching:

	 2 -  9  input errors      (bad arguments)
	10 - 29  state errors      (valid arguments, wrong ledger/claim state)
	30 +     invariant errors  (the math would break an accounting invariant)

*/

package types

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error namespace for all pool errors.
const Codespace = "tierpool"

// ErrorKind classifies a pool error.
type ErrorKind string

const (
	KindInput     ErrorKind = "input"
	KindState     ErrorKind = "state"
	KindInvariant ErrorKind = "invariant"
	KindUnknown   ErrorKind = "unknown"
)

// Input errors
var (
	ErrBelowMinimumDeposit = errorsmod.Register(Codespace, 2, "amount below minimum deposit")
	ErrZeroShares          = errorsmod.Register(Codespace, 3, "shares must be positive")
	ErrSameStrategy        = errorsmod.Register(Codespace, 4, "strategy unchanged")
	ErrInvalidStrategy     = errorsmod.Register(Codespace, 5, "invalid strategy")
	ErrInvalidParticipant  = errorsmod.Register(Codespace, 6, "invalid participant")
	ErrInvalidAmount       = errorsmod.Register(Codespace, 7, "invalid amount")
	ErrAmountOverflow      = errorsmod.Register(Codespace, 8, "amount exceeds supported precision")
)

// State errors
var (
	ErrNoPosition          = errorsmod.Register(Codespace, 10, "no position held")
	ErrInsufficientBalance = errorsmod.Register(Codespace, 11, "insufficient share balance")
	ErrEpochNotEnded       = errorsmod.Register(Codespace, 12, "epoch not yet ended")
	ErrEpochNotFinalized   = errorsmod.Register(Codespace, 13, "epoch not finalized")
	ErrEntryNotRegistered  = errorsmod.Register(Codespace, 14, "no epoch entry registered")
	ErrAlreadyClaimed      = errorsmod.Register(Codespace, 15, "points already claimed")
	ErrAlreadyBound        = errorsmod.Register(Codespace, 16, "capital manager already bound")
	ErrNotBound            = errorsmod.Register(Codespace, 17, "capital manager not bound")
	ErrAlreadyInitialized  = errorsmod.Register(Codespace, 18, "state already initialized")
	ErrInsufficientCapital = errorsmod.Register(Codespace, 19, "insufficient capital in destination")
	ErrEpochNotFound       = errorsmod.Register(Codespace, 20, "epoch not found")
)

// Invariant violations
var (
	ErrZeroSharesMinted = errorsmod.Register(Codespace, 30, "computed shares resolve to zero")
	ErrEmptyAssets      = errorsmod.Register(Codespace, 31, "pool has shares outstanding but no assets")
	ErrInvariantBroken  = errorsmod.Register(Codespace, 32, "accounting invariant broken")
)

// KindOf returns the classification of a pool error, or KindUnknown for anything else.
func KindOf(err error) ErrorKind {
	var registered *errorsmod.Error
	if err == nil || !errors.As(err, &registered) || registered.Codespace() != Codespace {
		return KindUnknown
	}
	switch code := registered.ABCICode(); {
	case code >= 30:
		return KindInvariant
	case code >= 10:
		return KindState
	case code >= 2:
		return KindInput
	default:
		return KindUnknown
	}
}

func IsInputError(err error) bool         { return KindOf(err) == KindInput }
func IsStateError(err error) bool         { return KindOf(err) == KindState }
func IsInvariantViolation(err error) bool { return KindOf(err) == KindInvariant }
