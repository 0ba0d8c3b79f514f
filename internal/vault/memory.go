/*

This file contains an in-memory capital manager. It custodies a single denom across
the two yield destinations and is used for simulated mode and tests. Yield and losses
are injected explicitly with Accrue and Impair.

*/

package vault

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/elys-network/tierpool/internal/logger"
	"github.com/elys-network/tierpool/internal/types"
)

// Destination names one of the two yield destinations.
type Destination string

const (
	DestinationPrimary   Destination = "primary"
	DestinationSecondary Destination = "secondary"
)

// MemoryCapitalManager implements CapitalManager over two in-memory coin balances.
type MemoryCapitalManager struct {
	mu        sync.Mutex
	logger    zerolog.Logger
	primary   sdk.Coin
	secondary sdk.Coin
	released  sdk.Coin
}

// NewMemoryCapitalManager returns an empty manager for denom.
func NewMemoryCapitalManager(denom string) (*MemoryCapitalManager, error) {
	if err := sdk.ValidateDenom(denom); err != nil {
		return nil, fmt.Errorf("invalid denom %q: %w", denom, err)
	}
	return &MemoryCapitalManager{
		logger:    logger.GetForComponent("capital_memory"),
		primary:   sdk.NewCoin(denom, sdkmath.ZeroInt()),
		secondary: sdk.NewCoin(denom, sdkmath.ZeroInt()),
		released:  sdk.NewCoin(denom, sdkmath.ZeroInt()),
	}, nil
}

// Denom returns the custodied denom.
func (m *MemoryCapitalManager) Denom() string {
	return m.primary.Denom
}

func (m *MemoryCapitalManager) TotalValue() (sdkmath.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primary.Amount.Add(m.secondary.Amount), nil
}

func (m *MemoryCapitalManager) SecondaryValue() (sdkmath.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secondary.Amount, nil
}

// PrimaryValue returns the value currently held in the primary destination.
func (m *MemoryCapitalManager) PrimaryValue() sdkmath.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primary.Amount
}

// Released returns the total value handed out for payouts so far.
func (m *MemoryCapitalManager) Released() sdkmath.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released.Amount
}

func (m *MemoryCapitalManager) Deploy(amount sdkmath.Int) error {
	coin, err := m.coin(amount)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primary = m.primary.Add(coin)
	m.logger.Debug().Str("amount", coin.String()).Str("primary", m.primary.String()).Msg("Deployed capital")
	return nil
}

// Release pays out from the primary destination first and draws the rest from secondary.
func (m *MemoryCapitalManager) Release(amount sdkmath.Int) error {
	coin, err := m.coin(amount)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.primary.Add(m.secondary)
	if total.IsLT(coin) {
		return types.ErrInsufficientCapital.Wrapf("release %s exceeds held %s", coin, total)
	}

	fromPrimary := coin
	if m.primary.IsLT(coin) {
		fromPrimary = m.primary
	}
	fromSecondary := coin.Sub(fromPrimary)

	m.primary = m.primary.Sub(fromPrimary)
	m.secondary = m.secondary.Sub(fromSecondary)
	m.released = m.released.Add(coin)

	m.logger.Debug().
		Str("amount", coin.String()).
		Str("fromPrimary", fromPrimary.String()).
		Str("fromSecondary", fromSecondary.String()).
		Msg("Released capital")
	return nil
}

func (m *MemoryCapitalManager) ShiftToSecondary(amount sdkmath.Int) error {
	coin, err := m.coin(amount)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.primary.IsLT(coin) {
		return types.ErrInsufficientCapital.Wrapf("shift %s exceeds primary %s", coin, m.primary)
	}
	m.primary = m.primary.Sub(coin)
	m.secondary = m.secondary.Add(coin)
	m.logger.Debug().Str("amount", coin.String()).Msg("Shifted capital to secondary")
	return nil
}

func (m *MemoryCapitalManager) ShiftToPrimary(amount sdkmath.Int) error {
	coin, err := m.coin(amount)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.secondary.IsLT(coin) {
		return types.ErrInsufficientCapital.Wrapf("shift %s exceeds secondary %s", coin, m.secondary)
	}
	m.secondary = m.secondary.Sub(coin)
	m.primary = m.primary.Add(coin)
	m.logger.Debug().Str("amount", coin.String()).Msg("Shifted capital to primary")
	return nil
}

// Accrue adds yield to a destination without minting shares, raising the share price.
func (m *MemoryCapitalManager) Accrue(dest Destination, amount sdkmath.Int) error {
	coin, err := m.coin(amount)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch dest {
	case DestinationPrimary:
		m.primary = m.primary.Add(coin)
	case DestinationSecondary:
		m.secondary = m.secondary.Add(coin)
	default:
		return fmt.Errorf("unknown destination %q", dest)
	}
	return nil
}

// Impair removes value from a destination, lowering the share price.
func (m *MemoryCapitalManager) Impair(dest Destination, amount sdkmath.Int) error {
	coin, err := m.coin(amount)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch dest {
	case DestinationPrimary:
		if m.primary.IsLT(coin) {
			return types.ErrInsufficientCapital.Wrapf("impair %s exceeds primary %s", coin, m.primary)
		}
		m.primary = m.primary.Sub(coin)
	case DestinationSecondary:
		if m.secondary.IsLT(coin) {
			return types.ErrInsufficientCapital.Wrapf("impair %s exceeds secondary %s", coin, m.secondary)
		}
		m.secondary = m.secondary.Sub(coin)
	default:
		return fmt.Errorf("unknown destination %q", dest)
	}
	return nil
}

func (m *MemoryCapitalManager) coin(amount sdkmath.Int) (sdk.Coin, error) {
	if amount.IsNil() || amount.IsNegative() {
		return sdk.Coin{}, types.ErrInvalidAmount.Wrapf("amount must be non-negative, got %v", amount)
	}
	return sdk.NewCoin(m.primary.Denom, amount), nil
}
