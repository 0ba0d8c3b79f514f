package vault

import (
	"errors"
	"sync"

	"github.com/elys-network/tierpool/internal/types"
)

var ErrNilCapitalManager = errors.New("capital manager cannot be nil")

// Binding is a write-once reference to the ledger's capital manager.
// The zero value is unbound and ready to use.
type Binding struct {
	mu      sync.RWMutex
	manager CapitalManager
}

// Bind wires the capital manager. Only the first successful call takes effect.
func (b *Binding) Bind(m CapitalManager) error {
	if m == nil {
		return ErrNilCapitalManager
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.manager != nil {
		return types.ErrAlreadyBound
	}
	b.manager = m
	return nil
}

// Manager returns the bound capital manager, or ErrNotBound.
func (b *Binding) Manager() (CapitalManager, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.manager == nil {
		return nil, types.ErrNotBound
	}
	return b.manager, nil
}

// IsBound reports whether a capital manager has been wired.
func (b *Binding) IsBound() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.manager != nil
}
