// Package asset defines the currency transfer primitive the escrow engine
// settles through, plus an in-memory reference token.
package asset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/types"
)

var (
	ErrInsufficientBalance   = errors.New("escrow: insufficient currency balance")
	ErrInsufficientAllowance = errors.New("escrow: insufficient currency allowance")
	ErrUnknownCurrency       = errors.New("escrow: unknown currency")
)

// Currency is a fungible asset that can move value between accounts.
type Currency interface {
	Symbol() string
	Decimals() uint8
	BalanceOf(ctx context.Context, account common.Address) (types.Amount, error)
	// Transfer moves amount from from's own balance to to.
	Transfer(ctx context.Context, from, to common.Address, amount types.Amount) error
	// TransferFrom moves amount from from to to on behalf of spender,
	// consuming allowance from granted to spender.
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount types.Amount) error
}

// Registry maps currency asset addresses to their implementations.
type Registry struct {
	mu         sync.RWMutex
	currencies map[common.Address]Currency
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{currencies: make(map[common.Address]Currency)}
}

// Register binds addr to c, replacing any previous binding.
func (r *Registry) Register(addr common.Address, c Currency) {
	r.mu.Lock()
	r.currencies[addr] = c
	r.mu.Unlock()
}

// Get returns the currency registered at addr.
func (r *Registry) Get(addr common.Address) (Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.currencies[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCurrency, addr.Hex())
	}
	return c, nil
}

// Addresses returns every registered currency address.
func (r *Registry) Addresses() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, 0, len(r.currencies))
	for addr := range r.currencies {
		out = append(out, addr)
	}
	return out
}
