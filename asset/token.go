package asset

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/types"
)

// Token is an in-memory ERC20-style currency with balances and allowances.
type Token struct {
	symbol   string
	decimals uint8

	mu         sync.Mutex
	balances   map[common.Address]types.Amount
	allowances map[common.Address]map[common.Address]types.Amount
}

var _ Currency = (*Token)(nil)

// NewToken creates an empty token.
func NewToken(symbol string, decimals uint8) *Token {
	return &Token{
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]types.Amount),
		allowances: make(map[common.Address]map[common.Address]types.Amount),
	}
}

func (t *Token) Symbol() string  { return t.symbol }
func (t *Token) Decimals() uint8 { return t.decimals }

// Mint credits amount to account.
func (t *Token) Mint(account common.Address, amount types.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	next, err := t.balances[account].Add(amount)
	if err != nil {
		return fmt.Errorf("token %s: mint: %w", t.symbol, err)
	}
	t.balances[account] = next
	return nil
}

// Approve sets the allowance owner grants to spender.
func (t *Token) Approve(owner, spender common.Address, amount types.Amount) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]types.Amount)
	}
	t.allowances[owner][spender] = amount
}

// Allowance returns what spender may still move out of owner's balance.
func (t *Token) Allowance(owner, spender common.Address) types.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowances[owner][spender]
}

func (t *Token) BalanceOf(_ context.Context, account common.Address) (types.Amount, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[account], nil
}

func (t *Token) Transfer(_ context.Context, from, to common.Address, amount types.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

func (t *Token) TransferFrom(_ context.Context, spender, from, to common.Address, amount types.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowances[from][spender]
	remaining, err := allowed.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s allowed %s, requested %s", ErrInsufficientAllowance, spender.Hex(), allowed, amount)
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	if t.allowances[from] == nil {
		t.allowances[from] = make(map[common.Address]types.Amount)
	}
	t.allowances[from][spender] = remaining
	return nil
}

func (t *Token) move(from, to common.Address, amount types.Amount) error {
	src, err := t.balances[from].Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %s, requested %s", ErrInsufficientBalance, from.Hex(), t.balances[from], amount)
	}
	if from == to {
		return nil
	}
	dst, err := t.balances[to].Add(amount)
	if err != nil {
		return fmt.Errorf("token %s: transfer: %w", t.symbol, err)
	}
	t.balances[from] = src
	t.balances[to] = dst
	return nil
}
