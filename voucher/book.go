package voucher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/types"
)

type balanceKey struct {
	holder      common.Address
	voucherType uint64
}

// Book is an in-memory multi-token voucher ledger with operator approvals
// and receiver callbacks.
//
// Receivers run without the book's lock held, so a receiver may call back
// into the book.
type Book struct {
	burner common.Address

	mu        sync.Mutex
	balances  map[balanceKey]types.Amount
	approvals map[common.Address]map[common.Address]bool
	receivers map[common.Address]Receiver
}

var _ Ledger = (*Book)(nil)

// NewBook creates an empty book. burner is the operator identity used by
// BurnFrom; holders must approve it before their vouchers can be burnt.
func NewBook(burner common.Address) *Book {
	return &Book{
		burner:    burner,
		balances:  make(map[balanceKey]types.Amount),
		approvals: make(map[common.Address]map[common.Address]bool),
		receivers: make(map[common.Address]Receiver),
	}
}

// SetApprovalForAll lets operator move any of holder's vouchers.
func (b *Book) SetApprovalForAll(holder, operator common.Address, approved bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.approvals[holder] == nil {
		b.approvals[holder] = make(map[common.Address]bool)
	}
	b.approvals[holder][operator] = approved
}

// IsApprovedForAll reports whether operator may move holder's vouchers.
func (b *Book) IsApprovedForAll(holder, operator common.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.approvedLocked(holder, operator)
}

// SetReceiver registers r for arrivals at addr. A nil r removes it.
func (b *Book) SetReceiver(addr common.Address, r Receiver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r == nil {
		delete(b.receivers, addr)
		return
	}
	b.receivers[addr] = r
}

func (b *Book) BalanceOf(_ context.Context, holder common.Address, voucherType uint64) (types.Amount, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[balanceKey{holder, voucherType}], nil
}

func (b *Book) BurnFrom(_ context.Context, holder common.Address, voucherType uint64, amount types.Amount) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if holder != b.burner && !b.approvedLocked(holder, b.burner) {
		return fmt.Errorf("%w: %s for %s", ErrNotApproved, b.burner.Hex(), holder.Hex())
	}
	return b.debitLocked(holder, voucherType, amount)
}

func (b *Book) MintTo(ctx context.Context, holder common.Address, voucherType uint64, amount types.Amount) error {
	b.mu.Lock()
	if err := b.creditLocked(holder, voucherType, amount); err != nil {
		b.mu.Unlock()
		return err
	}
	recv := b.receivers[holder]
	b.mu.Unlock()

	receipt := Receipt{Operator: b.burner, To: holder, VoucherType: voucherType, Amount: amount}
	if err := b.notify(ctx, recv, receipt); err != nil {
		b.mu.Lock()
		undoErr := b.debitLocked(holder, voucherType, amount)
		b.mu.Unlock()
		if undoErr != nil {
			return errors.Join(err, fmt.Errorf("voucher: undo mint to %s: %w", holder.Hex(), undoErr))
		}
		return err
	}
	return nil
}

// SafeTransferFrom moves vouchers from one holder to another on behalf of
// operator, then gives the recipient's receiver a chance to reject them.
func (b *Book) SafeTransferFrom(ctx context.Context, operator, from, to common.Address, voucherType uint64, amount types.Amount, data []byte) error {
	b.mu.Lock()
	if operator != from && !b.approvedLocked(from, operator) {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s for %s", ErrNotApproved, operator.Hex(), from.Hex())
	}
	if err := b.moveLocked(from, to, voucherType, amount); err != nil {
		b.mu.Unlock()
		return err
	}
	recv := b.receivers[to]
	b.mu.Unlock()

	receipt := Receipt{Operator: operator, From: from, To: to, VoucherType: voucherType, Amount: amount, Data: data}
	if err := b.notify(ctx, recv, receipt); err != nil {
		b.mu.Lock()
		undoErr := b.moveLocked(to, from, voucherType, amount)
		b.mu.Unlock()
		if undoErr != nil {
			return errors.Join(err, fmt.Errorf("voucher: undo transfer to %s: %w", to.Hex(), undoErr))
		}
		return err
	}
	return nil
}

func (b *Book) notify(ctx context.Context, recv Receiver, r Receipt) error {
	if recv == nil {
		return nil
	}
	if err := recv.OnVoucherReceived(ctx, r); err != nil {
		return fmt.Errorf("%w: %w", ErrReceiverRejected, err)
	}
	return nil
}

func (b *Book) approvedLocked(holder, operator common.Address) bool {
	return b.approvals[holder][operator]
}

func (b *Book) creditLocked(holder common.Address, voucherType uint64, amount types.Amount) error {
	k := balanceKey{holder, voucherType}
	next, err := b.balances[k].Add(amount)
	if err != nil {
		return fmt.Errorf("voucher: credit %s type %d: %w", holder.Hex(), voucherType, err)
	}
	b.balances[k] = next
	return nil
}

func (b *Book) debitLocked(holder common.Address, voucherType uint64, amount types.Amount) error {
	k := balanceKey{holder, voucherType}
	next, err := b.balances[k].Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %s of type %d, requested %s",
			ErrInsufficientVouchers, holder.Hex(), b.balances[k], voucherType, amount)
	}
	b.balances[k] = next
	return nil
}

func (b *Book) moveLocked(from, to common.Address, voucherType uint64, amount types.Amount) error {
	if err := b.debitLocked(from, voucherType, amount); err != nil {
		return err
	}
	if err := b.creditLocked(to, voucherType, amount); err != nil {
		if restoreErr := b.creditLocked(from, voucherType, amount); restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return err
	}
	return nil
}
