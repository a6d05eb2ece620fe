package treasury

import (
	"errors"

	"github.com/xraph/escrow/types"
)

var (
	ErrInsufficientFunding    = errors.New("escrow: insufficient funding")
	ErrInsufficientPending    = errors.New("escrow: insufficient pending balance")
	ErrWithdrawExceedsBalance = errors.New("escrow: cannot withdraw more than campaign possesses")
	ErrBalanceOverflow        = errors.New("escrow: balance overflow")
	ErrEntryNotFound          = errors.New("escrow: treasury entry not found")
)

// The primitives below take the entry by value and return the updated copy.
// On error the caller's entry is left exactly as it was.

// Credit adds amount to Available.
func (e Entry) Credit(amount types.Amount) (Entry, error) {
	next, err := e.Available.Add(amount)
	if err != nil {
		return e, ErrBalanceOverflow
	}
	if _, err := next.Add(e.Pending); err != nil {
		return e, ErrBalanceOverflow
	}
	e.Available = next
	return e, nil
}

// Debit removes amount from Available.
func (e Entry) Debit(amount types.Amount) (Entry, error) {
	next, err := e.Available.Sub(amount)
	if err != nil {
		return e, ErrWithdrawExceedsBalance
	}
	e.Available = next
	return e, nil
}

// MoveToPending reserves amount of Available for a payment.
func (e Entry) MoveToPending(amount types.Amount) (Entry, error) {
	available, err := e.Available.Sub(amount)
	if err != nil {
		return e, ErrInsufficientFunding
	}
	pending, err := e.Pending.Add(amount)
	if err != nil {
		return e, ErrBalanceOverflow
	}
	e.Available, e.Pending = available, pending
	return e, nil
}

// SettlePending releases amount of Pending out of the campaign's accounting.
func (e Entry) SettlePending(amount types.Amount) (Entry, error) {
	pending, err := e.Pending.Sub(amount)
	if err != nil {
		return e, ErrInsufficientPending
	}
	e.Pending = pending
	return e, nil
}

// RevertPending returns amount of Pending to Available.
func (e Entry) RevertPending(amount types.Amount) (Entry, error) {
	pending, err := e.Pending.Sub(amount)
	if err != nil {
		return e, ErrInsufficientPending
	}
	available, err := e.Available.Add(amount)
	if err != nil {
		return e, ErrBalanceOverflow
	}
	e.Available, e.Pending = available, pending
	return e, nil
}

// Total returns Available + Pending.
func (e Entry) Total() (types.Amount, error) {
	total, err := e.Available.Add(e.Pending)
	if err != nil {
		return types.Amount{}, ErrBalanceOverflow
	}
	return total, nil
}
