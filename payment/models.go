// Package payment defines voucher payments and their lifecycle.
package payment

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Key identifies a payment: the campaign that owns it plus the caller-chosen
// external reference.
type Key struct {
	Campaign  common.Address `json:"campaign"`
	Reference string         `json:"reference"`
}

func (k Key) String() string {
	return k.Campaign.Hex() + "/" + k.Reference
}

type Payment struct {
	types.Entity
	ID             id.ID          `json:"id"`
	Campaign       common.Address `json:"campaign"`
	Reference      string         `json:"reference"`
	Payer          common.Address `json:"payer"`
	Destination    common.Address `json:"destination"`
	Currency       common.Address `json:"currency"`
	VoucherType    uint64         `json:"voucher_type"`
	Amount         types.Amount   `json:"amount"`
	RefundedAmount types.Amount   `json:"refunded_amount"`
	Status         Status         `json:"status"`
	Refunds        []Refund       `json:"refunds,omitempty"`
	History        []Transition   `json:"history,omitempty"`
}

// Refund is one partial or full return of a completed payment.
type Refund struct {
	ID        id.ID          `json:"id"`
	Reference string         `json:"reference"`
	Amount    types.Amount   `json:"amount"`
	Operator  common.Address `json:"operator"`
	At        time.Time      `json:"at"`
}

// Transition records a status change and the free-form metadata supplied
// with the call that caused it.
type Transition struct {
	From     Status    `json:"from"`
	To       Status    `json:"to"`
	Metadata string    `json:"metadata,omitempty"`
	At       time.Time `json:"at"`
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}

// Key returns the payment's key.
func (p *Payment) Key() Key {
	return Key{Campaign: p.Campaign, Reference: p.Reference}
}

// Remaining returns the amount still refundable.
func (p *Payment) Remaining() types.Amount {
	return p.Amount.SaturatingSub(p.RefundedAmount)
}

// Metadata returns the metadata of the most recent transition.
func (p *Payment) Metadata() string {
	if len(p.History) == 0 {
		return ""
	}
	return p.History[len(p.History)-1].Metadata
}

// Clone returns a deep copy so callers can stage changes without touching
// the stored instance.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Refunds = append([]Refund(nil), p.Refunds...)
	clone.History = append([]Transition(nil), p.History...)
	return &clone
}
