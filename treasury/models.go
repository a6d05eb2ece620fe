// Package treasury holds per-campaign, per-currency balance accounting and
// the append-only movement journal.
package treasury

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Key identifies a treasury entry.
type Key struct {
	Campaign common.Address `json:"campaign"`
	Currency common.Address `json:"currency"`
}

func (k Key) String() string {
	return k.Campaign.Hex() + "/" + k.Currency.Hex()
}

// Entry is the two-balance account a campaign holds in one currency.
// Available is spendable; Pending is reserved by payments awaiting settlement.
type Entry struct {
	types.Entity
	Campaign  common.Address `json:"campaign"`
	Currency  common.Address `json:"currency"`
	Available types.Amount   `json:"available"`
	Pending   types.Amount   `json:"pending"`
}

// NewEntry returns an empty entry for key.
func NewEntry(key Key, now time.Time) Entry {
	return Entry{
		Entity:   types.NewEntity(now),
		Campaign: key.Campaign,
		Currency: key.Currency,
	}
}

// Key returns the entry's key.
func (e Entry) Key() Key {
	return Key{Campaign: e.Campaign, Currency: e.Currency}
}

// Kind classifies a journal movement.
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
	KindEscrow   Kind = "escrow"
	KindSettle   Kind = "settle"
	KindRevert   Kind = "revert"
	KindRefund   Kind = "refund"
	KindSweep    Kind = "sweep"
)

// Movement is one journal row. Every balance or custody change writes exactly
// one movement in the same commit as the balance change itself.
type Movement struct {
	ID           id.ID          `json:"id"`
	Kind         Kind           `json:"kind"`
	Campaign     common.Address `json:"campaign"`
	Currency     common.Address `json:"currency"`
	Amount       types.Amount   `json:"amount"`
	Reference    string         `json:"reference,omitempty"`
	Actor        common.Address `json:"actor"`
	Counterparty common.Address `json:"counterparty"`
	At           time.Time      `json:"at"`
}

// ListOpts filters entries. Zero-valued fields match everything.
type ListOpts struct {
	Campaign common.Address
	Currency common.Address
	Limit    int
	Offset   int
}

// Matches reports whether e passes the filter.
func (o ListOpts) Matches(e Entry) bool {
	if o.Campaign != (common.Address{}) && o.Campaign != e.Campaign {
		return false
	}
	if o.Currency != (common.Address{}) && o.Currency != e.Currency {
		return false
	}
	return true
}

// MovementOpts filters the journal. Zero-valued fields match everything.
type MovementOpts struct {
	Campaign  common.Address
	Currency  common.Address
	Kind      Kind
	Reference string
	Limit     int
	Offset    int
}

// Matches reports whether m passes the filter.
func (o MovementOpts) Matches(m Movement) bool {
	if o.Campaign != (common.Address{}) && o.Campaign != m.Campaign {
		return false
	}
	if o.Currency != (common.Address{}) && o.Currency != m.Currency {
		return false
	}
	if o.Kind != "" && o.Kind != m.Kind {
		return false
	}
	if o.Reference != "" && o.Reference != m.Reference {
		return false
	}
	return true
}

// LessMovement orders movements by time, then by ID.
func LessMovement(a, b Movement) int {
	if c := a.At.Compare(b.At); c != 0 {
		return c
	}
	return a.ID.Compare(b.ID)
}
