package escrow

import (
	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/treasury"
	"github.com/xraph/escrow/types"
)

// Re-export common types for convenience so users don't have to import the
// subpackages for everyday calls.

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// Caller is re-exported from access package.
type Caller = access.Caller

// Payment is re-exported from payment package.
type Payment = payment.Payment

// Status is re-exported from payment package.
type Status = payment.Status

// Entry is re-exported from treasury package.
type Entry = treasury.Entry

// Movement is re-exported from treasury package.
type Movement = treasury.Movement

// Payment statuses.
const (
	StatusPending         = payment.StatusPending
	StatusCompleted       = payment.StatusCompleted
	StatusCancelled       = payment.StatusCancelled
	StatusPartialRefunded = payment.StatusPartialRefunded
	StatusRefunded        = payment.StatusRefunded
)

// Re-export constructors
var (
	NewAmount   = types.NewAmount
	ParseAmount = types.ParseAmount
	MustAmount  = types.MustAmount
	Zero        = types.Zero
	Sum         = types.Sum
	Account     = access.Account
	Program     = access.Program
)
