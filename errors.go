package escrow

import (
	"errors"
	"fmt"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/asset"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/treasury"
	"github.com/xraph/escrow/voucher"
)

// Sentinel errors for common failure scenarios. Most are defined next to the
// code that returns them and re-exported here so callers only need this
// package for errors.Is checks.
var (
	// Authorization errors
	ErrNotAdmin          = access.ErrNotAdmin
	ErrNotOperator       = access.ErrNotOperator
	ErrNotProgramCaller  = access.ErrNotProgramCaller
	ErrCallerNotCampaign = errors.New("escrow: caller is not the campaign")
	ErrCallerNotFunder   = errors.New("escrow: caller is not the funder")

	// State conflict errors
	ErrPaymentExists     = payment.ErrPaymentExists
	ErrInvalidTransition = payment.ErrInvalidTransition
	ErrRefundExists      = payment.ErrRefundExists
	ErrReentrantCall     = errors.New("escrow: re-entrant call during transaction")
	ErrEngineBusy        = errors.New("escrow: timed out waiting for the engine lock")

	// Insufficiency errors
	ErrInsufficientFunding    = treasury.ErrInsufficientFunding
	ErrInsufficientPending    = treasury.ErrInsufficientPending
	ErrRefundExceedsRemaining = payment.ErrRefundExceedsRemaining
	ErrWithdrawExceedsBalance = treasury.ErrWithdrawExceedsBalance
	ErrSweepExceedsSurplus    = errors.New("escrow: sweep exceeds unaccounted custody balance")
	ErrInsufficientVouchers   = voucher.ErrInsufficientVouchers
	ErrInsufficientBalance    = asset.ErrInsufficientBalance
	ErrInsufficientAllowance  = asset.ErrInsufficientAllowance
	ErrBalanceOverflow        = treasury.ErrBalanceOverflow

	// Lifecycle errors
	ErrAlreadyInitialised = access.ErrAlreadyInitialised
	ErrNotInitialised     = access.ErrNotInitialised
	ErrNoCustodian        = errors.New("escrow: custodian not configured")

	// Lookup errors
	ErrPaymentNotFound      = payment.ErrPaymentNotFound
	ErrEntryNotFound        = treasury.ErrEntryNotFound
	ErrUnknownCurrency      = asset.ErrUnknownCurrency
	ErrUnknownVoucherLedger = errors.New("escrow: no voucher ledger for campaign")

	// Input errors
	ErrInvalidInput     = errors.New("escrow: invalid input")
	ErrInvalidAmount    = payment.ErrInvalidAmount
	ErrInvalidReference = payment.ErrInvalidReference
	ErrInvalidAddress   = access.ErrInvalidAddress

	// Store errors
	ErrStoreClosed = store.ErrClosed
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("escrow: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred, such as an external
// effect failing and then a compensation failing too.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "escrow: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("escrow: %d errors occurred: %v", len(e.Errors), errors.Join(e.Errors...))
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// IsAuthorizationError returns true if the caller lacked the required role.
func IsAuthorizationError(err error) bool {
	return isAny(err, ErrNotAdmin, ErrNotOperator, ErrNotProgramCaller, ErrCallerNotCampaign, ErrCallerNotFunder)
}

// IsConflictError returns true if the operation clashed with existing state.
func IsConflictError(err error) bool {
	return isAny(err, ErrPaymentExists, ErrInvalidTransition, ErrRefundExists, ErrReentrantCall, ErrEngineBusy, ErrAlreadyInitialised)
}

// IsInsufficiencyError returns true if a balance, allowance or remainder was
// too small for the requested amount.
func IsInsufficiencyError(err error) bool {
	return isAny(err,
		ErrInsufficientFunding,
		ErrInsufficientPending,
		ErrRefundExceedsRemaining,
		ErrWithdrawExceedsBalance,
		ErrSweepExceedsSurplus,
		ErrInsufficientVouchers,
		ErrInsufficientBalance,
		ErrInsufficientAllowance,
		ErrBalanceOverflow,
	)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return isAny(err, ErrPaymentNotFound, ErrEntryNotFound, ErrUnknownCurrency, ErrUnknownVoucherLedger)
}
