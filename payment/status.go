package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
	StatusPartialRefunded Status = "partial_refunded"
	StatusRefunded        Status = "refunded"
)

var (
	ErrPaymentExists          = errors.New("escrow: payment already exists")
	ErrPaymentNotFound        = errors.New("escrow: payment not found")
	ErrInvalidTransition      = errors.New("escrow: invalid payment transition")
	ErrRefundExists           = errors.New("escrow: refund reference already used")
	ErrRefundExceedsRemaining = errors.New("escrow: exceeds remaining paid value")
	ErrInvalidAmount          = errors.New("escrow: invalid amount")
	ErrInvalidReference       = errors.New("escrow: invalid reference")
)

var transitions = map[Status][]Status{
	StatusPending:         {StatusCompleted, StatusCancelled},
	StatusCompleted:       {StatusPartialRefunded, StatusRefunded},
	StatusPartialRefunded: {StatusPartialRefunded, StatusRefunded},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled, StatusPartialRefunded, StatusRefunded:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Refundable reports whether a refund may be applied in s.
func (s Status) Refundable() bool {
	return s.CanTransition(StatusRefunded)
}

// CanTransition reports whether s -> to is permitted.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the payment to status to, appending a history row.
func (p *Payment) Transition(to Status, metadata string, at time.Time) error {
	if !p.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}
	p.History = append(p.History, Transition{From: p.Status, To: to, Metadata: metadata, At: at.UTC()})
	p.Status = to
	p.Touch(at)
	return nil
}

// ApplyRefund records a refund of amount under reference and moves the
// payment to PARTIAL_REFUNDED or REFUNDED.
func (p *Payment) ApplyRefund(refund Refund, metadata string) error {
	if !p.Status.Refundable() {
		return fmt.Errorf("%w: cannot refund in status %s", ErrInvalidTransition, p.Status)
	}
	if refund.Reference == "" {
		return fmt.Errorf("%w: empty refund reference", ErrInvalidReference)
	}
	if refund.Amount.IsZero() {
		return fmt.Errorf("%w: refund amount must be positive", ErrInvalidAmount)
	}
	for _, r := range p.Refunds {
		if r.Reference == refund.Reference {
			return fmt.Errorf("%w: %s", ErrRefundExists, refund.Reference)
		}
	}
	if refund.Amount.GreaterThan(p.Remaining()) {
		return fmt.Errorf("%w: requested %s, remaining %s", ErrRefundExceedsRemaining, refund.Amount, p.Remaining())
	}

	refunded, err := p.RefundedAmount.Add(refund.Amount)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRefundExceedsRemaining, err)
	}

	next := StatusPartialRefunded
	if refunded.Equal(p.Amount) {
		next = StatusRefunded
	}
	if err := p.Transition(next, metadata, refund.At); err != nil {
		return err
	}
	if refund.ID.IsNil() {
		refund.ID = id.NewRefundID()
	}
	refund.At = refund.At.UTC()
	p.RefundedAmount = refunded
	p.Refunds = append(p.Refunds, refund)
	return nil
}

// New builds a PENDING payment.
func New(key Key, payer, destination, currency common.Address, voucherType uint64, amount types.Amount, metadata string, at time.Time) *Payment {
	p := &Payment{
		Entity:      types.NewEntity(at),
		ID:          id.NewPaymentID(),
		Campaign:    key.Campaign,
		Reference:   key.Reference,
		Payer:       payer,
		Destination: destination,
		Currency:    currency,
		VoucherType: voucherType,
		Amount:      amount,
		Status:      StatusPending,
	}
	p.History = []Transition{{To: StatusPending, Metadata: metadata, At: at.UTC()}}
	return p
}
