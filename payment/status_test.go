package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/types"
)

var (
	campaign = common.HexToAddress("0xca")
	payer    = common.HexToAddress("0xa1")
	dest     = common.HexToAddress("0xd1")
	currency = common.HexToAddress("0xcc")
	t0       = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
)

func newPayment(amount uint64) *Payment {
	return New(Key{Campaign: campaign, Reference: "order-1"}, payer, dest, currency, 1, types.NewAmount(amount), "created", t0)
}

func TestCanTransition(t *testing.T) {
	all := []Status{StatusPending, StatusCompleted, StatusCancelled, StatusPartialRefunded, StatusRefunded}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusCompleted}:               true,
		{StatusPending, StatusCancelled}:               true,
		{StatusCompleted, StatusPartialRefunded}:       true,
		{StatusCompleted, StatusRefunded}:              true,
		{StatusPartialRefunded, StatusPartialRefunded}: true,
		{StatusPartialRefunded, StatusRefunded}:        true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}

	if !StatusCancelled.Terminal() || !StatusRefunded.Terminal() || StatusPending.Terminal() {
		t.Error("terminal status mismatch")
	}
	if Status("bogus").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestTransition(t *testing.T) {
	p := newPayment(500)
	if p.Status != StatusPending || len(p.History) != 1 {
		t.Fatalf("new payment: status %s, history %d", p.Status, len(p.History))
	}

	if err := p.Transition(StatusCompleted, "shipped", t0.Add(time.Minute)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if p.Metadata() != "shipped" {
		t.Errorf("metadata: got %q", p.Metadata())
	}

	err := p.Transition(StatusCancelled, "late", t0.Add(2*time.Minute))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if p.Status != StatusCompleted || len(p.History) != 2 {
		t.Error("failed transition changed the payment")
	}
}

func TestPartialRefundSequence(t *testing.T) {
	p := newPayment(500)
	if err := p.Transition(StatusCompleted, "", t0); err != nil {
		t.Fatal(err)
	}

	if err := p.ApplyRefund(Refund{Reference: "r1", Amount: types.NewAmount(200), At: t0}, ""); err != nil {
		t.Fatalf("refund 200: %v", err)
	}
	if p.Status != StatusPartialRefunded {
		t.Errorf("status: got %s", p.Status)
	}

	err := p.ApplyRefund(Refund{Reference: "r2", Amount: types.NewAmount(400), At: t0}, "")
	if !errors.Is(err, ErrRefundExceedsRemaining) {
		t.Fatalf("refund 400: expected ErrRefundExceedsRemaining, got %v", err)
	}
	if !p.Remaining().Equal(types.NewAmount(300)) {
		t.Errorf("remaining: got %s, want 300", p.Remaining())
	}

	if err := p.ApplyRefund(Refund{Reference: "r2", Amount: types.NewAmount(300), At: t0}, "final"); err != nil {
		t.Fatalf("refund 300: %v", err)
	}
	if p.Status != StatusRefunded {
		t.Errorf("status: got %s, want refunded", p.Status)
	}
	if !p.RefundedAmount.Equal(p.Amount) || len(p.Refunds) != 2 {
		t.Errorf("refunded %s of %s in %d refunds", p.RefundedAmount, p.Amount, len(p.Refunds))
	}
	if p.Refunds[0].ID.IsNil() {
		t.Error("refund ID not assigned")
	}

	if err := p.ApplyRefund(Refund{Reference: "r3", Amount: types.NewAmount(1), At: t0}, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("refund after full refund: got %v", err)
	}
}

func TestApplyRefundRejections(t *testing.T) {
	pending := newPayment(100)
	if err := pending.ApplyRefund(Refund{Reference: "r", Amount: types.NewAmount(1)}, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("refund of pending payment: got %v", err)
	}

	p := newPayment(100)
	if err := p.Transition(StatusCompleted, "", t0); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		refund Refund
		want   error
	}{
		{"zero amount", Refund{Reference: "z", Amount: types.Zero()}, ErrInvalidAmount},
		{"empty reference", Refund{Amount: types.NewAmount(1)}, ErrInvalidReference},
		{"exceeds", Refund{Reference: "x", Amount: types.NewAmount(101)}, ErrRefundExceedsRemaining},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.ApplyRefund(tt.refund, ""); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if err := p.ApplyRefund(Refund{Reference: "dup", Amount: types.NewAmount(10)}, ""); err != nil {
		t.Fatal(err)
	}
	if err := p.ApplyRefund(Refund{Reference: "dup", Amount: types.NewAmount(10)}, ""); !errors.Is(err, ErrRefundExists) {
		t.Errorf("duplicate refund reference: got %v", err)
	}
	if !p.RefundedAmount.Equal(types.NewAmount(10)) {
		t.Errorf("refunded: got %s, want 10", p.RefundedAmount)
	}
}

func TestClone(t *testing.T) {
	p := newPayment(50)
	c := p.Clone()
	if err := c.Transition(StatusCancelled, "", t0); err != nil {
		t.Fatal(err)
	}
	if p.Status != StatusPending || len(p.History) != 1 {
		t.Error("clone shares state with original")
	}
}
