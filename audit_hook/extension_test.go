package audithook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/treasury"
	"github.com/xraph/escrow/types"
)

type memRecorder struct {
	events []*AuditEvent
}

func (m *memRecorder) Record(_ context.Context, evt *AuditEvent) error {
	m.events = append(m.events, evt)
	return nil
}

func testPayment() *payment.Payment {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	return payment.New(payment.Key{Campaign: common.HexToAddress("0xca"), Reference: "o-1"},
		common.HexToAddress("0x01"), common.HexToAddress("0x02"), common.HexToAddress("0xcc"),
		1, types.NewAmount(500), "spend", now)
}

func TestPaymentEvents(t *testing.T) {
	rec := &memRecorder{}
	ext := New(rec)
	ctx := context.Background()
	p := testPayment()

	if err := ext.OnPaymentCreated(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := ext.OnPaymentCompleted(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.Status = payment.StatusPartialRefunded
	if err := ext.OnPaymentRefunded(ctx, p, payment.Refund{ID: id.NewRefundID(), Reference: "r-1", Amount: types.NewAmount(100)}); err != nil {
		t.Fatal(err)
	}

	if len(rec.events) != 3 {
		t.Fatalf("got %d events, want 3", len(rec.events))
	}
	created := rec.events[0]
	if created.Action != ActionPaymentCreated || created.ResourceID != p.ID.String() {
		t.Errorf("created event = %+v", created)
	}
	if created.Metadata["amount"] != "500" || created.Metadata["reference"] != "o-1" {
		t.Errorf("created metadata = %v", created.Metadata)
	}
	if rec.events[1].Metadata["destination"] != p.Destination.Hex() {
		t.Errorf("completed metadata = %v", rec.events[1].Metadata)
	}
	if refund := rec.events[2]; refund.Outcome != OutcomePartial || refund.Metadata["refund_reference"] != "r-1" {
		t.Errorf("refund event = %+v", refund)
	}
}

func TestRoleAndFailureEvents(t *testing.T) {
	tests := []struct {
		change access.Change
		action string
	}{
		{access.Change{Action: access.ActionInitialised}, ActionRoleInitialised},
		{access.Change{Action: access.ActionOperatorGranted}, ActionRoleGranted},
		{access.Change{Action: access.ActionOperatorRevoked}, ActionRoleRevoked},
		{access.Change{Action: access.ActionIntegrationAdded}, ActionIntegrationAdded},
		{access.Change{Action: access.ActionIntegrationRemoved}, ActionIntegrationRemoved},
	}

	rec := &memRecorder{}
	ext := New(rec)
	for _, tt := range tests {
		if err := ext.OnRoleChanged(context.Background(), tt.change); err != nil {
			t.Fatal(err)
		}
		if got := rec.events[len(rec.events)-1].Action; got != tt.action {
			t.Errorf("%s: action = %s, want %s", tt.change.Action, got, tt.action)
		}
	}

	if err := ext.OnTransitionFailed(context.Background(), "withdraw", errors.New("nope")); err != nil {
		t.Fatal(err)
	}
	failed := rec.events[len(rec.events)-1]
	if failed.Outcome != OutcomeFailure || failed.Reason != "nope" || failed.ResourceID != "withdraw" {
		t.Errorf("failure event = %+v", failed)
	}
}

func TestActionFiltering(t *testing.T) {
	rec := &memRecorder{}
	ext := New(rec, WithDisabledActions(ActionTreasuryDeposited))
	ctx := context.Background()
	m := &treasury.Movement{ID: id.NewMovementID(), Kind: treasury.KindDeposit, Amount: types.NewAmount(1)}

	_ = ext.OnDeposit(ctx, m)
	_ = ext.OnSweep(ctx, m)
	if len(rec.events) != 1 || rec.events[0].Action != ActionTreasurySwept {
		t.Fatalf("events = %+v", rec.events)
	}

	only := &memRecorder{}
	ext = New(only, WithEnabledActions(ActionTreasuryWithdrawn))
	_ = ext.OnDeposit(ctx, m)
	_ = ext.OnWithdraw(ctx, m)
	if len(only.events) != 1 || only.events[0].Action != ActionTreasuryWithdrawn {
		t.Fatalf("events = %+v", only.events)
	}
}
