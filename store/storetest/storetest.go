// Package storetest is a conformance suite every store.Store backend runs.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/treasury"
	"github.com/xraph/escrow/types"
)

// Factory returns a fresh, migrated, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Opener opens (or reopens) a durable store rooted at dir.
type Opener func(t *testing.T, dir string) store.Store

var (
	campaignA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	campaignB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	usdc      = common.HexToAddress("0x000000000000000000000000000000000000cc01")
	dai       = common.HexToAddress("0x000000000000000000000000000000000000cc02")
	payer     = common.HexToAddress("0x000000000000000000000000000000000000fa01")
	shop      = common.HexToAddress("0x000000000000000000000000000000000000de01")
	admin     = common.HexToAddress("0x000000000000000000000000000000000000ad01")
	operator  = common.HexToAddress("0x0000000000000000000000000000000000000b01")

	base = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
)

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"EntryRoundTrip", testEntryRoundTrip},
		{"EntryMissing", testEntryMissing},
		{"DropEntry", testDropEntry},
		{"PaymentRoundTrip", testPaymentRoundTrip},
		{"DuplicatePaymentAbortsCommit", testDuplicatePaymentAbortsCommit},
		{"UpdateAndRemovePayment", testUpdateAndRemovePayment},
		{"ListPayments", testListPayments},
		{"Movements", testMovements},
		{"Roles", testRoles},
		{"EmptyCommit", testEmptyCommit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			require.NoError(t, s.Ping(context.Background()))
			tt.fn(t, s)
		})
	}
}

// RunDurability checks that committed state survives closing and reopening
// the store at the same location.
func RunDurability(t *testing.T, open Opener) {
	ctx := context.Background()
	dir := t.TempDir()

	s := open(t, dir)
	p := newPayment(campaignA, "order-durable", 750)
	p.History = append(p.History, payment.Transition{From: payment.StatusPending, To: payment.StatusCompleted, Metadata: "shipped", At: base.Add(time.Minute)})
	p.Status = payment.StatusCompleted
	roles := access.State{Admin: admin, Initialised: true, Operators: []common.Address{operator}, UpdatedAt: base}
	mov := newMovement(treasury.KindDeposit, campaignA, usdc, 1000, base)

	require.NoError(t, s.Commit(ctx, &store.Changeset{
		Entries:   []*treasury.Entry{newEntry(campaignA, usdc, 250, 0)},
		Created:   []*payment.Payment{p},
		Movements: []*treasury.Movement{mov},
		Roles:     &roles,
	}))
	require.NoError(t, s.Close())

	s = open(t, dir)
	defer func() { _ = s.Close() }()

	e, err := s.GetEntry(ctx, treasury.Key{Campaign: campaignA, Currency: usdc})
	require.NoError(t, err)
	require.Equal(t, "250", e.Available.String())

	got, err := s.GetPayment(ctx, p.Key())
	require.NoError(t, err)
	requirePaymentEqual(t, p, got)

	movs, err := s.ListMovements(ctx, treasury.MovementOpts{})
	require.NoError(t, err)
	require.Len(t, movs, 1)
	require.Equal(t, mov.ID.String(), movs[0].ID.String())

	r, err := s.GetRoles(ctx)
	require.NoError(t, err)
	require.True(t, r.IsAdmin(admin))
	require.True(t, r.IsOperator(operator))
}

func newEntry(campaign, currency common.Address, available, pending uint64) *treasury.Entry {
	e := treasury.NewEntry(treasury.Key{Campaign: campaign, Currency: currency}, base)
	e.Available = types.NewAmount(available)
	e.Pending = types.NewAmount(pending)
	return &e
}

func newPayment(campaign common.Address, ref string, amount uint64) *payment.Payment {
	return payment.New(payment.Key{Campaign: campaign, Reference: ref}, payer, shop, usdc, 3, types.NewAmount(amount), "created", base)
}

func newMovement(kind treasury.Kind, campaign, currency common.Address, amount uint64, at time.Time) *treasury.Movement {
	return &treasury.Movement{
		ID:       id.NewMovementID(),
		Kind:     kind,
		Campaign: campaign,
		Currency: currency,
		Amount:   types.NewAmount(amount),
		Actor:    payer,
		At:       at,
	}
}

func requirePaymentEqual(t *testing.T, want, got *payment.Payment) {
	t.Helper()
	require.Equal(t, want.ID.String(), got.ID.String())
	require.Equal(t, want.Key(), got.Key())
	require.Equal(t, want.Payer, got.Payer)
	require.Equal(t, want.Destination, got.Destination)
	require.Equal(t, want.Currency, got.Currency)
	require.Equal(t, want.VoucherType, got.VoucherType)
	require.Equal(t, want.Amount.String(), got.Amount.String())
	require.Equal(t, want.RefundedAmount.String(), got.RefundedAmount.String())
	require.Equal(t, want.Status, got.Status)
	require.Len(t, got.History, len(want.History))
	for i := range want.History {
		require.Equal(t, want.History[i].From, got.History[i].From)
		require.Equal(t, want.History[i].To, got.History[i].To)
		require.Equal(t, want.History[i].Metadata, got.History[i].Metadata)
		require.True(t, want.History[i].At.Equal(got.History[i].At))
	}
	require.Len(t, got.Refunds, len(want.Refunds))
	for i := range want.Refunds {
		require.Equal(t, want.Refunds[i].Reference, got.Refunds[i].Reference)
		require.Equal(t, want.Refunds[i].Amount.String(), got.Refunds[i].Amount.String())
	}
}

func testEntryRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, &store.Changeset{Entries: []*treasury.Entry{
		newEntry(campaignA, usdc, 500, 0),
		newEntry(campaignA, dai, 1, 2),
		newEntry(campaignB, usdc, 10, 20),
	}}))

	e, err := s.GetEntry(ctx, treasury.Key{Campaign: campaignA, Currency: usdc})
	require.NoError(t, err)
	require.Equal(t, "500", e.Available.String())
	require.True(t, e.Pending.IsZero())

	// Upsert overwrites.
	require.NoError(t, s.Commit(ctx, &store.Changeset{Entries: []*treasury.Entry{newEntry(campaignA, usdc, 300, 200)}}))
	e, err = s.GetEntry(ctx, treasury.Key{Campaign: campaignA, Currency: usdc})
	require.NoError(t, err)
	require.Equal(t, "300", e.Available.String())
	require.Equal(t, "200", e.Pending.String())

	all, err := s.ListEntries(ctx, treasury.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	byCurrency, err := s.ListEntries(ctx, treasury.ListOpts{Currency: usdc})
	require.NoError(t, err)
	require.Len(t, byCurrency, 2)

	byCampaign, err := s.ListEntries(ctx, treasury.ListOpts{Campaign: campaignA})
	require.NoError(t, err)
	require.Len(t, byCampaign, 2)
}

func testEntryMissing(t *testing.T, s store.Store) {
	_, err := s.GetEntry(context.Background(), treasury.Key{Campaign: campaignA, Currency: usdc})
	require.ErrorIs(t, err, treasury.ErrEntryNotFound)
}

func testDropEntry(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, &store.Changeset{Entries: []*treasury.Entry{
		newEntry(campaignA, usdc, 5, 0),
		newEntry(campaignB, usdc, 7, 0),
	}}))
	require.NoError(t, s.Commit(ctx, &store.Changeset{Dropped: []treasury.Key{{Campaign: campaignA, Currency: usdc}}}))

	_, err := s.GetEntry(ctx, treasury.Key{Campaign: campaignA, Currency: usdc})
	require.ErrorIs(t, err, treasury.ErrEntryNotFound)

	left, err := s.ListEntries(ctx, treasury.ListOpts{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	require.Equal(t, campaignB, left[0].Campaign)
}

func testPaymentRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPayment(campaignA, "order-1", 500)
	require.NoError(t, s.Commit(ctx, &store.Changeset{Created: []*payment.Payment{p}}))

	got, err := s.GetPayment(ctx, p.Key())
	require.NoError(t, err)
	requirePaymentEqual(t, p, got)

	_, err = s.GetPayment(ctx, payment.Key{Campaign: campaignA, Reference: "missing"})
	require.ErrorIs(t, err, payment.ErrPaymentNotFound)

	_, err = s.GetPayment(ctx, payment.Key{Campaign: campaignB, Reference: "order-1"})
	require.ErrorIs(t, err, payment.ErrPaymentNotFound)
}

func testDuplicatePaymentAbortsCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := newPayment(campaignA, "dup", 500)
	require.NoError(t, s.Commit(ctx, &store.Changeset{
		Entries: []*treasury.Entry{newEntry(campaignA, usdc, 0, 500)},
		Created: []*payment.Payment{first},
	}))

	second := newPayment(campaignA, "dup", 900)
	err := s.Commit(ctx, &store.Changeset{
		Entries:   []*treasury.Entry{newEntry(campaignA, usdc, 0, 1400)},
		Created:   []*payment.Payment{second},
		Movements: []*treasury.Movement{newMovement(treasury.KindEscrow, campaignA, usdc, 900, base)},
	})
	require.ErrorIs(t, err, payment.ErrPaymentExists)

	got, err := s.GetPayment(ctx, first.Key())
	require.NoError(t, err)
	require.Equal(t, first.ID.String(), got.ID.String())
	require.Equal(t, "500", got.Amount.String())

	e, err := s.GetEntry(ctx, treasury.Key{Campaign: campaignA, Currency: usdc})
	require.NoError(t, err)
	require.Equal(t, "500", e.Pending.String(), "failed commit must not apply entry writes")

	movs, err := s.ListMovements(ctx, treasury.MovementOpts{})
	require.NoError(t, err)
	require.Empty(t, movs, "failed commit must not append movements")
}

func testUpdateAndRemovePayment(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPayment(campaignA, "order-2", 500)
	require.NoError(t, s.Commit(ctx, &store.Changeset{Created: []*payment.Payment{p}}))

	updated := p.Clone()
	require.NoError(t, updated.Transition(payment.StatusCompleted, "done", base.Add(time.Minute)))
	require.NoError(t, updated.ApplyRefund(payment.Refund{
		ID:        id.NewRefundID(),
		Reference: "rf-1",
		Amount:    types.NewAmount(125),
		Operator:  operator,
		At:        base.Add(2 * time.Minute),
	}, "partial"))
	require.NoError(t, s.Commit(ctx, &store.Changeset{Updated: []*payment.Payment{updated}}))

	got, err := s.GetPayment(ctx, p.Key())
	require.NoError(t, err)
	requirePaymentEqual(t, updated, got)
	require.Equal(t, payment.StatusPartialRefunded, got.Status)
	require.Equal(t, "partial", got.Metadata())

	require.NoError(t, s.Commit(ctx, &store.Changeset{Removed: []payment.Key{p.Key()}}))
	_, err = s.GetPayment(ctx, p.Key())
	require.ErrorIs(t, err, payment.ErrPaymentNotFound)
}

func testListPayments(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := newPayment(campaignA, "c", 3)
	a := newPayment(campaignA, "a", 1)
	b := newPayment(campaignA, "b", 2)
	b.Status = payment.StatusCancelled
	other := newPayment(campaignB, "a", 9)
	require.NoError(t, s.Commit(ctx, &store.Changeset{Created: []*payment.Payment{c, a, b, other}}))

	all, err := s.ListPayments(ctx, campaignA, payment.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{all[0].Reference, all[1].Reference, all[2].Reference})

	pending, err := s.ListPayments(ctx, campaignA, payment.ListOpts{Status: payment.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)

	page, err := s.ListPayments(ctx, campaignA, payment.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "b", page[0].Reference)
}

func testMovements(t *testing.T, s store.Store) {
	ctx := context.Background()
	m1 := newMovement(treasury.KindDeposit, campaignA, usdc, 100, base)
	m2 := newMovement(treasury.KindEscrow, campaignA, usdc, 40, base.Add(time.Second))
	m3 := newMovement(treasury.KindDeposit, campaignB, dai, 7, base.Add(2*time.Second))
	m2.Reference = "order-7"
	require.NoError(t, s.Commit(ctx, &store.Changeset{Movements: []*treasury.Movement{m3, m1, m2}}))

	all, err := s.ListMovements(ctx, treasury.MovementOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, m1.ID.String(), all[0].ID.String())
	require.Equal(t, m3.ID.String(), all[2].ID.String())

	deposits, err := s.ListMovements(ctx, treasury.MovementOpts{Kind: treasury.KindDeposit})
	require.NoError(t, err)
	require.Len(t, deposits, 2)

	byRef, err := s.ListMovements(ctx, treasury.MovementOpts{Campaign: campaignA, Reference: "order-7"})
	require.NoError(t, err)
	require.Len(t, byRef, 1)
	require.Equal(t, "40", byRef[0].Amount.String())
	require.True(t, byRef[0].At.Equal(m2.At))

	require.NoError(t, s.Commit(ctx, &store.Changeset{Retracted: []id.ID{m2.ID}}))
	all, err = s.ListMovements(ctx, treasury.MovementOpts{Campaign: campaignA})
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, m1.ID.String(), all[0].ID.String())
}

func testRoles(t *testing.T, s store.Store) {
	ctx := context.Background()
	r, err := s.GetRoles(ctx)
	require.NoError(t, err)
	require.False(t, r.Initialised)

	state := access.State{
		Admin:        admin,
		Initialised:  true,
		Operators:    []common.Address{operator},
		Integrations: []common.Address{campaignA},
		UpdatedAt:    base,
	}
	require.NoError(t, s.Commit(ctx, &store.Changeset{Roles: &state}))

	r, err = s.GetRoles(ctx)
	require.NoError(t, err)
	require.True(t, r.IsAdmin(admin))
	require.True(t, r.IsOperator(operator))
	require.True(t, r.IsIntegration(campaignA))
	require.False(t, r.IsOperator(admin))
}

func testEmptyCommit(t *testing.T, s store.Store) {
	require.NoError(t, s.Commit(context.Background(), &store.Changeset{}))
	require.NoError(t, s.Commit(context.Background(), nil))
}
