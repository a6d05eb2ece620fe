package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/treasury"
	"github.com/xraph/escrow/types"
)

// effect is an external action (burn, mint, currency transfer) that runs
// after the ledger writes are committed. undo reverses a successful run; it
// is nil when there is nothing to reverse.
type effect struct {
	name string
	run  func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// txn stages the writes and effects of one engine operation.
//
// cs holds the forward writes and inverse the writes that restore the
// pre-image. Both are built in step so compensation never has to re-read
// the store.
type txn struct {
	now time.Time
	st  store.Store

	cs      store.Changeset
	inverse store.Changeset

	entries  map[treasury.Key]*treasury.Entry
	order    []treasury.Key
	payments map[payment.Key]bool

	roles     *access.State
	prevRoles *access.State

	effects []effect
	events  []func(ctx context.Context)
}

func newTxn(st store.Store, now time.Time) *txn {
	return &txn{
		now:      now,
		st:       st,
		entries:  make(map[treasury.Key]*treasury.Entry),
		payments: make(map[payment.Key]bool),
	}
}

// entry returns the staged value of key, loading it on first use. A missing
// entry starts at zero and is dropped again if the transaction compensates.
func (tx *txn) entry(ctx context.Context, key treasury.Key) (treasury.Entry, error) {
	if e, ok := tx.entries[key]; ok {
		return *e, nil
	}

	stored, err := tx.st.GetEntry(ctx, key)
	switch {
	case err == nil:
		pre := *stored
		tx.inverse.Entries = append(tx.inverse.Entries, &pre)
	case errors.Is(err, treasury.ErrEntryNotFound):
		fresh := treasury.NewEntry(key, tx.now)
		stored = &fresh
		tx.inverse.Dropped = append(tx.inverse.Dropped, key)
	default:
		return treasury.Entry{}, fmt.Errorf("load entry %s: %w", key, err)
	}

	e := *stored
	tx.entries[key] = &e
	tx.order = append(tx.order, key)
	return e, nil
}

// putEntry stages e as the new value of its key. entry must have been
// called for the key first.
func (tx *txn) putEntry(e treasury.Entry) {
	e.Touch(tx.now)
	*tx.entries[e.Key()] = e
}

// payment loads a payment for update.
func (tx *txn) payment(ctx context.Context, key payment.Key) (*payment.Payment, error) {
	if key.Reference == "" {
		return nil, fmt.Errorf("%w: empty payment reference", payment.ErrInvalidReference)
	}
	p, err := tx.st.GetPayment(ctx, key)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ensureUnused fails with payment.ErrPaymentExists if key is taken.
func (tx *txn) ensureUnused(ctx context.Context, key payment.Key) error {
	if tx.payments[key] {
		return fmt.Errorf("%w: %s", payment.ErrPaymentExists, key)
	}
	_, err := tx.st.GetPayment(ctx, key)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", payment.ErrPaymentExists, key)
	case errors.Is(err, payment.ErrPaymentNotFound):
		return nil
	default:
		return fmt.Errorf("check payment %s: %w", key, err)
	}
}

func (tx *txn) createPayment(p *payment.Payment) {
	tx.payments[p.Key()] = true
	tx.cs.Created = append(tx.cs.Created, p.Clone())
	tx.inverse.Removed = append(tx.inverse.Removed, p.Key())
}

// updatePayment stages next as the replacement of before.
func (tx *txn) updatePayment(before, next *payment.Payment) {
	next.Touch(tx.now)
	tx.cs.Updated = append(tx.cs.Updated, next.Clone())
	tx.inverse.Updated = append(tx.inverse.Updated, before.Clone())
}

// movement journals one balance or custody change.
func (tx *txn) movement(kind treasury.Kind, key treasury.Key, amount types.Amount, reference string, actor, counterparty common.Address) *treasury.Movement {
	m := &treasury.Movement{
		ID:           id.NewMovementID(),
		Kind:         kind,
		Campaign:     key.Campaign,
		Currency:     key.Currency,
		Amount:       amount,
		Reference:    reference,
		Actor:        actor,
		Counterparty: counterparty,
		At:           tx.now,
	}
	tx.cs.Movements = append(tx.cs.Movements, m)
	tx.inverse.Retracted = append(tx.inverse.Retracted, m.ID)
	return m
}

func (tx *txn) setRoles(prev, next access.State) {
	tx.roles = &next
	tx.prevRoles = &prev
	tx.cs.Roles = &next
	tx.inverse.Roles = &prev
}

func (tx *txn) effect(name string, run, undo func(ctx context.Context) error) {
	tx.effects = append(tx.effects, effect{name: name, run: run, undo: undo})
}

// after queues fn to run once the transaction has fully succeeded and the
// engine lock is released.
func (tx *txn) after(fn func(ctx context.Context)) {
	tx.events = append(tx.events, fn)
}

func (tx *txn) changeset() *store.Changeset {
	cs := tx.cs
	for _, k := range tx.order {
		cs.Entries = append(cs.Entries, tx.entries[k])
	}
	return &cs
}

// run executes fn as one serialized transaction: stage, commit, then run
// effects. A failing effect triggers compensation of the effects that
// already ran, in reverse order, followed by a commit of the pre-image.
func (e *Escrow) run(ctx context.Context, op string, fn func(ctx context.Context, tx *txn) error) error {
	if inTxn(ctx) {
		return fmt.Errorf("%w: %s", ErrReentrantCall, op)
	}

	if err := e.lock(ctx, op, e.mu.TryLock, e.mu.Lock, e.mu.Unlock); err != nil {
		return err
	}
	tx := newTxn(e.store, e.clock().UTC())
	err := e.execute(withTxn(ctx), op, tx, fn)
	e.mu.Unlock()

	if err != nil {
		e.plugins.EmitTransitionFailed(ctx, op, err)
		return err
	}
	for _, ev := range tx.events {
		ev(ctx)
	}
	return nil
}

func (e *Escrow) execute(ctx context.Context, op string, tx *txn, fn func(ctx context.Context, tx *txn) error) error {
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := e.store.Commit(ctx, tx.changeset()); err != nil {
		return fmt.Errorf("escrow: %s: commit: %w", op, err)
	}
	if tx.roles != nil {
		e.access.Install(*tx.roles)
	}

	for i, eff := range tx.effects {
		if err := eff.run(ctx); err != nil {
			return e.compensate(ctx, op, tx, i, fmt.Errorf("%s: %w", eff.name, err))
		}
	}
	return nil
}

// compensate undoes effects [0, failed) and restores the pre-image. The
// returned error always wraps cause; compensation failures are appended.
// Restoration ignores cancellation of the caller's context: a cancelled
// request must not leave committed writes behind.
func (e *Escrow) compensate(ctx context.Context, op string, tx *txn, failed int, cause error) error {
	var errs MultiError
	errs.Add(cause)
	ctx = context.WithoutCancel(ctx)

	for j := failed - 1; j >= 0; j-- {
		eff := tx.effects[j]
		if eff.undo == nil {
			continue
		}
		if err := eff.undo(ctx); err != nil {
			e.logger.Error("compensation failed",
				"op", op,
				"effect", eff.name,
				"error", err,
			)
			errs.Add(fmt.Errorf("undo %s: %w", eff.name, err))
		}
	}

	if err := e.store.Commit(ctx, &tx.inverse); err != nil {
		e.logger.Error("restoring pre-image failed",
			"op", op,
			"error", err,
		)
		errs.Add(fmt.Errorf("restore: %w", err))
	}
	if tx.prevRoles != nil {
		e.access.Install(*tx.prevRoles)
	}

	e.logger.Warn("transaction compensated",
		"op", op,
		"effect", tx.effects[failed].name,
		"error", cause,
	)

	if len(errs.Errors) == 1 {
		return cause
	}
	return errs
}

// read runs fn under the shared lock. Effects hold the exclusive lock, so a
// read from inside one is rejected rather than left to deadlock.
func (e *Escrow) read(ctx context.Context, fn func() error) error {
	if inTxn(ctx) {
		return ErrReentrantCall
	}
	if err := e.lock(ctx, "read", e.mu.TryRLock, e.mu.RLock, e.mu.RUnlock); err != nil {
		return err
	}
	defer e.mu.RUnlock()
	return fn()
}

// lock acquires the engine lock through acquire, giving up when ctx ends or
// the lock timeout passes. A waiter that gives up hands the lock straight
// back once it is eventually granted.
func (e *Escrow) lock(ctx context.Context, op string, try func() bool, acquire, release func()) error {
	if try() {
		return nil
	}

	granted := make(chan struct{})
	go func() {
		acquire()
		close(granted)
	}()

	timer := time.NewTimer(e.lockTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-granted:
		return nil
	case <-ctx.Done():
		err = fmt.Errorf("escrow: %s: %w", op, ctx.Err())
	case <-timer.C:
		err = fmt.Errorf("%w: %s waited %s", ErrEngineBusy, op, e.lockTimeout)
	}

	go func() {
		<-granted
		release()
	}()
	return err
}
