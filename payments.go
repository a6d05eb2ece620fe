package escrow

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/treasury"
	"github.com/xraph/escrow/types"
)

// CreateRequest describes a voucher spend that opens a payment.
type CreateRequest struct {
	// Campaign is the voucher program spending the vouchers. It must also be
	// the caller.
	Campaign    common.Address `json:"campaign"`
	From        common.Address `json:"from"`
	Destination common.Address `json:"destination"`
	Currency    common.Address `json:"currency"`
	Amount      types.Amount   `json:"amount"`
	Reference   string         `json:"reference"`
	VoucherType uint64         `json:"voucher_type"`
	Metadata    string         `json:"metadata,omitempty"`
}

// Validate checks the request fields that do not depend on stored state.
func (r CreateRequest) Validate() error {
	if err := requireAddress("campaign", r.Campaign); err != nil {
		return err
	}
	if err := requireAddress("from", r.From); err != nil {
		return err
	}
	if err := requireAddress("destination", r.Destination); err != nil {
		return err
	}
	if r.Reference == "" {
		return fmt.Errorf("%w: empty payment reference", payment.ErrInvalidReference)
	}
	if r.Amount.IsZero() {
		return fmt.Errorf("%w: payment amount must be positive", payment.ErrInvalidAmount)
	}
	return nil
}

// Key returns the payment key the request would occupy.
func (r CreateRequest) Key() payment.Key {
	return payment.Key{Campaign: r.Campaign, Reference: r.Reference}
}

// ──────────────────────────────────────────────────
// Payment transitions
// ──────────────────────────────────────────────────

// CreatePayment escrows req.Amount from the campaign's available balance and
// burns the same number of voucher units from req.From. Only an allow-listed
// program integration acting as the campaign itself may create payments.
func (e *Escrow) CreatePayment(ctx context.Context, caller access.Caller, req CreateRequest) (*payment.Payment, error) {
	var created *payment.Payment
	err := e.run(ctx, "create_payment", func(ctx context.Context, tx *txn) error {
		if err := e.access.RequireProgram(caller); err != nil {
			return err
		}
		if caller.Address != req.Campaign {
			return fmt.Errorf("%w: %s creating for %s", ErrCallerNotCampaign, caller.Address.Hex(), req.Campaign.Hex())
		}
		if err := req.Validate(); err != nil {
			return err
		}
		if _, err := e.currencies.Get(req.Currency); err != nil {
			return err
		}
		vouchers, err := e.voucherLedger(req.Campaign)
		if err != nil {
			return err
		}
		if err := tx.ensureUnused(ctx, req.Key()); err != nil {
			return err
		}

		key := treasury.Key{Campaign: req.Campaign, Currency: req.Currency}
		entry, err := tx.entry(ctx, key)
		if err != nil {
			return err
		}
		next, err := entry.MoveToPending(req.Amount)
		if err != nil {
			return fmt.Errorf("escrow %s of %s (available %s): %w", req.Amount, key, entry.Available, err)
		}
		tx.putEntry(next)

		p := payment.New(req.Key(), req.From, req.Destination, req.Currency, req.VoucherType, req.Amount, req.Metadata, tx.now)
		tx.createPayment(p)
		tx.movement(treasury.KindEscrow, key, req.Amount, req.Reference, req.From, req.Destination)

		tx.effect("burn vouchers",
			func(ctx context.Context) error { return vouchers.BurnFrom(ctx, req.From, req.VoucherType, req.Amount) },
			func(ctx context.Context) error { return vouchers.MintTo(ctx, req.From, req.VoucherType, req.Amount) },
		)

		created = p
		tx.after(func(ctx context.Context) {
			e.logTransition(p)
			e.plugins.EmitPaymentCreated(ctx, p.Clone())
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CompletePayment settles a pending payment: the escrowed amount leaves
// pending balance and is transferred to the recorded destination.
func (e *Escrow) CompletePayment(ctx context.Context, caller access.Caller, campaign common.Address, reference, metadata string) (*payment.Payment, error) {
	var completed *payment.Payment
	err := e.run(ctx, "complete_payment", func(ctx context.Context, tx *txn) error {
		if err := e.access.RequireOperator(caller); err != nil {
			return err
		}
		custodian, err := e.requireCustodian()
		if err != nil {
			return err
		}

		before, err := tx.payment(ctx, payment.Key{Campaign: campaign, Reference: reference})
		if err != nil {
			return err
		}
		p := before.Clone()
		if err := p.Transition(payment.StatusCompleted, metadata, tx.now); err != nil {
			return err
		}
		cur, err := e.currencies.Get(p.Currency)
		if err != nil {
			return err
		}

		key := treasury.Key{Campaign: p.Campaign, Currency: p.Currency}
		entry, err := tx.entry(ctx, key)
		if err != nil {
			return err
		}
		next, err := entry.SettlePending(p.Amount)
		if err != nil {
			return fmt.Errorf("settle %s of %s (pending %s): %w", p.Amount, key, entry.Pending, err)
		}
		tx.putEntry(next)
		tx.updatePayment(before, p)
		tx.movement(treasury.KindSettle, key, p.Amount, p.Reference, caller.Address, p.Destination)

		tx.effect("transfer settlement",
			func(ctx context.Context) error { return cur.Transfer(ctx, custodian, p.Destination, p.Amount) },
			nil,
		)

		completed = p
		tx.after(func(ctx context.Context) {
			e.logTransition(p)
			e.plugins.EmitPaymentCompleted(ctx, p.Clone())
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// CancelPayment reverts a pending payment: the escrowed amount returns to
// available balance and the burnt vouchers are minted back to the payer.
func (e *Escrow) CancelPayment(ctx context.Context, caller access.Caller, campaign common.Address, reference, metadata string) (*payment.Payment, error) {
	var cancelled *payment.Payment
	err := e.run(ctx, "cancel_payment", func(ctx context.Context, tx *txn) error {
		if err := e.access.RequireOperator(caller); err != nil {
			return err
		}

		before, err := tx.payment(ctx, payment.Key{Campaign: campaign, Reference: reference})
		if err != nil {
			return err
		}
		p := before.Clone()
		if err := p.Transition(payment.StatusCancelled, metadata, tx.now); err != nil {
			return err
		}
		vouchers, err := e.voucherLedger(p.Campaign)
		if err != nil {
			return err
		}

		key := treasury.Key{Campaign: p.Campaign, Currency: p.Currency}
		entry, err := tx.entry(ctx, key)
		if err != nil {
			return err
		}
		next, err := entry.RevertPending(p.Amount)
		if err != nil {
			return fmt.Errorf("revert %s of %s (pending %s): %w", p.Amount, key, entry.Pending, err)
		}
		tx.putEntry(next)
		tx.updatePayment(before, p)
		tx.movement(treasury.KindRevert, key, p.Amount, p.Reference, caller.Address, p.Payer)

		tx.effect("re-mint vouchers",
			func(ctx context.Context) error { return vouchers.MintTo(ctx, p.Payer, p.VoucherType, p.Amount) },
			nil,
		)

		cancelled = p
		tx.after(func(ctx context.Context) {
			e.logTransition(p)
			e.plugins.EmitPaymentCancelled(ctx, p.Clone())
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// RefundPayment returns part or all of a completed payment. The operator
// funds the refund: amount is pulled from the operator into custody and
// credited to the campaign's available balance, and the same number of
// voucher units is minted back to the payer.
func (e *Escrow) RefundPayment(ctx context.Context, caller access.Caller, campaign common.Address, reference, refundReference string, amount types.Amount, metadata string) (*payment.Payment, error) {
	var refunded *payment.Payment
	err := e.run(ctx, "refund_payment", func(ctx context.Context, tx *txn) error {
		if err := e.access.RequireOperator(caller); err != nil {
			return err
		}
		custodian, err := e.requireCustodian()
		if err != nil {
			return err
		}

		before, err := tx.payment(ctx, payment.Key{Campaign: campaign, Reference: reference})
		if err != nil {
			return err
		}
		p := before.Clone()
		refund := payment.Refund{
			ID:        id.NewRefundID(),
			Reference: refundReference,
			Amount:    amount,
			Operator:  caller.Address,
			At:        tx.now,
		}
		if err := p.ApplyRefund(refund, metadata); err != nil {
			return err
		}
		cur, err := e.currencies.Get(p.Currency)
		if err != nil {
			return err
		}
		vouchers, err := e.voucherLedger(p.Campaign)
		if err != nil {
			return err
		}

		key := treasury.Key{Campaign: p.Campaign, Currency: p.Currency}
		entry, err := tx.entry(ctx, key)
		if err != nil {
			return err
		}
		next, err := entry.Credit(amount)
		if err != nil {
			return fmt.Errorf("refund %s into %s: %w", amount, key, err)
		}
		tx.putEntry(next)
		tx.updatePayment(before, p)
		tx.movement(treasury.KindRefund, key, amount, p.Reference, caller.Address, p.Payer)

		operator := caller.Address
		tx.effect("pull refund",
			func(ctx context.Context) error { return cur.TransferFrom(ctx, custodian, operator, custodian, amount) },
			func(ctx context.Context) error { return cur.Transfer(ctx, custodian, operator, amount) },
		)
		tx.effect("re-mint vouchers",
			func(ctx context.Context) error { return vouchers.MintTo(ctx, p.Payer, p.VoucherType, amount) },
			nil,
		)

		refunded = p
		applied := p.Refunds[len(p.Refunds)-1]
		tx.after(func(ctx context.Context) {
			e.logTransition(p)
			e.plugins.EmitPaymentRefunded(ctx, p.Clone(), applied)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refunded, nil
}

// ──────────────────────────────────────────────────
// Payment queries
// ──────────────────────────────────────────────────

// GetPayment returns the payment stored under campaign and reference.
func (e *Escrow) GetPayment(ctx context.Context, campaign common.Address, reference string) (*payment.Payment, error) {
	var p *payment.Payment
	err := e.read(ctx, func() error {
		var err error
		p, err = e.store.GetPayment(ctx, payment.Key{Campaign: campaign, Reference: reference})
		return err
	})
	return p, err
}

// ListPayments returns a campaign's payments ordered by reference.
func (e *Escrow) ListPayments(ctx context.Context, campaign common.Address, opts payment.ListOpts) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := e.read(ctx, func() error {
		var err error
		payments, err = e.store.ListPayments(ctx, campaign, opts)
		return err
	})
	return payments, err
}

func (e *Escrow) logTransition(p *payment.Payment) {
	e.logger.Debug("payment transition",
		"campaign", p.Campaign.Hex(),
		"reference", p.Reference,
		"amount", p.Amount.String(),
		"refunded", p.RefundedAmount.String(),
		"status", string(p.Status),
	)
}
