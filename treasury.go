package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/treasury"
	"github.com/xraph/escrow/types"
)

// ──────────────────────────────────────────────────
// Treasury operations
// ──────────────────────────────────────────────────

// Deposit pulls amount of currency from funder into custody and credits it
// to the campaign's available balance. The funder must have approved the
// custodian for at least amount, and only the funder may deposit its own
// funds.
func (e *Escrow) Deposit(ctx context.Context, caller access.Caller, campaign, currency common.Address, amount types.Amount, funder common.Address) error {
	return e.run(ctx, "deposit", func(ctx context.Context, tx *txn) error {
		if caller.Address != funder {
			return fmt.Errorf("%w: %s deposits for %s", ErrCallerNotFunder, caller.Address.Hex(), funder.Hex())
		}
		if err := requireAddress("campaign", campaign); err != nil {
			return err
		}
		if err := requireAddress("funder", funder); err != nil {
			return err
		}
		if amount.IsZero() {
			return fmt.Errorf("%w: deposit amount must be positive", payment.ErrInvalidAmount)
		}
		custodian, err := e.requireCustodian()
		if err != nil {
			return err
		}
		if funder == custodian {
			return ValidationError{Field: "funder", Message: "custodian cannot fund its own treasury"}
		}
		cur, err := e.currencies.Get(currency)
		if err != nil {
			return err
		}

		key := treasury.Key{Campaign: campaign, Currency: currency}
		entry, err := tx.entry(ctx, key)
		if err != nil {
			return err
		}
		next, err := entry.Credit(amount)
		if err != nil {
			return fmt.Errorf("deposit %s into %s: %w", amount, key, err)
		}
		tx.putEntry(next)

		m := tx.movement(treasury.KindDeposit, key, amount, "", funder, custodian)
		tx.effect("pull deposit",
			func(ctx context.Context) error { return cur.TransferFrom(ctx, custodian, funder, custodian, amount) },
			func(ctx context.Context) error { return cur.Transfer(ctx, custodian, funder, amount) },
		)
		tx.after(func(ctx context.Context) {
			e.logger.Debug("deposit",
				"campaign", campaign.Hex(),
				"currency", currency.Hex(),
				"amount", amount.String(),
				"available", next.Available.String(),
			)
			e.plugins.EmitDeposit(ctx, m)
		})
		return nil
	})
}

// Withdraw moves amount of available campaign balance out of custody to
// destination. Administrator only; pending balance is never withdrawable.
func (e *Escrow) Withdraw(ctx context.Context, caller access.Caller, campaign, destination, currency common.Address, amount types.Amount) error {
	return e.run(ctx, "withdraw", func(ctx context.Context, tx *txn) error {
		if err := e.access.RequireAdmin(caller); err != nil {
			return err
		}
		if err := requireAddress("destination", destination); err != nil {
			return err
		}
		if amount.IsZero() {
			return fmt.Errorf("%w: withdraw amount must be positive", payment.ErrInvalidAmount)
		}
		custodian, err := e.requireCustodian()
		if err != nil {
			return err
		}
		cur, err := e.currencies.Get(currency)
		if err != nil {
			return err
		}

		key := treasury.Key{Campaign: campaign, Currency: currency}
		entry, err := tx.entry(ctx, key)
		if err != nil {
			return err
		}
		next, err := entry.Debit(amount)
		if err != nil {
			return fmt.Errorf("withdraw %s from %s (available %s): %w", amount, key, entry.Available, err)
		}
		tx.putEntry(next)

		m := tx.movement(treasury.KindWithdraw, key, amount, "", caller.Address, destination)
		tx.effect("transfer withdrawal",
			func(ctx context.Context) error { return cur.Transfer(ctx, custodian, destination, amount) },
			nil,
		)
		tx.after(func(ctx context.Context) {
			e.logger.Debug("withdraw",
				"campaign", campaign.Hex(),
				"currency", currency.Hex(),
				"amount", amount.String(),
				"destination", destination.Hex(),
			)
			e.plugins.EmitWithdraw(ctx, m)
		})
		return nil
	})
}

// ──────────────────────────────────────────────────
// Treasury queries
// ──────────────────────────────────────────────────

// TreasuryEntry returns the full balance entry for campaign and currency.
func (e *Escrow) TreasuryEntry(ctx context.Context, campaign, currency common.Address) (*treasury.Entry, error) {
	var entry *treasury.Entry
	err := e.read(ctx, func() error {
		var err error
		entry, err = e.store.GetEntry(ctx, treasury.Key{Campaign: campaign, Currency: currency})
		return err
	})
	return entry, err
}

// TreasuryBalance returns the available balance. Campaigns that were never
// funded have a zero balance.
func (e *Escrow) TreasuryBalance(ctx context.Context, campaign, currency common.Address) (types.Amount, error) {
	entry, err := e.entryOrZero(ctx, campaign, currency)
	if err != nil {
		return types.Amount{}, err
	}
	return entry.Available, nil
}

// PendingBalance returns the amount escrowed for pending payments.
func (e *Escrow) PendingBalance(ctx context.Context, campaign, currency common.Address) (types.Amount, error) {
	entry, err := e.entryOrZero(ctx, campaign, currency)
	if err != nil {
		return types.Amount{}, err
	}
	return entry.Pending, nil
}

// ListEntries returns treasury entries matching opts.
func (e *Escrow) ListEntries(ctx context.Context, opts treasury.ListOpts) ([]*treasury.Entry, error) {
	var entries []*treasury.Entry
	err := e.read(ctx, func() error {
		var err error
		entries, err = e.store.ListEntries(ctx, opts)
		return err
	})
	return entries, err
}

// ListMovements returns journal rows matching opts, oldest first.
func (e *Escrow) ListMovements(ctx context.Context, opts treasury.MovementOpts) ([]*treasury.Movement, error) {
	var movements []*treasury.Movement
	err := e.read(ctx, func() error {
		var err error
		movements, err = e.store.ListMovements(ctx, opts)
		return err
	})
	return movements, err
}

func (e *Escrow) entryOrZero(ctx context.Context, campaign, currency common.Address) (treasury.Entry, error) {
	key := treasury.Key{Campaign: campaign, Currency: currency}
	entry, err := e.TreasuryEntry(ctx, campaign, currency)
	switch {
	case err == nil:
		return *entry, nil
	case errors.Is(err, treasury.ErrEntryNotFound):
		return treasury.Entry{Campaign: key.Campaign, Currency: key.Currency}, nil
	default:
		return treasury.Entry{}, err
	}
}
