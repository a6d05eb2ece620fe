package escrow

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/treasury"
	"github.com/xraph/escrow/types"
)

// SweepAll asks Sweep to move the whole unaccounted custody balance.
var SweepAll = types.Zero()

// ──────────────────────────────────────────────────
// Role administration
// ──────────────────────────────────────────────────

// Initialise sets the administrator. It succeeds exactly once over the
// lifetime of the store.
func (e *Escrow) Initialise(ctx context.Context, admin common.Address) error {
	return e.changeRoles(ctx, "initialise", func(s access.State, tx *txn) (access.State, access.Change, error) {
		return s.Initialise(admin, tx.now)
	})
}

// GrantOperator gives who the operator role. Administrator only.
func (e *Escrow) GrantOperator(ctx context.Context, caller access.Caller, who common.Address) error {
	return e.changeRoles(ctx, "grant_operator", func(s access.State, tx *txn) (access.State, access.Change, error) {
		return s.GrantOperator(caller, who, tx.now)
	})
}

// RevokeOperator takes the operator role away from who. Administrator only.
func (e *Escrow) RevokeOperator(ctx context.Context, caller access.Caller, who common.Address) error {
	return e.changeRoles(ctx, "revoke_operator", func(s access.State, tx *txn) (access.State, access.Change, error) {
		return s.RevokeOperator(caller, who, tx.now)
	})
}

// RegisterIntegration allow-lists a voucher program so it may create
// payments. Administrator only.
func (e *Escrow) RegisterIntegration(ctx context.Context, caller access.Caller, program common.Address) error {
	return e.changeRoles(ctx, "register_integration", func(s access.State, tx *txn) (access.State, access.Change, error) {
		return s.RegisterIntegration(caller, program, tx.now)
	})
}

// RemoveIntegration drops a voucher program from the allow-list.
// Administrator only.
func (e *Escrow) RemoveIntegration(ctx context.Context, caller access.Caller, program common.Address) error {
	return e.changeRoles(ctx, "remove_integration", func(s access.State, tx *txn) (access.State, access.Change, error) {
		return s.RemoveIntegration(caller, program, tx.now)
	})
}

func (e *Escrow) changeRoles(ctx context.Context, op string, mutate func(access.State, *txn) (access.State, access.Change, error)) error {
	return e.run(ctx, op, func(_ context.Context, tx *txn) error {
		prev := e.access.Snapshot()
		next, change, err := mutate(prev, tx)
		if err != nil {
			return err
		}
		if change.IsZero() {
			return nil
		}
		tx.setRoles(prev, next)
		tx.after(func(ctx context.Context) {
			e.logger.Info("role changed",
				"action", change.Action,
				"subject", change.Subject.Hex(),
				"by", change.By.Hex(),
			)
			e.plugins.EmitRoleChanged(ctx, change)
		})
		return nil
	})
}

// Roles returns a copy of the installed role state.
func (e *Escrow) Roles(ctx context.Context) (access.State, error) {
	var s access.State
	err := e.read(ctx, func() error {
		s = e.access.Snapshot()
		return nil
	})
	return s, err
}

// ──────────────────────────────────────────────────
// Custody sweep
// ──────────────────────────────────────────────────

// Surplus returns the custodied balance of currency that no treasury entry
// accounts for, such as tokens sent to the custodian directly.
func (e *Escrow) Surplus(ctx context.Context, currency common.Address) (types.Amount, error) {
	var surplus types.Amount
	err := e.read(ctx, func() error {
		var err error
		surplus, err = e.surplus(ctx, currency)
		return err
	})
	return surplus, err
}

func (e *Escrow) surplus(ctx context.Context, currency common.Address) (types.Amount, error) {
	custodian, err := e.requireCustodian()
	if err != nil {
		return types.Amount{}, err
	}
	cur, err := e.currencies.Get(currency)
	if err != nil {
		return types.Amount{}, err
	}
	held, err := cur.BalanceOf(ctx, custodian)
	if err != nil {
		return types.Amount{}, fmt.Errorf("custody balance of %s: %w", currency.Hex(), err)
	}

	entries, err := e.store.ListEntries(ctx, treasury.ListOpts{Currency: currency})
	if err != nil {
		return types.Amount{}, err
	}
	accounted := types.Zero()
	for _, entry := range entries {
		total, err := entry.Total()
		if err != nil {
			return types.Amount{}, err
		}
		if accounted, err = accounted.Add(total); err != nil {
			return types.Amount{}, fmt.Errorf("%w: accounted total of %s", treasury.ErrBalanceOverflow, currency.Hex())
		}
	}
	return held.SaturatingSub(accounted), nil
}

// Sweep moves custodied currency that no campaign owns to destination and
// returns the amount moved. Pass SweepAll to move the whole surplus.
// Administrator only.
func (e *Escrow) Sweep(ctx context.Context, caller access.Caller, currency, destination common.Address, amount types.Amount) (types.Amount, error) {
	var swept types.Amount
	err := e.run(ctx, "sweep", func(ctx context.Context, tx *txn) error {
		if err := e.access.RequireAdmin(caller); err != nil {
			return err
		}
		if err := requireAddress("destination", destination); err != nil {
			return err
		}
		surplus, err := e.surplus(ctx, currency)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			amount = surplus
		}
		if amount.IsZero() {
			return fmt.Errorf("%w: nothing to sweep", ErrSweepExceedsSurplus)
		}
		if amount.GreaterThan(surplus) {
			return fmt.Errorf("%w: requested %s, surplus %s", ErrSweepExceedsSurplus, amount, surplus)
		}

		cur, err := e.currencies.Get(currency)
		if err != nil {
			return err
		}
		custodian := e.custodian

		m := tx.movement(treasury.KindSweep, treasury.Key{Currency: currency}, amount, "", caller.Address, destination)
		tx.effect("transfer sweep",
			func(ctx context.Context) error { return cur.Transfer(ctx, custodian, destination, amount) },
			nil,
		)

		swept = amount
		tx.after(func(ctx context.Context) {
			e.logger.Info("custody swept",
				"currency", currency.Hex(),
				"amount", amount.String(),
				"destination", destination.Hex(),
			)
			e.plugins.EmitSweep(ctx, m)
		})
		return nil
	})
	if err != nil {
		return types.Amount{}, err
	}
	return swept, nil
}
