package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/treasury"
)

func (a *app) balanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <campaign> <currency>",
		Short: "Show a campaign's available and pending balance",
		Args:  cobra.ExactArgs(2),
		RunE: a.withEngine(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			campaign, err := parseAddress("campaign", args[0])
			if err != nil {
				return err
			}
			currency, err := parseAddress("currency", args[1])
			if err != nil {
				return err
			}
			available, err := a.engine.TreasuryBalance(ctx, campaign, currency)
			if err != nil {
				return err
			}
			pending, err := a.engine.PendingBalance(ctx, campaign, currency)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{
				"available": available.String(),
				"pending":   pending.String(),
			})
		}),
	}
}

func (a *app) entriesCommand() *cobra.Command {
	var campaign, currency string
	var limit int

	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List treasury entries",
		Args:  cobra.NoArgs,
		RunE: a.withEngine(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			opts := treasury.ListOpts{Limit: limit}
			var err error
			if opts.Campaign, err = optionalAddress("campaign", campaign); err != nil {
				return err
			}
			if opts.Currency, err = optionalAddress("currency", currency); err != nil {
				return err
			}
			entries, err := a.engine.ListEntries(ctx, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		}),
	}
	cmd.Flags().StringVar(&campaign, "campaign", "", "filter by campaign")
	cmd.Flags().StringVar(&currency, "currency", "", "filter by currency")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 = all)")
	return cmd
}

func (a *app) paymentsCommand() *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "payments <campaign> [reference]",
		Short: "List a campaign's payments, or show one by reference",
		Args:  cobra.RangeArgs(1, 2),
		RunE: a.withEngine(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			campaign, err := parseAddress("campaign", args[0])
			if err != nil {
				return err
			}
			if len(args) == 2 {
				p, err := a.engine.GetPayment(ctx, campaign, args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, p)
			}

			opts := payment.ListOpts{Status: payment.Status(status), Limit: limit}
			if status != "" && !opts.Status.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			payments, err := a.engine.ListPayments(ctx, campaign, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, payments)
		}),
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 = all)")
	return cmd
}

func (a *app) movementsCommand() *cobra.Command {
	var campaign, currency, kind, reference string
	var limit int

	cmd := &cobra.Command{
		Use:   "movements",
		Short: "List the treasury journal",
		Args:  cobra.NoArgs,
		RunE: a.withEngine(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			opts := treasury.MovementOpts{
				Kind:      treasury.Kind(kind),
				Reference: reference,
				Limit:     limit,
			}
			var err error
			if opts.Campaign, err = optionalAddress("campaign", campaign); err != nil {
				return err
			}
			if opts.Currency, err = optionalAddress("currency", currency); err != nil {
				return err
			}
			movements, err := a.engine.ListMovements(ctx, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, movements)
		}),
	}
	cmd.Flags().StringVar(&campaign, "campaign", "", "filter by campaign")
	cmd.Flags().StringVar(&currency, "currency", "", "filter by currency")
	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind (deposit, escrow, settle, ...)")
	cmd.Flags().StringVar(&reference, "reference", "", "filter by payment reference")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 = all)")
	return cmd
}

func optionalAddress(name, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	return parseAddress(name, s)
}
