package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/asset"
	audithook "github.com/xraph/escrow/audit_hook"
	"github.com/xraph/escrow/observability"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/voucher"
)

// Fixed identities for the demo run.
var (
	demoCurrency  = common.HexToAddress("0x000000000000000000000000000000000000a5dc")
	demoCampaign  = common.HexToAddress("0x00000000000000000000000000000000000ca001")
	demoCustodian = common.HexToAddress("0x000000000000000000000000000000000000c057")
	demoAdmin     = common.HexToAddress("0x000000000000000000000000000000000000ad01")
	demoOperator  = common.HexToAddress("0x000000000000000000000000000000000000ab01")
	demoFunder    = common.HexToAddress("0x0000000000000000000000000000000000003003")
	demoHolder    = common.HexToAddress("0x0000000000000000000000000000000000001001")
	demoMerchant  = common.HexToAddress("0x0000000000000000000000000000000000002002")
)

func newDemoCommand() *cobra.Command {
	var audit bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a deposit, payment and refund lifecycle against in-memory ledgers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd.Context(), cmd.OutOrStdout(), audit)
		},
	}
	cmd.Flags().BoolVar(&audit, "audit", false, "print audit events as they are recorded")
	return cmd
}

func runDemo(ctx context.Context, out io.Writer, audit bool) error {
	usdc := asset.NewToken("USDC", 6)
	book := voucher.NewBook(demoCustodian)
	metrics := observability.NewMetricsExtension(
		observability.NewPrometheusFactory("escrowctl", prometheus.NewRegistry()),
	)

	opts := []escrow.Option{
		escrow.WithLogger(slog.New(slog.DiscardHandler)),
		escrow.WithCustodian(demoCustodian),
		escrow.WithCurrency(demoCurrency, usdc),
		escrow.WithVoucherLedger(demoCampaign, book),
		escrow.WithPlugin(metrics),
	}
	if audit {
		opts = append(opts, escrow.WithPlugin(audithook.New(audithook.RecorderFunc(
			func(_ context.Context, evt *audithook.AuditEvent) error {
				_, err := fmt.Fprintf(out, "audit %-22s %-8s %s\n", evt.Action, evt.Outcome, evt.ResourceID)
				return err
			},
		))))
	}

	e := escrow.New(memory.New(), opts...)
	if err := e.Start(ctx); err != nil {
		return err
	}
	defer e.Stop() //nolint:errcheck // memory store

	admin := escrow.Account(demoAdmin)
	operator := escrow.Account(demoOperator)
	program := escrow.Program(demoCampaign)

	steps := []struct {
		name string
		run  func() error
	}{
		{"initialise", func() error { return e.Initialise(ctx, demoAdmin) }},
		{"grant operator", func() error { return e.GrantOperator(ctx, admin, demoOperator) }},
		{"register integration", func() error { return e.RegisterIntegration(ctx, admin, demoCampaign) }},
		{"fund", func() error {
			if err := usdc.Mint(demoFunder, escrow.NewAmount(10_000_000)); err != nil {
				return err
			}
			usdc.Approve(demoFunder, demoCustodian, escrow.NewAmount(10_000_000))
			return e.Deposit(ctx, escrow.Account(demoFunder), demoCampaign, demoCurrency, escrow.NewAmount(10_000_000), demoFunder)
		}},
		{"issue vouchers", func() error {
			book.SetApprovalForAll(demoHolder, demoCustodian, true)
			return book.MintTo(ctx, demoHolder, 0, escrow.NewAmount(2_000_000))
		}},
		{"create order-1", func() error {
			_, err := e.CreatePayment(ctx, program, escrow.CreateRequest{
				Campaign: demoCampaign, From: demoHolder, Destination: demoMerchant,
				Currency: demoCurrency, Amount: escrow.NewAmount(1_500_000), Reference: "order-1",
			})
			return err
		}},
		{"complete order-1", func() error {
			_, err := e.CompletePayment(ctx, operator, demoCampaign, "order-1", "shipped")
			return err
		}},
		{"refund order-1", func() error {
			if err := usdc.Mint(demoOperator, escrow.NewAmount(500_000)); err != nil {
				return err
			}
			usdc.Approve(demoOperator, demoCustodian, escrow.NewAmount(500_000))
			_, err := e.RefundPayment(ctx, operator, demoCampaign, "order-1", "rma-1", escrow.NewAmount(500_000), "damaged")
			return err
		}},
		{"create order-2", func() error {
			_, err := e.CreatePayment(ctx, program, escrow.CreateRequest{
				Campaign: demoCampaign, From: demoHolder, Destination: demoMerchant,
				Currency: demoCurrency, Amount: escrow.NewAmount(500_000), Reference: "order-2",
			})
			return err
		}},
		{"cancel order-2", func() error {
			_, err := e.CancelPayment(ctx, operator, demoCampaign, "order-2", "out of stock")
			return err
		}},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		fmt.Fprintf(out, "ok  %s\n", step.name)
	}

	available, err := e.TreasuryBalance(ctx, demoCampaign, demoCurrency)
	if err != nil {
		return err
	}
	pending, err := e.PendingBalance(ctx, demoCampaign, demoCurrency)
	if err != nil {
		return err
	}
	merchant, err := usdc.BalanceOf(ctx, demoMerchant)
	if err != nil {
		return err
	}
	vouchers, err := book.BalanceOf(ctx, demoHolder, 0)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "campaign available %s USDC, pending %s USDC\n",
		available.Format(usdc.Decimals()), pending.Format(usdc.Decimals()))
	fmt.Fprintf(out, "merchant holds %s USDC, holder holds %s vouchers\n",
		merchant.Format(usdc.Decimals()), vouchers.String())
	return nil
}
