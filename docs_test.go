package escrow_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/asset"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/types"
	"github.com/xraph/escrow/voucher"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation run as written.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()
		usdcAddr := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
		campaign := common.HexToAddress("0x00000000000000000000000000000000000ca001")
		holder := common.HexToAddress("0x0000000000000000000000000000000000001001")
		merchant := common.HexToAddress("0x0000000000000000000000000000000000002002")
		owner := common.HexToAddress("0x0000000000000000000000000000000000003003")
		custodian := common.HexToAddress("0x000000000000000000000000000000000000c057")
		admin := common.HexToAddress("0x000000000000000000000000000000000000ad01")
		operator := common.HexToAddress("0x000000000000000000000000000000000000ab01")

		usdc := asset.NewToken("USDC", 6)
		book := voucher.NewBook(custodian)

		e := escrow.New(memory.New(),
			escrow.WithLogger(slog.New(slog.DiscardHandler)),
			escrow.WithCustodian(custodian),
			escrow.WithCurrency(usdcAddr, usdc),
			escrow.WithVoucherLedger(campaign, book),
		)
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		if err := e.Initialise(ctx, admin); err != nil {
			t.Fatal(err)
		}
		if err := e.GrantOperator(ctx, escrow.Account(admin), operator); err != nil {
			t.Fatal(err)
		}
		if err := e.RegisterIntegration(ctx, escrow.Account(admin), campaign); err != nil {
			t.Fatal(err)
		}

		// Fund the campaign with 10 USDC.
		if err := usdc.Mint(owner, escrow.NewAmount(10_000_000)); err != nil {
			t.Fatal(err)
		}
		usdc.Approve(owner, custodian, escrow.NewAmount(10_000_000))
		if err := e.Deposit(ctx, escrow.Account(owner), campaign, usdcAddr, escrow.NewAmount(10_000_000), owner); err != nil {
			t.Fatal(err)
		}

		// Give the holder vouchers and let the custodian burn them.
		if err := book.MintTo(ctx, holder, 0, escrow.NewAmount(500)); err != nil {
			t.Fatal(err)
		}
		book.SetApprovalForAll(holder, custodian, true)

		p, err := e.CreatePayment(ctx, escrow.Program(campaign), escrow.CreateRequest{
			Campaign:    campaign,
			From:        holder,
			Destination: merchant,
			Currency:    usdcAddr,
			Amount:      escrow.NewAmount(500),
			Reference:   "order-1",
		})
		if err != nil {
			t.Fatal(err)
		}
		if p.Status != escrow.StatusPending {
			t.Errorf("status = %s, want pending", p.Status)
		}

		p, err = e.CompletePayment(ctx, escrow.Account(operator), campaign, "order-1", "")
		if err != nil {
			t.Fatal(err)
		}
		if p.Status != escrow.StatusCompleted {
			t.Errorf("status = %s, want completed", p.Status)
		}

		available, err := e.TreasuryBalance(ctx, campaign, usdcAddr)
		if err != nil {
			t.Fatal(err)
		}
		t.Logf("campaign available: %s USDC", available.Format(usdc.Decimals()))
	})

	t.Run("AmountExamples", func(t *testing.T) {
		a := types.NewAmount(1_500_000)
		if got := a.Format(6); got != "1.500000" {
			t.Errorf("Format(6) = %q", got)
		}

		sum, err := a.Add(types.NewAmount(500_000))
		if err != nil {
			t.Fatal(err)
		}
		if sum.String() != "2000000" {
			t.Errorf("sum = %s", sum)
		}

		if _, err := types.NewAmount(1).Sub(types.NewAmount(2)); err == nil {
			t.Error("expected underflow")
		}
	})
}
