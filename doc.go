// Package escrow provides a campaign voucher escrow treasury for Go
// applications.
//
// Campaigns fund a treasury in one or more currencies. Voucher holders spend
// campaign vouchers through an allow-listed voucher program, which opens a
// payment: the amount moves from the campaign's available balance into
// pending escrow and the vouchers are burnt. An operator then completes the
// payment (currency goes to the merchant destination), cancels it (escrow
// returns to available, vouchers are minted back) or, once completed,
// refunds it in one or more parts.
//
// Escrow is designed as a library, not a service. It provides:
//
//   - Two-balance accounting per (campaign, currency): available and pending
//   - A payment state machine with partial refunds and transition history
//   - Administrator, operator and program-integration roles
//   - Atomic transactions: ledger writes commit first, external effects
//     follow, and a failing effect is compensated
//   - A movement journal written in the same commit as every balance change
//   - Memory, LevelDB, SQLite, PostgreSQL and MongoDB stores
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/escrow"
//	    "github.com/xraph/escrow/asset"
//	    "github.com/xraph/escrow/store/memory"
//	    "github.com/xraph/escrow/voucher"
//	)
//
//	usdc := asset.NewToken("USDC", 6)
//	book := voucher.NewBook(custodian)
//
//	e := escrow.New(memory.New(),
//	    escrow.WithCustodian(custodian),
//	    escrow.WithCurrency(usdcAddr, usdc),
//	    escrow.WithVoucherLedger(campaign, book),
//	)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
//	_ = e.Initialise(ctx, admin)
//	_ = e.GrantOperator(ctx, escrow.Account(admin), operator)
//	_ = e.RegisterIntegration(ctx, escrow.Account(admin), campaign)
//
// # Payments
//
// A campaign program opens a payment on behalf of a voucher holder:
//
//	p, err := e.CreatePayment(ctx, escrow.Program(campaign), escrow.CreateRequest{
//	    Campaign:    campaign,
//	    From:        holder,
//	    Destination: merchant,
//	    Currency:    usdcAddr,
//	    Amount:      escrow.NewAmount(500),
//	    Reference:   "order-1",
//	})
//
// Operators settle it:
//
//	p, err = e.CompletePayment(ctx, escrow.Account(operator), campaign, "order-1", "")
//
// # Errors
//
// Every failure wraps one of the sentinel errors in this package. Use
// errors.Is, or the IsAuthorizationError, IsConflictError,
// IsInsufficiencyError and IsNotFound helpers.
//
// # Plugins
//
// Lifecycle hooks (deposit, payment transitions, role changes, failures) are
// delivered to registered plugins after each transaction. The audit_hook
// package records them to an audit trail and observability exports
// Prometheus metrics. The extension package mounts Escrow in a Forge
// application; cmd/escrowctl administers a local store.
//
// # TypeID
//
// Payments, refunds and journal movements use TypeID identifiers:
//
//	pay_01h2xcejqtf2nbrexx3vqjhp41  // Payment ID
//	rfd_01h2xcejqtf2nbrexx3vqjhp41  // Refund ID
//	mov_01h455vb4pex5vsknk084sn02q  // Movement ID
package escrow
