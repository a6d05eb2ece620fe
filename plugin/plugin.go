// Package plugin provides an extensible plugin system for Escrow.
// Plugins can hook into treasury, payment and role events to extend
// functionality. Hooks run after the transaction that produced the event
// has finished; their errors are logged and never undo the transaction.
package plugin

import (
	"context"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/treasury"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. e is the *escrow.Escrow.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, e any) error
}

// OnShutdown is called when the engine is stopping.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Treasury hooks
// ──────────────────────────────────────────────────

// OnDeposit is called after a campaign has been funded.
type OnDeposit interface {
	Plugin
	OnDeposit(ctx context.Context, m *treasury.Movement) error
}

// OnWithdraw is called after available balance left a campaign.
type OnWithdraw interface {
	Plugin
	OnWithdraw(ctx context.Context, m *treasury.Movement) error
}

// OnSweep is called after unaccounted custody balance was swept.
type OnSweep interface {
	Plugin
	OnSweep(ctx context.Context, m *treasury.Movement) error
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentCreated is called when a payment enters PENDING.
type OnPaymentCreated interface {
	Plugin
	OnPaymentCreated(ctx context.Context, p *payment.Payment) error
}

// OnPaymentCompleted is called when a payment settles to its destination.
type OnPaymentCompleted interface {
	Plugin
	OnPaymentCompleted(ctx context.Context, p *payment.Payment) error
}

// OnPaymentCancelled is called when a pending payment is cancelled.
type OnPaymentCancelled interface {
	Plugin
	OnPaymentCancelled(ctx context.Context, p *payment.Payment) error
}

// OnPaymentRefunded is called for every refund, partial or full.
type OnPaymentRefunded interface {
	Plugin
	OnPaymentRefunded(ctx context.Context, p *payment.Payment, r payment.Refund) error
}

// OnTransitionFailed is called when an operation was rejected or rolled
// back. op names the engine operation, e.g. "complete_payment".
type OnTransitionFailed interface {
	Plugin
	OnTransitionFailed(ctx context.Context, op string, err error) error
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// OnRoleChanged is called after initialisation and every role grant or
// revocation.
type OnRoleChanged interface {
	Plugin
	OnRoleChanged(ctx context.Context, c access.Change) error
}
