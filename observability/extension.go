// Package observability provides a metrics extension for Escrow that records
// lifecycle event counts and amounts through a MetricFactory.
package observability

import (
	"context"
	"math/big"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/plugin"
	"github.com/xraph/escrow/treasury"
	"github.com/xraph/escrow/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnDeposit          = (*MetricsExtension)(nil)
	_ plugin.OnWithdraw         = (*MetricsExtension)(nil)
	_ plugin.OnSweep            = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCreated   = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCompleted = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCancelled = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRefunded  = (*MetricsExtension)(nil)
	_ plugin.OnRoleChanged      = (*MetricsExtension)(nil)
	_ plugin.OnTransitionFailed = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an Escrow plugin to track treasury and payment activity.
type MetricsExtension struct {
	factory MetricFactory

	// Treasury metrics
	Deposits       Counter
	Withdrawals    Counter
	Sweeps         Counter
	DepositAmount  Histogram
	WithdrawAmount Histogram
	SweepAmount    Histogram

	// Payment metrics
	PaymentCreated   Counter
	PaymentCompleted Counter
	PaymentCancelled Counter
	PaymentRefunded  Counter
	PaymentAmount    Histogram
	RefundAmount     Histogram

	// Access metrics
	RoleChanges Counter

	// Error metrics
	TransitionFailures Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions or NewPrometheusFactory standalone.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		Deposits:       factory.Counter("escrow.treasury.deposits"),
		Withdrawals:    factory.Counter("escrow.treasury.withdrawals"),
		Sweeps:         factory.Counter("escrow.treasury.sweeps"),
		DepositAmount:  factory.Histogram("escrow.treasury.deposit_amount"),
		WithdrawAmount: factory.Histogram("escrow.treasury.withdraw_amount"),
		SweepAmount:    factory.Histogram("escrow.treasury.sweep_amount"),

		PaymentCreated:   factory.Counter("escrow.payment.created"),
		PaymentCompleted: factory.Counter("escrow.payment.completed"),
		PaymentCancelled: factory.Counter("escrow.payment.cancelled"),
		PaymentRefunded:  factory.Counter("escrow.payment.refunded"),
		PaymentAmount:    factory.Histogram("escrow.payment.amount"),
		RefundAmount:     factory.Histogram("escrow.payment.refund_amount"),

		RoleChanges: factory.Counter("escrow.access.role_changes"),

		TransitionFailures: factory.Counter("escrow.transition.failures"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Treasury hooks
// ──────────────────────────────────────────────────

// OnDeposit implements plugin.OnDeposit.
func (m *MetricsExtension) OnDeposit(_ context.Context, mv *treasury.Movement) error {
	m.Deposits.Inc()
	m.DepositAmount.Observe(amountValue(mv.Amount))
	return nil
}

// OnWithdraw implements plugin.OnWithdraw.
func (m *MetricsExtension) OnWithdraw(_ context.Context, mv *treasury.Movement) error {
	m.Withdrawals.Inc()
	m.WithdrawAmount.Observe(amountValue(mv.Amount))
	return nil
}

// OnSweep implements plugin.OnSweep.
func (m *MetricsExtension) OnSweep(_ context.Context, mv *treasury.Movement) error {
	m.Sweeps.Inc()
	m.SweepAmount.Observe(amountValue(mv.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentCreated implements plugin.OnPaymentCreated.
func (m *MetricsExtension) OnPaymentCreated(_ context.Context, p *payment.Payment) error {
	m.PaymentCreated.Inc()
	m.PaymentAmount.Observe(amountValue(p.Amount))
	return nil
}

// OnPaymentCompleted implements plugin.OnPaymentCompleted.
func (m *MetricsExtension) OnPaymentCompleted(_ context.Context, _ *payment.Payment) error {
	m.PaymentCompleted.Inc()
	return nil
}

// OnPaymentCancelled implements plugin.OnPaymentCancelled.
func (m *MetricsExtension) OnPaymentCancelled(_ context.Context, _ *payment.Payment) error {
	m.PaymentCancelled.Inc()
	return nil
}

// OnPaymentRefunded implements plugin.OnPaymentRefunded.
func (m *MetricsExtension) OnPaymentRefunded(_ context.Context, _ *payment.Payment, r payment.Refund) error {
	m.PaymentRefunded.Inc()
	m.RefundAmount.Observe(amountValue(r.Amount))
	return nil
}

// OnRoleChanged implements plugin.OnRoleChanged.
func (m *MetricsExtension) OnRoleChanged(_ context.Context, _ access.Change) error {
	m.RoleChanges.Inc()
	return nil
}

// OnTransitionFailed implements plugin.OnTransitionFailed.
func (m *MetricsExtension) OnTransitionFailed(_ context.Context, _ string, _ error) error {
	m.TransitionFailures.Inc()
	return nil
}

// amountValue converts an amount in native units to a float64. Precision is
// lost above 2^53, which is acceptable for histogram buckets.
func amountValue(a types.Amount) float64 {
	f, _ := new(big.Float).SetInt(a.Uint256().ToBig()).Float64()
	return f
}
