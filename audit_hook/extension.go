// Package audithook bridges Escrow lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/plugin"
	"github.com/xraph/escrow/treasury"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnPaymentCreated   = (*Extension)(nil)
	_ plugin.OnPaymentCompleted = (*Extension)(nil)
	_ plugin.OnPaymentCancelled = (*Extension)(nil)
	_ plugin.OnPaymentRefunded  = (*Extension)(nil)
	_ plugin.OnDeposit          = (*Extension)(nil)
	_ plugin.OnWithdraw         = (*Extension)(nil)
	_ plugin.OnSweep            = (*Extension)(nil)
	_ plugin.OnRoleChanged      = (*Extension)(nil)
	_ plugin.OnTransitionFailed = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Escrow lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentCreated implements plugin.OnPaymentCreated.
func (e *Extension) OnPaymentCreated(ctx context.Context, p *payment.Payment) error {
	return e.recordPayment(ctx, ActionPaymentCreated, p)
}

// OnPaymentCompleted implements plugin.OnPaymentCompleted.
func (e *Extension) OnPaymentCompleted(ctx context.Context, p *payment.Payment) error {
	return e.recordPayment(ctx, ActionPaymentCompleted, p,
		"destination", p.Destination.Hex(),
	)
}

// OnPaymentCancelled implements plugin.OnPaymentCancelled.
func (e *Extension) OnPaymentCancelled(ctx context.Context, p *payment.Payment) error {
	return e.recordPayment(ctx, ActionPaymentCancelled, p)
}

// OnPaymentRefunded implements plugin.OnPaymentRefunded.
func (e *Extension) OnPaymentRefunded(ctx context.Context, p *payment.Payment, r payment.Refund) error {
	outcome := OutcomePartial
	if p.Status == payment.StatusRefunded {
		outcome = OutcomeSuccess
	}
	return e.record(ctx, ActionPaymentRefunded, SeverityInfo, outcome,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		"campaign", p.Campaign.Hex(),
		"reference", p.Reference,
		"refund_id", r.ID.String(),
		"refund_reference", r.Reference,
		"refund_amount", r.Amount.String(),
		"refunded_total", p.RefundedAmount.String(),
		"operator", r.Operator.Hex(),
	)
}

// ──────────────────────────────────────────────────
// Treasury hooks
// ──────────────────────────────────────────────────

// OnDeposit implements plugin.OnDeposit.
func (e *Extension) OnDeposit(ctx context.Context, m *treasury.Movement) error {
	return e.recordMovement(ctx, ActionTreasuryDeposited, SeverityInfo, m)
}

// OnWithdraw implements plugin.OnWithdraw.
func (e *Extension) OnWithdraw(ctx context.Context, m *treasury.Movement) error {
	return e.recordMovement(ctx, ActionTreasuryWithdrawn, SeverityWarning, m)
}

// OnSweep implements plugin.OnSweep.
func (e *Extension) OnSweep(ctx context.Context, m *treasury.Movement) error {
	return e.recordMovement(ctx, ActionTreasurySwept, SeverityWarning, m)
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// OnRoleChanged implements plugin.OnRoleChanged.
func (e *Extension) OnRoleChanged(ctx context.Context, c access.Change) error {
	action, resource := roleAction(c.Action)
	return e.record(ctx, action, SeverityWarning, OutcomeSuccess,
		resource, c.Subject.Hex(), CategoryAccess, nil,
		"change", c.Action,
		"by", c.By.Hex(),
	)
}

func roleAction(change string) (action, resource string) {
	switch change {
	case access.ActionInitialised:
		return ActionRoleInitialised, ResourceRole
	case access.ActionOperatorGranted:
		return ActionRoleGranted, ResourceRole
	case access.ActionOperatorRevoked:
		return ActionRoleRevoked, ResourceRole
	case access.ActionIntegrationAdded:
		return ActionIntegrationAdded, ResourceIntegration
	default:
		return ActionIntegrationRemoved, ResourceIntegration
	}
}

// OnTransitionFailed implements plugin.OnTransitionFailed.
func (e *Extension) OnTransitionFailed(ctx context.Context, op string, err error) error {
	return e.record(ctx, ActionTransitionFailed, SeverityError, OutcomeFailure,
		ResourceOperation, op, CategoryPayment, err,
		"operation", op,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func (e *Extension) recordPayment(ctx context.Context, action string, p *payment.Payment, kvPairs ...any) error {
	kv := append([]any{
		"campaign", p.Campaign.Hex(),
		"reference", p.Reference,
		"amount", p.Amount.String(),
		"currency", p.Currency.Hex(),
		"status", string(p.Status),
		"metadata", p.Metadata(),
	}, kvPairs...)
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil, kv...)
}

func (e *Extension) recordMovement(ctx context.Context, action, severity string, m *treasury.Movement) error {
	return e.record(ctx, action, severity, OutcomeSuccess,
		ResourceTreasury, m.ID.String(), CategoryTreasury, nil,
		"campaign", m.Campaign.Hex(),
		"currency", m.Currency.Hex(),
		"amount", m.Amount.String(),
		"actor", m.Actor.Hex(),
		"counterparty", m.Counterparty.Hex(),
	)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
