package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/treasury"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emitting never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onDeposit          []OnDeposit
	onWithdraw         []OnWithdraw
	onSweep            []OnSweep
	onPaymentCreated   []OnPaymentCreated
	onPaymentCompleted []OnPaymentCompleted
	onPaymentCancelled []OnPaymentCancelled
	onPaymentRefunded  []OnPaymentRefunded
	onTransitionFailed []OnTransitionFailed
	onRoleChanged      []OnRoleChanged
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout overrides the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnDeposit); ok {
		r.onDeposit = append(r.onDeposit, v)
	}
	if v, ok := p.(OnWithdraw); ok {
		r.onWithdraw = append(r.onWithdraw, v)
	}
	if v, ok := p.(OnSweep); ok {
		r.onSweep = append(r.onSweep, v)
	}
	if v, ok := p.(OnPaymentCreated); ok {
		r.onPaymentCreated = append(r.onPaymentCreated, v)
	}
	if v, ok := p.(OnPaymentCompleted); ok {
		r.onPaymentCompleted = append(r.onPaymentCompleted, v)
	}
	if v, ok := p.(OnPaymentCancelled); ok {
		r.onPaymentCancelled = append(r.onPaymentCancelled, v)
	}
	if v, ok := p.(OnPaymentRefunded); ok {
		r.onPaymentRefunded = append(r.onPaymentRefunded, v)
	}
	if v, ok := p.(OnTransitionFailed); ok {
		r.onTransitionFailed = append(r.onTransitionFailed, v)
	}
	if v, ok := p.(OnRoleChanged); ok {
		r.onRoleChanged = append(r.onRoleChanged, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnDeposit", reflect.TypeFor[OnDeposit]()},
	{"OnWithdraw", reflect.TypeFor[OnWithdraw]()},
	{"OnSweep", reflect.TypeFor[OnSweep]()},
	{"OnPaymentCreated", reflect.TypeFor[OnPaymentCreated]()},
	{"OnPaymentCompleted", reflect.TypeFor[OnPaymentCompleted]()},
	{"OnPaymentCancelled", reflect.TypeFor[OnPaymentCancelled]()},
	{"OnPaymentRefunded", reflect.TypeFor[OnPaymentRefunded]()},
	{"OnTransitionFailed", reflect.TypeFor[OnTransitionFailed]()},
	{"OnRoleChanged", reflect.TypeFor[OnRoleChanged]()},
}

// implementedInterfaces returns the hook names p implements.
func implementedInterfaces(p Plugin) []string {
	v := reflect.TypeOf(p)
	var names []string
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit runs call for every plugin in hooks, logging failures.
func emit[T Plugin](r *Registry, ctx context.Context, hook string, hooks []T, call func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return call(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func snapshot[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, e any) {
	emit(r, ctx, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error { return p.OnInit(ctx, e) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(r, ctx, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitDeposit emits a deposit event.
func (r *Registry) EmitDeposit(ctx context.Context, m *treasury.Movement) {
	emit(r, ctx, "OnDeposit", snapshot(r, &r.onDeposit), func(p OnDeposit) error { return p.OnDeposit(ctx, m) })
}

// EmitWithdraw emits a withdraw event.
func (r *Registry) EmitWithdraw(ctx context.Context, m *treasury.Movement) {
	emit(r, ctx, "OnWithdraw", snapshot(r, &r.onWithdraw), func(p OnWithdraw) error { return p.OnWithdraw(ctx, m) })
}

// EmitSweep emits a sweep event.
func (r *Registry) EmitSweep(ctx context.Context, m *treasury.Movement) {
	emit(r, ctx, "OnSweep", snapshot(r, &r.onSweep), func(p OnSweep) error { return p.OnSweep(ctx, m) })
}

// EmitPaymentCreated emits a payment created event.
func (r *Registry) EmitPaymentCreated(ctx context.Context, pay *payment.Payment) {
	emit(r, ctx, "OnPaymentCreated", snapshot(r, &r.onPaymentCreated), func(p OnPaymentCreated) error {
		return p.OnPaymentCreated(ctx, pay)
	})
}

// EmitPaymentCompleted emits a payment completed event.
func (r *Registry) EmitPaymentCompleted(ctx context.Context, pay *payment.Payment) {
	emit(r, ctx, "OnPaymentCompleted", snapshot(r, &r.onPaymentCompleted), func(p OnPaymentCompleted) error {
		return p.OnPaymentCompleted(ctx, pay)
	})
}

// EmitPaymentCancelled emits a payment cancelled event.
func (r *Registry) EmitPaymentCancelled(ctx context.Context, pay *payment.Payment) {
	emit(r, ctx, "OnPaymentCancelled", snapshot(r, &r.onPaymentCancelled), func(p OnPaymentCancelled) error {
		return p.OnPaymentCancelled(ctx, pay)
	})
}

// EmitPaymentRefunded emits a payment refunded event.
func (r *Registry) EmitPaymentRefunded(ctx context.Context, pay *payment.Payment, refund payment.Refund) {
	emit(r, ctx, "OnPaymentRefunded", snapshot(r, &r.onPaymentRefunded), func(p OnPaymentRefunded) error {
		return p.OnPaymentRefunded(ctx, pay, refund)
	})
}

// EmitTransitionFailed emits a failed operation event.
func (r *Registry) EmitTransitionFailed(ctx context.Context, op string, cause error) {
	emit(r, ctx, "OnTransitionFailed", snapshot(r, &r.onTransitionFailed), func(p OnTransitionFailed) error {
		return p.OnTransitionFailed(ctx, op, cause)
	})
}

// EmitRoleChanged emits a role change event.
func (r *Registry) EmitRoleChanged(ctx context.Context, c access.Change) {
	emit(r, ctx, "OnRoleChanged", snapshot(r, &r.onRoleChanged), func(p OnRoleChanged) error {
		return p.OnRoleChanged(ctx, c)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the payment pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
