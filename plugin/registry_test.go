package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/payment"
)

type recorder struct {
	name     string
	created  atomic.Int32
	roles    atomic.Int32
	failures atomic.Int32
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnPaymentCreated(context.Context, *payment.Payment) error {
	r.created.Add(1)
	return nil
}

func (r *recorder) OnRoleChanged(context.Context, access.Change) error {
	r.roles.Add(1)
	return errors.New("boom")
}

func (r *recorder) OnTransitionFailed(context.Context, string, error) error {
	r.failures.Add(1)
	return nil
}

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) OnPaymentCreated(ctx context.Context, _ *payment.Payment) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func quietRegistry() *Registry {
	return NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterCachesInterfaces(t *testing.T) {
	r := quietRegistry()
	rec := &recorder{name: "rec"}
	if err := r.Register(rec); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&recorder{name: "rec"}); err == nil {
		t.Error("duplicate registration should fail")
	}
	if r.Count() != 1 || r.Get("rec") != rec || r.Get("missing") != nil {
		t.Errorf("registry contents unexpected: %v", r.List())
	}

	got := implementedInterfaces(rec)
	want := []string{"OnPaymentCreated", "OnTransitionFailed", "OnRoleChanged"}
	if len(got) != len(want) {
		t.Fatalf("interfaces = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("interfaces[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestEmitDispatchesAndSwallowsErrors(t *testing.T) {
	r := quietRegistry()
	rec := &recorder{name: "rec"}
	if err := r.Register(rec); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	r.EmitPaymentCreated(ctx, &payment.Payment{})
	r.EmitPaymentCreated(ctx, &payment.Payment{})
	r.EmitRoleChanged(ctx, access.Change{Action: access.ActionOperatorGranted})
	r.EmitTransitionFailed(ctx, "create_payment", errors.New("nope"))
	r.EmitPaymentCompleted(ctx, &payment.Payment{})

	if rec.created.Load() != 2 {
		t.Errorf("created = %d, want 2", rec.created.Load())
	}
	if rec.roles.Load() != 1 {
		t.Errorf("roles = %d, want 1", rec.roles.Load())
	}
	if rec.failures.Load() != 1 {
		t.Errorf("failures = %d, want 1", rec.failures.Load())
	}
}

func TestCallWithTimeout(t *testing.T) {
	r := quietRegistry().WithTimeout(20 * time.Millisecond)

	start := time.Now()
	err := r.callWithTimeout(context.Background(), "slow", func() error {
		return slow{}.OnPaymentCreated(context.Background(), nil)
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("timeout took %s", time.Since(start))
	}

	if err := r.callWithTimeout(context.Background(), "fast", func() error { return nil }); err != nil {
		t.Errorf("fast hook: %v", err)
	}
}
