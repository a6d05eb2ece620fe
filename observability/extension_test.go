package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/treasury"
	"github.com/xraph/escrow/types"
)

func TestMetricsExtensionCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsExtension(NewPrometheusFactory("test", reg))
	ctx := context.Background()

	require.NoError(t, m.OnDeposit(ctx, &treasury.Movement{Amount: types.NewAmount(1000)}))
	require.NoError(t, m.OnDeposit(ctx, &treasury.Movement{Amount: types.NewAmount(10)}))
	require.NoError(t, m.OnPaymentCreated(ctx, &payment.Payment{Amount: types.NewAmount(300)}))
	require.NoError(t, m.OnPaymentCompleted(ctx, &payment.Payment{}))
	require.NoError(t, m.OnPaymentRefunded(ctx, &payment.Payment{}, payment.Refund{Amount: types.NewAmount(100)}))
	require.NoError(t, m.OnRoleChanged(ctx, access.Change{Action: access.ActionOperatorGranted}))
	require.NoError(t, m.OnTransitionFailed(ctx, "complete_payment", errors.New("boom")))

	require.InDelta(t, 2, value(m.Deposits), 0)
	require.InDelta(t, 1, value(m.PaymentCreated), 0)
	require.InDelta(t, 1, value(m.PaymentCompleted), 0)
	require.InDelta(t, 0, value(m.PaymentCancelled), 0)
	require.InDelta(t, 1, value(m.PaymentRefunded), 0)
	require.InDelta(t, 1, value(m.RoleChanges), 0)
	require.InDelta(t, 1, value(m.TransitionFailures), 0)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	require.True(t, names["test_escrow_treasury_deposits_total"])
	require.True(t, names["test_escrow_treasury_deposit_amount"])
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := NewPrometheusFactory("test", reg)

	a := f.Counter("escrow.payment.created")
	b := f.Counter("escrow.payment.created")
	a.Inc()
	b.Inc()
	require.InDelta(t, 2, value(a), 0)

	// A second factory on the same registry picks up the existing collector.
	other := NewPrometheusFactory("test", reg).Counter("escrow.payment.created")
	other.Inc()
	require.InDelta(t, 3, value(a), 0)
}

func TestAmountValue(t *testing.T) {
	require.InDelta(t, 0, amountValue(types.Zero()), 0)
	require.InDelta(t, 1_500_000, amountValue(types.NewAmount(1_500_000)), 0)
	huge := types.MustAmount("1000000000000000000000000")
	require.InEpsilon(t, 1e24, amountValue(huge), 1e-9)
}

func value(c Counter) float64 {
	return testutil.ToFloat64(c.(prometheus.Collector))
}
