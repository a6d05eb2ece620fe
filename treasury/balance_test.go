package treasury

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/types"
)

var testKey = Key{
	Campaign: common.HexToAddress("0xc0ffee"),
	Currency: common.HexToAddress("0xdead"),
}

func entry(available, pending uint64) Entry {
	e := NewEntry(testKey, time.Unix(0, 0))
	e.Available = types.NewAmount(available)
	e.Pending = types.NewAmount(pending)
	return e
}

func TestPrimitives(t *testing.T) {
	tests := []struct {
		name          string
		start         Entry
		op            func(Entry) (Entry, error)
		wantAvailable uint64
		wantPending   uint64
		wantErr       error
	}{
		{"credit", entry(10, 5), func(e Entry) (Entry, error) { return e.Credit(types.NewAmount(7)) }, 17, 5, nil},
		{"debit", entry(10, 5), func(e Entry) (Entry, error) { return e.Debit(types.NewAmount(10)) }, 0, 5, nil},
		{"debit exceeds", entry(10, 5), func(e Entry) (Entry, error) { return e.Debit(types.NewAmount(11)) }, 10, 5, ErrWithdrawExceedsBalance},
		{"move to pending", entry(10, 5), func(e Entry) (Entry, error) { return e.MoveToPending(types.NewAmount(4)) }, 6, 9, nil},
		{"move to pending exceeds", entry(3, 0), func(e Entry) (Entry, error) { return e.MoveToPending(types.NewAmount(4)) }, 3, 0, ErrInsufficientFunding},
		{"settle", entry(1, 5), func(e Entry) (Entry, error) { return e.SettlePending(types.NewAmount(5)) }, 1, 0, nil},
		{"settle exceeds", entry(100, 5), func(e Entry) (Entry, error) { return e.SettlePending(types.NewAmount(6)) }, 100, 5, ErrInsufficientPending},
		{"revert", entry(1, 5), func(e Entry) (Entry, error) { return e.RevertPending(types.NewAmount(2)) }, 3, 3, nil},
		{"revert exceeds", entry(1, 5), func(e Entry) (Entry, error) { return e.RevertPending(types.NewAmount(9)) }, 1, 5, ErrInsufficientPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.start
			got, err := tt.op(tt.start)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error: got %v, want %v", err, tt.wantErr)
			}
			if !got.Available.Equal(types.NewAmount(tt.wantAvailable)) {
				t.Errorf("Available: got %s, want %d", got.Available, tt.wantAvailable)
			}
			if !got.Pending.Equal(types.NewAmount(tt.wantPending)) {
				t.Errorf("Pending: got %s, want %d", got.Pending, tt.wantPending)
			}
			if !tt.start.Available.Equal(before.Available) || !tt.start.Pending.Equal(before.Pending) {
				t.Error("input entry was mutated")
			}
		})
	}
}

func TestCreditOverflow(t *testing.T) {
	ceiling := types.MustAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")

	e := entry(0, 1)
	if _, err := e.Credit(ceiling); !errors.Is(err, ErrBalanceOverflow) {
		t.Errorf("expected overflow when total would wrap, got %v", err)
	}

	e = entry(1, 0)
	if _, err := e.Credit(ceiling); !errors.Is(err, ErrBalanceOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
}

func TestConservation(t *testing.T) {
	e := entry(0, 0)
	steps := []func(Entry) (Entry, error){
		func(e Entry) (Entry, error) { return e.Credit(types.NewAmount(1000)) },
		func(e Entry) (Entry, error) { return e.MoveToPending(types.NewAmount(400)) },
		func(e Entry) (Entry, error) { return e.RevertPending(types.NewAmount(100)) },
		func(e Entry) (Entry, error) { return e.SettlePending(types.NewAmount(300)) },
		func(e Entry) (Entry, error) { return e.Debit(types.NewAmount(200)) },
	}
	for i, step := range steps {
		var err error
		if e, err = step(e); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	// 1000 deposited, 300 paid out, 200 withdrawn.
	total, err := e.Total()
	if err != nil {
		t.Fatal(err)
	}
	if !total.Equal(types.NewAmount(500)) {
		t.Errorf("total: got %s, want 500", total)
	}
	if !e.Pending.IsZero() {
		t.Errorf("pending: got %s, want 0", e.Pending)
	}
}

func TestMovementFilters(t *testing.T) {
	m := Movement{Kind: KindDeposit, Campaign: testKey.Campaign, Currency: testKey.Currency}

	if !(MovementOpts{}).Matches(m) {
		t.Error("empty filter should match")
	}
	if !(MovementOpts{Campaign: testKey.Campaign, Kind: KindDeposit}).Matches(m) {
		t.Error("matching filter rejected movement")
	}
	if (MovementOpts{Kind: KindSweep}).Matches(m) {
		t.Error("kind filter accepted wrong kind")
	}
	if (ListOpts{Currency: common.HexToAddress("0x01")}).Matches(entry(0, 0)) {
		t.Error("currency filter accepted wrong currency")
	}
}

func TestLessMovement(t *testing.T) {
	t0 := time.Unix(100, 0)
	a := Movement{At: t0}
	b := Movement{At: t0.Add(time.Second)}
	if LessMovement(a, b) >= 0 || LessMovement(b, a) <= 0 {
		t.Error("movements should order by time")
	}
}
