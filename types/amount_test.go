package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

const maxUint256 = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

func TestAmountArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() (Amount, error)
		expected Amount
		err      error
	}{
		{"Add", func() (Amount, error) { return NewAmount(100).Add(NewAmount(200)) }, NewAmount(300), nil},
		{"Sub", func() (Amount, error) { return NewAmount(500).Sub(NewAmount(200)) }, NewAmount(300), nil},
		{"Sub to zero", func() (Amount, error) { return NewAmount(7).Sub(NewAmount(7)) }, Zero(), nil},
		{"Sub underflow", func() (Amount, error) { return NewAmount(1).Sub(NewAmount(2)) }, Zero(), ErrUnderflow},
		{"Add overflow", func() (Amount, error) { return MustAmount(maxUint256).Add(NewAmount(1)) }, Zero(), ErrOverflow},
		{"Add at max", func() (Amount, error) { return MustAmount(maxUint256).Add(Zero()) }, MustAmount(maxUint256), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op()
			if !errors.Is(err, tt.err) {
				t.Fatalf("error: got %v, want %v", err, tt.err)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestAmountOperandsUntouched(t *testing.T) {
	a := NewAmount(5)
	b := NewAmount(9)
	if _, err := a.Sub(b); err == nil {
		t.Fatal("expected underflow")
	}
	if a.String() != "5" || b.String() != "9" {
		t.Errorf("operands mutated: a=%s b=%s", a, b)
	}
}

func TestAmountComparison(t *testing.T) {
	a := NewAmount(100)
	b := NewAmount(200)

	if !a.LessThan(b) {
		t.Error("100 should be less than 200")
	}
	if !b.GreaterThan(a) {
		t.Error("200 should be greater than 100")
	}
	if a.Cmp(a) != 0 || a.Cmp(b) != -1 || b.Cmp(a) != 1 {
		t.Error("Cmp mismatch")
	}
	if !Zero().IsZero() || a.IsZero() {
		t.Error("IsZero mismatch")
	}
	if !a.Min(b).Equal(a) {
		t.Errorf("Min: got %s", a.Min(b))
	}
	if got := a.SaturatingSub(b); !got.IsZero() {
		t.Errorf("SaturatingSub: got %s, want 0", got)
	}
}

func TestAmountFormat(t *testing.T) {
	tests := []struct {
		amount   Amount
		decimals uint8
		want     string
	}{
		{NewAmount(1_500_000), 6, "1.500000"},
		{NewAmount(500), 6, "0.000500"},
		{NewAmount(0), 6, "0.000000"},
		{NewAmount(100), 0, "100"},
		{MustAmount("1000000000000000000"), 18, "1.000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.amount.Format(tt.decimals); got != tt.want {
				t.Errorf("Format(%d): got %s, want %s", tt.decimals, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	if _, err := ParseAmount(""); err == nil {
		t.Error("expected error for empty string")
	}
	if _, err := ParseAmount("-1"); err == nil {
		t.Error("expected error for negative value")
	}
	if _, err := ParseAmount("12abc"); err == nil {
		t.Error("expected error for garbage")
	}
	got, err := ParseAmount(maxUint256)
	if err != nil {
		t.Fatalf("parse max: %v", err)
	}
	if got.String() != maxUint256 {
		t.Errorf("got %s", got)
	}
}

func TestAmountJSON(t *testing.T) {
	type wrapper struct {
		Value Amount `json:"value"`
	}

	data, err := json.Marshal(wrapper{Value: MustAmount("123456789012345678901234567890")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"value":"123456789012345678901234567890"}` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var out wrapper
	if err := json.Unmarshal([]byte(`{"value":42}`), &out); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if !out.Value.Equal(NewAmount(42)) {
		t.Errorf("got %s, want 42", out.Value)
	}
}

func TestAmountScan(t *testing.T) {
	var a Amount
	if err := a.Scan("900"); err != nil || !a.Equal(NewAmount(900)) {
		t.Errorf("scan string: %v %s", err, a)
	}
	if err := a.Scan([]byte("11")); err != nil || !a.Equal(NewAmount(11)) {
		t.Errorf("scan bytes: %v %s", err, a)
	}
	if err := a.Scan(int64(-3)); err == nil {
		t.Error("expected negative scan to fail")
	}
	if err := a.Scan(3.5); err == nil {
		t.Error("expected float scan to fail")
	}
}

func TestSum(t *testing.T) {
	total, err := Sum(NewAmount(1), NewAmount(2), NewAmount(3))
	if err != nil || !total.Equal(NewAmount(6)) {
		t.Errorf("Sum: %v %s", err, total)
	}
	if _, err := Sum(MustAmount(maxUint256), NewAmount(1)); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
}

func TestEntity(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := NewEntity(now)
	if !e.CreatedAt.Equal(now) || !e.UpdatedAt.Equal(now) {
		t.Fatal("timestamps not set")
	}
	later := now.Add(time.Hour)
	e.Touch(later)
	if !e.UpdatedAt.Equal(later) || !e.CreatedAt.Equal(now) {
		t.Error("Touch should only move UpdatedAt")
	}
	if e.Age(later) != time.Hour {
		t.Errorf("Age: got %v", e.Age(later))
	}
	if e.IsStale(later, time.Minute) {
		t.Error("freshly touched entity should not be stale")
	}
}
