package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/escrow/id"
)

func TestPrefixes(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
		prefix  string
	}{
		{"Payment", id.NewPaymentID, id.ParsePaymentID, "pay_"},
		{"Refund", id.NewRefundID, id.ParseRefundID, "rfd_"},
		{"Movement", id.NewMovementID, id.ParseMovementID, "mov_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			if !strings.HasPrefix(original.String(), tt.prefix) {
				t.Fatalf("expected prefix %q, got %q", tt.prefix, original.String())
			}
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.Compare(original) != 0 {
				t.Errorf("round-trip mismatch: %q != %q", parsed, original)
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	if _, err := id.ParsePaymentID(id.NewRefundID().String()); err == nil {
		t.Error("ParsePaymentID accepted a refund ID")
	}
	if _, err := id.ParseRefundID(id.NewMovementID().String()); err == nil {
		t.Error("ParseRefundID accepted a movement ID")
	}
	if _, err := id.ParseMovementID(id.NewPaymentID().String()); err == nil {
		t.Error("ParseMovementID accepted a payment ID")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" || i.Prefix() != "" {
		t.Errorf("expected empty rendering, got %q/%q", i.String(), i.Prefix())
	}

	val, err := i.Value()
	if err != nil || val != nil {
		t.Errorf("expected NULL value for nil ID, got %v (%v)", val, err)
	}
}

func TestTextAndScan(t *testing.T) {
	original := id.NewMovementID()

	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	var restored id.ID
	if err := restored.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored, original)
	}

	var scanned id.ID
	if err := scanned.Scan([]byte(original.String())); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned, original)
	}
	if err := scanned.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestOrdering(t *testing.T) {
	a := id.NewMovementID()
	b := id.NewMovementID()
	if a.String() == b.String() {
		t.Fatalf("two consecutive IDs are equal: %q", a)
	}
	if a.Compare(b) >= 0 {
		t.Errorf("expected %q to sort before %q", a, b)
	}
}
