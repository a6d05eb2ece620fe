// Package types provides common types used across Escrow.
package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Arithmetic errors returned by the checked Amount operations.
var (
	ErrOverflow  = errors.New("amount: overflow")
	ErrUnderflow = errors.New("amount: underflow")
)

// Amount is an unsigned 256-bit quantity expressed in a currency's native
// precision (the smallest transferable unit). It can never be negative.
// All arithmetic is checked: an operation that would wrap returns an error
// and leaves both operands untouched.
//
// Examples (6-decimal stablecoin):
//   - NewAmount(1_000_000) = 1.000000
//   - NewAmount(500)       = 0.000500
type Amount struct {
	v uint256.Int
}

// NewAmount creates an Amount from a uint64.
func NewAmount(v uint64) Amount {
	var a Amount
	a.v.SetUint64(v)
	return a
}

// Zero returns the zero Amount.
func Zero() Amount { return Amount{} }

// ParseAmount parses a base-10 string such as "500" or "1000000000000000000".
func ParseAmount(s string) (Amount, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Amount{}, fmt.Errorf("amount: parse %q: empty string", s)
	}
	u, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return Amount{}, fmt.Errorf("amount: parse %q: %w", s, err)
	}
	return Amount{v: *u}, nil
}

// MustAmount is like ParseAmount but panics on error. Use for constants.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromUint256 copies a uint256 value into an Amount. A nil input is zero.
func FromUint256(u *uint256.Int) Amount {
	var a Amount
	if u != nil {
		a.v.Set(u)
	}
	return a
}

// Uint256 returns a copy of the underlying value.
func (a Amount) Uint256() *uint256.Int {
	return new(uint256.Int).Set(&a.v)
}

// Arithmetic operations

// Add returns a+b, or ErrOverflow when the result does not fit in 256 bits.
func (a Amount) Add(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

// Sub returns a-b, or ErrUnderflow when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var out Amount
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrUnderflow
	}
	return out, nil
}

// SaturatingSub returns a-b, clamped at zero.
func (a Amount) SaturatingSub(b Amount) Amount {
	if a.v.Lt(&b.v) {
		return Amount{}
	}
	out, _ := a.Sub(b) //nolint:errcheck // cannot underflow after the guard
	return out
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// Equal returns true if both amounts are equal.
func (a Amount) Equal(b Amount) bool { return a.v.Eq(&b.v) }

// LessThan returns true if a < b.
func (a Amount) LessThan(b Amount) bool { return a.v.Lt(&b.v) }

// GreaterThan returns true if a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.v.Gt(&b.v) }

// Min returns the smaller of two amounts.
func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Formatting methods

// String returns the base-10 representation in native units.
func (a Amount) String() string { return a.v.Dec() }

// Format renders the amount in major units for a currency with the given
// number of decimals: Format(6) of 1500000 is "1.500000", Format(0) of 100
// is "100".
func (a Amount) Format(decimals uint8) string {
	digits := a.v.Dec()
	if decimals == 0 {
		return digits
	}

	d := int(decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}

	split := len(digits) - d
	return digits[:split] + "." + digits[split:]
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Amount{}
		return nil
	}
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a decimal string so values beyond 2^53
// survive JSON consumers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.Dec())
}

// UnmarshalJSON accepts both quoted decimal strings and bare JSON numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err2 := json.Unmarshal(data, &n); err2 != nil {
			return fmt.Errorf("amount: unmarshal %s: %w", string(data), err)
		}
		s = n.String()
	}
	return a.UnmarshalText([]byte(s))
}

// Value implements driver.Valuer; amounts are stored as decimal text.
func (a Amount) Value() (driver.Value, error) {
	return a.v.Dec(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("amount: cannot scan negative value %d", v)
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T into Amount", src)
	}
}

// Sum adds all values, failing on overflow.
func Sum(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return Amount{}, err
		}
		total = next
	}
	return total, nil
}
