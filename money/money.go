/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package money wraps an arbitrary-precision decimal with the fixed
// rounding rules used for every financial computation in the gateway.
//
// On-chain balances routinely exceed the integer and fraction ranges that
// are safe in a float64, and ratio errors compound across dependent fields,
// so no float ever enters the computation path.  Upstream encodes every
// numeric field as a decimal string and Parse is the only way in.
package money

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept by every division in the
// derived-field computations.
const Scale = 18

var (
	// ErrInvalidDecimal marks a malformed numeric value.  Upstream fields
	// are schema-typed decimals, so hitting this means the upstream broke
	// its contract.
	ErrInvalidDecimal = errors.New("invalid decimal value")

	// ErrDivisionByZero marks a division by a zero divisor.  Callers must
	// branch on the zero case before dividing; observing this error is a
	// defect, not an expected runtime condition.
	ErrDivisionByZero = errors.New("division by zero")
)

// Money is an immutable arbitrary-precision decimal.  The zero value is 0.
type Money struct {
	d decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Money {
	return Money{}
}

// Parse converts a decimal string into Money.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, errors.Wrapf(ErrInvalidDecimal, "parsing %q", s)
	}
	return Money{d: d}, nil
}

// MustParse is Parse for literals known to be valid.  It panics on error.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + n.
func (m Money) Add(n Money) Money {
	return Money{d: m.d.Add(n.d)}
}

// Sub returns m - n.
func (m Money) Sub(n Money) Money {
	return Money{d: m.d.Sub(n.d)}
}

// Mul returns m × n, exactly.
func (m Money) Mul(n Money) Money {
	return Money{d: m.d.Mul(n.d)}
}

// Div returns m / n truncated toward zero at scale fractional digits
// (ROUND_DOWN).  It fails with ErrDivisionByZero if n is zero.
func (m Money) Div(n Money, scale int32) (Money, error) {
	if n.d.IsZero() {
		return Money{}, errors.Wrapf(ErrDivisionByZero, "dividing %s", m)
	}
	q, _ := m.d.QuoRem(n.d, scale)
	return Money{d: q}, nil
}

// Equal reports value equality, independent of string form.
func (m Money) Equal(n Money) bool {
	return m.d.Equal(n.d)
}

// IsZero reports whether m is exactly zero.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// Cmp returns -1, 0 or 1 comparing m against n.
func (m Money) Cmp(n Money) int {
	return m.d.Cmp(n.d)
}

// String returns the decimal-string form at the value's own exponent,
// keeping every fractional digit produced by a scaled division.  The
// underlying library's String trims trailing zeros, which would collapse
// "110.000000000000000000" to "110".
func (m Money) String() string {
	if exp := m.d.Exponent(); exp < 0 {
		return m.d.StringFixed(-exp)
	}
	return m.d.String()
}

// MarshalJSON encodes m as a decimal string, never a native number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON decodes a decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		b = b[1 : len(b)-1]
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
