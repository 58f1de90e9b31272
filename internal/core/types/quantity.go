// Package types provides common value types.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity is a fixed-point quantity with 4 decimal places (scale = 1e4).
//
// Stored as BIGINT (scaled integer) so that arithmetic on balances is exact
// and comparisons in SQL need no casts. JSON is a number with 4 decimals.
type Quantity int64

// QuantityScale is the number of scaled units in one whole unit.
const QuantityScale int64 = 10_000

const quantityExp int32 = -4

// ErrQuantityOutOfRange reports a value that does not fit the scaled int64.
var ErrQuantityOutOfRange = errors.New("quantity out of range")

// The range is symmetric so that Neg and Abs never overflow.
var (
	minScaled = decimal.NewFromInt(-math.MaxInt64)
	maxScaled = decimal.NewFromInt(math.MaxInt64)
)

// NewQuantity creates a Quantity of whole units (e.g. 500 kg).
func NewQuantity(units int64) Quantity {
	return Quantity(units * QuantityScale)
}

// NewQuantityFromDecimal converts d, truncating beyond 4 fractional digits.
// Values outside the representable range return ErrQuantityOutOfRange.
func NewQuantityFromDecimal(d decimal.Decimal) (Quantity, error) {
	scaled := d.Shift(-quantityExp).Truncate(0)
	if scaled.LessThan(minScaled) || scaled.GreaterThan(maxScaled) {
		return 0, fmt.Errorf("%w: %s", ErrQuantityOutOfRange, d.String())
	}
	return Quantity(scaled.IntPart()), nil
}

// NewQuantityFromFloat64 converts f. Prefer ParseQuantity for user input.
func NewQuantityFromFloat64(f float64) (Quantity, error) {
	return NewQuantityFromDecimal(decimal.NewFromFloat(f).Round(-quantityExp))
}

// ParseQuantity parses a decimal string such as "1000", "12.5" or "-0.25".
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity: %w", err)
	}
	return NewQuantityFromDecimal(d)
}

// MustQuantity parses s and panics on error. Use only for constants and tests.
func MustQuantity(s string) Quantity {
	q, err := ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

// Add returns q + other, or ErrQuantityOutOfRange when the sum overflows.
func (q Quantity) Add(other Quantity) (Quantity, error) {
	if (other > 0 && q > math.MaxInt64-other) || (other < 0 && q < -math.MaxInt64-other) {
		return 0, fmt.Errorf("%w: %s + %s", ErrQuantityOutOfRange, q, other)
	}
	return q + other, nil
}

func (q Quantity) Decimal() decimal.Decimal { return decimal.New(int64(q), quantityExp) }

func (q Quantity) Float64() float64 { return q.Decimal().InexactFloat64() }

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

func (q Quantity) Abs() Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// String returns a decimal string with 4 fractional digits.
func (q Quantity) String() string {
	return q.Decimal().StringFixed(-quantityExp)
}

// MarshalJSON encodes Quantity as JSON number (not string), preserving 4 digits.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts either a JSON number or string.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	raw := string(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}

	parsed, err := ParseQuantity(raw)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// QuantityPtr returns a pointer to q.
func QuantityPtr(q Quantity) *Quantity { return &q }
