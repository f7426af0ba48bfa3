package util

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ZeroFixed is the normalized representation of an absent or unusable number.
const ZeroFixed = "0.00"

// Exponent and magnitude bounds of a usable reading. Rendering or rescaling a
// decimal costs time proportional to its exponent, so wider values are rejected
// before any arithmetic touches them.
const (
	maxExponent = 18
	minExponent = -64
)

var maxMagnitude = decimal.NewFromInt(1_000_000_000)

// ToDecimal converts the wire representations producers use for numeric fields
// (integers, floats, numeric strings) into a decimal. ok is false when the value is
// absent, non-numeric, NaN, infinite or beyond 1e9 in magnitude.
func ToDecimal(v any) (decimal.Decimal, bool) {
	d, ok := toDecimal(v)
	if !ok || !bounded(d) {
		return decimal.Zero, false
	}
	return d, true
}

func bounded(d decimal.Decimal) bool {
	if exp := d.Exponent(); exp > maxExponent || exp < minExponent {
		return false
	}
	return !d.Abs().GreaterThan(maxMagnitude)
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint:
		return decimal.NewFromUint64(uint64(n)), true
	case uint32:
		return decimal.NewFromUint64(uint64(n)), true
	case uint64:
		return decimal.NewFromUint64(n), true
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		return fromString(n.String())
	case string:
		return fromString(n)
	default:
		return decimal.Zero, false
	}
}

// FormatFixed2 renders v with exactly two decimals. Negative and unusable values
// collapse to ZeroFixed.
func FormatFixed2(v any) string {
	d, ok := ToDecimal(v)
	if !ok || d.IsNegative() {
		return ZeroFixed
	}
	return d.StringFixed(2)
}

// ParseFixed reads back a number rendered by FormatFixed2; garbage reads as zero.
func ParseFixed(s string) float64 {
	d, ok := fromString(s)
	if !ok || !bounded(d) {
		return 0
	}
	f, _ := d.Float64()
	return f
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func fromString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
