package pricing

import (
	"encoding/json"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RoundAmount rounds to cents on the decimal form of x, halves away from zero.
// Floats go through their shortest representation, so 100.455 rounds to 100.46
// and 0.1+0.2 to 0.3. nil, NaN, Inf and non-numeric input coerce to 0.
func RoundAmount(x any) float64 {
	d, ok := toDecimal(x)
	if !ok {
		return 0
	}
	return d.Round(2).InexactFloat64()
}

// ApplyDiscount computes the cent-exact discount and final amount for a total
// under a percentage rate.
func ApplyDiscount(total, ratePercent float64) (discount, final float64) {
	t, ok := toDecimal(total)
	if !ok {
		return 0, 0
	}
	r, ok := toDecimal(ratePercent)
	if !ok || r.Sign() <= 0 {
		return 0, t.Round(2).InexactFloat64()
	}
	d := t.Mul(r).Div(hundred).Round(2)
	return d.InexactFloat64(), t.Sub(d).Round(2).InexactFloat64()
}

// Sum adds amounts in decimal space and rounds the result to cents.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		if d, ok := toDecimal(v); ok {
			total = total.Add(d)
		}
	}
	return total.Round(2).InexactFloat64()
}

// Multiply returns round(unit * qty).
func Multiply(unit float64, qty int) float64 {
	u, ok := toDecimal(unit)
	if !ok {
		return 0
	}
	return u.Mul(decimal.NewFromInt(int64(qty))).Round(2).InexactFloat64()
}

func toDecimal(x any) (decimal.Decimal, bool) {
	switch v := x.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, false
		}
		return *v, true
	case float64:
		return fromFloat(v)
	case *float64:
		if v == nil {
			return decimal.Zero, false
		}
		return fromFloat(*v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint:
		return fromUint(uint64(v)), true
	case uint32:
		return decimal.NewFromInt(int64(v)), true
	case uint64:
		return fromUint(v), true
	case json.Number:
		return fromString(string(v))
	case string:
		return fromString(v)
	default:
		return decimal.Zero, false
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func fromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
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
