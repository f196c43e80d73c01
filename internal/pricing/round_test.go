package pricing

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundAmount(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"float artifact", 0.1 + 0.2, 0.3},
		{"half up on third decimal", 100.455, 100.46},
		{"classic 1.005", 1.005, 1.01},
		{"nil", nil, 0},
		{"empty string", "", 0},
		{"blank string", "   ", 0},
		{"non numeric string", "abc", 0},
		{"numeric string", " 12.345 ", 12.35},
		{"json number", json.Number("2.675"), 2.68},
		{"int", 7, 7},
		{"int64", int64(-3), -3},
		{"decimal", decimal.RequireFromString("9.999"), 10},
		{"NaN", math.NaN(), 0},
		{"Inf", math.Inf(1), 0},
		{"unsupported type", struct{}{}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RoundAmount(tc.in))
		})
	}
}

func TestRoundAmountIsIdempotent(t *testing.T) {
	for _, v := range []float64{0, 0.005, 1.115, 99.995, 135, 270.004, 1234.5678, 0.1 + 0.7} {
		once := RoundAmount(v)
		assert.Equal(t, once, RoundAmount(once), "value %v", v)
	}
}

func TestApplyDiscount(t *testing.T) {
	discount, final := ApplyDiscount(150, 10)
	assert.Equal(t, 15.0, discount)
	assert.Equal(t, 135.0, final)

	discount, final = ApplyDiscount(90, 15)
	assert.Equal(t, 13.5, discount)
	assert.Equal(t, 76.5, final)

	discount, final = ApplyDiscount(33.33, 15)
	assert.Equal(t, 5.0, discount)
	assert.Equal(t, 28.33, final)

	discount, final = ApplyDiscount(100, 0)
	assert.Zero(t, discount)
	assert.Equal(t, 100.0, final)

	discount, final = ApplyDiscount(math.NaN(), 10)
	assert.Zero(t, discount)
	assert.Zero(t, final)
}

func TestSumAndMultiply(t *testing.T) {
	assert.Equal(t, 0.3, Sum(0.1, 0.2))
	assert.Equal(t, 0.0, Sum())
	assert.Equal(t, 0.6, Multiply(0.2, 3))
	assert.Equal(t, 0.0, Multiply(math.Inf(-1), 2))
}
