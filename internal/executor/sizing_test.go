package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeFromNotional_NoLotRules(t *testing.T) {
	for _, price := range []float64{50, 0.0731, 64123.37, 1e-6, 3} {
		qty := SizeFromNotional(200, price, 0, 0)
		assert.InDelta(t, 200, qty*price, 1e-9, "price=%v", price)
	}
}

func TestSizeFromNotional_NonPositivePrice(t *testing.T) {
	assert.Zero(t, SizeFromNotional(200, 0, 0, 0))
	assert.Zero(t, SizeFromNotional(200, -5, 0, 0))
}

func TestRoundQty(t *testing.T) {
	cases := []struct {
		name           string
		qty, min, step float64
		want           float64
	}{
		{"no rules", 1.23456, 0, 0, 1.23456},
		{"floor to step", 1.23456, 0, 0.01, 1.23},
		{"exact multiple", 0.3, 0, 0.1, 0.3},
		{"below min", 0.004, 0.01, 0.001, 0},
		{"at min", 0.01, 0.01, 0.001, 0.01},
		{"zero qty", 0, 0, 0.1, 0},
		{"negative qty", -1, 0, 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.InDelta(t, c.want, RoundQty(c.qty, c.min, c.step), 1e-12)
		})
	}
}

func TestSizeFromNotional_WithStep(t *testing.T) {
	qty := SizeFromNotional(200, 64000, 0.0001, 0.0001)
	assert.InDelta(t, 0.0031, qty, 1e-12)
	assert.LessOrEqual(t, qty*64000, 200.0)
}
