package executor

import (
	"github.com/shopspring/decimal"
)

// SizeFromNotional converts a quote-currency notional into a base quantity at
// price. It returns 0 when price is not positive. minQty and step are venue
// lot rules; pass 0 to disable either.
func SizeFromNotional(notional, price, minQty, step float64) float64 {
	if price <= 0 {
		return 0
	}
	return RoundQty(notional/price, minQty, step)
}

// RoundQty floors qty to a multiple of step and returns 0 if the result is
// below minQty. The floor is done in decimal so that e.g. 0.3/0.1 lands on 3
// steps rather than 2.9999.
func RoundQty(qty, minQty, step float64) float64 {
	if qty <= 0 {
		return 0
	}
	if step > 0 {
		s := decimal.NewFromFloat(step)
		qty = decimal.NewFromFloat(qty).Div(s).Floor().Mul(s).InexactFloat64()
	}
	if minQty > 0 && qty < minQty {
		return 0
	}
	return qty
}
