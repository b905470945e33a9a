package arbitrage

// SentinelSpreadBps is assigned to a pair whose effective buy price is not
// positive. It sits below any practical threshold.
const SentinelSpreadBps = -1e9

const bpsPerUnit = 10_000.0

// BpsToRatio converts basis points to a plain ratio.
func BpsToRatio(bps float64) float64 {
	return bps / bpsPerUnit
}

// EffectivePrices applies slippage to each leg and then the taker fee of the
// venue on that leg, multiplicatively.
func EffectivePrices(buyPrice, sellPrice, buyFee, sellFee, slippageBps float64) (effBuy, effSell float64) {
	slip := BpsToRatio(slippageBps)
	buySlipped := buyPrice * (1 + slip)
	sellSlipped := sellPrice * (1 - slip)
	return buySlipped * (1 + buyFee), sellSlipped * (1 - sellFee)
}

// NetSpreadBps is the profit margin in basis points of buying at buyPrice on
// one venue and selling at sellPrice on another after fees and slippage.
func NetSpreadBps(buyPrice, sellPrice, buyFee, sellFee, slippageBps float64) float64 {
	effBuy, effSell := EffectivePrices(buyPrice, sellPrice, buyFee, sellFee, slippageBps)
	if effBuy <= 0 {
		return SentinelSpreadBps
	}
	return (effSell - effBuy) / effBuy * bpsPerUnit
}
