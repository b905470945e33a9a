package arbitrage

import (
	"sort"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// EvalParams are the per-cycle thresholds taken from the settings snapshot.
type EvalParams struct {
	MinSpreadBps float64
	SlippageBps  float64
}

// Evaluator turns one symbol's quote set into signals. It holds no state
// beyond the fee schedule, so identical input always gives identical output.
type Evaluator struct {
	fees FeeSchedule
}

// NewEvaluator creates an Evaluator using fees for every venue lookup.
func NewEvaluator(fees FeeSchedule) *Evaluator {
	return &Evaluator{fees: fees}
}

// Evaluate checks every ordered venue pair (a, b), a != b, for buying at a's
// ask and selling at b's bid. Every pair whose net spread is at or above
// p.MinSpreadBps is returned; the result is not ranked. Pairs are visited in
// venue-name order so the output order is stable too.
func (e *Evaluator) Evaluate(symbol string, quotes map[string]domain.Quote, p EvalParams) []domain.Signal {
	venues := make([]string, 0, len(quotes))
	for v := range quotes {
		venues = append(venues, v)
	}
	sort.Strings(venues)

	var out []domain.Signal
	for _, a := range venues {
		for _, b := range venues {
			if a == b {
				continue
			}
			buy, sell := quotes[a], quotes[b]
			net := NetSpreadBps(buy.Ask, sell.Bid, e.fees.Taker(a), e.fees.Taker(b), p.SlippageBps)
			if net < p.MinSpreadBps {
				continue
			}
			detected := buy.Timestamp
			if sell.Timestamp.After(detected) {
				detected = sell.Timestamp
			}
			out = append(out, domain.Signal{
				Symbol:       symbol,
				BuyVenue:     a,
				SellVenue:    b,
				BuyPrice:     buy.Ask,
				SellPrice:    sell.Bid,
				NetSpreadBps: net,
				DetectedAt:   detected,
			})
		}
	}
	return out
}
