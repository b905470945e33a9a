package arbitrage

import "strings"

// FeeSchedule maps venue ids to taker fee ratios (0.001 = 10 bps).
type FeeSchedule struct {
	taker    map[string]float64
	fallback float64
}

// NewFeeSchedule copies taker and uses fallback for venues it doesn't list.
func NewFeeSchedule(taker map[string]float64, fallback float64) FeeSchedule {
	m := make(map[string]float64, len(taker))
	for k, v := range taker {
		m[strings.ToLower(k)] = v
	}
	return FeeSchedule{taker: m, fallback: fallback}
}

// Taker returns the taker fee ratio for venue.
func (f FeeSchedule) Taker(venue string) float64 {
	if fee, ok := f.taker[strings.ToLower(venue)]; ok {
		return fee
	}
	return f.fallback
}
