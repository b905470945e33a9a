package domain

import (
	"slices"
	"time"
)

// Settings is the operator-tunable part of the configuration. The scan loop
// reads it as a snapshot at the start of every cycle.
type Settings struct {
	Symbols          []string      `json:"symbols"`
	MinSpreadBps     float64       `json:"min_spread_bps"`
	SlippageBps      float64       `json:"slippage_bps"`
	Mode             TradeMode     `json:"mode"`
	PaperNotionalUSD float64       `json:"paper_notional_usd"`
	PollInterval     time.Duration `json:"poll_interval"`
	Running          bool          `json:"running"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Clone returns a deep copy so callers can't alias the symbol slice.
func (s Settings) Clone() Settings {
	c := s
	c.Symbols = slices.Clone(s.Symbols)
	return c
}
