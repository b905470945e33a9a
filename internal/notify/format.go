package notify

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Event types accepted by Notifier.Notify and the notify.events filter.
const (
	EventSignal = "signal"
	EventTrade  = "trade"
	EventError  = "error"
	EventStatus = "status"
)

var usd = message.NewPrinter(language.English)

// FormatUSD renders x as "$1,234.56".
func FormatUSD(x float64) string {
	return usd.Sprintf("$%.2f", x)
}

// FormatSignal returns the title and body announcing sig.
func FormatSignal(sig domain.Signal) (title, body string) {
	title = "Arb Signal " + sig.Symbol
	body = fmt.Sprintf("Buy %s @ %.6f\nSell %s @ %.6f\nNet: %.2f bps",
		sig.BuyVenue, sig.BuyPrice, sig.SellVenue, sig.SellPrice, sig.NetSpreadBps)
	return title, body
}

// FormatTrade returns the title and body reporting an execution.
func FormatTrade(res domain.TradeResult) (title, body string) {
	var b strings.Builder
	if res.OK() {
		title = "Executed " + res.Symbol
		fmt.Fprintf(&b, "Executed: %s %s qty %g\n", res.Mode, res.Symbol, res.Quantity)
		fmt.Fprintf(&b, "Buy %s @ %.6f / Sell %s @ %.6f\n", res.BuyVenue, res.BuyPrice, res.SellVenue, res.SellPrice)
		if res.Mode == domain.TradeModePaper {
			fmt.Fprintf(&b, "Est. PnL: %s", FormatUSD(res.EstPnL))
		} else {
			fmt.Fprintf(&b, "Orders: %s / %s", orderID(res.BuyOrder), orderID(res.SellOrder))
		}
		return title, b.String()
	}

	title = "Execution failed " + res.Symbol
	fmt.Fprintf(&b, "Executed: error %s\n%s", res.ErrorKind, res.Detail)
	if res.Partial() {
		fmt.Fprintf(&b, "\nBuy order %s on %s is open without its sell leg", orderID(res.BuyOrder), res.BuyVenue)
	}
	if len(res.Balances) > 0 {
		fmt.Fprintf(&b, "\nquote_free=%g base_free=%g", res.Balances["quote_free"], res.Balances["base_free"])
	}
	return title, b.String()
}

// FormatStatus renders the runtime settings as the status reply.
func FormatStatus(s domain.Settings) string {
	return fmt.Sprintf("Running: %t\nMode: %s\nSymbols: %s\nMin spread: %g bps\nSlippage: %g bps\nPoll: %gs\nPaper notional: %s",
		s.Running,
		s.Mode,
		strings.Join(s.Symbols, ", "),
		s.MinSpreadBps,
		s.SlippageBps,
		s.PollInterval.Seconds(),
		FormatUSD(s.PaperNotionalUSD),
	)
}

func orderID(o *domain.OrderConfirmation) string {
	if o == nil {
		return "-"
	}
	return o.OrderID
}
