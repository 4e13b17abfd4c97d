package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/copytrade"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

// TradeMessage renders the feed post for a successful trade, or "" when
// there is nothing to announce.
func TradeMessage(fill copytrade.FillEvent, params copytrade.CopyTradeParams, result copytrade.TradeResult) string {
	if !result.Success {
		return ""
	}
	price := parseDecimal(fill.Px)
	size := parseDecimal(params.Size)
	notional := price.Mul(size)
	header := fmt.Sprintf("%s • %s @ $%s", fill.Coin, params.Size, price.StringFixed(4))

	if !params.ReduceOnly {
		side := "Short"
		if params.Side == copytrade.SideBuy {
			side = "Long"
		}
		orderType := "Limit"
		if params.OrderType == copytrade.OrderMarket {
			orderType = "Market"
		}
		return strings.Join([]string{
			"🟢 Opened " + side,
			header,
			fmt.Sprintf("Notional: $%s • %dx leverage", notional.StringFixed(2), params.Leverage),
			"Type: " + orderType,
		}, "\n")
	}

	// a sell closes a long, a buy closes a short
	side := "Short"
	if params.Side.PositionSide() == exchange.PositionLong {
		side = "Long"
	}
	pnl := parseDecimal(fill.ClosedPnl)
	emoji, sign := "🟢", "+"
	if pnl.IsNegative() {
		emoji, sign = "🔴", ""
	}
	return strings.Join([]string{
		emoji + " Closed " + side,
		header,
		"Notional: $" + notional.StringFixed(2),
		fmt.Sprintf("PnL: %s$%s", sign, pnl.StringFixed(2)),
	}, "\n")
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
