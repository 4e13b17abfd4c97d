package arena

import (
	"github.com/shopspring/decimal"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

const priceSigFigs = 5

// RoundSize floors size to the pair's size precision.
func RoundSize(size float64, pair TradingPair) float64 {
	return exchange.FloorToDecimals(size, pair.SizePrecision).InexactFloat64()
}

// RoundPrice keeps five significant figures, then snaps to the pair's tick.
func RoundPrice(price float64, pair TradingPair) float64 {
	rounded := exchange.RoundSignificant(price, priceSigFigs)
	return decimal.NewFromFloat(rounded).Round(pair.PricePrecision).InexactFloat64()
}
