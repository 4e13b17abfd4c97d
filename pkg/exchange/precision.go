package exchange

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// FormatDecimal renders v with at most places decimals and no trailing zeros.
func FormatDecimal(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return decimal.NewFromFloat(v).Round(places).String()
}

// FloorToDecimals truncates v towards negative infinity at places decimals.
func FloorToDecimals(v float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(v).RoundFloor(places)
}

// RoundSignificant keeps sig significant figures.
func RoundSignificant(v float64, sig int) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) || sig <= 0 {
		return v
	}
	out, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', sig, 64), 64)
	if err != nil {
		return v
	}
	return out
}

// ApplySlippage moves price against the taker by pct (0.05 = 5%).
func ApplySlippage(price float64, isBuy bool, pct float64) float64 {
	if isBuy {
		return price * (1 + pct)
	}
	return price * (1 - pct)
}
