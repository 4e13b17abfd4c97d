package copytrade

import (
	"time"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

// Side is the order side as reported by Hyperliquid: A = ask (sell), B = bid (buy).
type Side string

const (
	SideSell Side = "A"
	SideBuy  Side = "B"
)

// IsBuy reports whether the side buys.
func (s Side) IsBuy() bool { return s == SideBuy }

// PositionSide is the side of the position this order opens, or closes.
// A buy closes a short; a sell closes a long.
func (s Side) PositionSide() exchange.PositionSide {
	if s == SideBuy {
		return exchange.PositionShort
	}
	return exchange.PositionLong
}

// Direction tags carried by userFills.
const (
	DirOpenLong   = "Open Long"
	DirOpenShort  = "Open Short"
	DirCloseLong  = "Close Long"
	DirCloseShort = "Close Short"
)

// Action is the semantic meaning of a fill for the mirrored account.
type Action string

const (
	ActionOpen   Action = "open"
	ActionReduce Action = "reduce"
	ActionClose  Action = "close"
)

// OrderType is always market for mirrored trades.
type OrderType string

const (
	OrderMarket OrderType = "Market"
	OrderLimit  OrderType = "Limit"
)

// FillEvent is one execution reported for the observed account.
type FillEvent struct {
	Coin          string `json:"coin"`
	Px            string `json:"px"`
	Sz            string `json:"sz"`
	Side          Side   `json:"side"`
	Time          int64  `json:"time"`
	StartPosition string `json:"startPosition"`
	Dir           string `json:"dir"`
	ClosedPnl     string `json:"closedPnl"`
	Hash          string `json:"hash"`
	Oid           int64  `json:"oid"`
	Crossed       bool   `json:"crossed"`
	Fee           string `json:"fee"`
}

// CopyTradeParams is the order intent for the controlled account.
type CopyTradeParams struct {
	Coin       string    `json:"coin"`
	Side       Side      `json:"side"`
	Size       string    `json:"size"`
	OrderType  OrderType `json:"orderType"`
	ReduceOnly bool      `json:"reduceOnly"`
	Leverage   int       `json:"leverage"`
}

// TradeResult is the terminal outcome of one mirroring attempt.
type TradeResult struct {
	Success bool            `json:"success"`
	OrderID string          `json:"orderId,omitempty"`
	Error   string          `json:"error,omitempty"`
	Params  CopyTradeParams `json:"params"`
}

// TradeRecord is what gets written to the audit trail for each attempt.
type TradeRecord struct {
	Fill       FillEvent   `json:"fill"`
	Action     Action      `json:"action"`
	Result     TradeResult `json:"result"`
	Price      float64     `json:"price"`
	OurEquity  float64     `json:"ourEquity"`
	DryRun     bool        `json:"dryRun"`
	RecordedAt time.Time   `json:"recordedAt"`
}
