package exchange

import (
	"context"
	"encoding/json"
)

// Backend places and closes orders for the controlled account.
// Implementations return the raw venue payload; callers extract order ids.
type Backend interface {
	PlaceMarketOrder(ctx context.Context, order MarketOrder) (json.RawMessage, error)
	ClosePosition(ctx context.Context, req CloseRequest) (json.RawMessage, error)
	SetLeverage(ctx context.Context, coin string, leverage int) error
}

// MarketData answers read-only queries about any account.
type MarketData interface {
	GetAccountState(ctx context.Context, address string) (*AccountState, error)
	GetOpenOrders(ctx context.Context, address string) ([]OrderInfo, error)
	GetMarketPrice(ctx context.Context, coin string) (float64, error)
}

// MarketOrder is a market order intent expressed in venue-neutral terms.
type MarketOrder struct {
	Coin     string
	IsBuy    bool
	Size     string
	Price    float64 // reference price used for slippage and margin
	Leverage int
	Margin   float64 // collateral to post, notional / leverage
}

// CloseRequest closes (part of) an open position.
type CloseRequest struct {
	Coin         string
	PositionSide PositionSide
	Size         string
	Price        float64
	Percent      float64
}

// PositionSide names the side of an open position.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)
