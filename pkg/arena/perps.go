package arena

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

var _ exchange.Backend = (*Client)(nil)

type placeOrderRequest struct {
	Provider string       `json:"provider"`
	Orders   []orderParam `json:"orders"`
}

type orderParam struct {
	Provider             string  `json:"provider"`
	Symbol               string  `json:"symbol"`
	Direction            string  `json:"direction"`
	OrderType            string  `json:"orderType"`
	LeverageType         string  `json:"leverageType"`
	Size                 float64 `json:"size"`
	MarginAmount         float64 `json:"marginAmount"`
	AssetID              string  `json:"assetId"`
	InitialMarginAssetID string  `json:"initialMarginAssetId"`
	Leverage             int     `json:"leverage"`
	Price                float64 `json:"price"`
}

type closePositionRequest struct {
	Provider     string  `json:"provider"`
	Symbol       string  `json:"symbol"`
	PositionSide string  `json:"positionSide"`
	Size         float64 `json:"size"`
	CurrentPrice float64 `json:"currentPrice"`
	ClosePercent float64 `json:"closePercent"`
}

type updateLeverageRequest struct {
	Provider     string `json:"provider"`
	Symbol       string `json:"symbol"`
	Leverage     int    `json:"leverage"`
	LeverageType string `json:"leverageType"`
}

// PlaceMarketOrder opens or adds to a cross-margin position.
func (c *Client) PlaceMarketOrder(ctx context.Context, order exchange.MarketOrder) (json.RawMessage, error) {
	pair, err := c.Pair(ctx, order.Coin)
	if err != nil {
		return nil, err
	}
	size, err := strconv.ParseFloat(order.Size, 64)
	if err != nil {
		return nil, fmt.Errorf("arena: invalid size %q: %w", order.Size, err)
	}
	direction := string(exchange.PositionShort)
	if order.IsBuy {
		direction = string(exchange.PositionLong)
	}
	leverage := order.Leverage
	if leverage < 1 {
		leverage = 1
	}

	body := placeOrderRequest{
		Provider: provider,
		Orders: []orderParam{{
			Provider:             provider,
			Symbol:               order.Coin,
			Direction:            direction,
			OrderType:            "market",
			LeverageType:         "cross",
			Size:                 RoundSize(size, pair),
			MarginAmount:         order.Margin,
			AssetID:              strconv.Itoa(pair.BaseAssetID),
			InitialMarginAssetID: "USDC",
			Leverage:             leverage,
			Price:                RoundPrice(exchange.ApplySlippage(order.Price, order.IsBuy, c.slippage), pair),
		}},
	}
	logx.WithContext(ctx).Debugf("arena: place %s %s size=%v price=%v", direction, order.Coin, body.Orders[0].Size, body.Orders[0].Price)

	var raw json.RawMessage
	if err := c.post(ctx, "/agents/perp/orders/place", body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ClosePosition closes Percent of the position on PositionSide.
func (c *Client) ClosePosition(ctx context.Context, req exchange.CloseRequest) (json.RawMessage, error) {
	size, err := strconv.ParseFloat(req.Size, 64)
	if err != nil {
		return nil, fmt.Errorf("arena: invalid size %q: %w", req.Size, err)
	}
	percent := req.Percent
	if percent <= 0 {
		percent = 100
	}
	body := closePositionRequest{
		Provider:     provider,
		Symbol:       req.Coin,
		PositionSide: string(req.PositionSide),
		Size:         size,
		CurrentPrice: req.Price,
		ClosePercent: percent,
	}
	var raw json.RawMessage
	if err := c.post(ctx, "/agents/perp/orders/close-position", body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SetLeverage sets cross leverage for a market.
func (c *Client) SetLeverage(ctx context.Context, coin string, leverage int) error {
	if leverage < 1 {
		return fmt.Errorf("arena: leverage must be at least 1, got %d", leverage)
	}
	return c.post(ctx, "/agents/perp/leverage/update", updateLeverageRequest{
		Provider:     provider,
		Symbol:       coin,
		Leverage:     leverage,
		LeverageType: "cross",
	}, nil)
}
