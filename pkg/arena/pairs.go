package arena

import (
	"context"
	"fmt"
	"strings"
)

const pairsKey = "pairs"

// TradingPair describes a tradable perp market.
type TradingPair struct {
	Provider       string  `json:"provider"`
	Dex            string  `json:"dex"`
	Symbol         string  `json:"symbol"`
	BaseAssetID    int     `json:"baseAssetId"`
	SizePrecision  int32   `json:"sizePrecision"`
	PricePrecision int32   `json:"pricePrecision"`
	MaxLeverage    float64 `json:"maxLeverage"`
	IsOnlyIsolated bool    `json:"isOnlyIsolated"`
}

type tradingPairsResponse struct {
	Pairs []TradingPair `json:"pairs"`
}

// TradingPairs returns every market, served from the TTL cache when fresh.
func (c *Client) TradingPairs(ctx context.Context) ([]TradingPair, error) {
	index, err := c.pairIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TradingPair, 0, len(index))
	for _, pair := range index {
		out = append(out, pair)
	}
	return out, nil
}

// Pair looks up one market by symbol, e.g. "BTC" or "xyz:TRUMP".
func (c *Client) Pair(ctx context.Context, symbol string) (TradingPair, error) {
	index, err := c.pairIndex(ctx)
	if err != nil {
		return TradingPair{}, err
	}
	pair, ok := index[pairKey(symbol)]
	if !ok {
		return TradingPair{}, fmt.Errorf("arena: trading pair not found: %q", symbol)
	}
	return pair, nil
}

// InvalidatePairs drops the cached market list.
func (c *Client) InvalidatePairs() {
	c.pairs.Del(pairsKey)
}

func (c *Client) pairIndex(ctx context.Context) (map[string]TradingPair, error) {
	v, err := c.pairs.Take(pairsKey, func() (any, error) {
		var resp tradingPairsResponse
		if err := c.get(ctx, "/agents/perp/trading-pairs", &resp); err != nil {
			return nil, err
		}
		index := make(map[string]TradingPair, len(resp.Pairs))
		for _, pair := range resp.Pairs {
			index[pairKey(pair.Symbol)] = pair
		}
		return index, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]TradingPair), nil
}

func pairKey(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
