package sim

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

func decodeFill(t *testing.T, raw json.RawMessage) *exchange.FilledOrder {
	t.Helper()
	var resp exchange.OrderResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Response.Data.Statuses, 1)
	return resp.Response.Data.Statuses[0].Filled
}

func parseDecimal(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return v
}

func TestProvider_OpenAndClose(t *testing.T) {
	p := New(1000)
	ctx := context.Background()

	require.NoError(t, p.SetLeverage(ctx, "btc", 10))
	raw, err := p.PlaceMarketOrder(ctx, exchange.MarketOrder{Coin: "BTC", IsBuy: true, Size: "0.01", Price: 50000})
	require.NoError(t, err)
	fill := decodeFill(t, raw)
	require.NotNil(t, fill)
	assert.Equal(t, int64(1), fill.Oid)
	assert.Equal(t, "0.01", fill.TotalSz)

	state, err := p.GetAccountState(ctx, "0xanything")
	require.NoError(t, err)
	positions := state.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "BTC", positions[0].Coin)
	assert.Equal(t, 10, positions[0].Leverage.Value)
	assert.InDelta(t, 50, parseDecimal(t, positions[0].MarginUsed), 1e-9)

	require.NoError(t, p.SetMarkPrice("BTC", 51000))
	raw, err = p.ClosePosition(ctx, exchange.CloseRequest{Coin: "BTC", PositionSide: exchange.PositionLong, Size: "0.01", Price: 51000, Percent: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(2), decodeFill(t, raw).Oid)

	state, err = p.GetAccountState(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, state.Positions())
	equity, err := state.Equity().Value()
	require.NoError(t, err)
	assert.InDelta(t, 1010, equity, 1e-9)
}

func TestProvider_ReduceOnlyClamp(t *testing.T) {
	p := New(0)
	ctx := context.Background()

	_, err := p.PlaceMarketOrder(ctx, exchange.MarketOrder{Coin: "ETH", IsBuy: false, Size: "2", Price: 3000})
	require.NoError(t, err)

	raw, err := p.ClosePosition(ctx, exchange.CloseRequest{Coin: "ETH", Size: "5", Price: 2900, Percent: 100})
	require.NoError(t, err)
	assert.Equal(t, "2", decodeFill(t, raw).TotalSz)

	state, err := p.GetAccountState(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, state.Positions())
	equity, _ := state.Equity().Value()
	assert.InDelta(t, defaultInitialEquity+200, equity, 1e-9)
}

func TestProvider_PartialClose(t *testing.T) {
	p := New(1000)
	ctx := context.Background()

	_, err := p.PlaceMarketOrder(ctx, exchange.MarketOrder{Coin: "SOL", IsBuy: true, Size: "4", Price: 100})
	require.NoError(t, err)
	_, err = p.ClosePosition(ctx, exchange.CloseRequest{Coin: "SOL", Size: "4", Price: 100, Percent: 25})
	require.NoError(t, err)

	state, err := p.GetAccountState(ctx, "")
	require.NoError(t, err)
	require.Len(t, state.Positions(), 1)
	assert.InDelta(t, 3, state.Positions()[0].Size(), 1e-9)
}

func TestProvider_CloseWithoutPosition(t *testing.T) {
	p := New(1000)
	raw, err := p.ClosePosition(context.Background(), exchange.CloseRequest{Coin: "DOGE", Size: "1", Price: 0.1, Percent: 100})
	require.NoError(t, err)
	assert.Nil(t, decodeFill(t, raw))
}

func TestProvider_Errors(t *testing.T) {
	p := New(1000)
	ctx := context.Background()

	_, err := p.PlaceMarketOrder(ctx, exchange.MarketOrder{Coin: "BTC", IsBuy: true, Size: "0", Price: 1})
	assert.Error(t, err)
	_, err = p.PlaceMarketOrder(ctx, exchange.MarketOrder{Coin: "BTC", IsBuy: true, Size: "1"})
	assert.Error(t, err)
	assert.Error(t, p.SetLeverage(ctx, "BTC", 0))
	assert.Error(t, p.SetMarkPrice("BTC", -1))
	_, err = p.GetMarketPrice(ctx, "UNKNOWN")
	assert.Error(t, err)
}

func TestProvider_ConcurrentAccess(t *testing.T) {
	p := New(1e6)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.PlaceMarketOrder(ctx, exchange.MarketOrder{Coin: "BTC", IsBuy: true, Size: "0.5", Price: 100})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := p.GetAccountState(ctx, "")
	require.NoError(t, err)
	require.Len(t, state.Positions(), 1)
	assert.InDelta(t, 10, state.Positions()[0].Size(), 1e-9)
	price, err := p.GetMarketPrice(ctx, "btc")
	require.NoError(t, err)
	assert.Equal(t, 100.0, price)
}

func TestProviderRegistered(t *testing.T) {
	backend, err := exchange.GetProvider("sim", &exchange.ProviderConfig{Equity: 500})
	require.NoError(t, err)
	p, ok := backend.(*Provider)
	require.True(t, ok)
	state, err := p.GetAccountState(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "500", state.MarginSummary.AccountValue)
}
