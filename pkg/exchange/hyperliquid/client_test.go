package hyperliquid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

const (
	testUser = "0x00000000000000000000000000000000000000a1"

	metaFixture = `[
		{"universe":[
			{"name":"BTC","szDecimals":5,"maxLeverage":40},
			{"name":"ETH","szDecimals":4,"maxLeverage":25},
			{"name":"OLD","szDecimals":2,"maxLeverage":3,"isDelisted":true}
		]},
		[{"markPx":"100000","midPx":"100001"},{"markPx":"3000","midPx":"3000.5"},{"markPx":"1","midPx":"1"}]
	]`

	stateFixture = `{
		"marginSummary":{"accountValue":"1234.5","totalMarginUsed":"100","totalNtlPos":"500","totalRawUsd":"734.5"},
		"crossMarginSummary":{"accountValue":"1234.5","totalMarginUsed":"100","totalNtlPos":"500","totalRawUsd":"734.5"},
		"crossMaintenanceMarginUsed":"10",
		"withdrawable":"1000",
		"assetPositions":[{"type":"oneWay","position":{"coin":"ETH","szi":"-0.5","entryPx":"3000","positionValue":"1500","leverage":{"type":"cross","value":3},"marginUsed":"500","returnOnEquity":"0","unrealizedPnl":"0"}}],
		"time":1700000000000
	}`
)

type fakeVenue struct {
	t        *testing.T
	mu       sync.Mutex
	infoHits map[string]int
	actions  []map[string]any
	exchange string
}

func newFakeVenue(t *testing.T) (*fakeVenue, *httptest.Server) {
	v := &fakeVenue{
		t:        t,
		infoHits: make(map[string]int),
		exchange: `{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"totalSz":"0.01","avgPx":"3000","oid":77}}]}}}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(v.serve))
	t.Cleanup(srv.Close)
	return v, srv
}

func (v *fakeVenue) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	require.NoError(v.t, err)
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/info":
		var req infoRequest
		require.NoError(v.t, json.Unmarshal(body, &req))
		v.mu.Lock()
		v.infoHits[req.Type]++
		v.mu.Unlock()
		switch req.Type {
		case "metaAndAssetCtxs":
			_, _ = io.WriteString(w, metaFixture)
		case "allMids":
			_, _ = io.WriteString(w, `{"BTC":"100001","ETH":"3000.5"}`)
		case "clearinghouseState":
			_, _ = io.WriteString(w, stateFixture)
		case "frontendOpenOrders":
			_, _ = io.WriteString(w, `[{"coin":"BTC","side":"B","limitPx":"90000","sz":"0.1","oid":5,"timestamp":1,"origSz":"0.1","reduceOnly":false}]`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	case "/exchange":
		var req struct {
			Action    map[string]any `json:"action"`
			Nonce     int64          `json:"nonce"`
			Signature Signature      `json:"signature"`
		}
		require.NoError(v.t, json.Unmarshal(body, &req))
		assert.Positive(v.t, req.Nonce)
		assert.NotEmpty(v.t, req.Signature.R)
		v.mu.Lock()
		v.actions = append(v.actions, req.Action)
		resp := v.exchange
		v.mu.Unlock()
		_, _ = io.WriteString(w, resp)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(testPrivateKey, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return client
}

func TestInfoClient_AccountStateAndOrders(t *testing.T) {
	_, srv := newFakeVenue(t)
	info := NewInfoClient(WithBaseURL(srv.URL))
	ctx := context.Background()

	state, err := info.GetAccountState(ctx, testUser)
	require.NoError(t, err)
	equity, err := state.Equity().Value()
	require.NoError(t, err)
	assert.Equal(t, 1234.5, equity)
	require.Len(t, state.Positions(), 1)
	assert.Equal(t, -0.5, state.Positions()[0].Size())
	assert.Equal(t, 3, state.Positions()[0].Leverage.Value)

	orders, err := info.GetOpenOrders(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(5), orders[0].Oid)

	_, err = info.GetAccountState(ctx, "nope")
	require.Error(t, err)
}

func TestInfoClient_MarketPrice(t *testing.T) {
	_, srv := newFakeVenue(t)
	info := NewInfoClient(WithBaseURL(srv.URL))

	px, err := info.GetMarketPrice(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, 3000.5, px)

	_, err = info.GetMarketPrice(context.Background(), "DOGE")
	require.Error(t, err)
}

func TestInfoClient_AssetCache(t *testing.T) {
	venue, srv := newFakeVenue(t)
	now := time.Unix(1700000000, 0)
	info := NewInfoClient(
		WithBaseURL(srv.URL),
		WithAssetCacheTTL(time.Minute),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	eth, err := info.Asset(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, 1, eth.Index)
	assert.Equal(t, 4, eth.SzDecimals)
	assert.Equal(t, "3000.5", eth.MidPx)

	_, err = info.Asset(ctx, "btc")
	require.NoError(t, err)
	assert.Equal(t, 1, venue.infoHits["metaAndAssetCtxs"])

	now = now.Add(2 * time.Minute)
	_, err = info.Asset(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 2, venue.infoHits["metaAndAssetCtxs"])

	_, err = info.Asset(ctx, "DOGE")
	require.Error(t, err)
}

func TestInfoClient_HTTPErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, retryable: true},
		{name: "server error", status: http.StatusBadGateway, retryable: true},
		{name: "bad request", status: http.StatusBadRequest, retryable: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":"boom"}`)
			}))
			defer srv.Close()

			_, err := NewInfoClient(WithBaseURL(srv.URL)).GetMarketPrice(context.Background(), "BTC")
			require.Error(t, err)
			assert.Equal(t, tt.retryable, errkit.IsRetryable(err))
			assert.Equal(t, tt.status, errkit.ContextOf(err)["status"])
		})
	}
}

func TestClient_PlaceMarketOrder(t *testing.T) {
	venue, srv := newFakeVenue(t)
	client := newTestClient(t, srv)

	raw, err := client.PlaceMarketOrder(context.Background(), exchange.MarketOrder{
		Coin: "ETH", IsBuy: true, Size: "0.123456", Price: 3000, Leverage: 3,
	})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"oid":77`)

	require.Len(t, venue.actions, 1)
	action := venue.actions[0]
	assert.Equal(t, "order", action["type"])
	assert.Equal(t, "na", action["grouping"])
	orders := action["orders"].([]any)
	require.Len(t, orders, 1)
	wire := orders[0].(map[string]any)
	assert.Equal(t, float64(1), wire["a"])
	assert.Equal(t, true, wire["b"])
	assert.Equal(t, "3150", wire["p"])
	assert.Equal(t, "0.1234", wire["s"])
	assert.Equal(t, false, wire["r"])
	assert.Equal(t, map[string]any{"limit": map[string]any{"tif": "Ioc"}}, wire["t"])
}

func TestClient_ClosePositionIsReduceOnly(t *testing.T) {
	venue, srv := newFakeVenue(t)
	client := newTestClient(t, srv)

	_, err := client.ClosePosition(context.Background(), exchange.CloseRequest{
		Coin: "ETH", PositionSide: exchange.PositionLong, Size: "0.5", Price: 3000, Percent: 100,
	})
	require.NoError(t, err)

	wire := venue.actions[0]["orders"].([]any)[0].(map[string]any)
	assert.Equal(t, false, wire["b"])
	assert.Equal(t, true, wire["r"])
	assert.Equal(t, "2850", wire["p"])
	assert.Equal(t, "0.5", wire["s"])
}

func TestClient_SetLeverage(t *testing.T) {
	venue, srv := newFakeVenue(t)
	venue.exchange = `{"status":"ok","response":{"type":"default"}}`
	client := newTestClient(t, srv)

	require.NoError(t, client.SetLeverage(context.Background(), "BTC", 10))
	require.Len(t, venue.actions, 1)
	assert.Equal(t, map[string]any{
		"type": "updateLeverage", "asset": float64(0), "isCross": true, "leverage": float64(10),
	}, venue.actions[0])

	require.Error(t, client.SetLeverage(context.Background(), "BTC", 0))
}

func TestClient_Rejections(t *testing.T) {
	t.Run("status err", func(t *testing.T) {
		venue, srv := newFakeVenue(t)
		venue.exchange = `{"status":"err","response":"User or API Wallet does not exist."}`
		client := newTestClient(t, srv)

		_, err := client.PlaceMarketOrder(context.Background(), exchange.MarketOrder{Coin: "BTC", IsBuy: true, Size: "0.01", Price: 100000})
		require.Error(t, err)
		assert.True(t, errkit.Is(err, errkit.CodeOrderRejected))
		assert.False(t, errkit.IsRetryable(err))
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("per order error", func(t *testing.T) {
		venue, srv := newFakeVenue(t)
		venue.exchange = `{"status":"ok","response":{"type":"order","data":{"statuses":[{"error":"Insufficient margin"}]}}}`
		client := newTestClient(t, srv)

		_, err := client.PlaceMarketOrder(context.Background(), exchange.MarketOrder{Coin: "BTC", IsBuy: true, Size: "0.01", Price: 100000})
		require.Error(t, err)
		assert.Equal(t, errkit.KindTrading, errkit.KindOf(err))
	})

	t.Run("delisted asset", func(t *testing.T) {
		_, srv := newFakeVenue(t)
		client := newTestClient(t, srv)
		_, err := client.PlaceMarketOrder(context.Background(), exchange.MarketOrder{Coin: "OLD", IsBuy: true, Size: "1", Price: 1})
		require.Error(t, err)
	})

	t.Run("size rounds to zero", func(t *testing.T) {
		_, srv := newFakeVenue(t)
		client := newTestClient(t, srv)
		_, err := client.PlaceMarketOrder(context.Background(), exchange.MarketOrder{Coin: "ETH", IsBuy: true, Size: "0.00001", Price: 3000})
		require.Error(t, err)
		assert.Equal(t, errkit.KindValidation, errkit.KindOf(err))
	})
}

func TestClient_NoncesAreMonotonic(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	client, err := NewClient(testPrivateKey, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	first := client.nextNonce()
	second := client.nextNonce()
	third := client.nextNonce()
	assert.Equal(t, int64(1700000000000), first)
	assert.Equal(t, first+1, second)
	assert.Equal(t, second+1, third)
}

func TestProviderRegistration(t *testing.T) {
	cfg := &exchange.Config{Providers: map[string]*exchange.ProviderConfig{
		"hl": {Type: "hyperliquid"},
	}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private_key")

	cfg.Providers["hl"].PrivateKey = testPrivateKey
	cfg.Providers["hl"].Testnet = true
	require.NoError(t, cfg.Validate())
	backend, err := exchange.GetProvider("hyperliquid", cfg.Providers["hl"])
	require.NoError(t, err)
	client, ok := backend.(*Client)
	require.True(t, ok)
	assert.False(t, client.mainnet)
	assert.Equal(t, testnetAPIURL+"/exchange", client.exchangeURL)
}
