package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

// Client signs and submits exchange actions for one wallet. Read-only
// queries are served by the embedded InfoClient.
type Client struct {
	*InfoClient

	signer      Signer
	exchangeURL string
	mainnet     bool
	vault       string
	slippage    float64

	nonceMu   sync.Mutex
	lastNonce int64
}

var _ exchange.Backend = (*Client)(nil)
var _ exchange.MarketData = (*Client)(nil)

// NewClient builds a signing client from a hex private key.
func NewClient(privateKeyHex string, opts ...Option) (*Client, error) {
	signer, err := NewPrivateKeySigner(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return NewClientWithSigner(signer, opts...), nil
}

// NewClientWithSigner builds a client around an existing signer.
func NewClientWithSigner(signer Signer, opts ...Option) *Client {
	o := buildOptions(opts)
	return &Client{
		InfoClient:  newInfoClient(o),
		signer:      signer,
		exchangeURL: o.exchangeURL,
		mainnet:     !o.testnet,
		vault:       o.vault,
		slippage:    o.slippage,
	}
}

// Address is the lower-case wallet address of the signer.
func (c *Client) Address() string { return c.signer.Address() }

// PlaceMarketOrder submits an IOC limit order at the reference price moved
// by the configured slippage.
func (c *Client) PlaceMarketOrder(ctx context.Context, order exchange.MarketOrder) (json.RawMessage, error) {
	asset, err := c.Asset(ctx, order.Coin)
	if err != nil {
		return nil, err
	}
	wire, err := c.marketWire(asset, order.IsBuy, order.Size, order.Price, false)
	if err != nil {
		return nil, err
	}
	return c.submitOrder(ctx, wire)
}

// ClosePosition sends a reduce-only IOC against the open position.
func (c *Client) ClosePosition(ctx context.Context, req exchange.CloseRequest) (json.RawMessage, error) {
	asset, err := c.Asset(ctx, req.Coin)
	if err != nil {
		return nil, err
	}
	size := req.Size
	if req.Percent > 0 && req.Percent < 100 {
		sz, perr := decimal.NewFromString(size)
		if perr != nil {
			return nil, fmt.Errorf("hyperliquid: invalid close size %q: %w", size, perr)
		}
		size = sz.Mul(decimal.NewFromFloat(req.Percent / 100)).String()
	}
	// closing a long sells, closing a short buys
	isBuy := req.PositionSide == exchange.PositionShort
	wire, err := c.marketWire(asset, isBuy, size, req.Price, true)
	if err != nil {
		return nil, err
	}
	return c.submitOrder(ctx, wire)
}

// SetLeverage switches coin to cross margin at leverage.
func (c *Client) SetLeverage(ctx context.Context, coin string, leverage int) error {
	if leverage <= 0 {
		return fmt.Errorf("hyperliquid: leverage must be positive, got %d", leverage)
	}
	asset, err := c.Asset(ctx, coin)
	if err != nil {
		return err
	}
	action := updateLeverageAction{
		Type:     "updateLeverage",
		Asset:    asset.Index,
		IsCross:  true,
		Leverage: leverage,
	}
	_, err = c.submit(ctx, action)
	return err
}

func (c *Client) marketWire(asset AssetInfo, isBuy bool, size string, refPrice float64, reduceOnly bool) (orderWire, error) {
	if asset.IsDelisted {
		return orderWire{}, errkit.Trading(errkit.CodeOrderRejected, "hyperliquid: %s is delisted", asset.Name)
	}
	if refPrice <= 0 {
		mid, err := strconv.ParseFloat(asset.MidPx, 64)
		if err != nil || mid <= 0 {
			return orderWire{}, fmt.Errorf("hyperliquid: no reference price for %s", asset.Name)
		}
		refPrice = mid
	}
	sz, err := decimal.NewFromString(size)
	if err != nil {
		return orderWire{}, fmt.Errorf("hyperliquid: invalid size %q: %w", size, err)
	}
	sz = sz.RoundFloor(int32(asset.SzDecimals))
	if !sz.IsPositive() {
		return orderWire{}, errkit.Validation(errkit.CodeInvalidSize, "hyperliquid: size %s rounds to zero for %s", size, asset.Name)
	}

	px := exchange.RoundSignificant(exchange.ApplySlippage(refPrice, isBuy, c.slippage), priceSigFigs)
	pxDecimals := maxPerpDecimals - asset.SzDecimals
	if pxDecimals < 0 {
		pxDecimals = 0
	}
	return orderWire{
		Asset:      asset.Index,
		IsBuy:      isBuy,
		LimitPx:    exchange.FormatDecimal(px, int32(pxDecimals)),
		Sz:         sz.String(),
		ReduceOnly: reduceOnly,
		OrderType:  orderTypeWire{Limit: limitWire{TIF: "Ioc"}},
	}, nil
}

func (c *Client) submitOrder(ctx context.Context, wire orderWire) (json.RawMessage, error) {
	action := orderAction{
		Type:     "order",
		Orders:   []orderWire{wire},
		Grouping: "na",
	}
	raw, err := c.submit(ctx, action)
	if err != nil {
		return nil, err
	}
	var resp exchange.OrderResponse
	if err := json.Unmarshal(raw, &resp); err == nil {
		for _, st := range resp.Response.Data.Statuses {
			if st.Error != "" {
				return raw, errkit.Trading(errkit.CodeOrderRejected, "hyperliquid: order rejected: %s", st.Error)
			}
		}
	}
	return raw, nil
}

// submit signs action and posts it, returning the full response body.
func (c *Client) submit(ctx context.Context, action any) (json.RawMessage, error) {
	nonce := c.nextNonce()
	req, err := signL1Action(c.signer, action, nonce, c.vault, c.mainnet)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: encode exchange request: %w", err)
	}
	body, err := postJSON(ctx, c.httpClient, c.exchangeURL, payload)
	if err != nil {
		return nil, wrapRequestError(err, "exchange")
	}

	var env exchangeEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("hyperliquid: decode exchange response: %w", err)
	}
	if env.Status != "ok" {
		var msg string
		if err := json.Unmarshal(env.Response, &msg); err != nil {
			msg = string(env.Response)
		}
		logx.WithContext(ctx).Errorf("hyperliquid: exchange rejected action: %s", msg)
		return nil, errkit.Trading(errkit.CodeOrderRejected, "hyperliquid: %s", msg)
	}
	return body, nil
}

// nextNonce returns a millisecond timestamp strictly greater than the last one issued.
func (c *Client) nextNonce() int64 {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	n := c.clock().UnixMilli()
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n
	return n
}
