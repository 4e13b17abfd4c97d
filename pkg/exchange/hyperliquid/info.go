package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

// InfoClient queries the public info endpoint for any address.
type InfoClient struct {
	url        string
	httpClient *http.Client
	clock      func() time.Time
	assetTTL   time.Duration

	assetMu      sync.RWMutex
	assets       map[string]AssetInfo
	assetsLoaded time.Time
}

// NewInfoClient constructs a read-only client.
func NewInfoClient(opts ...Option) *InfoClient {
	return newInfoClient(buildOptions(opts))
}

func newInfoClient(o options) *InfoClient {
	return &InfoClient{
		url:        o.infoURL,
		httpClient: o.httpClient,
		clock:      o.clock,
		assetTTL:   o.assetTTL,
	}
}

// GetAccountState fetches clearinghouseState for address.
func (c *InfoClient) GetAccountState(ctx context.Context, address string) (*exchange.AccountState, error) {
	user, err := normaliseAddress(address)
	if err != nil {
		return nil, err
	}
	var state exchange.AccountState
	if err := c.doInfoRequest(ctx, infoRequest{Type: "clearinghouseState", User: user}, &state); err != nil {
		return nil, err
	}
	if strings.TrimSpace(state.MarginSummary.AccountValue) == "" {
		return nil, fmt.Errorf("hyperliquid: clearinghouseState for %s missing marginSummary", user)
	}
	return &state, nil
}

// GetOpenOrders lists resting orders for address.
func (c *InfoClient) GetOpenOrders(ctx context.Context, address string) ([]exchange.OrderInfo, error) {
	user, err := normaliseAddress(address)
	if err != nil {
		return nil, err
	}
	var orders []exchange.OrderInfo
	if err := c.doInfoRequest(ctx, infoRequest{Type: "frontendOpenOrders", User: user}, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetMarketPrice returns the current mid price for coin.
func (c *InfoClient) GetMarketPrice(ctx context.Context, coin string) (float64, error) {
	var mids map[string]string
	if err := c.doInfoRequest(ctx, infoRequest{Type: "allMids"}, &mids); err != nil {
		return 0, err
	}
	raw, ok := mids[coin]
	if !ok {
		raw, ok = mids[canonicalAssetKey(coin)]
	}
	if !ok {
		return 0, fmt.Errorf("hyperliquid: price for %s not available", coin)
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("hyperliquid: invalid mid %q for %s", raw, coin)
	}
	return price, nil
}

// Asset resolves metadata for coin, refreshing the directory when stale.
func (c *InfoClient) Asset(ctx context.Context, coin string) (AssetInfo, error) {
	key := canonicalAssetKey(coin)
	if key == "" {
		return AssetInfo{}, fmt.Errorf("hyperliquid: empty coin symbol")
	}
	if info, ok := c.cachedAsset(key); ok {
		return info, nil
	}
	if err := c.refreshAssets(ctx); err != nil {
		return AssetInfo{}, err
	}
	if info, ok := c.cachedAsset(key); ok {
		return info, nil
	}
	return AssetInfo{}, fmt.Errorf("hyperliquid: asset %s not found", coin)
}

func (c *InfoClient) cachedAsset(key string) (AssetInfo, bool) {
	c.assetMu.RLock()
	defer c.assetMu.RUnlock()
	if c.assets == nil || c.clock().Sub(c.assetsLoaded) > c.assetTTL {
		return AssetInfo{}, false
	}
	info, ok := c.assets[key]
	return info, ok
}

func (c *InfoClient) refreshAssets(ctx context.Context) error {
	var resp metaAndAssetCtxs
	if err := c.doInfoRequest(ctx, infoRequest{Type: "metaAndAssetCtxs"}, &resp); err != nil {
		return err
	}
	if len(resp.Universe) == 0 {
		return fmt.Errorf("hyperliquid: metaAndAssetCtxs response contained no assets")
	}
	assets := make(map[string]AssetInfo, len(resp.Universe))
	for idx, entry := range resp.Universe {
		key := canonicalAssetKey(entry.Name)
		if key == "" {
			continue
		}
		info := AssetInfo{
			Name:        entry.Name,
			Index:       idx,
			SzDecimals:  entry.SzDecimals,
			MaxLeverage: entry.MaxLeverage,
			IsDelisted:  entry.IsDelisted,
		}
		if idx < len(resp.AssetCtxs) {
			info.MarkPx = resp.AssetCtxs[idx].MarkPx
			info.MidPx = resp.AssetCtxs[idx].MidPx
		}
		assets[key] = info
	}

	c.assetMu.Lock()
	c.assets = assets
	c.assetsLoaded = c.clock()
	c.assetMu.Unlock()
	return nil
}

func (c *InfoClient) doInfoRequest(ctx context.Context, req infoRequest, result any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("hyperliquid: encode info request: %w", err)
	}
	body, err := postJSON(ctx, c.httpClient, c.url, payload)
	if err != nil {
		return wrapRequestError(err, "info "+req.Type)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("hyperliquid: decode %s response: %w", req.Type, err)
	}
	return nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string { return fmt.Sprintf("http status %d", e.status) }

func postJSON(ctx context.Context, client *http.Client, url string, payload []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= 300 {
		return nil, &statusError{status: resp.StatusCode, body: string(body)}
	}
	return body, nil
}

func wrapRequestError(err error, op string) error {
	var se *statusError
	if errors.As(err, &se) {
		return errkit.HTTPStatus(se.status, se.body, "hyperliquid: %s", op)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return errkit.Transient(err, errkit.CodeNetwork, "hyperliquid: %s", op)
}

func normaliseAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("hyperliquid: invalid user address %q", address)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

func canonicalAssetKey(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
