package copytrade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/retry"
)

const (
	DryRunOrderID = "dry-run-order-id"
	CloseOKID     = "close-ok"
)

// ExecutionClient reads account state and places orders for the controlled
// account. Every outbound call runs under the retry policy.
type ExecutionClient struct {
	backend    exchange.Backend
	data       exchange.MarketData
	ourData    exchange.MarketData
	ourAddress string
	policy     *retry.Policy
	dryRun     bool
}

// ExecutionOption customises an ExecutionClient.
type ExecutionOption func(*ExecutionClient)

// WithDryRun short-circuits order placement.
func WithDryRun(dryRun bool) ExecutionOption {
	return func(c *ExecutionClient) { c.dryRun = dryRun }
}

// WithOwnMarketData reads the controlled account from md instead of the
// shared market data source. Paper trading uses it to see simulated fills.
func WithOwnMarketData(md exchange.MarketData) ExecutionOption {
	return func(c *ExecutionClient) {
		if md != nil {
			c.ourData = md
		}
	}
}

// NewExecutionClient wires a backend and a market data source for ourAddress.
func NewExecutionClient(backend exchange.Backend, data exchange.MarketData, ourAddress string, policy *retry.Policy, opts ...ExecutionOption) *ExecutionClient {
	if policy == nil {
		policy = retry.New(retry.Config{})
	}
	c := &ExecutionClient{
		backend:    backend,
		data:       data,
		ourData:    data,
		ourAddress: strings.ToLower(strings.TrimSpace(ourAddress)),
		policy:     policy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address is the controlled account.
func (c *ExecutionClient) Address() string { return c.ourAddress }

// DryRun reports whether orders are suppressed.
func (c *ExecutionClient) DryRun() bool { return c.dryRun }

func (c *ExecutionClient) source(address string) exchange.MarketData {
	if strings.EqualFold(address, c.ourAddress) {
		return c.ourData
	}
	return c.data
}

func (c *ExecutionClient) logRetry(ctx context.Context, op string, fields ...logx.LogField) retry.OnRetry {
	return func(err error, attempt int, delay time.Duration) {
		logx.WithContext(ctx).Infow(fmt.Sprintf("copytrade: %s failed (attempt %d/%d), retrying in %s", op, attempt, c.policy.Config().MaxAttempts, delay),
			append(fields, logx.Field("error", err.Error()))...)
	}
}

// GetAccountEquity fetches the equity summary of address.
func (c *ExecutionClient) GetAccountEquity(ctx context.Context, address string) (exchange.AccountEquity, error) {
	state, err := retry.Value(ctx, c.policy, func(ctx context.Context) (*exchange.AccountState, error) {
		return c.source(address).GetAccountState(ctx, address)
	}, c.logRetry(ctx, "fetch account equity", logx.Field("address", address)))
	if err != nil {
		logx.WithContext(ctx).Errorw("copytrade: failed to get account equity",
			logx.Field("address", address), logx.Field("error", err.Error()))
		return exchange.AccountEquity{}, err
	}
	return state.Equity(), nil
}

// GetPositions lists the non-zero positions of address.
func (c *ExecutionClient) GetPositions(ctx context.Context, address string) ([]exchange.Position, error) {
	state, err := retry.Value(ctx, c.policy, func(ctx context.Context) (*exchange.AccountState, error) {
		return c.source(address).GetAccountState(ctx, address)
	}, c.logRetry(ctx, "fetch positions", logx.Field("address", address)))
	if err != nil {
		logx.WithContext(ctx).Errorw("copytrade: failed to get positions",
			logx.Field("address", address), logx.Field("error", err.Error()))
		return nil, err
	}
	var out []exchange.Position
	for _, p := range state.Positions() {
		if p.Size() != 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetOpenOrders lists the resting orders of address.
func (c *ExecutionClient) GetOpenOrders(ctx context.Context, address string) ([]exchange.OrderInfo, error) {
	return retry.Value(ctx, c.policy, func(ctx context.Context) ([]exchange.OrderInfo, error) {
		return c.source(address).GetOpenOrders(ctx, address)
	}, c.logRetry(ctx, "fetch open orders", logx.Field("address", address)))
}

// GetMarketPrice returns the current mid for coin.
func (c *ExecutionClient) GetMarketPrice(ctx context.Context, coin string) (float64, error) {
	return retry.Value(ctx, c.policy, func(ctx context.Context) (float64, error) {
		return c.data.GetMarketPrice(ctx, coin)
	}, c.logRetry(ctx, "fetch market price", logx.Field("coin", coin)))
}

// PlaceOrder executes params and returns the venue order id.
func (c *ExecutionClient) PlaceOrder(ctx context.Context, params CopyTradeParams) (string, error) {
	if c.dryRun {
		logx.WithContext(ctx).Infow("copytrade: DRY RUN, order not placed", paramFields(params)...)
		return DryRunOrderID, nil
	}
	return retry.Value(ctx, c.policy, func(ctx context.Context) (string, error) {
		return c.placeOnce(ctx, params)
	}, c.logRetry(ctx, "trade execution", paramFields(params)...))
}

func (c *ExecutionClient) placeOnce(ctx context.Context, params CopyTradeParams) (string, error) {
	size, err := strconv.ParseFloat(params.Size, 64)
	if err != nil || size <= 0 {
		return "", errkit.Validation(errkit.CodeInvalidSize, "invalid order size %q", params.Size)
	}
	price, err := c.data.GetMarketPrice(ctx, params.Coin)
	if err != nil {
		return "", err
	}

	if params.Leverage > 1 {
		if err := c.backend.SetLeverage(ctx, params.Coin, params.Leverage); err != nil {
			logx.WithContext(ctx).Infow("copytrade: failed to set leverage, continuing",
				logx.Field("coin", params.Coin), logx.Field("leverage", params.Leverage), logx.Field("error", err.Error()))
		}
	}

	start := time.Now()
	logx.WithContext(ctx).Infow("copytrade: placing order", paramFields(params)...)

	if params.ReduceOnly {
		raw, err := c.backend.ClosePosition(ctx, exchange.CloseRequest{
			Coin:         params.Coin,
			PositionSide: params.Side.PositionSide(),
			Size:         params.Size,
			Price:        price,
			Percent:      100,
		})
		if err != nil {
			return "", err
		}
		oid, err := ExtractOrderID(raw)
		if err != nil {
			return "", err
		}
		if oid == "" {
			oid = CloseOKID
		}
		logx.WithContext(ctx).WithDuration(time.Since(start)).Infow("copytrade: close order placed",
			append(paramFields(params), logx.Field("orderId", oid))...)
		return oid, nil
	}

	leverage := params.Leverage
	if leverage < 1 {
		leverage = 1
	}
	notional := size * price
	raw, err := c.backend.PlaceMarketOrder(ctx, exchange.MarketOrder{
		Coin:     params.Coin,
		IsBuy:    params.Side.IsBuy(),
		Size:     params.Size,
		Price:    price,
		Leverage: leverage,
		Margin:   notional / float64(leverage),
	})
	if err != nil {
		return "", err
	}
	oid, err := ExtractOrderID(raw)
	if err != nil {
		return "", err
	}
	if oid == "" {
		return "", errkit.Trading(errkit.CodeNoOrderID, "order placed but no order id returned").
			With("coin", params.Coin).With("size", params.Size)
	}
	logx.WithContext(ctx).WithDuration(time.Since(start)).Infow("copytrade: order placed",
		append(paramFields(params), logx.Field("orderId", oid))...)
	return oid, nil
}

// ExtractOrderID digs the order id out of a venue payload. It accepts a
// top-level oid or orderId, a single status object at the root, under
// response.data or under data, or a statuses array at any of those places.
// A status holds filled.oid, resting.oid or oid. An empty id with a nil
// error means none was present.
func ExtractOrderID(raw json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return "", nil
	}
	obj, ok := root.(map[string]any)
	if !ok {
		return "", nil
	}
	if id := idValue(obj["oid"]); id != "" {
		return id, nil
	}
	if id := idValue(obj["orderId"]); id != "" {
		return id, nil
	}

	for _, path := range [][]string{nil, {"response", "data"}, {"data"}} {
		holder, ok := lookup(obj, path...).(map[string]any)
		if !ok {
			continue
		}
		if id, err := statusOrderID(holder); id != "" || err != nil {
			return id, err
		}
		statuses, _ := holder["statuses"].([]any)
		for _, st := range statuses {
			status, ok := st.(map[string]any)
			if !ok {
				continue
			}
			if id, err := statusOrderID(status); id != "" || err != nil {
				return id, err
			}
		}
	}
	return "", nil
}

// statusOrderID reads one order status: an error string, filled.oid,
// resting.oid or a bare oid.
func statusOrderID(status map[string]any) (string, error) {
	if msg, ok := status["error"].(string); ok && msg != "" {
		return "", errkit.Trading(errkit.CodeOrderRejected, "order rejected: %s", msg)
	}
	for _, nested := range []string{"filled", "resting"} {
		if id := idValue(lookup(status, nested, "oid")); id != "" {
			return id, nil
		}
	}
	return idValue(status["oid"]), nil
}

func lookup(v any, path ...string) any {
	for _, key := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[key]
	}
	return v
}

func idValue(v any) string {
	switch id := v.(type) {
	case json.Number:
		return id.String()
	case string:
		return strings.TrimSpace(id)
	default:
		return ""
	}
}

func paramFields(p CopyTradeParams) []logx.LogField {
	return []logx.LogField{
		logx.Field("coin", p.Coin),
		logx.Field("side", string(p.Side)),
		logx.Field("size", p.Size),
		logx.Field("reduceOnly", p.ReduceOnly),
		logx.Field("leverage", p.Leverage),
	}
}
