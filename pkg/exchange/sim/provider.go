// Package sim is a paper execution backend. Orders fill immediately at the
// reference price carried by the order, positions and equity live in memory.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

const defaultInitialEquity = 100000.0

// Provider is an in-memory paper account.
type Provider struct {
	mu sync.Mutex

	leverage  map[string]int
	markPx    map[string]float64
	positions map[string]*positionState
	cash      float64

	nextOid atomic.Int64
}

type positionState struct {
	Qty   float64 // positive long, negative short
	Entry float64
}

// New constructs a paper account holding equity in cash.
func New(equity float64) *Provider {
	if equity <= 0 {
		equity = defaultInitialEquity
	}
	return &Provider{
		leverage:  make(map[string]int),
		markPx:    make(map[string]float64),
		positions: make(map[string]*positionState),
		cash:      equity,
	}
}

func init() {
	exchange.RegisterProvider("sim", func(name string, cfg *exchange.ProviderConfig) (exchange.Backend, error) {
		return New(cfg.Equity), nil
	})
}

func canonical(coin string) string { return strings.ToUpper(strings.TrimSpace(coin)) }

// SetMarkPrice updates the reference price used for unrealised PnL.
func (p *Provider) SetMarkPrice(coin string, price float64) error {
	if price <= 0 {
		return fmt.Errorf("sim: mark price must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markPx[canonical(coin)] = price
	return nil
}

// PlaceMarketOrder fills the whole order at order.Price.
func (p *Provider) PlaceMarketOrder(ctx context.Context, order exchange.MarketOrder) (json.RawMessage, error) {
	size, err := parsePositive(order.Size)
	if err != nil {
		return nil, err
	}
	if order.Price <= 0 {
		return nil, fmt.Errorf("sim: price must be positive")
	}
	coin := canonical(order.Coin)

	p.mu.Lock()
	defer p.mu.Unlock()
	if order.Leverage > 0 {
		p.leverage[coin] = order.Leverage
	}
	filled := p.applyLocked(coin, order.Price, size, order.IsBuy, false)
	return p.filledResponse(filled, order.Price)
}

// ClosePosition reduces the position by Size scaled with Percent.
func (p *Provider) ClosePosition(ctx context.Context, req exchange.CloseRequest) (json.RawMessage, error) {
	coin := canonical(req.Coin)
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.positions[coin]
	if state == nil || state.Qty == 0 {
		return p.filledResponse(0, req.Price)
	}
	size := math.Abs(state.Qty)
	if v, err := parsePositive(req.Size); err == nil {
		size = v
	}
	if req.Percent > 0 && req.Percent < 100 {
		size *= req.Percent / 100
	}
	price := req.Price
	if price <= 0 {
		price = p.markLocked(coin)
	}
	filled := p.applyLocked(coin, price, size, state.Qty < 0, true)
	return p.filledResponse(filled, price)
}

// SetLeverage stores leverage for margin calculations.
func (p *Provider) SetLeverage(ctx context.Context, coin string, leverage int) error {
	if leverage <= 0 {
		return fmt.Errorf("sim: leverage must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leverage[canonical(coin)] = leverage
	return nil
}

// GetAccountState returns the paper account regardless of address.
func (p *Provider) GetAccountState(ctx context.Context, address string) (*exchange.AccountState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	positions, unrealized, notional, margin := p.snapshotLocked()
	equity := p.cash + unrealized
	summary := exchange.MarginSummary{
		AccountValue:    formatDecimal(equity),
		TotalMarginUsed: formatDecimal(margin),
		TotalNtlPos:     formatDecimal(notional),
		TotalRawUSD:     formatDecimal(p.cash),
	}
	return &exchange.AccountState{
		MarginSummary:              summary,
		CrossMarginSummary:         summary,
		CrossMaintenanceMarginUsed: formatDecimal(margin / 2),
		Withdrawable:               formatDecimal(math.Max(0, equity-margin)),
		AssetPositions:             positions,
	}, nil
}

// GetOpenOrders is always empty because fills are synchronous.
func (p *Provider) GetOpenOrders(ctx context.Context, address string) ([]exchange.OrderInfo, error) {
	return nil, nil
}

// GetMarketPrice returns the last mark or fill price.
func (p *Provider) GetMarketPrice(ctx context.Context, coin string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	price := p.markLocked(canonical(coin))
	if price <= 0 {
		return 0, fmt.Errorf("sim: no price for %s", coin)
	}
	return price, nil
}

func (p *Provider) filledResponse(filled, price float64) (json.RawMessage, error) {
	status := exchange.OrderStatusResponse{}
	if filled > 0 {
		status.Filled = &exchange.FilledOrder{
			TotalSz: formatDecimal(filled),
			AvgPx:   formatDecimal(price),
			Oid:     p.nextOid.Add(1),
		}
	}
	resp := exchange.OrderResponse{
		Status: "ok",
		Response: exchange.OrderResponseData{
			Type: "order",
			Data: exchange.OrderResponseDataDetail{Statuses: []exchange.OrderStatusResponse{status}},
		},
	}
	return json.Marshal(resp)
}

// applyLocked books a fill and returns the executed size.
func (p *Provider) applyLocked(coin string, price, size float64, isBuy, reduceOnly bool) float64 {
	state := p.positions[coin]
	if state == nil {
		if reduceOnly {
			return 0
		}
		state = &positionState{}
		p.positions[coin] = state
	}

	delta := size
	if !isBuy {
		delta = -size
	}
	if reduceOnly {
		if state.Qty*delta >= 0 {
			return 0
		}
		if size > math.Abs(state.Qty) {
			size = math.Abs(state.Qty)
			delta = math.Copysign(size, delta)
		}
	}

	oldQty := state.Qty
	newQty := oldQty + delta
	if oldQty != 0 && oldQty*delta < 0 {
		closed := math.Min(math.Abs(oldQty), math.Abs(delta))
		p.cash += closed * (price - state.Entry) * math.Copysign(1, oldQty)
	}

	switch {
	case oldQty == 0, oldQty*newQty < 0:
		state.Entry = price
	case oldQty*delta > 0:
		state.Entry = (oldQty*state.Entry + delta*price) / newQty
	}

	state.Qty = newQty
	if math.Abs(state.Qty) < 1e-10 {
		delete(p.positions, coin)
	}
	p.markPx[coin] = price
	return size
}

func (p *Provider) markLocked(coin string) float64 {
	if price, ok := p.markPx[coin]; ok && price > 0 {
		return price
	}
	if state, ok := p.positions[coin]; ok {
		return state.Entry
	}
	return 0
}

func (p *Provider) snapshotLocked() ([]exchange.AssetPosition, float64, float64, float64) {
	positions := make([]exchange.AssetPosition, 0, len(p.positions))
	var totalUnreal, totalNotional, totalMargin float64

	for coin, state := range p.positions {
		mark := p.markLocked(coin)
		notional := math.Abs(state.Qty * mark)
		unreal := state.Qty * (mark - state.Entry)
		lev := p.leverage[coin]
		if lev <= 0 {
			lev = 1
		}
		margin := notional / float64(lev)

		totalUnreal += unreal
		totalNotional += notional
		totalMargin += margin

		roe := "0"
		if margin > 0 {
			roe = formatDecimal(unreal / margin)
		}
		positions = append(positions, exchange.AssetPosition{
			Type: "oneWay",
			Position: exchange.Position{
				Coin:           coin,
				Szi:            formatDecimal(state.Qty),
				EntryPx:        formatDecimal(state.Entry),
				PositionValue:  formatDecimal(notional),
				Leverage:       exchange.Leverage{Type: "cross", Value: lev},
				MarginUsed:     formatDecimal(margin),
				ReturnOnEquity: roe,
				UnrealizedPnl:  formatDecimal(unreal),
			},
		})
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Position.Coin < positions[j].Position.Coin
	})
	return positions, totalUnreal, totalNotional, totalMargin
}

func parsePositive(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) {
		return 0, fmt.Errorf("sim: invalid size %q", raw)
	}
	return v, nil
}

func formatDecimal(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) < 1e-9 {
		return "0"
	}
	s := strconv.FormatFloat(v, 'f', 8, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
