package copytrade

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

type mockBackend struct{ mock.Mock }

func (m *mockBackend) PlaceMarketOrder(ctx context.Context, order exchange.MarketOrder) (json.RawMessage, error) {
	args := m.Called(ctx, order)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func (m *mockBackend) ClosePosition(ctx context.Context, req exchange.CloseRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func (m *mockBackend) SetLeverage(ctx context.Context, coin string, leverage int) error {
	return m.Called(ctx, coin, leverage).Error(0)
}

type mockMarketData struct{ mock.Mock }

func (m *mockMarketData) GetAccountState(ctx context.Context, address string) (*exchange.AccountState, error) {
	args := m.Called(ctx, address)
	state, _ := args.Get(0).(*exchange.AccountState)
	return state, args.Error(1)
}

func (m *mockMarketData) GetOpenOrders(ctx context.Context, address string) ([]exchange.OrderInfo, error) {
	args := m.Called(ctx, address)
	orders, _ := args.Get(0).([]exchange.OrderInfo)
	return orders, args.Error(1)
}

func (m *mockMarketData) GetMarketPrice(ctx context.Context, coin string) (float64, error) {
	args := m.Called(ctx, coin)
	return args.Get(0).(float64), args.Error(1)
}

type mockExecutor struct{ mock.Mock }

func (m *mockExecutor) Address() string { return m.Called().String(0) }

func (m *mockExecutor) GetAccountEquity(ctx context.Context, address string) (exchange.AccountEquity, error) {
	args := m.Called(ctx, address)
	eq, _ := args.Get(0).(exchange.AccountEquity)
	return eq, args.Error(1)
}

func (m *mockExecutor) GetPositions(ctx context.Context, address string) ([]exchange.Position, error) {
	args := m.Called(ctx, address)
	positions, _ := args.Get(0).([]exchange.Position)
	return positions, args.Error(1)
}

func (m *mockExecutor) GetOpenOrders(ctx context.Context, address string) ([]exchange.OrderInfo, error) {
	args := m.Called(ctx, address)
	orders, _ := args.Get(0).([]exchange.OrderInfo)
	return orders, args.Error(1)
}

func (m *mockExecutor) PlaceOrder(ctx context.Context, params CopyTradeParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) TradeExecuted(ctx context.Context, fill FillEvent, params CopyTradeParams, result TradeResult) {
	m.Called(ctx, fill, params, result)
}

func (m *mockNotifier) Error(ctx context.Context, err error, fields map[string]any) {
	m.Called(ctx, err, fields)
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []TradeRecord
}

func (r *memoryRecorder) Record(_ context.Context, rec TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

type fakeStream struct {
	fills     chan FillEvent
	done      chan struct{}
	err       error
	closeOnce sync.Once
	closes    int
	mu        sync.Mutex
}

func newFakeStream(buffer int) *fakeStream {
	return &fakeStream{fills: make(chan FillEvent, buffer), done: make(chan struct{})}
}

func (s *fakeStream) Fills() <-chan FillEvent { return s.fills }
func (s *fakeStream) Done() <-chan struct{}   { return s.done }
func (s *fakeStream) Err() error              { return s.err }
func (s *fakeStream) State() string           { return "connected" }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

type fakeSource struct {
	stream  *fakeStream
	err     error
	address string
}

func (f *fakeSource) Subscribe(_ context.Context, address string) (FillStream, error) {
	f.address = address
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}
