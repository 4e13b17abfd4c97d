package copytrade

import (
	"context"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

// Executor is the slice of ExecutionClient the Trader depends on.
type Executor interface {
	Address() string
	GetAccountEquity(ctx context.Context, address string) (exchange.AccountEquity, error)
	GetPositions(ctx context.Context, address string) ([]exchange.Position, error)
	PlaceOrder(ctx context.Context, params CopyTradeParams) (string, error)
}

// FillSource opens a live fill stream for an address.
type FillSource interface {
	Subscribe(ctx context.Context, address string) (FillStream, error)
}

// FillStream delivers fills in order. Fills is closed once the stream ends;
// Err then reports why (nil after Close).
type FillStream interface {
	Fills() <-chan FillEvent
	Done() <-chan struct{}
	Err() error
	Close() error
}

// Notifier publishes trade summaries and reports failures.
type Notifier interface {
	TradeExecuted(ctx context.Context, fill FillEvent, params CopyTradeParams, result TradeResult)
	Error(ctx context.Context, err error, fields map[string]any)
}

// Recorder persists an audit trail of mirroring attempts.
type Recorder interface {
	Record(ctx context.Context, rec TradeRecord) error
}

// Metrics observes trader events.
type Metrics interface {
	FillReceived(coin string)
	FillIgnored(coin string)
	TradeSkipped(reason string)
	TradeExecuted(action Action, coin string)
	TradeFailed(reason string)
}

type nopNotifier struct{}

func (nopNotifier) TradeExecuted(context.Context, FillEvent, CopyTradeParams, TradeResult) {}
func (nopNotifier) Error(context.Context, error, map[string]any)                          {}

type nopMetrics struct{}

func (nopMetrics) FillReceived(string)          {}
func (nopMetrics) FillIgnored(string)           {}
func (nopMetrics) TradeSkipped(string)          {}
func (nopMetrics) TradeExecuted(Action, string) {}
func (nopMetrics) TradeFailed(string)           {}
