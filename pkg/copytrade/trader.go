package copytrade

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"
	"golang.org/x/sync/errgroup"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
)

// Config is the trader's static configuration.
type Config struct {
	TargetWallet        string
	MaxConcurrentTrades int
	DryRun              bool
	Risk                RiskConfig
}

// Trader mirrors the observed account's fills onto the controlled account.
// Fills are handled one at a time, in stream order.
type Trader struct {
	cfg       Config
	exec      Executor
	source    FillSource
	risk      *RiskEngine
	notifier  Notifier
	recorders []Recorder
	metrics   Metrics
	now       func() time.Time

	active  *CoinSet
	ignored *CoinSet

	mu        sync.Mutex
	stream    FillStream
	state     string
	startedAt time.Time
	lastFill  atomic.Int64

	fillsReceived  atomic.Int64
	fillsIgnored   atomic.Int64
	tradesExecuted atomic.Int64
	tradesFailed   atomic.Int64
	tradesSkipped  atomic.Int64
}

// TraderOption customises a Trader.
type TraderOption func(*Trader)

func WithNotifier(n Notifier) TraderOption {
	return func(t *Trader) {
		if n != nil {
			t.notifier = n
		}
	}
}

// WithRecorder appends an audit sink. Nil recorders are ignored.
func WithRecorder(r Recorder) TraderOption {
	return func(t *Trader) {
		if r != nil {
			t.recorders = append(t.recorders, r)
		}
	}
}

func WithMetrics(m Metrics) TraderOption {
	return func(t *Trader) {
		if m != nil {
			t.metrics = m
		}
	}
}

func WithClock(now func() time.Time) TraderOption {
	return func(t *Trader) {
		if now != nil {
			t.now = now
		}
	}
}

const (
	StateIdle    = "idle"
	StateRunning = "running"
	StateStopped = "stopped"
)

// NewTrader validates cfg and wires collaborators.
func NewTrader(cfg Config, exec Executor, source FillSource, opts ...TraderOption) (*Trader, error) {
	if cfg.TargetWallet == "" {
		return nil, errkit.Config("copytrade: target wallet is required")
	}
	if exec == nil {
		return nil, errkit.Config("copytrade: executor is required")
	}
	t := &Trader{
		cfg:      cfg,
		exec:     exec,
		source:   source,
		risk:     NewRiskEngine(cfg.Risk),
		notifier: nopNotifier{},
		metrics:  nopMetrics{},
		now:      time.Now,
		active:   NewCoinSet(),
		ignored:  NewCoinSet(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Start snapshots the observed account's open coins, verifies the controlled
// account is reachable and subscribes to the fill stream. Any failure is fatal.
func (t *Trader) Start(ctx context.Context) error {
	logger := logx.WithContext(ctx)
	logger.Infow("copytrade: starting copy trader",
		logx.Field("ourAddress", t.exec.Address()),
		logx.Field("targetWallet", t.cfg.TargetWallet),
		logx.Field("dryRun", t.cfg.DryRun))

	positions, err := t.exec.GetPositions(ctx, t.cfg.TargetWallet)
	if err != nil {
		return errkit.Wrap(err, errkit.KindFatal, errkit.CodeStartup, "snapshot observed positions")
	}
	for _, p := range positions {
		t.ignored.Add(p.Coin)
	}
	logger.Infow("copytrade: ignoring pre-existing coins", logx.Field("coins", t.ignored.List()))

	equity, err := t.exec.GetAccountEquity(ctx, t.exec.Address())
	if err != nil {
		return errkit.Wrap(err, errkit.KindFatal, errkit.CodeStartup, "verify controlled account")
	}
	value, err := equity.Value()
	if err != nil {
		return errkit.Wrap(err, errkit.KindFatal, errkit.CodeStartup, "verify controlled account")
	}
	logger.Infow("copytrade: controlled account verified", logx.Field("equity", value))

	if t.source == nil {
		return errkit.New(errkit.KindFatal, errkit.CodeStartup, "no fill source configured")
	}
	stream, err := t.source.Subscribe(ctx, t.cfg.TargetWallet)
	if err != nil {
		return errkit.Wrap(err, errkit.KindFatal, errkit.CodeStartup, "subscribe to fills")
	}

	t.mu.Lock()
	t.stream = stream
	t.state = StateRunning
	t.startedAt = t.now()
	t.mu.Unlock()
	logger.Info("copytrade: copy trader started, monitoring fills")
	return nil
}

// Run consumes fills until ctx is cancelled (returns nil) or the stream
// terminates (returns its error).
func (t *Trader) Run(ctx context.Context) error {
	t.mu.Lock()
	stream := t.stream
	t.mu.Unlock()
	if stream == nil {
		return errors.New("copytrade: Run called before Start")
	}
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fill, ok := <-stream.Fills():
			if !ok {
				return stream.Err()
			}
			t.dispatch(ctx, fill)
		}
	}
}

// Stop closes the fill stream. It is safe to call more than once.
func (t *Trader) Stop() {
	t.mu.Lock()
	stream := t.stream
	wasRunning := t.state == StateRunning
	t.state = StateStopped
	t.mu.Unlock()
	if stream != nil {
		if err := stream.Close(); err != nil {
			logx.Errorf("copytrade: close fill stream: %v", err)
		}
	}
	if wasRunning {
		logx.Info("copytrade: copy trader stopped")
	}
}

// dispatch applies the ignore set and runs the fill pipeline, containing
// panics and errors so the consumer loop keeps going.
func (t *Trader) dispatch(ctx context.Context, fill FillEvent) {
	t.fillsReceived.Add(1)
	t.lastFill.Store(t.now().UnixMilli())
	t.metrics.FillReceived(fill.Coin)

	if t.ignored.Contains(fill.Coin) {
		t.fillsIgnored.Add(1)
		t.metrics.FillIgnored(fill.Coin)
		if Classify(fill) == ActionClose {
			t.ignored.Remove(fill.Coin)
			logx.WithContext(ctx).Infow("copytrade: pre-existing position closed, coin no longer ignored",
				logx.Field("coin", fill.Coin))
		}
		return
	}

	// a fill that entered the pipeline runs to completion
	fillCtx := context.WithoutCancel(ctx)
	threading.RunSafe(func() {
		if _, err := t.HandleFill(fillCtx, fill); err != nil {
			logx.WithContext(fillCtx).Errorw("copytrade: error handling fill", fillFields(fill, err)...)
		}
	})
}

// HandleFill runs one fill through classify, fetch, size, validate, execute
// and notify. A nil result with a nil error means the fill was skipped.
func (t *Trader) HandleFill(ctx context.Context, fill FillEvent) (*TradeResult, error) {
	logger := logx.WithContext(ctx)
	action := Classify(fill)
	logger.Infow("copytrade: received fill",
		logx.Field("coin", fill.Coin), logx.Field("side", string(fill.Side)),
		logx.Field("size", fill.Sz), logx.Field("price", fill.Px),
		logx.Field("direction", fill.Dir), logx.Field("hash", fill.Hash),
		logx.Field("action", string(action)))
	fields := map[string]any{"fillHash": fill.Hash, "coin": fill.Coin, "action": string(action)}

	our := t.exec.Address()
	target := t.cfg.TargetWallet

	var ourEq, targetEq exchange.AccountEquity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { ourEq, err = t.exec.GetAccountEquity(gctx, our); return })
	g.Go(func() (err error) { targetEq, err = t.exec.GetAccountEquity(gctx, target); return })
	if err := g.Wait(); err != nil {
		t.reportFailure(ctx, err, "equity_fetch", "failed to fetch account equity", fields)
		return nil, err
	}

	ourEquity, errOur := ourEq.Value()
	targetEquity, errTarget := targetEq.Value()
	if errOur != nil || errTarget != nil {
		err := errkit.Validation(errkit.CodeInvalidEquity, "invalid equity values").
			With("ourEquity", ourEq.AccountValue).
			With("targetEquity", targetEq.AccountValue)
		t.reportFailure(ctx, err, errkit.CodeInvalidEquity, "invalid equity values", fields)
		return nil, err
	}
	logger.Infow("copytrade: account equities",
		logx.Field("ourEquity", ourEquity), logx.Field("targetEquity", targetEquity))

	var targetPositions []exchange.Position
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error { _, err := t.exec.GetPositions(gctx, our); return err })
	g.Go(func() (err error) { targetPositions, err = t.exec.GetPositions(gctx, target); return })
	if err := g.Wait(); err != nil {
		t.reportFailure(ctx, err, "position_fetch", "failed to fetch positions", fields)
		return nil, err
	}
	var targetPos *exchange.Position
	for i := range targetPositions {
		if targetPositions[i].Coin == fill.Coin {
			targetPos = &targetPositions[i]
			break
		}
	}

	params, skip := t.buildParams(ctx, fill, action, ourEquity, targetEquity, targetPos)
	if skip != "" {
		t.tradesSkipped.Add(1)
		t.metrics.TradeSkipped(skip)
		return nil, nil
	}

	result := t.execute(ctx, params, fill.Px, ourEquity)
	price, _ := strconv.ParseFloat(fill.Px, 64)
	t.record(ctx, TradeRecord{
		Fill:       fill,
		Action:     action,
		Result:     result,
		Price:      price,
		OurEquity:  ourEquity,
		DryRun:     t.cfg.DryRun,
		RecordedAt: t.now(),
	})

	if !result.Success {
		t.tradesFailed.Add(1)
		logger.Errorw("copytrade: trade execution failed",
			logx.Field("error", result.Error), logx.Field("coin", fill.Coin), logx.Field("fillHash", fill.Hash))
		t.notifier.Error(ctx, errors.New(result.Error), map[string]any{
			"fillHash": fill.Hash, "coin": fill.Coin, "params": params,
		})
		return &result, nil
	}

	t.tradesExecuted.Add(1)
	t.metrics.TradeExecuted(action, fill.Coin)
	logger.Infow("copytrade: trade executed successfully",
		logx.Field("orderId", result.OrderID), logx.Field("coin", fill.Coin),
		logx.Field("fillHash", fill.Hash), logx.Field("action", string(action)))
	switch action {
	case ActionOpen:
		t.active.Add(fill.Coin)
	case ActionClose:
		t.active.Remove(fill.Coin)
	}
	t.notifier.TradeExecuted(ctx, fill, params, result)
	return &result, nil
}

// buildParams derives the order intent. A non-empty skip reason means no
// trade should be placed.
func (t *Trader) buildParams(ctx context.Context, fill FillEvent, action Action, ourEquity, targetEquity float64, targetPos *exchange.Position) (CopyTradeParams, string) {
	logger := logx.WithContext(ctx)

	var side Side
	reduceOnly := false
	if action == ActionOpen {
		side = SideSell
		if fill.Dir == DirOpenLong {
			side = SideBuy
		}
	} else {
		switch {
		case targetPos != nil && targetPos.Size() > 0:
			side = SideSell
		case targetPos != nil:
			side = SideBuy
		default:
			side = fill.Side
		}
		reduceOnly = true
	}

	targetSize, _ := parseFloat(fill.Sz)
	size, sizeOK := t.risk.Size(targetSize, ourEquity, targetEquity)

	leverage := 1
	if targetPos != nil && targetPos.Leverage.Value > 0 {
		leverage = t.risk.CapLeverage(targetPos.Leverage.Value)
	}

	if action == ActionOpen && t.cfg.MaxConcurrentTrades > 0 && t.active.Len() >= t.cfg.MaxConcurrentTrades {
		logger.Infow("copytrade: max concurrent trades reached, skipping",
			logx.Field("activeTrades", t.active.Len()),
			logx.Field("max", t.cfg.MaxConcurrentTrades),
			logx.Field("coin", fill.Coin))
		return CopyTradeParams{}, "max_concurrent_trades"
	}
	if !sizeOK {
		logger.Errorw("copytrade: invalid calculated position size",
			logx.Field("targetSize", fill.Sz),
			logx.Field("ourEquity", ourEquity),
			logx.Field("targetEquity", targetEquity),
			logx.Field("coin", fill.Coin))
		return CopyTradeParams{}, "invalid_size"
	}

	return CopyTradeParams{
		Coin:       fill.Coin,
		Side:       side,
		Size:       FormatSize(size),
		OrderType:  OrderMarket,
		ReduceOnly: reduceOnly,
		Leverage:   leverage,
	}, ""
}

func (t *Trader) execute(ctx context.Context, params CopyTradeParams, price string, ourEquity float64) TradeResult {
	if err := t.risk.Validate(params, price, ourEquity); err != nil {
		logx.WithContext(ctx).Infow("copytrade: trade validation failed",
			append(paramFields(params), logx.Field("reason", err.Error()), logx.Field("price", price))...)
		t.metrics.TradeFailed(errkit.CodeOf(err))
		return TradeResult{Success: false, Error: err.Error(), Params: params}
	}
	oid, err := t.exec.PlaceOrder(ctx, params)
	if err != nil {
		reason := errkit.CodeOf(err)
		if reason == "" {
			reason = "execution"
		}
		t.metrics.TradeFailed(reason)
		return TradeResult{Success: false, Error: err.Error(), Params: params}
	}
	return TradeResult{Success: true, OrderID: oid, Params: params}
}

func (t *Trader) reportFailure(ctx context.Context, err error, reason, msg string, fields map[string]any) {
	logFields := []logx.LogField{logx.Field("error", err.Error())}
	for k, v := range fields {
		logFields = append(logFields, logx.Field(k, v))
	}
	logx.WithContext(ctx).Errorw("copytrade: "+msg, logFields...)
	t.metrics.TradeFailed(reason)
	t.notifier.Error(ctx, err, fields)
}

func (t *Trader) record(ctx context.Context, rec TradeRecord) {
	for _, r := range t.recorders {
		if err := r.Record(ctx, rec); err != nil {
			logx.WithContext(ctx).Errorf("copytrade: record trade: %v", err)
		}
	}
}

func fillFields(fill FillEvent, err error) []logx.LogField {
	fields := []logx.LogField{
		logx.Field("hash", fill.Hash),
		logx.Field("coin", fill.Coin),
		logx.Field("action", string(Classify(fill))),
		logx.Field("error", err.Error()),
	}
	ctx := errkit.ContextOf(err)
	for _, k := range errkit.ContextKeys(ctx) {
		fields = append(fields, logx.Field(k, ctx[k]))
	}
	return fields
}

// Status is a point-in-time view for the status endpoint.
type Status struct {
	State          string    `json:"state"`
	StreamState    string    `json:"streamState,omitempty"`
	OurAddress     string    `json:"ourAddress"`
	TargetWallet   string    `json:"targetWallet"`
	DryRun         bool      `json:"dryRun"`
	ActiveCoins    []string  `json:"activeCoins"`
	IgnoredCoins   []string  `json:"ignoredCoins"`
	FillsReceived  int64     `json:"fillsReceived"`
	FillsIgnored   int64     `json:"fillsIgnored"`
	TradesExecuted int64     `json:"tradesExecuted"`
	TradesFailed   int64     `json:"tradesFailed"`
	TradesSkipped  int64     `json:"tradesSkipped"`
	StartedAt      time.Time `json:"startedAt"`
	LastFillAt     time.Time `json:"lastFillAt"`
}

// Status snapshots the trader.
func (t *Trader) Status() Status {
	t.mu.Lock()
	state, started, stream := t.state, t.startedAt, t.stream
	t.mu.Unlock()

	st := Status{
		State:          state,
		OurAddress:     t.exec.Address(),
		TargetWallet:   t.cfg.TargetWallet,
		DryRun:         t.cfg.DryRun,
		ActiveCoins:    t.active.List(),
		IgnoredCoins:   t.ignored.List(),
		FillsReceived:  t.fillsReceived.Load(),
		FillsIgnored:   t.fillsIgnored.Load(),
		TradesExecuted: t.tradesExecuted.Load(),
		TradesFailed:   t.tradesFailed.Load(),
		TradesSkipped:  t.tradesSkipped.Load(),
		StartedAt:      started,
	}
	if ms := t.lastFill.Load(); ms > 0 {
		st.LastFillAt = time.UnixMilli(ms)
	}
	if s, ok := stream.(interface{ State() string }); ok {
		st.StreamState = s.State()
	}
	return st
}

// ActiveTrades returns the coins believed to hold a mirrored position.
func (t *Trader) ActiveTrades() []string { return t.active.List() }

// IgnoredCoins returns the coins still excluded from mirroring.
func (t *Trader) IgnoredCoins() []string { return t.ignored.List() }
