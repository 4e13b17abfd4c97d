package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/copytrade"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
)

const (
	MainnetURL = "wss://api.hyperliquid.xyz/ws"
	TestnetURL = "wss://api.hyperliquid-testnet.xyz/ws"
)

// Connection states reported by Subscription.State.
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
	StateReconnecting = "reconnecting"
	StateClosed       = "closed"
)

// Config tunes the websocket subscription.
type Config struct {
	URL              string        `json:",optional"`
	PingInterval     time.Duration `json:",default=50s"`
	ReconnectBase    time.Duration `json:",default=1s"`
	ReconnectMax     time.Duration `json:",default=30s"`
	MaxAttempts      int           `json:",default=10"`
	StableAfter      time.Duration `json:",default=1m"`
	HandshakeTimeout time.Duration `json:",default=10s"`
	BufferSize       int           `json:",default=256"`
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = MainnetURL
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 50 * time.Second
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectMax < c.ReconnectBase {
		c.ReconnectMax = 30 * time.Second
		if c.ReconnectMax < c.ReconnectBase {
			c.ReconnectMax = c.ReconnectBase
		}
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.StableAfter <= 0 {
		c.StableAfter = time.Minute
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.BufferSize < 0 {
		c.BufferSize = 0
	}
	return c
}

// ReconnectHook observes each scheduled reconnect.
type ReconnectHook func(attempt int, delay time.Duration)

// Subscriber opens userFills subscriptions on the Hyperliquid websocket.
type Subscriber struct {
	cfg         Config
	dialer      *websocket.Dialer
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	onReconnect ReconnectHook
}

// Option customises a Subscriber.
type Option func(*Subscriber)

func WithDialer(d *websocket.Dialer) Option {
	return func(s *Subscriber) {
		if d != nil {
			s.dialer = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Subscriber) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Subscriber) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

func WithReconnectHook(h ReconnectHook) Option {
	return func(s *Subscriber) { s.onReconnect = h }
}

// NewSubscriber builds a subscriber; zero config fields take defaults.
func NewSubscriber(cfg Config, opts ...Option) *Subscriber {
	cfg = cfg.withDefaults()
	s := &Subscriber{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		now:   time.Now,
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Subscriber) Config() Config { return s.cfg }

// Subscribe dials synchronously and subscribes to address's fills. A failure
// here is returned to the caller; later disconnects are retried in the
// background until MaxAttempts consecutive cycles fail.
func (s *Subscriber) Subscribe(ctx context.Context, address string) (*Subscription, error) {
	sub := &Subscription{
		owner:   s,
		address: address,
		fills:   make(chan copytrade.FillEvent, s.cfg.BufferSize),
		done:    make(chan struct{}),
		state:   StateConnecting,
	}
	conn, err := s.connect(ctx, address)
	if err != nil {
		sub.setState(StateDisconnected)
		return nil, err
	}
	sub.ctx, sub.cancel = context.WithCancel(ctx)
	sub.stopAfter = context.AfterFunc(sub.ctx, sub.closeConn)
	threading.GoSafe(func() { sub.run(conn) })
	return sub, nil
}

// Source adapts the subscriber to copytrade.FillSource.
func (s *Subscriber) Source() copytrade.FillSource { return fillSource{s} }

type fillSource struct{ s *Subscriber }

func (f fillSource) Subscribe(ctx context.Context, address string) (copytrade.FillStream, error) {
	sub, err := f.s.Subscribe(ctx, address)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// backoff is min(base*2^(attempt-1), max).
func (s *Subscriber) backoff(attempt int) time.Duration {
	delay := s.cfg.ReconnectBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.cfg.ReconnectMax {
			return s.cfg.ReconnectMax
		}
	}
	if delay > s.cfg.ReconnectMax {
		return s.cfg.ReconnectMax
	}
	return delay
}

func (s *Subscriber) connect(ctx context.Context, address string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	conn, resp, err := s.dialer.DialContext(dialCtx, s.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, errkit.Transient(err, errkit.CodeNetwork, "stream: dial %s (status %d)", s.cfg.URL, resp.StatusCode)
		}
		return nil, errkit.Transient(err, errkit.CodeNetwork, "stream: dial %s", s.cfg.URL)
	}
	req := subscribeRequest{
		Method:       "subscribe",
		Subscription: subscription{Type: "userFills", User: address},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	if err := conn.WriteJSON(req); err != nil {
		_ = conn.Close()
		return nil, errkit.Transient(err, errkit.CodeNetwork, "stream: subscribe userFills for %s", address)
	}
	logx.WithContext(ctx).Infow("stream: subscribed to user fills",
		logx.Field("url", s.cfg.URL), logx.Field("user", address))
	return conn, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Subscription is a live userFills feed. It satisfies copytrade.FillStream.
type Subscription struct {
	owner     *Subscriber
	address   string
	fills     chan copytrade.FillEvent
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	stopAfter func() bool
	closeOnce sync.Once

	mu    sync.Mutex
	conn  *websocket.Conn
	state string
	err   error
}

var _ copytrade.FillStream = (*Subscription)(nil)

// Fills delivers live fills in arrival order. It is closed when the
// subscription ends.
func (s *Subscription) Fills() <-chan copytrade.FillEvent { return s.fills }

// Done is closed once the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err is the terminal error, nil after a requested Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close stops keep-alives and the transport. Safe to call repeatedly.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeConn()
		<-s.done
		s.setState(StateClosed)
	})
	return nil
}

func (s *Subscription) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Subscription) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *Subscription) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (s *Subscription) run(conn *websocket.Conn) {
	defer close(s.done)
	defer close(s.fills)
	defer s.stopAfter()
	defer func() {
		if r := recover(); r != nil {
			s.fail(errkit.New(errkit.KindFatal, errkit.CodeStreamPanic, "stream: subscription loop panicked: %v", r).
				With("stack", string(debug.Stack())))
		}
	}()

	cfg := s.owner.cfg
	logger := logx.WithContext(s.ctx)
	attempts := 0
	for {
		connectedAt := s.owner.now()
		err := s.serve(conn)
		if s.ctx.Err() != nil {
			s.setState(StateClosed)
			return
		}
		if s.owner.now().Sub(connectedAt) >= cfg.StableAfter {
			attempts = 0
		}
		logger.Errorw("stream: connection lost", logx.Field("user", s.address), logx.Field("error", errString(err)))

		conn = nil
		for conn == nil {
			attempts++
			if attempts > cfg.MaxAttempts {
				s.fail(errkit.New(errkit.KindFatal, errkit.CodeStreamExhausted,
					"stream: giving up after %d reconnect attempts", cfg.MaxAttempts))
				return
			}
			delay := s.owner.backoff(attempts)
			s.setState(StateReconnecting)
			logger.Infow(fmt.Sprintf("stream: reconnecting in %s (attempt %d/%d)", delay, attempts, cfg.MaxAttempts),
				logx.Field("user", s.address))
			if s.owner.onReconnect != nil {
				s.owner.onReconnect(attempts, delay)
			}
			if err := s.owner.sleep(s.ctx, delay); err != nil {
				s.setState(StateClosed)
				return
			}
			s.setState(StateConnecting)
			next, err := s.owner.connect(s.ctx, s.address)
			if err != nil {
				if s.ctx.Err() != nil {
					s.setState(StateClosed)
					return
				}
				logger.Errorw("stream: reconnect failed", logx.Field("attempt", attempts), logx.Field("error", err.Error()))
				continue
			}
			conn = next
		}
	}
}

func (s *Subscription) fail(err error) {
	logx.WithContext(s.ctx).Errorw("stream: subscription terminated", logx.Field("user", s.address), logx.Field("error", err.Error()))
	s.mu.Lock()
	s.err = err
	s.state = StateDisconnected
	s.mu.Unlock()
}

// serve pumps one connection until it breaks.
func (s *Subscription) serve(conn *websocket.Conn) error {
	s.setConn(conn)
	defer func() {
		s.setConn(nil)
		_ = conn.Close()
	}()
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}
	s.setState(StateConnected)

	stop := make(chan struct{})
	defer close(stop)
	interval := s.owner.cfg.PingInterval
	threading.GoSafe(func() { s.keepAlive(conn, interval, stop) })

	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * interval))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if !s.handle(msg) {
			return s.ctx.Err()
		}
	}
}

func (s *Subscription) keepAlive(conn *websocket.Conn, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(interval))
			if err := conn.WriteMessage(websocket.TextMessage, pingMessage); err != nil {
				logx.Errorf("stream: ping failed: %v", err)
				_ = conn.Close()
				return
			}
		}
	}
}

// handle routes one frame. It returns false when delivery was abandoned
// because the subscription is closing.
func (s *Subscription) handle(msg []byte) bool {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		logx.Errorf("stream: undecodable frame: %v", err)
		return true
	}
	switch env.Channel {
	case "pong":
	case "subscriptionResponse":
		logx.Debugf("stream: subscription acknowledged: %s", string(env.Data))
	case "error":
		logx.Errorf("stream: server error: %s", string(env.Data))
	case "userFills":
		batch, err := decodeUserFills(env.Data)
		if err != nil {
			logx.Errorf("stream: undecodable userFills payload: %v", err)
			return true
		}
		if batch.IsSnapshot {
			logx.Infof("stream: skipping snapshot of %d historical fills", len(batch.Fills))
			return true
		}
		for _, raw := range batch.Fills {
			select {
			case s.fills <- normalizeFill(raw):
			case <-s.ctx.Done():
				return false
			}
		}
	}
	return true
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
