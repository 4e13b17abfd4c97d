package svc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/starsarenaorg/arena-perps-agent-cli/internal/config"
	"github.com/starsarenaorg/arena-perps-agent-cli/internal/metrics"
	"github.com/starsarenaorg/arena-perps-agent-cli/internal/model"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/arena"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/copytrade"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
	exchangepkg "github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange/hyperliquid"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/exchange/sim"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/journal"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/notify"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/retry"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/stream"
)

type ServiceContext struct {
	Config config.Config

	ExchangeName string
	Backend      exchangepkg.Backend
	MarketData   exchangepkg.MarketData
	Exec         *copytrade.ExecutionClient
	Subscriber   *stream.Subscriber
	Notifier     *notify.Notifier
	Journal      *journal.Writer
	Metrics      *metrics.Metrics
	Trader       *copytrade.Trader

	// Optional trade store, set when Postgres or SQLite is configured.
	DB          *sql.DB
	TradesModel model.MirroredTradesModel

	Now func() time.Time
}

// NewServiceContext builds every collaborator of the trader. Nothing touches
// the network here except the optional database schema check.
func NewServiceContext(ctx context.Context, c config.Config) (*ServiceContext, error) {
	svc := &ServiceContext{
		Config:  c,
		Metrics: metrics.New(),
		Now:     time.Now,
	}

	name, backend, err := buildBackend(c)
	if err != nil {
		return nil, err
	}
	svc.ExchangeName, svc.Backend = name, backend

	svc.MarketData = hyperliquid.NewInfoClient(
		hyperliquid.WithTestnet(c.Hyperliquid.Testnet),
		hyperliquid.WithInfoURL(c.Hyperliquid.InfoURL),
		hyperliquid.WithHTTPClient(&http.Client{Timeout: c.Hyperliquid.Timeout}),
	)

	execOpts := []copytrade.ExecutionOption{copytrade.WithDryRun(c.Copy.DryRun)}
	if paper, ok := backend.(*sim.Provider); ok {
		execOpts = append(execOpts, copytrade.WithOwnMarketData(paper))
	}
	svc.Exec = copytrade.NewExecutionClient(backend, svc.MarketData, c.Wallet.Address, retry.New(c.Retry), execOpts...)

	svc.Subscriber = stream.NewSubscriber(c.StreamConfig(), stream.WithReconnectHook(svc.Metrics.StreamReconnect))

	var sink notify.Sink
	if poster := feedSink(c, backend); poster != nil {
		sink = poster
	}
	svc.Notifier = notify.New(sink, c.Notify, c.Copy.DryRun)

	traderOpts := []copytrade.TraderOption{
		copytrade.WithNotifier(svc.Notifier),
		copytrade.WithMetrics(svc.Metrics),
	}

	if dir := strings.TrimSpace(c.Journal.Dir); dir != "" {
		w, err := journal.NewWriter(c.ResolvePath(dir))
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.Journal = w
		traderOpts = append(traderOpts, copytrade.WithRecorder(w))
	}

	if err := svc.openStore(ctx); err != nil {
		svc.Close()
		return nil, err
	}
	if svc.TradesModel != nil {
		traderOpts = append(traderOpts, copytrade.WithRecorder(svc.TradesModel))
	}

	trader, err := copytrade.NewTrader(c.TraderConfig(), svc.Exec, svc.Subscriber.Source(), traderOpts...)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.Trader = trader
	return svc, nil
}

// buildBackend prefers the exchange section, then an Arena key, then a
// Hyperliquid private key.
func buildBackend(c config.Config) (string, exchangepkg.Backend, error) {
	switch {
	case c.Exchange.Loaded():
		applyTestnet(c.Exchange.Value, c.Hyperliquid.Testnet)
		return c.Exchange.Value.BuildDefault()
	case strings.TrimSpace(c.Arena.APIKey) != "":
		client, err := arena.NewClient(c.Arena.APIKey, c.Arena.PairTTL, arenaOptions(c)...)
		if err != nil {
			return "", nil, err
		}
		return "arena", client, nil
	case strings.TrimSpace(c.Wallet.PrivateKey) != "":
		client, err := hyperliquid.NewClient(c.Wallet.PrivateKey,
			hyperliquid.WithTestnet(c.Hyperliquid.Testnet),
			hyperliquid.WithHTTPClient(&http.Client{Timeout: c.Hyperliquid.Timeout}),
		)
		if err != nil {
			return "", nil, errkit.Wrap(err, errkit.KindConfig, errkit.CodeInvalidConfig, "hyperliquid backend")
		}
		return "hyperliquid", client, nil
	default:
		return "", nil, errkit.Config("no execution backend: set ARENA_API_KEY, MAIN_WALLET_PRIVATE_KEY or Exchange.File")
	}
}

// applyTestnet forces every provider onto testnet when TESTNET is set. A
// false flag leaves the per-provider settings alone.
func applyTestnet(ex *exchangepkg.Config, testnet bool) {
	if !testnet || ex == nil {
		return
	}
	for _, provider := range ex.Providers {
		provider.Testnet = true
	}
}

func arenaOptions(c config.Config) []arena.Option {
	opts := []arena.Option{arena.WithHTTPClient(&http.Client{Timeout: c.Arena.Timeout})}
	if c.Arena.BaseURL != "" {
		opts = append(opts, arena.WithBaseURL(c.Arena.BaseURL))
	}
	if c.Arena.RateLimit > 0 {
		opts = append(opts, arena.WithRateLimit(c.Arena.RateLimit))
	}
	return opts
}

// feedSink returns the Arena client used for feed posts, reusing the
// execution backend when it already is one.
func feedSink(c config.Config, backend exchangepkg.Backend) *arena.Client {
	if client, ok := backend.(*arena.Client); ok {
		return client
	}
	if strings.TrimSpace(c.Arena.APIKey) == "" {
		return nil
	}
	client, err := arena.NewClient(c.Arena.APIKey, c.Arena.PairTTL, arenaOptions(c)...)
	if err != nil {
		logx.Errorf("arena feed disabled: %v", err)
		return nil
	}
	return client
}

func (s *ServiceContext) openStore(ctx context.Context) error {
	c := s.Config
	var (
		dialect model.Dialect
		dsn     string
	)
	switch {
	case strings.TrimSpace(c.Postgres.DSN) != "":
		dialect, dsn = model.DialectPostgres, c.Postgres.DSN
	case strings.TrimSpace(c.SQLite.Path) != "":
		dialect, dsn = model.DialectSQLite, c.ResolvePath(c.SQLite.Path)
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return fmt.Errorf("create sqlite dir: %w", err)
		}
	default:
		return nil
	}

	conn, db, err := model.Open(dialect, dsn, model.PoolConf{MaxOpen: c.Postgres.MaxOpen, MaxIdle: c.Postgres.MaxIdle})
	if err != nil {
		return err
	}
	trades := model.NewMirroredTradesModel(conn, dialect)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := trades.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return err
	}
	s.DB, s.TradesModel = db, trades
	logx.Infof("trade store ready (%s)", dialect)
	return nil
}

// Drift compares the two accounts right now.
func (s *ServiceContext) Drift(ctx context.Context) (*copytrade.DriftReport, error) {
	return copytrade.BuildDriftReport(ctx, s.Exec, strings.ToLower(s.Config.Copy.TargetWallet), s.Config.Copy.SizeMultiplier, s.Now())
}

// Close stops the notification drain and releases the trade store.
func (s *ServiceContext) Close() error {
	if s.Notifier != nil {
		s.Notifier.Close()
	}
	var errs []error
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
		s.DB = nil
	}
	return errors.Join(errs...)
}
