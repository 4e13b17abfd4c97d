package notify

import (
	"context"
	"sort"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/copytrade"
	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
)

// Sink publishes a rendered message. arena.Client satisfies it.
type Sink interface {
	Post(ctx context.Context, content string) error
}

// Config controls the public trade feed.
type Config struct {
	Enabled bool `json:",default=true"`
	Queue   QueueConfig
}

// Notifier posts trade summaries through a rate-limited queue and logs
// errors. It implements copytrade.Notifier.
type Notifier struct {
	sink    Sink
	queue   *Queue
	enabled bool
	dryRun  bool
}

var _ copytrade.Notifier = (*Notifier)(nil)

// New builds a notifier. A nil sink disables posting.
func New(sink Sink, cfg Config, dryRun bool, opts ...QueueOption) *Notifier {
	return &Notifier{
		sink:    sink,
		queue:   NewQueue(cfg.Queue, opts...),
		enabled: cfg.Enabled && sink != nil,
		dryRun:  dryRun,
	}
}

func (n *Notifier) TradeExecuted(ctx context.Context, fill copytrade.FillEvent, params copytrade.CopyTradeParams, result copytrade.TradeResult) {
	content := TradeMessage(fill, params, result)
	if content == "" {
		return
	}
	if n.dryRun {
		logx.WithContext(ctx).Infow("notify: [DRY RUN] would post to Arena feed", logx.Field("content", content))
		return
	}
	if !n.enabled {
		return
	}
	n.queue.Enqueue(func(ctx context.Context) error {
		return n.sink.Post(ctx, content)
	})
}

// Error reports a failure. Reporting is log-only; the feed is reserved for
// trades.
func (n *Notifier) Error(ctx context.Context, err error, fields map[string]any) {
	logFields := []logx.LogField{logx.Field("error", errString(err))}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		logFields = append(logFields, logx.Field(k, fields[k]))
	}
	if kind := errkit.KindOf(err); kind != errkit.KindUnknown {
		logFields = append(logFields, logx.Field("kind", kind.String()), logx.Field("code", errkit.CodeOf(err)))
	}
	logx.WithContext(ctx).Errorw("notify: copy trading error", logFields...)
}

// Pending is the number of queued posts.
func (n *Notifier) Pending() int { return n.queue.Pending() }

// Close stops posting and skips whatever is still queued.
func (n *Notifier) Close() { n.queue.Close() }

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
