package retry

import (
	"context"
	"math"
	"time"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
)

const (
	defaultMaxAttempts   = 3
	defaultInitialDelay  = time.Second
	defaultMaxDelay      = 10 * time.Second
	defaultBackoffFactor = 2.0
)

// Config encapsulates exponential backoff settings.
type Config struct {
	MaxAttempts  int           `json:",default=3"`
	InitialDelay time.Duration `json:",default=1s"`
	MaxDelay     time.Duration `json:",default=10s"`
	Multiplier   float64       `json:",default=2"`
}

// OnRetry observes a failed attempt right before the policy waits.
type OnRetry func(err error, attempt int, delay time.Duration)

// Policy executes retryable operations with backoff.
type Policy struct {
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a policy, filling unset fields with defaults.
func New(cfg Config) *Policy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = defaultBackoffFactor
	}
	return &Policy{cfg: cfg, sleep: sleepCtx}
}

// WithSleep returns a copy of the policy that waits with sleep instead of a
// timer. Tests use it to skip real delays.
func (p *Policy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Policy {
	cp := *p
	if sleep != nil {
		cp.sleep = sleep
	}
	return &cp
}

// Config returns the effective configuration.
func (p *Policy) Config() Config { return p.cfg }

// Do runs fn until it succeeds, fails with a non-retryable error or the
// attempts run out. The last error is returned unchanged.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry OnRetry) error {
	delay := p.cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errkit.IsRetryable(err) || attempt == p.cfg.MaxAttempts {
			return err
		}
		if onRetry != nil {
			onRetry(err, attempt, delay)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return lastErr
		}
		delay = time.Duration(math.Min(
			float64(p.cfg.MaxDelay),
			float64(delay)*p.cfg.Multiplier,
		))
	}
	return lastErr
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error), onRetry OnRetry) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, onRetry)
	return out, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
