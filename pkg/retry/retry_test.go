package retry

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/errkit"
)

func instant(p *Policy) *Policy {
	p.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return p
}

func TestNew(t *testing.T) {
	t.Run("with defaults", func(t *testing.T) {
		p := New(Config{})
		require.Equal(t, defaultMaxAttempts, p.cfg.MaxAttempts)
		require.Equal(t, defaultInitialDelay, p.cfg.InitialDelay)
		require.Equal(t, defaultMaxDelay, p.cfg.MaxDelay)
		require.Equal(t, defaultBackoffFactor, p.cfg.Multiplier)
	})

	t.Run("max delay never below initial", func(t *testing.T) {
		p := New(Config{InitialDelay: 5 * time.Second, MaxDelay: time.Second})
		require.Equal(t, 5*time.Second, p.cfg.MaxDelay)
	})
}

func TestDo(t *testing.T) {
	transient := errkit.Transient(errors.New("reset"), errkit.CodeNetwork, "fetch")

	t.Run("fails twice then succeeds", func(t *testing.T) {
		p := instant(New(Config{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}))
		calls := 0
		var attempts []int
		var delays []time.Duration
		got, err := Value(context.Background(), p, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", transient
			}
			return "ok", nil
		}, func(err error, attempt int, delay time.Duration) {
			require.ErrorIs(t, err, transient)
			attempts = append(attempts, attempt)
			delays = append(delays, delay)
		})
		require.NoError(t, err)
		require.Equal(t, "ok", got)
		require.Equal(t, []int{1, 2}, attempts)
		require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	})

	t.Run("non retryable fails immediately", func(t *testing.T) {
		p := instant(New(Config{MaxAttempts: 5}))
		calls := 0
		rejected := errkit.Validation(errkit.CodeBlockedAsset, "blocked")
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return rejected
		}, func(error, int, time.Duration) {
			t.Fatal("onRetry must not be called")
		})
		require.ErrorIs(t, err, rejected)
		require.Equal(t, 1, calls)
	})

	t.Run("exhausted returns last error", func(t *testing.T) {
		p := instant(New(Config{MaxAttempts: 3}))
		calls := 0
		retries := 0
		last := &net.OpError{Op: "dial", Err: errors.New("third")}
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			if calls == 3 {
				return last
			}
			return transient
		}, func(error, int, time.Duration) { retries++ })
		require.Same(t, last, err)
		require.Equal(t, 3, calls)
		require.Equal(t, 2, retries)
	})

	t.Run("delay capped at max", func(t *testing.T) {
		p := instant(New(Config{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2}))
		var delays []time.Duration
		_ = p.Do(context.Background(), func(context.Context) error { return transient },
			func(_ error, _ int, d time.Duration) { delays = append(delays, d) })
		require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, delays)
	})

	t.Run("context cancelled during wait", func(t *testing.T) {
		p := New(Config{MaxAttempts: 3, InitialDelay: time.Hour, MaxDelay: time.Hour})
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := p.Do(ctx, func(context.Context) error {
			calls++
			return transient
		}, func(error, int, time.Duration) { cancel() })
		require.ErrorIs(t, err, transient)
		require.Equal(t, 1, calls)
	})
}
