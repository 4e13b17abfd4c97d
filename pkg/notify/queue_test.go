package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu    sync.Mutex
	t     time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

type runLog struct {
	mu  sync.Mutex
	ids []int
}

func (r *runLog) add(id int) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
}

func (r *runLog) list() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.ids...)
}

func newTestQueue(clock *fakeClock, capacity int) *Queue {
	return NewQueue(QueueConfig{MinGap: 6 * time.Minute, Capacity: capacity}, WithClock(clock.Now), WithSleep(clock.Sleep))
}

func TestQueue_SpacesPostsFromCompletion(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(clock, 5)
	defer q.Close()
	t0 := clock.Now()

	var (
		mu       sync.Mutex
		starts   []time.Time
		inFlight atomic.Int32
		maxSeen  atomic.Int32
	)
	job := func(ctx context.Context) error {
		n := inFlight.Add(1)
		if n > maxSeen.Load() {
			maxSeen.Store(n)
		}
		mu.Lock()
		starts = append(starts, clock.Now())
		mu.Unlock()
		clock.Advance(time.Minute)
		inFlight.Add(-1)
		return nil
	}
	for i := 0; i < 3; i++ {
		require.True(t, q.Enqueue(job))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(starts) == 3
	}, 2*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Time{t0, t0.Add(7 * time.Minute), t0.Add(14 * time.Minute)}, starts)
	assert.Equal(t, []time.Duration{6 * time.Minute, 6 * time.Minute}, clock.Slept())
	assert.EqualValues(t, 1, maxSeen.Load())
}

func TestQueue_DropsOldestWhenFull(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(clock, 5)
	defer q.Close()

	ran := &runLog{}
	started := make(chan struct{})
	release := make(chan struct{})
	q.Enqueue(func(ctx context.Context) error {
		ran.add(1)
		close(started)
		<-release
		return nil
	})
	<-started

	for id := 2; id <= 7; id++ {
		id := id
		q.Enqueue(func(ctx context.Context) error {
			ran.add(id)
			return nil
		})
	}
	assert.Equal(t, 5, q.Pending())
	assert.EqualValues(t, 1, q.Dropped())

	close(release)
	require.Eventually(t, func() bool { return len(ran.list()) == 6 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []int{1, 3, 4, 5, 6, 7}, ran.list())
	assert.Equal(t, 0, q.Pending())
}

func TestQueue_FailedPostIsNotRetried(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(clock, 5)
	defer q.Close()

	ran := &runLog{}
	q.Enqueue(func(ctx context.Context) error {
		ran.add(1)
		return errors.New("feed unavailable")
	})
	q.Enqueue(func(ctx context.Context) error {
		ran.add(2)
		return nil
	})

	require.Eventually(t, func() bool { return len(ran.list()) == 2 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []int{1, 2}, ran.list())
}

func TestQueue_CloseSkipsPending(t *testing.T) {
	clock := newFakeClock()
	q := newTestQueue(clock, 5)

	ran := &runLog{}
	started := make(chan struct{})
	var sawCancel atomic.Bool
	q.Enqueue(func(ctx context.Context) error {
		ran.add(1)
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	})
	<-started
	q.Enqueue(func(ctx context.Context) error { ran.add(2); return nil })
	q.Enqueue(func(ctx context.Context) error { ran.add(3); return nil })
	assert.Equal(t, 2, q.Pending())

	q.Close()
	q.Close()
	assert.True(t, sawCancel.Load())
	assert.Equal(t, []int{1}, ran.list())
	assert.Equal(t, 0, q.Pending())
	assert.False(t, q.Enqueue(func(ctx context.Context) error { return nil }))
}

func TestQueue_Defaults(t *testing.T) {
	q := NewQueue(QueueConfig{})
	defer q.Close()
	assert.Equal(t, defaultCapacity, q.cfg.Capacity)
	assert.Equal(t, defaultMinGap, q.cfg.MinGap)
	assert.False(t, q.Enqueue(nil))
}

func TestQueue_ZeroGapStillSpacesPosts(t *testing.T) {
	clock := newFakeClock()
	q := NewQueue(QueueConfig{}, WithClock(clock.Now), WithSleep(clock.Sleep))
	defer q.Close()

	runs := &runLog{}
	for i := 1; i <= 2; i++ {
		id := i
		require.True(t, q.Enqueue(func(ctx context.Context) error {
			runs.add(id)
			return nil
		}))
	}

	require.Eventually(t, func() bool { return len(runs.list()) == 2 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []int{1, 2}, runs.list())
	assert.Equal(t, []time.Duration{defaultMinGap}, clock.Slept())
}
