package notify

import (
	"context"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"
)

const (
	defaultMinGap   = 6 * time.Minute
	defaultCapacity = 5
)

// Job posts one notification.
type Job func(ctx context.Context) error

// QueueConfig bounds the outbound post rate.
type QueueConfig struct {
	MinGap   time.Duration `json:",default=6m"`
	Capacity int           `json:",default=5"`
}

// Queue is a bounded FIFO drained by at most one goroutine. Posts are spaced
// at least MinGap apart, measured from the end of one to the start of the
// next. When full, Enqueue drops the oldest pending job.
type Queue struct {
	cfg   QueueConfig
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	jobs     []Job
	draining bool
	closed   bool
	lastPost time.Time
	dropped  int64
}

// QueueOption customises a Queue.
type QueueOption func(*Queue)

func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithSleep replaces the spacing wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) QueueOption {
	return func(q *Queue) {
		if sleep != nil {
			q.sleep = sleep
		}
	}
}

func NewQueue(cfg QueueConfig, opts ...QueueOption) *Queue {
	if cfg.MinGap <= 0 {
		cfg.MinGap = defaultMinGap
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultCapacity
	}
	q := &Queue{
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepCtx,
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds job and starts the drainer if idle. It reports false once the
// queue is closed.
func (q *Queue) Enqueue(job Job) bool {
	if job == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if len(q.jobs) >= q.cfg.Capacity {
		q.jobs = q.jobs[1:]
		q.dropped++
		logx.Infof("notify: queue full, dropped oldest pending notification (capacity %d)", q.cfg.Capacity)
	}
	q.jobs = append(q.jobs, job)
	if !q.draining {
		q.draining = true
		q.wg.Add(1)
		threading.GoSafe(q.drain)
	}
	return true
}

// Pending is the number of jobs waiting to be posted.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Dropped counts jobs evicted by overflow.
func (q *Queue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close stops the drainer and discards pending jobs. An in-flight post sees
// its context cancelled.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	skipped := len(q.jobs)
	q.jobs = nil
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	if skipped > 0 {
		logx.Infof("notify: skipped %d pending notifications on shutdown", skipped)
	}
}

func (q *Queue) drain() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 || q.ctx.Err() != nil {
			q.draining = false
			q.mu.Unlock()
			return
		}
		var wait time.Duration
		if !q.lastPost.IsZero() {
			wait = q.cfg.MinGap - q.now().Sub(q.lastPost)
		}
		q.mu.Unlock()

		if wait > 0 {
			if err := q.sleep(q.ctx, wait); err != nil {
				q.mu.Lock()
				q.draining = false
				q.mu.Unlock()
				return
			}
		}

		q.mu.Lock()
		if len(q.jobs) == 0 || q.ctx.Err() != nil {
			q.draining = false
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		err := job(q.ctx)

		q.mu.Lock()
		q.lastPost = q.now()
		q.mu.Unlock()
		if err != nil {
			logx.Errorf("notify: post failed: %v", err)
		}
	}
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
