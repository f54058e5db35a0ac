package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	// DefaultWindow is the quota window most market data APIs use.
	DefaultWindow = time.Minute
	// DefaultMargin is added after the window boundary before calls resume.
	DefaultMargin = 500 * time.Millisecond
)

// Budget is a point-in-time copy of the limiter state.
type Budget struct {
	WindowStart         time.Time
	WindowLength        time.Duration
	RequestsInWindow    int
	MaxRequestsInWindow int
}

// Limiter lets calls burst up to the per-window cap, then blocks until the
// next epoch-aligned window opens. The window is fixed, not rolling: a burst
// straddling a boundary may see up to twice the cap within one window length.
type Limiter struct {
	name   string
	max    int
	window time.Duration
	margin time.Duration
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	bucket      int64
	windowStart time.Time
	count       int
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithName labels log lines emitted while waiting.
func WithName(name string) Option {
	return func(l *Limiter) {
		l.name = name
	}
}

// WithMargin overrides the safety margin added after the window boundary.
func WithMargin(d time.Duration) Option {
	return func(l *Limiter) {
		if d >= 0 {
			l.margin = d
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSleeper injects the blocking wait, mainly for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// New returns a limiter allowing max calls per window. max <= 0 disables limiting.
func New(max int, window time.Duration, opts ...Option) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		name:   "ratelimit",
		max:    max,
		window: window,
		margin: DefaultMargin,
		now:    time.Now,
		sleep:  Sleep,
		bucket: -1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until a call may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.max <= 0 {
		return ctx.Err()
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.mu.Lock()
		now := l.now()
		l.roll(now)
		if l.count < l.max {
			l.count++
			l.mu.Unlock()
			return nil
		}
		wait := l.windowStart.Add(l.window).Sub(now) + l.margin
		used := l.count
		l.mu.Unlock()

		logx.WithContext(ctx).Infof("%s: budget used %d/%d, waiting %s for next window", l.name, used, l.max, wait.Round(time.Millisecond))
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// roll resets the counter when now falls into a new window. Caller holds mu.
func (l *Limiter) roll(now time.Time) {
	bucket := now.UnixNano() / int64(l.window)
	if bucket == l.bucket {
		return
	}
	l.bucket = bucket
	l.windowStart = time.Unix(0, bucket*int64(l.window))
	l.count = 0
}

// Snapshot returns the current budget.
func (l *Limiter) Snapshot() Budget {
	if l == nil {
		return Budget{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(l.now())
	return Budget{
		WindowStart:         l.windowStart,
		WindowLength:        l.window,
		RequestsInWindow:    l.count,
		MaxRequestsInWindow: l.max,
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
