// Package poller runs a function on a fixed interval behind an explicit
// start/stop handle.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidInterval is returned when a poller is built with a non-positive interval.
var ErrInvalidInterval = errors.New("poller: interval must be positive")

// Func is invoked on every tick. Returned errors are logged and do not stop the loop.
type Func func(ctx context.Context) error

// Option customises a Poller.
type Option func(*Poller)

// WithImmediate runs the function once as soon as the loop starts.
func WithImmediate() Option {
	return func(p *Poller) {
		p.immediate = true
	}
}

// WithLogger sets the logger used for poll failures.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithName labels log lines emitted by the poller.
func WithName(name string) Option {
	return func(p *Poller) {
		p.name = name
	}
}

// WithTicker overrides the ticker constructor, mainly for tests.
func WithTicker(fn func(time.Duration) Ticker) Option {
	return func(p *Poller) {
		if fn != nil {
			p.newTicker = fn
		}
	}
}

// Ticker is the subset of time.Ticker the loop needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// Poller owns at most one running loop. The function runs synchronously inside
// the loop goroutine, so ticks that fire while a poll is in progress are dropped
// and polls never overlap.
type Poller struct {
	interval  time.Duration
	fn        Func
	immediate bool
	name      string
	logger    *zap.Logger
	newTicker func(time.Duration) Ticker

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a stopped poller.
func New(interval time.Duration, fn Func, opts ...Option) (*Poller, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if fn == nil {
		return nil, errors.New("poller: func is required")
	}
	p := &Poller{
		interval: interval,
		fn:       fn,
		name:     "poller",
		logger:   zap.NewNop(),
		newTicker: func(d time.Duration) Ticker {
			return timeTicker{t: time.NewTicker(d)}
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Start launches the loop. Calling Start on a running poller is a no-op and
// reports false.
func (p *Poller) Start(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.run(loopCtx, done)
	return true
}

// Stop cancels the loop and waits for it to exit. An in-flight poll observes
// the cancelled context. Stop on a stopped poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}

// Interval returns the configured tick interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := p.newTicker(p.interval)
	defer ticker.Stop()

	if p.immediate {
		p.invoke(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.invoke(ctx)
		}
	}
}

func (p *Poller) invoke(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := p.fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("poll failed", zap.String("poller", p.name), zap.Error(err))
	}
}
