package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forceviz/forceviz/internal/core/colorgrad"
	"github.com/forceviz/forceviz/internal/core/observability/log"
	"github.com/forceviz/forceviz/internal/core/sensorfield"
)

// State is what the loop goroutine owns. Only functions passed to Do may
// touch it.
type State struct {
	Field   *sensorfield.Field
	Picker  *colorgrad.Picker
	Session *colorgrad.Session
}

// FrameFunc is called on the loop goroutine after every tick that ran a
// reconciliation.
type FrameFunc func(*State)

type task struct {
	fn   func(*State)
	done chan struct{}
}

// Loop serializes all access to the field onto one goroutine and ticks it
// at a fixed rate.
type Loop struct {
	state    *State
	interval time.Duration
	tasks    chan task
	onFrame  FrameFunc
	logger   log.Log

	running  int32
	stopped  chan struct{}
	stopOnce sync.Once
	ticks    uint64
}

type Option func(*Loop)

// WithInterval sets the tick period. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

func WithLogger(logger log.Log) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// OnFrame registers fn to observe each reconciled frame.
func OnFrame(fn FrameFunc) Option {
	return func(l *Loop) { l.onFrame = fn }
}

func New(field *sensorfield.Field, picker *colorgrad.Picker, opts ...Option) *Loop {
	if picker == nil {
		picker = colorgrad.NewPicker()
	}
	l := &Loop{
		state:    &State{Field: field, Picker: picker, Session: &colorgrad.Session{}},
		interval: time.Second / 60,
		tasks:    make(chan task),
		logger:   log.NewNop(),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(log.String("component", "engine"))
	return l
}

// Run processes tasks and ticks until ctx is done or Stop is called. It can
// only be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return ErrLoopRunning
	}
	defer l.Stop()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("Engine loop started", log.Duration("interval", l.interval))
	defer l.logger.Info("Engine loop stopped", log.Uint64("ticks", atomic.LoadUint64(&l.ticks)))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopped:
			return nil
		case t := <-l.tasks:
			t.fn(l.state)
			close(t.done)
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *Loop) tick() {
	atomic.AddUint64(&l.ticks, 1)
	if l.state.Field.Tick() && l.onFrame != nil {
		l.onFrame(l.state)
	}
}

// Do runs fn on the loop goroutine and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func(*State)) error {
	select {
	case <-l.stopped:
		return ErrLoopStopped
	default:
	}

	t := task{fn: fn, done: make(chan struct{})}
	select {
	case l.tasks <- t:
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply runs fn on the loop goroutine and then ticks, so the arrows reflect
// fn's mutations when Apply returns.
func (l *Loop) Apply(ctx context.Context, fn func(*State)) error {
	return l.Do(ctx, func(s *State) {
		fn(s)
		l.tick()
	})
}

// Flush runs any pending reconciliation immediately, as if a tick had fired.
func (l *Loop) Flush(ctx context.Context) error {
	return l.Do(ctx, func(*State) { l.tick() })
}

// Stop ends Run. Later Do calls fail with ErrLoopStopped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopped) })
}

// Ticks returns how many ticks have fired.
func (l *Loop) Ticks() uint64 {
	return atomic.LoadUint64(&l.ticks)
}
