package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghalamif/LiveFlow/internal/ports"
)

// ErrLoopStopped is returned by Call once the loop has exited.
var ErrLoopStopped = errors.New("scheduler: loop stopped")

// Loop is a single-goroutine task runner. Every task and every timer callback
// runs on the goroutine that called Run, so state touched only from tasks
// needs no locking.
type Loop struct {
	tasks   chan func()
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
	running atomic.Bool
}

func NewLoop(backlog int) *Loop {
	if backlog <= 0 {
		backlog = 64
	}
	return &Loop{
		tasks: make(chan func(), backlog),
		done:  make(chan struct{}),
		now:   time.Now,
	}
}

// Run executes posted tasks until ctx is cancelled. Tasks still queued at
// cancellation are discarded.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("scheduler: loop already running")
	}
	defer l.once.Do(func() { close(l.done) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Post queues fn for execution on the loop. It blocks while the backlog is
// full and returns false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) Now() time.Time { return l.now() }

// AfterFunc schedules fn on the loop after d. A handle stopped before fn runs
// suppresses it even when the timer already fired and the task is queued.
func (l *Loop) AfterFunc(d time.Duration, fn func()) ports.TimerHandle {
	h := &loopTimer{}
	h.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if h.cancelled.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return h
}

type loopTimer struct {
	timer     *time.Timer
	cancelled atomic.Bool
}

func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return t.cancelled.CompareAndSwap(false, true)
}

var _ ports.Scheduler = (*Loop)(nil)
