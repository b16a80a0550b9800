// Package uithread implements the single UI scheduling goroutine.
//
// Every read or write of proxy trees, widget state and explorer managers
// happens inside a Task executed by a Loop. Other goroutines hand work to
// the loop with Post (fire and forget) or Invoke (block until done). Tasks
// run strictly one at a time in the order they were posted.
//
// A Loop is driven either by Run on a dedicated goroutine, or by a Bubble
// Tea program through WaitForTaskCmd and Drain, in which case tasks execute
// on the program's Update goroutine.
package uithread

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	nvdebug "github.com/vanderheijden86/nodeview/pkg/debug"
	"github.com/vanderheijden86/nodeview/pkg/metrics"
)

// Task is a unit of UI work. ctx identifies the loop it runs on; pass it to
// Invoke or ProxyFor-style calls so they can run inline instead of
// re-posting.
type Task func(ctx context.Context)

// Common errors.
var (
	ErrLoopStopped = errors.New("ui loop stopped")
	ErrLoopRunning = errors.New("ui loop already running")
)

type loopKey struct{}

// Loop is an unbounded FIFO of tasks executed on one goroutine at a time.
// Posting never blocks, so node-graph listeners can post while the UI side
// waits on the graph lock without deadlocking.
type Loop struct {
	mu      sync.Mutex
	queue   []Task
	stopped bool

	wake    chan struct{}
	done    chan struct{}
	running atomic.Bool

	posted   atomic.Uint64
	executed atomic.Uint64
}

// New returns an idle loop.
func New() *Loop {
	return NewSized(0)
}

// NewSized returns an idle loop whose queue starts with room for size tasks.
// The queue still grows past size; it only saves early reallocation.
func NewSized(size int) *Loop {
	if size < 0 {
		size = 0
	}
	return &Loop{
		queue: make([]Task, 0, size),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// OnLoop reports whether ctx was handed to a task by l.
func (l *Loop) OnLoop(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(loopKey{}).(*Loop)
	return owner == l
}

// OnAnyLoop reports whether ctx belongs to some loop's task.
func OnAnyLoop(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	_, ok := ctx.Value(loopKey{}).(*Loop)
	return ok
}

// Post enqueues task. It is safe from any goroutine.
func (l *Loop) Post(task Task) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrLoopStopped
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()
	l.posted.Add(1)

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Invoke runs task on the loop and waits for it. When ctx already belongs
// to this loop the task runs inline.
func (l *Loop) Invoke(ctx context.Context, task Task) error {
	if l.OnLoop(ctx) {
		task(ctx)
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	finished := make(chan struct{})
	err := l.Post(func(lctx context.Context) {
		defer close(finished)
		task(lctx)
	})
	if err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}
}

// Run executes tasks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	for {
		l.Drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
		}
	}
}

// longDrain is the batch size above which Drain reports itself in the
// debug log.
const longDrain = 64

// Drain runs every queued task, including tasks posted while draining, on
// the calling goroutine. It returns the number of tasks run. Callers must
// be the loop's only driver.
func (l *Loop) Drain(ctx context.Context) int {
	if ctx == nil {
		ctx = context.Background()
	}
	lctx := context.WithValue(ctx, loopKey{}, l)
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			nvdebug.LogIf(n >= longDrain, "ui: drained %d tasks in one batch", n)
			return n
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.runTask(lctx, task)
		n++
	}
}

func (l *Loop) runTask(ctx context.Context, task Task) {
	defer func() {
		l.executed.Add(1)
		if r := recover(); r != nil {
			metrics.CollaboratorPanics.Inc()
			log.Printf("warning: ui task panicked: %v", r)
			nvdebug.Log("ui task stack:\n%s", debug.Stack())
		}
	}()
	task(ctx)
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Stats returns how many tasks were posted and executed.
func (l *Loop) Stats() (posted, executed uint64) {
	return l.posted.Load(), l.executed.Load()
}

// Stop rejects further posts and releases Run and blocked Invoke callers.
// Queued tasks are discarded. Stop is idempotent.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
	close(l.done)
}

// Done is closed when the loop is stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Timer is a pending task scheduled with AfterFunc.
type Timer struct {
	t         *time.Timer
	cancelled atomic.Bool
	fired     atomic.Bool
}

// AfterFunc posts task to the loop once d has elapsed. Stopping the timer
// guarantees task will not run, even if it was already posted.
func (l *Loop) AfterFunc(d time.Duration, task Task) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		if tm.cancelled.Load() {
			return
		}
		_ = l.Post(func(ctx context.Context) {
			if tm.cancelled.Load() {
				return
			}
			tm.fired.Store(true)
			task(ctx)
		})
	})
	return tm
}

// Stop cancels the timer. It reports whether the task had not yet run.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	wasLive := !t.cancelled.Swap(true)
	t.t.Stop()
	return wasLive && !t.fired.Load()
}
