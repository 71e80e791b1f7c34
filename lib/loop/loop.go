// Package loop provides a cooperative, single-threaded task queue that plays
// the role of a browser event loop for compositions running in-process.
//
// Tasks posted with Post run in FIFO order. Idle callbacks registered with
// RequestIdle run only when the loop reports an idle period (Idle, or the
// quiet time between tasks in Run), or unconditionally once their timeout
// has elapsed.
//
// All callbacks run on whichever goroutine drives the loop (RunPending, Idle
// or Run). Post and RequestIdle are safe to call from any goroutine.
package loop

import (
	"context"
	"sync"
	"time"
)

// Deadline describes the time available to an idle callback.
type Deadline interface {
	// TimeRemaining reports how much of the idle period is left.
	TimeRemaining() time.Duration
	// DidTimeout reports whether the callback runs because its timeout
	// expired rather than because the host was idle.
	DidTimeout() bool
}

type idleRequest struct {
	cb      func(Deadline)
	expires time.Time
	noLimit bool
}

// Loop is an in-memory event loop.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	idle   []idleRequest
	now    func() time.Time
	signal chan struct{}

	// IdleBudget is the idle period length used by Run.
	IdleBudget time.Duration
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the time source. Tests use it to control timeouts.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		l.now = now
	}
}

// New creates an empty loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		now:        time.Now,
		signal:     make(chan struct{}, 1),
		IdleBudget: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post enqueues a task to run as soon as possible.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()
	l.notify()
}

// RequestIdle registers cb to run during the next idle period. A positive
// timeout forces cb to run once it elapses even if no idle period occurs.
func (l *Loop) RequestIdle(cb func(Deadline), timeout time.Duration) {
	req := idleRequest{cb: cb, noLimit: timeout <= 0}
	if timeout > 0 {
		req.expires = l.now().Add(timeout)
	}
	l.mu.Lock()
	l.idle = append(l.idle, req)
	l.mu.Unlock()
	l.notify()
}

// Pending reports the number of queued tasks and idle callbacks.
func (l *Loop) Pending() (tasks, idle int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks), len(l.idle)
}

// RunPending runs queued tasks, including tasks posted while running, until
// the queue is empty. Idle callbacks whose timeout has elapsed are run as
// well. It returns the number of callbacks executed.
func (l *Loop) RunPending() int {
	n := 0
	for {
		task, ok := l.popTask()
		if !ok {
			expired := l.popExpired()
			if len(expired) == 0 {
				return n
			}
			for _, req := range expired {
				req.cb(&deadline{timedOut: true, now: l.now, end: l.now()})
				n++
			}
			continue
		}
		task()
		n++
	}
}

// Idle drains pending tasks and then simulates an idle period of the given
// length: every idle callback registered before the period starts is
// offered the remaining budget.
func (l *Loop) Idle(budget time.Duration) int {
	n := l.RunPending()

	l.mu.Lock()
	reqs := l.idle
	l.idle = nil
	l.mu.Unlock()

	end := l.now().Add(budget)
	for _, req := range reqs {
		req.cb(&deadline{now: l.now, end: end})
		n++
	}
	return n + l.RunPending()
}

// Run drives the loop until ctx is cancelled. Quiet periods between tasks
// are reported as idle periods of IdleBudget.
func (l *Loop) Run(ctx context.Context) error {
	timer := time.NewTimer(l.IdleBudget)
	defer timer.Stop()
	for {
		l.RunPending()
		if tasks, idle := l.Pending(); tasks == 0 && idle > 0 {
			l.Idle(l.IdleBudget)
			continue
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(l.IdleBudget)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.signal:
		case <-timer.C:
		}
	}
}

func (l *Loop) popTask() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) == 0 {
		return nil, false
	}
	task := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return task, true
}

func (l *Loop) popExpired() []idleRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	var expired []idleRequest
	kept := l.idle[:0]
	for _, req := range l.idle {
		if !req.noLimit && !now.Before(req.expires) {
			expired = append(expired, req)
			continue
		}
		kept = append(kept, req)
	}
	l.idle = kept
	return expired
}

func (l *Loop) notify() {
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

type deadline struct {
	now      func() time.Time
	end      time.Time
	timedOut bool
}

func (d *deadline) TimeRemaining() time.Duration {
	if d.timedOut {
		return 0
	}
	if rem := d.end.Sub(d.now()); rem > 0 {
		return rem
	}
	return 0
}

func (d *deadline) DidTimeout() bool {
	return d.timedOut
}
