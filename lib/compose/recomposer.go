package compose

import "go.uber.org/zap"

// Host runs tasks on the root's logical thread, in posting order.
type Host interface {
	Post(task func())
}

// HostFunc adapts a function to Host.
type HostFunc func(task func())

// Post calls f(task).
func (f HostFunc) Post(task func()) { f(task) }

// Phase is the scheduling state of a Recomposer.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCollecting
	PhaseScheduled
	PhaseRunning
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCollecting:
		return "collecting"
	case PhaseScheduled:
		return "scheduled"
	case PhaseRunning:
		return "running"
	}
	return "unknown"
}

// Recomposer collects invalidated scopes into batches and re-runs them.
// Any number of writes between two host turns produce one batch.
type Recomposer struct {
	c       *Composer
	host    Host
	phase   Phase
	pending []*Scope
	next    []*Scope
	ticket  *ticket
	batches int

	disposed bool
}

type ticket struct {
	cancelled bool
}

// Phase returns the current scheduling state.
func (r *Recomposer) Phase() Phase { return r.phase }

// Batches returns how many batches have run.
func (r *Recomposer) Batches() int { return r.batches }

// Pending returns the number of scopes waiting for the next batch.
func (r *Recomposer) Pending() int { return len(r.pending) + len(r.next) }

// Invalidate marks sc for recomposition. Invalidating a scope twice before
// its batch runs has no further effect.
func (r *Recomposer) Invalidate(sc *Scope) {
	if r.disposed || sc == nil || sc.disposed {
		return
	}
	if r.phase == PhaseRunning {
		if !sc.queued {
			sc.queued = true
			r.next = append(r.next, sc)
		}
		return
	}
	if sc.dirty {
		return
	}
	sc.dirty = true
	r.pending = append(r.pending, sc)
	if r.phase == PhaseIdle {
		r.phase = PhaseCollecting
	}
	if r.c.notifying == 0 {
		r.schedule()
	}
}

// collected is called once a write has finished notifying its readers.
func (r *Recomposer) collected() {
	if r.phase == PhaseCollecting {
		r.schedule()
	}
}

func (r *Recomposer) schedule() {
	if r.phase == PhaseScheduled || r.phase == PhaseRunning {
		return
	}
	if len(r.pending) == 0 {
		r.phase = PhaseIdle
		return
	}
	r.phase = PhaseScheduled
	if r.host == nil {
		return
	}
	t := &ticket{}
	r.ticket = t
	r.host.Post(func() {
		if t.cancelled {
			return
		}
		if err := r.RunPending(); err != nil {
			r.c.log.Warn("scheduled recomposition failed", zap.Error(err))
		}
	})
}

// RunPending runs the current batch. It returns ErrBatchRunning when called
// from inside a running batch and ErrDisposed after the root was disposed.
func (r *Recomposer) RunPending() error {
	if r.disposed {
		return ErrDisposed
	}
	if r.phase == PhaseRunning {
		return ErrBatchRunning
	}
	if r.ticket != nil {
		r.ticket.cancelled = true
		r.ticket = nil
	}
	batch := r.pending
	r.pending = nil
	if len(batch) == 0 {
		r.phase = PhaseIdle
		r.c.flushWrites()
		return nil
	}

	r.phase = PhaseRunning
	r.batches++
	func() {
		defer func() {
			for _, sc := range batch {
				sc.dirty = false
			}
			r.phase = PhaseIdle
		}()
		r.c.recompose(batch)
	}()
	r.c.log.Debug("recomposed",
		zap.Int("batch", r.batches),
		zap.Int("scopes", len(batch)),
	)

	next := r.next
	r.next = nil
	for _, sc := range next {
		sc.queued = false
		r.Invalidate(sc)
	}
	r.c.flushWrites()
	return nil
}

func (r *Recomposer) dispose() {
	r.disposed = true
	if r.ticket != nil {
		r.ticket.cancelled = true
		r.ticket = nil
	}
	for _, sc := range r.pending {
		sc.dirty = false
	}
	for _, sc := range r.next {
		sc.queued = false
	}
	r.pending = nil
	r.next = nil
	r.phase = PhaseIdle
}
