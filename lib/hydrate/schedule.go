package hydrate

import (
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/pthm/summon/lib/compose"
	"github.com/pthm/summon/lib/dom"
	"github.com/pthm/summon/lib/loop"
)

// DefaultTimeout bounds how long a chunk waits for an idle period.
const DefaultTimeout = 2 * time.Second

// IdleHost is a host that can run work when it has nothing better to do.
type IdleHost interface {
	compose.Host
	RequestIdle(cb func(loop.Deadline), timeout time.Duration)
}

// Done receives the outcome of a scheduled hydration.
type Done func(c *compose.Composer, rep Report, err error)

// Schedule hydrates rootID in chunks split at island boundaries. Chunks run
// in the host's idle periods while the deadline has time left; a chunk whose
// idle request times out runs the rest of the pass at once. Hosts without
// idle support run one chunk per posted task. done is called once, on the
// host, when the pass has finished.
func Schedule(doc *dom.Document, rootID string, body func(c *compose.Composer), host compose.Host, opts Options, timeout time.Duration, done Done) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if opts.Host == nil {
		opts.Host = host
	}
	s := &scheduled{host: host, timeout: timeout, done: done, log: opts.logger()}

	var (
		p   *pass
		rep Report
		err error
	)
	seq := func(yield func(struct{}) bool) {
		p, rep, err = begin(doc, rootID, opts, func() { yield(struct{}{}) })
		if err != nil || p == nil {
			return
		}
		err = p.c.Compose(body)
	}
	s.next, s.stop = iter.Pull(seq)
	s.finish = func() {
		s.stop()
		if err == nil && p != nil {
			rep.Chunks = s.chunks
			p.finish(&rep)
			s.done(p.c, rep, nil)
			return
		}
		s.done(nil, rep, err)
	}
	s.request()
}

type scheduled struct {
	host    compose.Host
	timeout time.Duration
	done    Done
	log     *zap.Logger

	next   func() (struct{}, bool)
	stop   func()
	finish func()
	chunks int
}

func (s *scheduled) request() {
	if ih, ok := s.host.(IdleHost); ok {
		ih.RequestIdle(s.step, s.timeout)
		return
	}
	s.host.Post(func() { s.step(nil) })
}

// step runs chunks until the deadline is used up. A nil deadline runs one.
func (s *scheduled) step(d loop.Deadline) {
	for {
		_, more := s.next()
		s.chunks++
		if !more {
			s.finish()
			return
		}
		if d == nil {
			break
		}
		if d.DidTimeout() {
			continue
		}
		if d.TimeRemaining() <= 0 {
			break
		}
	}
	s.log.Debug("hydration yielded", zap.Int("chunks", s.chunks))
	s.request()
}
