package compose

// Disposer is implemented by remembered values that must release resources
// when their slot is discarded.
type Disposer interface {
	Dispose()
}

// dependency is a value scopes can subscribe to.
type dependency interface {
	untrack(sc *Scope)
}

// State is an observable value cell. Reading it inside a composition
// subscribes the executing scope; writing a different value invalidates
// every subscribed scope once and clears the subscriptions, which the next
// execution repopulates.
//
// A State belongs to one composition root and must only be used from that
// root's logical thread.
type State[T any] struct {
	value     T
	equal     func(a, b T) bool
	owner     *Composer
	readers   []*Scope
	observers []*observer[T]
	disposed  bool
}

type observer[T any] struct {
	fn func(T)
}

// NewState creates a cell owned by c that is not tied to a slot.
func NewState[T comparable](c *Composer, initial T) *State[T] {
	return NewStateFunc(c, initial, func(a, b T) bool { return a == b })
}

// NewStateFunc creates a cell that compares values with equal.
func NewStateFunc[T any](c *Composer, initial T, equal func(a, b T) bool) *State[T] {
	return &State[T]{value: initial, equal: equal, owner: c}
}

// UseState remembers a cell at the current slot, creating it with initial
// on the first execution.
func UseState[T comparable](c *Composer, initial T) *State[T] {
	return Remember(c, func() *State[T] { return NewState(c, initial) })
}

// UseStateFunc is UseState for values that are not comparable with ==.
func UseStateFunc[T any](c *Composer, initial T, equal func(a, b T) bool) *State[T] {
	return Remember(c, func() *State[T] { return NewStateFunc(c, initial, equal) })
}

// Get returns the current value and subscribes the executing scope, if any.
func (s *State[T]) Get() T {
	if s.owner != nil && !s.disposed {
		if sc := s.owner.currentScope(); sc != nil && sc.addDep(s) {
			s.readers = append(s.readers, sc)
		}
	}
	return s.value
}

// Peek returns the current value without subscribing.
func (s *State[T]) Peek() T {
	return s.value
}

// Set stores v. Equal values are ignored. Writes issued while the owning
// root is composing or while another write is notifying are queued and
// applied once that work completes.
func (s *State[T]) Set(v T) {
	c := s.owner
	if c != nil && c.deferWrites() {
		c.queueWrite(func() { s.Set(v) })
		return
	}
	if s.equal(s.value, v) {
		return
	}
	s.value = v
	if s.disposed {
		return
	}

	if c != nil {
		c.beginWrite()
		defer c.endWrite()
	}
	readers := s.readers
	s.readers = nil
	for _, sc := range readers {
		sc.removeDep(s)
		if c != nil {
			c.rec.Invalidate(sc)
		}
	}
	for _, o := range s.observers {
		o.fn(v)
	}
}

// Update is Set(fn(Peek())).
func (s *State[T]) Update(fn func(T) T) {
	s.Set(fn(s.value))
}

// Observe registers fn to run after every effective write. Writes made from
// fn are queued until the current write has finished notifying. The
// returned function removes the observer.
func (s *State[T]) Observe(fn func(T)) func() {
	o := &observer[T]{fn: fn}
	s.observers = append(s.observers, o)
	return func() {
		for i, cur := range s.observers {
			if cur == o {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Readers returns the number of scopes currently subscribed.
func (s *State[T]) Readers() int {
	return len(s.readers)
}

// Dispose detaches the cell from every scope. Later writes still store the
// value but notify nobody.
func (s *State[T]) Dispose() {
	s.disposed = true
	for _, sc := range s.readers {
		sc.removeDep(s)
	}
	s.readers = nil
	s.observers = nil
}

func (s *State[T]) untrack(sc *Scope) {
	for i, r := range s.readers {
		if r == sc {
			s.readers = append(s.readers[:i], s.readers[i+1:]...)
			return
		}
	}
}
