package compose

// Scope is the unit of re-execution: one component body together with the
// group of slots it owns.
type Scope struct {
	c     *Composer
	group groupID
	key   any
	seq   uint64

	props any
	body  func(c *Composer)
	deps  map[dependency]struct{}

	dirty    bool // pending in the scheduled batch
	queued   bool // invalidated while a batch was running
	hasRun   bool
	disposed bool
	runs     int
}

// Key returns the group key the scope was created with.
func (sc *Scope) Key() any { return sc.key }

// Runs returns how many times the body has executed.
func (sc *Scope) Runs() int { return sc.runs }

// Dirty reports whether the scope waits for recomposition.
func (sc *Scope) Dirty() bool { return sc.dirty || sc.queued }

// Disposed reports whether the scope's group was discarded.
func (sc *Scope) Disposed() bool { return sc.disposed }

func (sc *Scope) addDep(d dependency) bool {
	if sc.deps == nil {
		sc.deps = make(map[dependency]struct{})
	}
	if _, ok := sc.deps[d]; ok {
		return false
	}
	sc.deps[d] = struct{}{}
	return true
}

func (sc *Scope) removeDep(d dependency) {
	delete(sc.deps, d)
}

// clearDeps unsubscribes from every cell read by the previous execution.
func (sc *Scope) clearDeps() {
	for d := range sc.deps {
		d.untrack(sc)
	}
	sc.deps = nil
}

func (sc *Scope) dispose() {
	sc.clearDeps()
	sc.disposed = true
	sc.dirty = false
	sc.queued = false
	sc.body = nil
}
