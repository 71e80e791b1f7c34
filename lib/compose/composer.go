package compose

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/pthm/summon/lib/encoding"
)

// Options configures a composition root.
type Options struct {
	// Backend receives the composed output. Required.
	Backend Backend

	// Host runs scheduled recompositions. When nil, batches wait for an
	// explicit RunPending call.
	Host Host

	// ErrorSink receives isolated component failures. Defaults to logging
	// them at error level.
	ErrorSink func(err error)

	// Logger defaults to the package logger.
	Logger *zap.Logger

	// Records holds the island records of a server render being hydrated.
	// A non-nil map switches islands, SavedState and Callback to hydration
	// mode.
	Records map[string]IslandRecord

	// Callbacks registers the closures returned by Callback.
	Callbacks CallbackRegistrar

	// Encoder signs RPC payload props.
	Encoder *encoding.Encoder

	// Yield, when set, is called after each island has been composed during
	// the initial pass.
	Yield func()
}

// Composer builds and maintains the output of one composition root.
// It is single-threaded: every call, including State writes, must come from
// the goroutine driving the root's host.
type Composer struct {
	opts    Options
	backend Backend
	log     *zap.Logger
	rec     *Recomposer

	table  SlotTable
	frames []*frame
	scopes []*Scope
	seq    uint64

	composing int
	notifying int
	writes    []func()

	composed bool
	disposed bool

	islands []*islandFrame
	out     map[string]*islandOut
}

// frame is the in-progress state of one open group.
type frame struct {
	g        groupID
	slot     int
	cursor   int
	oldKids  []groupID
	claimed  []bool
	kids     []groupID
	ops      []op
	depth    int
	boundary bool
	keep     bool // keep slots beyond the cursor
}

// New creates a composition root.
func New(opts Options) *Composer {
	if opts.Backend == nil {
		panic("compose: Options.Backend is required")
	}
	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	c := &Composer{
		opts:    opts,
		backend: opts.Backend,
		log:     log,
		out:     make(map[string]*islandOut),
	}
	c.rec = &Recomposer{c: c, host: opts.Host}
	root := c.table.alloc("root", noGroup)
	c.newScope(root, "root")
	return c
}

// Recomposer returns the root's scheduler.
func (c *Composer) Recomposer() *Recomposer { return c.rec }

// Backend returns the backend the root writes to.
func (c *Composer) Backend() Backend { return c.backend }

// Groups returns the number of live groups in the slot table.
func (c *Composer) Groups() int { return c.table.Len() }

// Hydrating reports whether the root binds to a server render.
func (c *Composer) Hydrating() bool { return c.opts.Records != nil }

// RootScope returns the scope of the root body.
func (c *Composer) RootScope() *Scope { return c.table.get(rootGroup).scope }

// Compose runs the initial composition of body.
func (c *Composer) Compose(body func(c *Composer)) error {
	if c.disposed {
		return ErrDisposed
	}
	sc := c.RootScope()
	sc.body = body
	sc.hasRun = false
	c.fullPass()
	c.composed = true
	c.flushWrites()
	return nil
}

// RunPending runs the scheduled batch now. See Recomposer.RunPending.
func (c *Composer) RunPending() error {
	return c.rec.RunPending()
}

// Dispose discards every group of the root and cancels scheduled work.
func (c *Composer) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	c.rec.dispose()
	c.table.discard(rootGroup)
	c.writes = nil
	c.frames = nil
	c.scopes = nil
}

// Disposed reports whether Dispose was called.
func (c *Composer) Disposed() bool { return c.disposed }

func (c *Composer) newScope(id groupID, key any) *Scope {
	c.seq++
	sc := &Scope{c: c, group: id, key: key, seq: c.seq}
	c.table.get(id).scope = sc
	return sc
}

func (c *Composer) currentScope() *Scope {
	if n := len(c.scopes); n > 0 {
		return c.scopes[n-1]
	}
	return nil
}

func (c *Composer) cur() *frame {
	if len(c.frames) == 0 {
		panic(fmt.Errorf("%w: no open group", ErrUnbalancedGroup))
	}
	return c.frames[len(c.frames)-1]
}

func (c *Composer) openFrame(id groupID, boundary bool) *frame {
	kids := c.table.get(id).children
	f := &frame{
		g:        id,
		oldKids:  kids,
		claimed:  make([]bool, len(kids)),
		boundary: boundary,
	}
	c.frames = append(c.frames, f)
	return f
}

// fullPass recomposes from the root, replaying clean groups.
func (c *Composer) fullPass() {
	c.composing++
	defer func() { c.composing-- }()

	c.backend.Begin()
	c.table.get(rootGroup).host = c.backend.Parent()
	f := c.openFrame(rootGroup, true)
	sc := c.RootScope()
	if sc.dirty || !sc.hasRun {
		c.runScope(sc)
	} else {
		c.replay()
	}
	c.finishFrame(f)
	c.frames = c.frames[:len(c.frames)-1]
	c.backend.End()
}

// StartGroup opens a group identified by key under the current group.
func (c *Composer) StartGroup(key any) {
	f := c.cur()
	id := c.claim(f, key)
	if id == noGroup {
		id = c.table.alloc(key, f.g)
	}
	c.enter(f, id)
}

func (c *Composer) enter(f *frame, id groupID) {
	f.kids = append(f.kids, id)
	f.ops = append(f.ops, op{kind: opGroup, depth: f.depth, child: id})
	c.table.get(id).host = c.backend.Parent()
	c.openFrame(id, false)
}

// claim finds the previous child for key: the next unclaimed child first,
// then any later unclaimed child with an equal key.
func (c *Composer) claim(f *frame, key any) groupID {
	for f.cursor < len(f.oldKids) && f.claimed[f.cursor] {
		f.cursor++
	}
	for i := f.cursor; i < len(f.oldKids); i++ {
		if f.claimed[i] || !keyEqual(c.table.get(f.oldKids[i]).key, key) {
			continue
		}
		f.claimed[i] = true
		if i == f.cursor {
			f.cursor++
		}
		return f.oldKids[i]
	}
	return noGroup
}

// EndGroup closes the current group. Previous children that were not
// claimed are discarded.
func (c *Composer) EndGroup() {
	f := c.cur()
	if f.boundary {
		panic(fmt.Errorf("%w: EndGroup without StartGroup", ErrUnbalancedGroup))
	}
	c.finishFrame(f)
	c.frames = c.frames[:len(c.frames)-1]
}

func (c *Composer) finishFrame(f *frame) {
	if f.depth != 0 {
		panic(fmt.Errorf("%w: %d node(s) left open", ErrUnbalancedNode, f.depth))
	}
	for i, id := range f.oldKids {
		if !f.claimed[i] {
			c.table.discard(id)
		}
	}
	g := c.table.get(f.g)
	if !f.keep && f.slot < len(g.slots) {
		disposeSlots(g.slots[f.slot:])
		clear(g.slots[f.slot:])
		g.slots = g.slots[:f.slot]
	}
	g.children = f.kids
	g.ops = f.ops
}

// GetSlot returns the value remembered at the cursor.
func (c *Composer) GetSlot() (any, bool) {
	f := c.cur()
	g := c.table.get(f.g)
	if f.slot < len(g.slots) {
		return g.slots[f.slot], true
	}
	return nil, false
}

// SetSlot stores v at the cursor, disposing the value it replaces.
func (c *Composer) SetSlot(v any) {
	f := c.cur()
	g := c.table.get(f.g)
	if f.slot < len(g.slots) {
		if d, ok := g.slots[f.slot].(Disposer); ok {
			d.Dispose()
		}
		g.slots[f.slot] = v
		return
	}
	g.slots = append(g.slots, v)
}

// NextSlot advances the cursor.
func (c *Composer) NextSlot() {
	c.cur().slot++
}

// Remember returns the value stored at the cursor, creating it on the first
// execution, and advances the cursor.
func Remember[T any](c *Composer, create func() T) T {
	if v, ok := c.GetSlot(); ok {
		if t, ok := v.(T); ok {
			c.NextSlot()
			return t
		}
	}
	v := create()
	c.SetSlot(v)
	c.NextSlot()
	return v
}

// StartNode emits an element and makes it the current parent.
func (c *Composer) StartNode(spec NodeSpec) {
	f := c.cur()
	h := c.backend.OpenNode(spec)
	f.ops = append(f.ops, op{kind: opOpen, depth: f.depth, spec: spec, handle: h})
	f.depth++
}

// Text emits a text node. Empty text is ignored.
func (c *Composer) Text(s string) {
	if s == "" {
		return
	}
	f := c.cur()
	h := c.backend.Text(s)
	f.ops = append(f.ops, op{kind: opText, depth: f.depth, text: s, handle: h})
}

// EndNode closes the element opened by the matching StartNode.
func (c *Composer) EndNode() {
	f := c.cur()
	if f.depth == 0 {
		panic(fmt.Errorf("%w: EndNode without StartNode in group", ErrUnbalancedNode))
	}
	f.depth--
	c.backend.CloseNode()
	f.ops = append(f.ops, op{kind: opClose, depth: f.depth})
}

// Element emits spec with the output of body as its children.
func (c *Composer) Element(spec NodeSpec, body func()) {
	c.StartNode(spec)
	if body != nil {
		body()
	}
	c.EndNode()
}

// El is Element for a tag and attributes.
func (c *Composer) El(tag string, attrs []Attr, body func()) {
	c.Element(NodeSpec{Tag: tag, Attrs: attrs}, body)
}

// Component runs body in a restartable scope. While the scope is clean and
// props equal the previous props, body is skipped and its previous output is
// replayed.
func Component[P comparable](c *Composer, key any, props P, body func(c *Composer, props P)) {
	c.StartGroup(key)
	f := c.cur()
	g := c.table.get(f.g)
	sc := g.scope
	if sc == nil {
		sc = c.newScope(f.g, key)
	}
	sc.body = func(c *Composer) { body(c, props) }
	if sc.hasRun && !sc.dirty && propsEqual(sc.props, props) {
		c.replay()
	} else {
		sc.props = props
		c.runScope(sc)
	}
	c.EndGroup()
}

func propsEqual[P comparable](prev any, next P) bool {
	p, ok := prev.(P)
	return ok && keyEqual(p, next)
}

// Group runs body in a plain group. The body always executes when its
// parent does.
func Group(c *Composer, key any, body func(c *Composer)) {
	c.StartGroup(key)
	n := len(c.frames)
	body(c)
	if len(c.frames) != n {
		panic(fmt.Errorf("%w: group %v", ErrUnbalancedGroup, key))
	}
	c.EndGroup()
}

type userKey struct{ v any }

func (k userKey) String() string { return fmt.Sprint(k.v) }

// Key runs body in a group identified by key, so that moving it among its
// siblings keeps its remembered state.
func Key(c *Composer, key any, body func(c *Composer)) {
	Group(c, userKey{key}, body)
}

// runScope executes sc's body inside the current frame, isolating panics.
func (c *Composer) runScope(sc *Scope) {
	f := c.cur()
	n := len(c.frames)
	cp := c.backend.Checkpoint()

	sc.clearDeps()
	sc.dirty = false
	sc.hasRun = true
	sc.runs++
	c.scopes = append(c.scopes, sc)
	err := c.exec(sc)
	c.scopes = c.scopes[:len(c.scopes)-1]

	if err == nil {
		if len(c.frames) != n {
			panic(fmt.Errorf("%w: component %v", ErrUnbalancedGroup, sc.key))
		}
		return
	}

	for len(c.frames) > n {
		inner := c.frames[len(c.frames)-1]
		c.frames = c.frames[:len(c.frames)-1]
		c.abandon(inner)
	}
	c.backend.Rollback(cp)
	c.abandon(f)
	f.claimed = make([]bool, len(f.oldKids))
	f.cursor = 0
	f.kids = nil
	f.ops = nil
	f.depth = 0
	f.keep = true

	c.StartNode(NodeSpec{Tag: "div", Attrs: []Attr{
		{Name: AttrError, Value: fmt.Sprint(sc.key)},
		{Name: "role", Value: "alert"},
	}})
	c.Text("component error")
	c.EndNode()

	cerr := &CompositionError{Key: sc.key, Err: err}
	if c.opts.ErrorSink != nil {
		c.opts.ErrorSink(cerr)
		return
	}
	c.log.Error("component failed", zap.Any("key", sc.key), zap.Error(err))
}

func (c *Composer) exec(sc *Scope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if isAssertion(r) {
				panic(r)
			}
			err = panicError(r)
		}
	}()
	sc.body(c)
	return nil
}

// abandon discards the children a failed frame created.
func (c *Composer) abandon(f *frame) {
	for _, id := range f.kids {
		if !containsGroup(f.oldKids, id) {
			c.table.discard(id)
		}
	}
}

func containsGroup(ids []groupID, id groupID) bool {
	for _, k := range ids {
		if k == id {
			return true
		}
	}
	return false
}

// replay re-emits the current group's previous output, executing dirty
// scopes found below it.
func (c *Composer) replay() {
	f := c.cur()
	f.keep = true
	ops := c.table.get(f.g).ops
	for _, o := range ops {
		switch o.kind {
		case opOpen:
			c.StartNode(o.spec)
		case opText:
			c.Text(o.text)
		case opClose:
			c.EndNode()
		case opGroup:
			c.replayChild(f, o.child)
		}
	}
}

func (c *Composer) replayChild(f *frame, id groupID) {
	for i, k := range f.oldKids {
		if k == id {
			f.claimed[i] = true
			break
		}
	}
	c.enter(f, id)
	sc := c.table.get(id).scope
	if sc != nil && sc.body != nil && (sc.dirty || !sc.hasRun) {
		c.runScope(sc)
	} else {
		c.replay()
	}
	c.EndGroup()
}

// recompose brings every scope of batch up to date.
func (c *Composer) recompose(batch []*Scope) {
	c.composing++
	defer func() { c.composing-- }()

	run := make([]*Scope, 0, len(batch))
	for _, sc := range batch {
		if sc.disposed || !sc.dirty || c.dirtyAncestor(sc) {
			continue
		}
		run = append(run, sc)
	}
	if len(run) == 0 {
		return
	}
	sort.Slice(run, func(i, j int) bool { return run[i].seq < run[j].seq })

	rb, ok := c.backend.(Restarter)
	if !ok {
		c.fullPass()
		return
	}
	for _, sc := range run {
		if sc.disposed || !sc.dirty {
			continue
		}
		c.restart(rb, sc)
	}
}

func (c *Composer) dirtyAncestor(sc *Scope) bool {
	for id := c.table.get(sc.group).parent; id != noGroup; id = c.table.get(id).parent {
		if p := c.table.get(id).scope; p != nil && p.dirty {
			return true
		}
	}
	return false
}

// restart re-executes one scope in place.
func (c *Composer) restart(rb Restarter, sc *Scope) {
	g := c.table.get(sc.group)
	host := g.host
	old := c.topLevelHandles(sc.group, nil)
	before := c.nextHandle(sc.group)

	rb.Restart(host, old, before)
	f := c.openFrame(sc.group, true)
	c.runScope(sc)
	c.finishFrame(f)
	c.frames = c.frames[:len(c.frames)-1]
	rb.FinishRestart()
}

// topLevelHandles returns the handles the group emitted directly into its
// host container.
func (c *Composer) topLevelHandles(id groupID, out []Handle) []Handle {
	for _, o := range c.table.get(id).ops {
		if o.depth != 0 {
			continue
		}
		switch o.kind {
		case opOpen, opText:
			if o.handle != nil {
				out = append(out, o.handle)
			}
		case opGroup:
			out = c.topLevelHandles(o.child, out)
		}
	}
	return out
}

func (c *Composer) firstHandle(id groupID) Handle {
	for _, o := range c.table.get(id).ops {
		if o.depth != 0 {
			continue
		}
		switch o.kind {
		case opOpen, opText:
			return o.handle
		case opGroup:
			if h := c.firstHandle(o.child); h != nil {
				return h
			}
		}
	}
	return nil
}

// nextHandle returns the first node emitted after the group in the same
// container, or nil when the group ends its container.
func (c *Composer) nextHandle(id groupID) Handle {
	for {
		parent := c.table.get(id).parent
		if parent == noGroup {
			return nil
		}
		ops := c.table.get(parent).ops
		at, depth := -1, 0
		for i, o := range ops {
			if o.kind == opGroup && o.child == id {
				at, depth = i, o.depth
				break
			}
		}
		if at < 0 {
			return nil
		}
		for _, o := range ops[at+1:] {
			if o.depth < depth {
				return nil
			}
			if o.depth > depth {
				continue
			}
			switch o.kind {
			case opOpen, opText:
				return o.handle
			case opGroup:
				if h := c.firstHandle(o.child); h != nil {
					return h
				}
			}
		}
		if depth > 0 {
			return nil
		}
		id = parent
	}
}

func (c *Composer) deferWrites() bool {
	return c.composing > 0 || c.notifying > 0
}

func (c *Composer) queueWrite(w func()) {
	c.writes = append(c.writes, w)
}

func (c *Composer) beginWrite() {
	c.notifying++
}

func (c *Composer) endWrite() {
	c.notifying--
	if c.notifying > 0 {
		return
	}
	c.rec.collected()
	c.flushWrites()
}

// flushWrites applies writes queued while composing or notifying.
func (c *Composer) flushWrites() {
	for !c.deferWrites() && len(c.writes) > 0 {
		w := c.writes[0]
		c.writes = c.writes[1:]
		w()
	}
}
