package compose

// groupID addresses a group in the slot table arena.
type groupID int32

const (
	noGroup   groupID = -1
	rootGroup groupID = 0
)

type opKind uint8

const (
	opOpen opKind = iota
	opText
	opClose
	opGroup
)

// op is one recorded emission. depth is the node nesting level inside the
// owning group: for opClose it is the depth of the element being closed.
type op struct {
	kind   opKind
	depth  int
	spec   NodeSpec
	text   string
	child  groupID
	handle Handle
}

type group struct {
	key      any
	parent   groupID
	slots    []any
	children []groupID
	ops      []op
	scope    *Scope
	host     Handle
	live     bool
}

// SlotTable stores the groups of one composition root.
type SlotTable struct {
	groups []group
	free   []groupID
}

func (t *SlotTable) alloc(key any, parent groupID) groupID {
	g := group{key: key, parent: parent, live: true}
	if n := len(t.free); n > 0 {
		id := t.free[n-1]
		t.free = t.free[:n-1]
		t.groups[id] = g
		return id
	}
	t.groups = append(t.groups, g)
	return groupID(len(t.groups) - 1)
}

// get returns the group for id. The pointer is invalidated by alloc.
func (t *SlotTable) get(id groupID) *group {
	return &t.groups[id]
}

// Len returns the number of live groups.
func (t *SlotTable) Len() int {
	return len(t.groups) - len(t.free)
}

// discard frees a group and everything below it: remembered values are
// disposed and scopes are cancelled.
func (t *SlotTable) discard(id groupID) {
	if id == noGroup || int(id) >= len(t.groups) || !t.groups[id].live {
		return
	}
	children := t.groups[id].children
	for _, child := range children {
		t.discard(child)
	}
	g := t.get(id)
	disposeSlots(g.slots)
	if g.scope != nil {
		g.scope.dispose()
	}
	*g = group{parent: noGroup}
	t.free = append(t.free, id)
}

func disposeSlots(slots []any) {
	for i := len(slots) - 1; i >= 0; i-- {
		if d, ok := slots[i].(Disposer); ok {
			d.Dispose()
		}
	}
}

// keyEqual compares group keys, treating incomparable keys as distinct.
func keyEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
