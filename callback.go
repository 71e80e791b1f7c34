package summon

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// CallbackRegistry stores the zero-argument closures captured by
// compose.Callback and executes them by id.
//
// Entries are multi-use and kept until released unless an eviction policy
// says otherwise: WithMaxEntries evicts the least recently used entry,
// WithTTL drops entries some time after registration, and WithSingleUse
// consumes an entry when it runs. The registry is safe for concurrent use;
// closures run outside its lock.
//
// The registry implements compose.CallbackRegistrar, compose.CallbackBinder
// and compose.CallbackReleaser, and dispatch.Executor for client-side use.
type CallbackRegistry struct {
	entries *expirable.LRU[string, *callbackEntry]

	maxEntries int
	ttl        time.Duration
	singleUse  bool
	now        func() time.Time
	newID      func() string
	log        *zap.Logger

	evicted atomic.Int64
}

type callbackEntry struct {
	fn      func()
	expires time.Time
}

// RegistryOption configures a CallbackRegistry.
type RegistryOption func(*CallbackRegistry)

// WithMaxEntries bounds the registry. Registering past the bound evicts the
// least recently used entry. Zero means unbounded.
func WithMaxEntries(n int) RegistryOption {
	return func(r *CallbackRegistry) { r.maxEntries = n }
}

// WithTTL expires entries d after they were registered. Zero disables
// expiry.
func WithTTL(d time.Duration) RegistryOption {
	return func(r *CallbackRegistry) { r.ttl = d }
}

// WithSingleUse removes an entry the first time it is executed.
func WithSingleUse() RegistryOption {
	return func(r *CallbackRegistry) { r.singleUse = true }
}

// WithClock replaces the time source used for expiry.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *CallbackRegistry) { r.now = now }
}

// WithIDGenerator replaces the uuid v7 id source. Tests use it for stable
// ids.
func WithIDGenerator(gen func() string) RegistryOption {
	return func(r *CallbackRegistry) { r.newID = gen }
}

// WithRegistryLogger sets the logger for evictions.
func WithRegistryLogger(l *zap.Logger) RegistryOption {
	return func(r *CallbackRegistry) { r.log = l }
}

// NewCallbackRegistry creates an empty registry.
func NewCallbackRegistry(opts ...RegistryOption) *CallbackRegistry {
	r := &CallbackRegistry{
		now:   time.Now,
		newID: newCallbackID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = Logger()
	}
	// The LRU expires entries on wall time as well, which bounds memory when
	// nobody calls Sweep; r.now decides what callers can still execute.
	r.entries = expirable.NewLRU[string, *callbackEntry](r.maxEntries, nil, r.ttl)
	return r
}

func newCallbackID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Register stores fn under a fresh id and returns the id.
func (r *CallbackRegistry) Register(fn func()) string {
	id := r.newID()
	r.Bind(id, fn)
	return id
}

// Bind stores fn under id, replacing any closure already stored there.
func (r *CallbackRegistry) Bind(id string, fn func()) {
	e := &callbackEntry{fn: fn}
	if r.ttl > 0 {
		e.expires = r.now().Add(r.ttl)
	}
	if r.entries.Add(id, e) {
		r.evicted.Add(1)
	}
}

// Execute runs the closure stored under id. It returns false when id is
// unknown, released, evicted or expired.
func (r *CallbackRegistry) Execute(id string) bool {
	e, ok := r.entries.Get(id)
	if !ok {
		return false
	}
	if e.expired(r.now()) {
		r.entries.Remove(id)
		return false
	}
	// Only the caller that removes a single-use entry may run it.
	if r.singleUse && !r.entries.Remove(id) {
		return false
	}
	if e.fn != nil {
		e.fn()
	}
	return true
}

// Has reports whether id is stored and not expired.
func (r *CallbackRegistry) Has(id string) bool {
	e, ok := r.entries.Peek(id)
	return ok && !e.expired(r.now())
}

// Release forgets id.
func (r *CallbackRegistry) Release(id string) {
	r.entries.Remove(id)
}

// Clear forgets every entry.
func (r *CallbackRegistry) Clear() {
	r.entries.Purge()
}

// Len returns the number of stored entries, expired ones included until the
// next Sweep.
func (r *CallbackRegistry) Len() int {
	return r.entries.Len()
}

// Evicted returns the number of entries dropped by the size bound.
func (r *CallbackRegistry) Evicted() int {
	return int(r.evicted.Load())
}

// Sweep removes expired entries and returns how many were removed.
func (r *CallbackRegistry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	now := r.now()
	n := 0
	for _, id := range r.entries.Keys() {
		if e, ok := r.entries.Peek(id); ok && e.expired(now) && r.entries.Remove(id) {
			n++
		}
	}
	if n > 0 {
		r.log.Debug("callbacks swept", zap.Int("removed", n), zap.Int("left", r.entries.Len()))
	}
	return n
}

func (e *callbackEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}
