package taint

import (
	"context"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
)

// An Invocation is the implementation behind an instrumented call site.
type Invocation func(ctx context.Context, args ...any) (any, error)

// SiteKey names a call site by the type that defines the method and the
// method name.
type SiteKey struct {
	Type   string
	Method string
}

func (k SiteKey) String() string {
	if k.Type == "" {
		return k.Method
	}

	return k.Type + "#" + k.Method
}

// A Site is a call site that instrumented code calls through, so that
// interceptors can be installed on it.
type Site struct {
	key      SiteKey
	location *Location
	fn       Invocation

	lock         sync.Mutex
	interceptors atomic.Pointer[[]interceptor]
}

// An interceptor sees the arguments of every call before the
// implementation runs.
type interceptor struct {
	owner  any
	before func(ctx context.Context, args []any)
}

func newSite(key SiteKey, fn Invocation) *Site {
	s := &Site{
		key:      key,
		location: definitionOf(fn),
		fn:       fn,
	}
	s.interceptors.Store(&[]interceptor{})

	return s
}

func definitionOf(fn Invocation) *Location {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return nil
	}

	path, line := f.FileLine(f.Entry())
	if path == "" {
		return nil
	}

	return &Location{Path: path, Line: line}
}

// Key returns the name of the site.
func (s *Site) Key() SiteKey {
	return s.key
}

// SourceLocation returns where the implementation of the site is defined.
func (s *Site) SourceLocation() (Location, bool) {
	if s.location == nil {
		return Location{}, false
	}

	return *s.location, true
}

// Call runs the interceptors of the site and then its implementation.
// Return values and errors of the implementation are passed through
// unchanged.
func (s *Site) Call(ctx context.Context, args ...any) (any, error) {
	for _, i := range *s.interceptors.Load() {
		i.before(ctx, args)
	}

	return s.fn(ctx, args...)
}

// NumInterceptors returns the number of interceptors installed on the site.
func (s *Site) NumInterceptors() int {
	return len(*s.interceptors.Load())
}

// intercept adds an interceptor of owner. It returns false if owner already
// has one on the site.
func (s *Site) intercept(
	owner any,
	before func(ctx context.Context, args []any),
) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	current := *s.interceptors.Load()
	for _, i := range current {
		if i.owner == owner {
			return false
		}
	}

	next := make([]interceptor, len(current), len(current)+1)
	copy(next, current)
	next = append(next, interceptor{owner: owner, before: before})
	s.interceptors.Store(&next)

	return true
}

// release removes the interceptor of owner.
func (s *Site) release(owner any) {
	s.lock.Lock()
	defer s.lock.Unlock()

	current := *s.interceptors.Load()
	next := make([]interceptor, 0, len(current))

	for _, i := range current {
		if i.owner != owner {
			next = append(next, i)
		}
	}

	s.interceptors.Store(&next)
}

// A Registry holds the call sites of a program.
type Registry struct {
	lock  sync.RWMutex
	sites map[SiteKey]*Site
}

// DefaultRegistry is the registry used by trackers created without
// WithRegistry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sites: make(map[SiteKey]*Site)}
}

// Register adds a call site. Registering the same site twice panics.
func (r *Registry) Register(typeName, method string, fn Invocation) *Site {
	if fn == nil {
		panic("invocation must not be nil")
	}

	key := SiteKey{Type: typeName, Method: method}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, exists := r.sites[key]; exists {
		panic("call site " + key.String() + " registered twice")
	}

	s := newSite(key, fn)
	r.sites[key] = s

	return s
}

// Lookup finds a registered call site.
func (r *Registry) Lookup(typeName, method string) (*Site, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	s, ok := r.sites[SiteKey{Type: typeName, Method: method}]

	return s, ok
}
