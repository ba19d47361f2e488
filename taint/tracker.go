package taint

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/sarchlab/introspector/scope"
)

// ErrUnknownCallSite is returned when installing an interceptor on a call
// site that is not registered.
var ErrUnknownCallSite = errors.New("unknown call site")

const maxBacktrace = 64

type correlationKey struct{}

// WithCorrelationKey marks ctx as belonging to the unit of work key. Calls
// made with the returned context are checked against the marker of key.
func WithCorrelationKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, correlationKey{}, key)
}

// CorrelationKeyOf returns the unit of work ctx belongs to.
func CorrelationKeyOf(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	key, ok := ctx.Value(correlationKey{}).(string)

	return key, ok && key != ""
}

// flowState is the marker and the sinks of one unit of work.
type flowState struct {
	lock   sync.Mutex
	marker string
	sinks  []*Sink
}

// A Tracker records the sinks that instrumented call sites receive. Units of
// work are told apart by the correlation key carried in the context of the
// call, so that concurrent units never see each other's marker or sinks.
type Tracker struct {
	registry *Registry
	scope    *scope.Scope
	maxDepth int
	logger   logr.Logger

	installLock sync.Mutex
	installed   map[SiteKey]*Site

	states sync.Map
}

// A TrackerOption configures a Tracker.
type TrackerOption func(t *Tracker)

// WithRegistry sets where call sites are looked up. The default is
// DefaultRegistry.
func WithRegistry(r *Registry) TrackerOption {
	return func(t *Tracker) { t.registry = r }
}

// WithScope sets the scope that the innermost application frame of a call
// must be in for a sink to be recorded.
func WithScope(s *scope.Scope) TrackerOption {
	return func(t *Tracker) { t.scope = s }
}

// WithMaxDepth sets how deep arguments are searched.
func WithMaxDepth(depth int) TrackerOption {
	return func(t *Tracker) { t.maxDepth = depth }
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates a Tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		registry:  DefaultRegistry,
		scope:     scope.Empty(),
		maxDepth:  DefaultMaxDepth,
		logger:    logr.Discard(),
		installed: make(map[SiteKey]*Site),
	}

	for _, o := range opts {
		o(t)
	}

	if t.scope == nil {
		t.scope = scope.Empty()
	}

	return t
}

// Scope returns the scope of the tracker.
func (t *Tracker) Scope() *scope.Scope {
	return t.scope
}

// InstallInterceptor makes the call site check its arguments for the active
// marker before running. Installing twice on the same site does nothing.
func (t *Tracker) InstallInterceptor(typeName, method string) error {
	site, ok := t.registry.Lookup(typeName, method)
	if !ok {
		return errors.Wrapf(ErrUnknownCallSite, "%s",
			SiteKey{Type: typeName, Method: method})
	}

	t.installLock.Lock()
	defer t.installLock.Unlock()

	if _, done := t.installed[site.Key()]; done {
		return nil
	}

	site.intercept(t, func(ctx context.Context, args []any) {
		t.inspect(ctx, site, args)
	})

	t.installed[site.Key()] = site

	t.logger.V(1).Info("interceptor installed", "site", site.Key().String())

	return nil
}

// UninstallInterceptors removes the interceptors of the tracker from every
// call site. Other trackers keep theirs.
func (t *Tracker) UninstallInterceptors() {
	t.installLock.Lock()
	defer t.installLock.Unlock()

	for key, site := range t.installed {
		site.release(t)
		delete(t.installed, key)

		t.logger.V(1).Info("interceptor removed", "site", key.String())
	}
}

// Installed returns true if an interceptor is installed on the call site.
func (t *Tracker) Installed(typeName, method string) bool {
	t.installLock.Lock()
	defer t.installLock.Unlock()

	_, ok := t.installed[SiteKey{Type: typeName, Method: method}]

	return ok
}

// SetActiveMarker sets the marker of a unit of work.
func (t *Tracker) SetActiveMarker(key, marker string) {
	s := t.state(key)

	s.lock.Lock()
	defer s.lock.Unlock()

	s.marker = marker
}

// ActiveMarker returns the marker of a unit of work.
func (t *Tracker) ActiveMarker(key string) (string, bool) {
	v, ok := t.states.Load(key)
	if !ok {
		return "", false
	}

	s := v.(*flowState)

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.marker, s.marker != ""
}

// FlushSinks returns the sinks recorded for a unit of work and forgets them.
// The marker stays active.
func (t *Tracker) FlushSinks(key string) *DataFlow {
	flow := NewDataFlow(t.scope)

	v, ok := t.states.Load(key)
	if !ok {
		return flow
	}

	s := v.(*flowState)

	s.lock.Lock()
	sinks := s.sinks
	s.sinks = nil
	s.lock.Unlock()

	for _, sink := range sinks {
		flow.add(sink)
	}

	return flow
}

// Forget drops the marker and the sinks of a unit of work.
func (t *Tracker) Forget(key string) {
	t.states.Delete(key)
}

func (t *Tracker) state(key string) *flowState {
	v, _ := t.states.LoadOrStore(key, &flowState{})
	return v.(*flowState)
}

func (t *Tracker) inspect(ctx context.Context, site *Site, args []any) {
	key, ok := CorrelationKeyOf(ctx)
	if !ok {
		return
	}

	marker, ok := t.ActiveMarker(key)
	if !ok {
		return
	}

	match, found := findTaint(marker, args, t.maxDepth)
	if !found {
		return
	}

	frames := backtrace()
	if len(frames) > 0 && t.scope.Out(frames[0].File) {
		return
	}

	sink := &Sink{
		Object:               site.Key().Type,
		MethodName:           site.Key().Method,
		Arguments:            stringify(args),
		TaintedArgumentIndex: match.Index,
		TaintedValue:         match.Value,
		Backtrace:            formatFrames(frames),
	}

	if loc, ok := site.SourceLocation(); ok {
		sink.MethodSourceLocation = &loc
	}

	s := t.state(key)

	s.lock.Lock()
	s.sinks = append(s.sinks, sink)
	s.lock.Unlock()
}

func stringify(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = fmt.Sprint(a)
	}

	return out
}

const packagePrefix = "github.com/sarchlab/introspector/taint."

// backtrace returns the frames of the current goroutine without the frames
// of this package and of the runtime, innermost first.
func backtrace() []runtime.Frame {
	pcs := make([]uintptr, maxBacktrace)
	n := runtime.Callers(2, pcs)

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]runtime.Frame, 0, n)

	for {
		f, more := frames.Next()

		if !strings.HasPrefix(f.Function, packagePrefix) &&
			!strings.HasPrefix(f.Function, "runtime.") {
			out = append(out, f)
		}

		if !more {
			break
		}
	}

	return out
}

func formatFrames(frames []runtime.Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = fmt.Sprintf("%s:%d:in %s", f.File, f.Line, f.Function)
	}

	return out
}
