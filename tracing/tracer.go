package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/rs/xid"

	"github.com/sarchlab/introspector/hooking"
	"github.com/sarchlab/introspector/idgen"
	"github.com/sarchlab/introspector/scope"
	"github.com/sarchlab/introspector/source"
)

// A TimeTeller can tell the current time.
type TimeTeller interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now()
}

// sequenceLock is the single point where sequence IDs are handed out and
// events are appended, so that ID order is append order in every trace.
var sequenceLock sync.Mutex

// A Tracer records the execution steps of units of work.
type Tracer struct {
	observer       hooking.Observer
	scope          *scope.Scope
	captureContext bool
	timeTeller     TimeTeller
	ids            idgen.Generator
	sources        *source.Cache
	logger         logr.Logger
}

// An Option configures a Tracer.
type Option func(t *Tracer)

// WithObserver sets where the tracer subscribes to execution steps. The
// default is hooking.Default.
func WithObserver(o hooking.Observer) Option {
	return func(t *Tracer) { t.observer = o }
}

// WithScope sets the scope events are filtered with.
func WithScope(s *scope.Scope) Option {
	return func(t *Tracer) { t.scope = s }
}

// WithCaptureContext enables frame snapshots.
func WithCaptureContext(capture bool) Option {
	return func(t *Tracer) { t.captureContext = capture }
}

// WithTimeTeller sets the clock used for event timestamps.
func WithTimeTeller(tt TimeTeller) Option {
	return func(t *Tracer) { t.timeTeller = tt }
}

// WithIDGenerator sets the generator of sequence IDs. The default is the
// process-wide generator.
func WithIDGenerator(g idgen.Generator) Option {
	return func(t *Tracer) { t.ids = g }
}

// WithSourceCache makes the tracer fill Event.Source from the cache.
func WithSourceCache(c *source.Cache) Option {
	return func(t *Tracer) { t.sources = c }
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(t *Tracer) { t.logger = l }
}

// NewTracer creates a Tracer.
func NewTracer(opts ...Option) *Tracer {
	t := &Tracer{
		observer:   hooking.Default,
		scope:      scope.Empty(),
		timeTeller: wallClock{},
		ids:        idgen.Process(),
		logger:     logr.Discard(),
	}

	for _, o := range opts {
		o(t)
	}

	if t.observer == nil {
		panic("observer must not be nil")
	}

	if t.scope == nil {
		t.scope = scope.Empty()
	}

	return t
}

// Scope returns the scope of the tracer.
func (t *Tracer) Scope() *scope.Scope {
	return t.scope
}

// Trace runs block and records the steps it executes. The subscription to the
// observer is removed when block returns or panics. The context passed to
// block marks the steps of this trace; steps reported without a trace
// context are recorded by every running trace.
func (t *Tracer) Trace(
	ctx context.Context,
	block func(ctx context.Context) error,
) (*Trace, error) {
	trace := NewTrace(xid.New().String(), t.scope, t.captureContext)
	hook := &traceHook{tracer: t, trace: trace}

	sub := t.observer.Subscribe(hook.accepts, hook)
	defer t.observer.Unsubscribe(sub)

	t.logger.V(1).Info("trace started", "trace", trace.ID)

	err := block(hooking.WithSession(ctx, trace.ID))

	t.logger.V(1).Info("trace finished", "trace", trace.ID, "events", trace.Len())

	return trace, err
}

func (t *Tracer) record(trace *Trace, raw hooking.RawEvent) {
	var path *string
	if raw.HasSource() {
		p := raw.Path
		path = &p
	}

	if t.scope.OutLocation(path) {
		return
	}

	e := &Event{
		Path:        path,
		DefinedType: raw.DefinedType,
		Method:      raw.Method,
		Kind:        raw.Kind,
	}

	if path != nil && raw.Line > 0 {
		line := raw.Line
		e.Line = &line

		if t.sources != nil {
			e.Source, _ = t.sources.Line(ctxOrBackground(raw.Ctx), raw.Path, raw.Line)
		}
	}

	if trace.CaptureContext && raw.Frame == nil {
		t.logger.V(2).Info("no frame to capture", "event", e.String())
	}

	sequenceLock.Lock()
	defer sequenceLock.Unlock()

	e.SequenceID = t.ids.Generate()
	e.Timestamp = t.timeTeller.Now().Round(0)
	trace.append(e, raw.Frame)
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}

	return ctx
}
