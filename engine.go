package introspector

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"

	"github.com/sarchlab/introspector/coverage"
	"github.com/sarchlab/introspector/datarecording"
	"github.com/sarchlab/introspector/hooking"
	"github.com/sarchlab/introspector/source"
	"github.com/sarchlab/introspector/taint"
	"github.com/sarchlab/introspector/tracing"
)

// An Engine puts tracing, coverage and taint tracking together for a
// program that serves requests.
type Engine struct {
	config   Config
	logger   logr.Logger
	observer *hooking.Dispatcher
	registry *taint.Registry

	tracer     *tracing.Tracer
	counter    *coverage.Counter
	counterSub hooking.Subscription
	aggregator *coverage.Aggregator
	tracker    *taint.Tracker

	recorder datarecording.DataRecorder
	runInfo  *datarecording.RunInfo

	lock   sync.Mutex
	traces map[string]*tracing.Trace
	flows  map[string]*taint.DataFlow
	closed bool
}

// An EngineOption configures an Engine.
type EngineOption func(e *Engine)

// WithLogger sets the logger. The default writes text to stderr.
func WithLogger(l logr.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithDispatcher sets where steps are observed. The default is
// hooking.Default.
func WithDispatcher(d *hooking.Dispatcher) EngineOption {
	return func(e *Engine) { e.observer = d }
}

// WithRegistry sets where the configured call sites are looked up. The
// default is taint.DefaultRegistry.
func WithRegistry(r *taint.Registry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

// NewEngine creates an Engine and installs the interceptors of the
// configured call sites.
func NewEngine(c Config, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		config:   c,
		observer: hooking.Default,
		registry: taint.DefaultRegistry,
		traces:   make(map[string]*tracing.Trace),
		flows:    make(map[string]*taint.DataFlow),
	}

	e.logger = NewLogger(os.Stderr, c.LogVerbosity)

	for _, o := range opts {
		o(e)
	}

	s, err := c.scopes()
	if err != nil {
		return nil, err
	}

	sources := source.NewCache(0)

	tracerOpts := []tracing.Option{
		tracing.WithObserver(e.observer),
		tracing.WithScope(s.trace),
		tracing.WithCaptureContext(c.Trace.CaptureContext),
		tracing.WithLogger(e.logger.WithName("tracing")),
	}
	if c.Trace.WithSource {
		tracerOpts = append(tracerOpts, tracing.WithSourceCache(sources))
	}

	e.tracer = tracing.NewTracer(tracerOpts...)

	e.aggregator = coverage.NewAggregator(s.coverage,
		coverage.WithSources(sources),
		coverage.WithParallelism(c.Coverage.Parallelism),
		coverage.WithAggregatorLogger(e.logger.WithName("coverage")),
	)

	e.tracker = taint.NewTracker(
		taint.WithRegistry(e.registry),
		taint.WithScope(s.taint),
		taint.WithMaxDepth(c.Taint.MaxDepth),
		taint.WithLogger(e.logger.WithName("taint")),
	)

	for _, site := range c.Taint.Sites {
		if err := e.tracker.InstallInterceptor(site.Type, site.Method); err != nil {
			return nil, err
		}
	}

	if c.Recording.Path != "" {
		e.recorder = datarecording.New(c.Recording.Path)
		e.runInfo = datarecording.NewRunInfo(e.recorder)
		e.runInfo.Start()

		e.logger.Info("recording", "path", c.Recording.Path)
	}

	e.counter = coverage.NewCounter()
	e.counterSub = e.counter.Attach(e.observer)

	return e, nil
}

// Tracker returns the taint tracker of the engine.
func (e *Engine) Tracker() *taint.Tracker {
	return e.tracker
}

// Counter returns the line-hit counter fed by the observed line steps.
func (e *Engine) Counter() *coverage.Counter {
	return e.counter
}

// RunTraced runs block under the tracer of the engine and keeps the trace
// under id.
func (e *Engine) RunTraced(
	ctx context.Context,
	id string,
	block func(ctx context.Context) error,
) (*tracing.Trace, error) {
	trace, err := e.tracer.Trace(ctx, block)
	e.keepTrace(id, trace)

	return trace, err
}

// Middleware traces the requests that carry the trace header, keeping each
// trace under the header value, and tracks the taint marker of the requests
// that carry the marker header.
func (e *Engine) Middleware() mux.MiddlewareFunc {
	header := e.config.Trace.Header
	if header == "" {
		header = DefaultTraceHeader
	}

	withTaint := taint.Middleware(e.tracker, e.config.Taint.MarkerHeader,
		func(r *http.Request, flow *taint.DataFlow) {
			e.keepFlow(r.Header.Get(header), flow)
		})

	return func(next http.Handler) http.Handler {
		traced := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(header)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			_, _ = e.RunTraced(r.Context(), id, func(ctx context.Context) error {
				next.ServeHTTP(w, r.WithContext(ctx))
				return nil
			})
		})

		return withTaint(traced)
	}
}

func (e *Engine) keepTrace(id string, trace *tracing.Trace) {
	if id == "" {
		id = trace.ID
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	e.traces[id] = trace

	if e.recorder != nil && !e.closed {
		tracing.Record(trace, e.recorder)
	}
}

func (e *Engine) keepFlow(id string, flow *taint.DataFlow) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if id != "" {
		if kept, ok := e.flows[id]; ok {
			kept.Sinks = append(kept.Sinks, flow.Sinks...)
		} else {
			e.flows[id] = flow
		}
	}

	if e.recorder != nil && !e.closed {
		taint.Record(id, flow, e.recorder)
	}
}

// Traces returns the kept traces by id.
func (e *Engine) Traces() map[string]*tracing.Trace {
	e.lock.Lock()
	defer e.lock.Unlock()

	traces := make(map[string]*tracing.Trace, len(e.traces))
	for id, t := range e.traces {
		traces[id] = t
	}

	return traces
}

// DataFlows returns the data flows of the requests that carried both the
// trace header and the marker header, by trace id.
func (e *Engine) DataFlows() map[string]*taint.DataFlow {
	e.lock.Lock()
	defer e.lock.Unlock()

	flows := make(map[string]*taint.DataFlow, len(e.flows))
	for id, f := range e.flows {
		flows[id] = f
	}

	return flows
}

// ImportCoverage moves the line hits counted so far into the coverage.
func (e *Engine) ImportCoverage(ctx context.Context) (*coverage.Coverage, error) {
	return e.aggregator.ImportRaw(ctx, e.counter.Take())
}

// Close stops counting lines, removes the interceptors of the engine from
// the call sites, records the coverage and closes the recording.
func (e *Engine) Close() error {
	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		return nil
	}

	e.closed = true
	e.lock.Unlock()

	e.observer.Unsubscribe(e.counterSub)
	e.tracker.UninstallInterceptors()

	if e.recorder == nil {
		return nil
	}

	coverage.Record(e.aggregator.Coverage(), e.recorder)
	e.runInfo.End()

	return e.recorder.Close()
}
