package coverage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/introspector/scope"
	"github.com/sarchlab/introspector/source"
)

// ImportError lists the resources that could not be read during an import.
// The other resources are imported regardless.
type ImportError struct {
	Failures map[string]error
}

func (e *ImportError) Error() string {
	paths := make([]string, 0, len(e.Failures))
	for p := range e.Failures {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	msgs := make([]string, 0, len(paths))
	for _, p := range paths {
		msgs = append(msgs, fmt.Sprintf("%s: %v", p, e.Failures[p]))
	}

	return "failed to load resources: " + strings.Join(msgs, "; ")
}

// An Aggregator accumulates raw hit tables into a coverage. It is safe for
// concurrent use.
type Aggregator struct {
	lock        sync.Mutex
	coverage    *Coverage
	sources     *source.Cache
	parallelism int
	logger      logr.Logger
}

// An AggregatorOption configures an Aggregator.
type AggregatorOption func(a *Aggregator)

// WithSources sets the cache resources are read through.
func WithSources(c *source.Cache) AggregatorOption {
	return func(a *Aggregator) { a.sources = c }
}

// WithParallelism sets how many files are read at the same time. Zero or
// less means no limit.
func WithParallelism(n int) AggregatorOption {
	return func(a *Aggregator) { a.parallelism = n }
}

// WithAggregatorLogger sets the logger.
func WithAggregatorLogger(l logr.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = l }
}

// NewAggregator creates an Aggregator whose coverage is filtered by s.
func NewAggregator(s *scope.Scope, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		coverage:    New(s),
		parallelism: 8,
		logger:      logr.Discard(),
	}

	for _, o := range opts {
		o(a)
	}

	if a.sources == nil {
		a.sources = source.NewCache(0)
	}

	return a
}

// Coverage returns a copy of the coverage accumulated so far. Later imports
// do not change the copy.
func (a *Aggregator) Coverage() *Coverage {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.coverage.Clone()
}

// ImportRaw adds the hit counts of raw to the coverage. Paths out of scope
// are ignored. The first time a path is seen its file is read into a
// resource; later imports add onto the same resource. Nil counts leave a
// line as it is.
//
// The returned coverage is a copy taken when the import completes. If some
// files cannot be read, the returned error is an *ImportError and the
// coverage holds every other resource.
func (a *Aggregator) ImportRaw(ctx context.Context, raw RawTable) (*Coverage, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	failures := a.loadResources(ctx, raw)

	for path, hits := range raw {
		r, ok := a.coverage.Resources[path]
		if !ok {
			continue
		}

		for i, count := range hits {
			if count == nil {
				continue
			}

			if l := r.Line(i); l != nil {
				l.Hit(*count)
			}
		}
	}

	if len(failures) > 0 {
		return a.coverage.Clone(), &ImportError{Failures: failures}
	}

	return a.coverage.Clone(), nil
}

// loadResources reads the files of the new in-scope paths of raw. Workers
// only touch local state; resources are added once all of them are done.
func (a *Aggregator) loadResources(ctx context.Context, raw RawTable) map[string]error {
	pending := make([]string, 0, len(raw))

	for path := range raw {
		if _, loaded := a.coverage.Resources[path]; loaded {
			continue
		}

		if a.coverage.Scope.Out(path) {
			continue
		}

		pending = append(pending, path)
	}

	var (
		lock     sync.Mutex
		loaded   = make(map[string]*Resource, len(pending))
		failures = map[string]error{}
	)

	g, gctx := errgroup.WithContext(ctx)
	if a.parallelism > 0 {
		g.SetLimit(a.parallelism)
	}

	for _, path := range pending {
		path := path
		g.Go(func() error {
			r, err := LoadResource(gctx, a.sources, path)

			lock.Lock()
			defer lock.Unlock()

			if err != nil {
				a.logger.Error(err, "cannot load resource", "path", path)
				failures[path] = err

				return nil
			}

			loaded[path] = r

			return nil
		})
	}

	_ = g.Wait()

	for path, r := range loaded {
		a.coverage.Resources[path] = r
	}

	return failures
}
