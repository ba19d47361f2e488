package coverage

import (
	"sync"

	"github.com/sarchlab/introspector/hooking"
)

// A Counter is a process-wide line-hit counter fed by line steps. It is
// safe for concurrent use.
type Counter struct {
	lock  sync.Mutex
	files map[string]map[int]int
}

// NewCounter creates an empty Counter.
func NewCounter() *Counter {
	return &Counter{files: make(map[string]map[int]int)}
}

// Attach subscribes the counter to the line steps of an observer.
func (c *Counter) Attach(o hooking.Observer) hooking.Subscription {
	return o.Subscribe(isLineStep, c)
}

func isLineStep(ctx hooking.HookCtx) bool {
	return ctx.Pos == hooking.HookPosLine
}

// Func counts the line step carried by the hook context.
func (c *Counter) Func(ctx hooking.HookCtx) {
	raw, ok := ctx.Item.(hooking.RawEvent)
	if !ok || raw.Kind != hooking.KindLine || !raw.HasSource() || raw.Line < 1 {
		return
	}

	c.Add(raw.Path, raw.Line, 1)
}

// Declare marks 1-based lines of a file as counted, so that they show as
// missed until they run.
func (c *Counter) Declare(path string, lines ...int) {
	c.lock.Lock()
	defer c.lock.Unlock()

	counts := c.fileCounts(path)
	for _, l := range lines {
		if _, ok := counts[l]; !ok && l > 0 {
			counts[l] = 0
		}
	}
}

// Add adds n hits to the 1-based line of a file.
func (c *Counter) Add(path string, line, n int) {
	if line < 1 {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	c.fileCounts(path)[line] += n
}

func (c *Counter) fileCounts(path string) map[int]int {
	counts, ok := c.files[path]
	if !ok {
		counts = make(map[int]int)
		c.files[path] = counts
	}

	return counts
}

// Snapshot returns a copy of the counts as a raw table. Lines neither
// declared nor hit are nil.
func (c *Counter) Snapshot() RawTable {
	c.lock.Lock()
	defer c.lock.Unlock()

	table := make(RawTable, len(c.files))

	for path, counts := range c.files {
		table[path] = toHits(counts)
	}

	return table
}

// Take returns the counts as Snapshot does and resets the counter in the
// same step, so that no hit is counted twice or lost between imports.
func (c *Counter) Take() RawTable {
	c.lock.Lock()
	defer c.lock.Unlock()

	table := make(RawTable, len(c.files))
	for path, counts := range c.files {
		table[path] = toHits(counts)
	}

	c.files = make(map[string]map[int]int)

	return table
}

// toHits turns counts of 1-based lines into a slice of 0-based counts.
func toHits(counts map[int]int) []*int {
	last := 0
	for l := range counts {
		if l > last {
			last = l
		}
	}

	hits := make([]*int, last)
	for l, n := range counts {
		n := n
		hits[l-1] = &n
	}

	return hits
}

// Reset drops all counts.
func (c *Counter) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.files = make(map[string]map[int]int)
}

var _ hooking.Hook = (*Counter)(nil)
