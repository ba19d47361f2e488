package coverage

import (
	"context"
	"sort"

	"github.com/sarchlab/introspector/datarecording"
	"github.com/sarchlab/introspector/scope"
)

// LineTable is the table that Record writes coverage lines to.
const LineTable = "coverage_lines"

type lineEntry struct {
	Path    string
	Number  int
	Content string
	State   string
	Hits    int
}

// Record writes every line of the coverage into a recorder. Skipped lines
// are stored with zero hits.
func Record(c *Coverage, recorder datarecording.DataRecorder) {
	recorder.CreateTable(LineTable, lineEntry{})

	paths := make([]string, 0, len(c.Resources))
	for p := range c.Resources {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	for _, p := range paths {
		for _, l := range c.Resources[p].Lines {
			entry := lineEntry{
				Path:    p,
				Number:  l.Number,
				Content: l.Content,
				State:   string(l.State()),
			}

			if l.Hits != nil {
				entry.Hits = *l.Hits
			}

			recorder.InsertData(LineTable, entry)
		}
	}

	recorder.Flush()
}

// Load rebuilds a coverage recorded by Record. Resources out of s are left
// out.
func Load(
	ctx context.Context,
	reader datarecording.DataReader,
	s *scope.Scope,
) (*Coverage, error) {
	reader.MapTable(LineTable, lineEntry{})

	rows, err := reader.Query(ctx, LineTable, datarecording.Selection{
		OrderBy: "Path, Number",
	})
	if err != nil {
		return nil, err
	}

	c := New(s)

	byPath := map[string][]*lineEntry{}
	paths := []string{}

	for _, row := range rows {
		entry := row.(*lineEntry)

		if _, seen := byPath[entry.Path]; !seen {
			paths = append(paths, entry.Path)
		}

		byPath[entry.Path] = append(byPath[entry.Path], entry)
	}

	for _, p := range paths {
		if c.Scope.Out(p) {
			continue
		}

		r, err := loadResource(p, byPath[p])
		if err != nil {
			return nil, err
		}

		c.Resources[p] = r
	}

	return c, nil
}

func loadResource(path string, entries []*lineEntry) (*Resource, error) {
	contents := make([]string, len(entries))
	for i, e := range entries {
		contents[i] = e.Content
	}

	r, err := NewResource(path, contents)
	if err != nil {
		return nil, err
	}

	for i, e := range entries {
		if State(e.State) == StateSkipped {
			continue
		}

		r.Lines[i].Hit(e.Hits)
	}

	return r, nil
}
