package coverage

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/sarchlab/introspector/source"
)

// A Resource is a source file with the coverage state of each of its lines.
// The number of lines is fixed when the resource is created.
type Resource struct {
	Path  string  `json:"path"`
	Lines []*Line `json:"lines"`
}

// NewResource creates a resource from the lines of a file. All lines start
// skipped.
func NewResource(path string, lines []string) (*Resource, error) {
	if path == "" {
		return nil, errors.Wrap(ErrMissingRequiredField, "path")
	}

	r := &Resource{
		Path:  path,
		Lines: make([]*Line, 0, len(lines)),
	}

	for i, content := range lines {
		l, err := NewLine(r, i, content)
		if err != nil {
			return nil, err
		}

		r.Lines = append(r.Lines, l)
	}

	return r, nil
}

// LoadResource reads the file at path through the cache and creates a
// resource from it.
func LoadResource(
	ctx context.Context,
	cache *source.Cache,
	path string,
) (*Resource, error) {
	lines, err := cache.Lines(ctx, path)
	if err != nil {
		return nil, err
	}

	return NewResource(path, lines)
}

// Line returns the line at the 0-based index n, nil if out of range.
func (r *Resource) Line(n int) *Line {
	if n < 0 || n >= len(r.Lines) {
		return nil
	}

	return r.Lines[n]
}

// IsEmpty returns true if the resource has no lines.
func (r *Resource) IsEmpty() bool {
	return len(r.Lines) == 0
}

// HitLines returns the lines that ran.
func (r *Resource) HitLines() []*Line {
	return r.selectLines((*Line).IsHit)
}

// MissedLines returns the counted lines that never ran.
func (r *Resource) MissedLines() []*Line {
	return r.selectLines((*Line).Missed)
}

// SkippedLines returns the lines that do not count toward coverage.
func (r *Resource) SkippedLines() []*Line {
	return r.selectLines((*Line).Skipped)
}

// IncludedLines returns the lines that count toward coverage.
func (r *Resource) IncludedLines() []*Line {
	return r.selectLines(func(l *Line) bool { return !l.Skipped() })
}

func (r *Resource) selectLines(keep func(l *Line) bool) []*Line {
	lines := []*Line{}

	for _, l := range r.Lines {
		if keep(l) {
			lines = append(lines, l)
		}
	}

	return lines
}

// HitPercentage returns the share of counted lines that ran, from 0 to 100.
// A resource without counted lines is fully covered.
func (r *Resource) HitPercentage() float64 {
	if r.IsEmpty() {
		return 100
	}

	included := len(r.Lines) - len(r.SkippedLines())
	if included == 0 {
		return 100
	}

	return float64(len(r.HitLines())) / float64(included) * 100
}

// MissPercentage returns 100 minus the hit percentage.
func (r *Resource) MissPercentage() float64 {
	return 100 - r.HitPercentage()
}

func (r *Resource) clone() *Resource {
	c := &Resource{
		Path:  r.Path,
		Lines: make([]*Line, len(r.Lines)),
	}

	for i, l := range r.Lines {
		cl := *l
		cl.resource = c

		if l.Hits != nil {
			hits := *l.Hits
			cl.Hits = &hits
		}

		c.Lines[i] = &cl
	}

	return c
}

// UnmarshalJSON restores a resource and attaches its lines to it.
func (r *Resource) UnmarshalJSON(data []byte) error {
	type plain Resource

	p := plain{}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	*r = Resource(p)

	for _, l := range r.Lines {
		l.resource = r
	}

	return nil
}
