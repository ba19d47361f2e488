package coverage

import (
	"github.com/pkg/errors"
)

// ErrMissingRequiredField is returned when a line or a resource is created
// without one of its identifying fields.
var ErrMissingRequiredField = errors.New("missing required field")

// State classifies a line.
type State string

// The states of a line.
const (
	StateSkipped State = "skipped"
	StateMissed  State = "missed"
	StateHit     State = "hit"
)

// A Line is one physical line of a resource.
type Line struct {
	// Number is the 0-based index of the line in its resource.
	Number  int    `json:"number"`
	Content string `json:"content"`

	// Hits is the number of times the line ran. Nil marks a line that does
	// not count toward coverage, such as a comment.
	Hits *int `json:"hits"`

	resource *Resource
}

// NewLine creates a line of a resource.
func NewLine(resource *Resource, number int, content string) (*Line, error) {
	if resource == nil {
		return nil, errors.Wrap(ErrMissingRequiredField, "resource")
	}

	if number < 0 {
		return nil, errors.Wrapf(ErrMissingRequiredField, "number %d", number)
	}

	return &Line{
		Number:   number,
		Content:  content,
		resource: resource,
	}, nil
}

// Resource returns the resource that contains the line.
func (l *Line) Resource() *Resource {
	return l.resource
}

// Skipped returns true if the line does not count toward coverage.
func (l *Line) Skipped() bool {
	return l.Hits == nil
}

// Missed returns true if the line counts but never ran.
func (l *Line) Missed() bool {
	return l.Hits != nil && *l.Hits == 0
}

// IsHit returns true if the line ran at least once.
func (l *Line) IsHit() bool {
	return l.Hits != nil && *l.Hits > 0
}

// State returns the state of the line.
func (l *Line) State() State {
	switch {
	case l.Skipped():
		return StateSkipped
	case l.Missed():
		return StateMissed
	default:
		return StateHit
	}
}

// Hit adds count to the hits of the line. A skipped line becomes counted.
// Hits never decrease, so a negative count is ignored.
func (l *Line) Hit(count int) {
	if count < 0 {
		return
	}

	if l.Hits == nil {
		l.Hits = new(int)
	}

	*l.Hits += count
}
