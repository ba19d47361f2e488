// Package coverage turns raw per-line hit counts into per-file coverage
// statistics.
package coverage

import (
	"encoding/json"

	"github.com/sarchlab/introspector/scope"
)

// RawTable maps a file path to the hit counts of its lines, indexed by
// 0-based line number. A nil count marks a line that does not count toward
// coverage.
type RawTable map[string][]*int

// Coverage holds the in-scope resources of an application.
type Coverage struct {
	Scope     *scope.Scope
	Resources map[string]*Resource
}

// New creates an empty coverage. A nil scope is the empty scope.
func New(s *scope.Scope) *Coverage {
	if s == nil {
		s = scope.Empty()
	}

	return &Coverage{
		Scope:     s,
		Resources: make(map[string]*Resource),
	}
}

// Percentage returns the mean of the hit percentages of the resources. Every
// resource weighs the same regardless of its size. Coverage without
// resources is 100.
func (c *Coverage) Percentage() float64 {
	if len(c.Resources) == 0 {
		return 100
	}

	total := 0.0
	for _, r := range c.Resources {
		total += r.HitPercentage()
	}

	return total / float64(len(c.Resources))
}

// Clone returns a deep copy of the coverage. The scope is shared.
func (c *Coverage) Clone() *Coverage {
	cp := New(c.Scope)

	for path, r := range c.Resources {
		cp.Resources[path] = r.clone()
	}

	return cp
}

type coverageData struct {
	Resources map[string]*Resource `json:"resources"`
}

// MarshalJSON serializes the resources. The scope is not serialized.
func (c *Coverage) MarshalJSON() ([]byte, error) {
	resources := c.Resources
	if resources == nil {
		resources = map[string]*Resource{}
	}

	return json.Marshal(coverageData{Resources: resources})
}

// UnmarshalJSON restores the resources. A coverage without a scope gets the
// empty scope.
func (c *Coverage) UnmarshalJSON(data []byte) error {
	d := coverageData{}
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}

	c.Resources = d.Resources
	if c.Resources == nil {
		c.Resources = make(map[string]*Resource)
	}

	if c.Scope == nil {
		c.Scope = scope.Empty()
	}

	return nil
}
