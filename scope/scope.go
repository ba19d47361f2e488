// Package scope decides which source locations are subject to
// instrumentation.
package scope

import (
	"regexp"
	"strings"
)

// Config lists the rules of a Scope. At most one rule decides a path, checked
// in field order: PathStartWith, PathEndWith, PathIncludePatterns,
// PathExcludePatterns.
type Config struct {
	// PathStartWith includes paths that start with this prefix.
	PathStartWith string

	// PathEndWith includes paths that end with this suffix.
	PathEndWith string

	// PathIncludePatterns includes paths matching any of the patterns. Paths
	// matching none are excluded.
	PathIncludePatterns []*regexp.Regexp

	// PathExcludePatterns excludes paths matching any of the patterns.
	PathExcludePatterns []*regexp.Regexp

	// Filter is consulted for paths that no other rule has decided on. It is
	// not part of the scope identity.
	Filter func(path string) bool
}

// A Scope is an immutable path predicate.
type Scope struct {
	startWith string
	endWith   string
	include   []*regexp.Regexp
	exclude   []*regexp.Regexp
	filter    func(path string) bool
}

// Empty returns a scope that includes every path.
func Empty() *Scope {
	return &Scope{}
}

// FromConfig builds a scope from a Config.
func FromConfig(c Config) *Scope {
	s := &Scope{
		startWith: c.PathStartWith,
		endWith:   c.PathEndWith,
		filter:    c.Filter,
	}

	s.include = append(s.include, c.PathIncludePatterns...)
	s.exclude = append(s.exclude, c.PathExcludePatterns...)

	return s
}

// Config returns a copy of the rules of the scope.
func (s *Scope) Config() Config {
	return Config{
		PathStartWith:       s.startWith,
		PathEndWith:         s.endWith,
		PathIncludePatterns: append([]*regexp.Regexp(nil), s.include...),
		PathExcludePatterns: append([]*regexp.Regexp(nil), s.exclude...),
		Filter:              s.filter,
	}
}

// IsEmpty returns true if the scope has no rule configured.
func (s *Scope) IsEmpty() bool {
	return s.startWith == "" &&
		s.endWith == "" &&
		len(s.include) == 0 &&
		len(s.exclude) == 0 &&
		s.filter == nil
}

// In returns true if the path is within the scope.
func (s *Scope) In(path string) bool {
	return s.in(path, true)
}

// Out returns true if the path is not within the scope.
func (s *Scope) Out(path string) bool {
	return !s.In(path)
}

// InLocation is In for locations that may have no path, such as code without
// source. A missing path never satisfies a prefix, suffix or include rule.
func (s *Scope) InLocation(path *string) bool {
	if path == nil {
		return s.in("", false)
	}

	return s.in(*path, true)
}

// OutLocation is the negation of InLocation.
func (s *Scope) OutLocation(path *string) bool {
	return !s.InLocation(path)
}

func (s *Scope) in(path string, present bool) bool {
	if s.startWith != "" {
		return present && strings.HasPrefix(path, s.startWith)
	}

	if s.endWith != "" {
		return present && strings.HasSuffix(path, s.endWith)
	}

	if len(s.include) > 0 {
		if !present {
			return false
		}

		for _, p := range s.include {
			if p.MatchString(path) {
				return true
			}
		}

		return false
	}

	if present {
		for _, p := range s.exclude {
			if p.MatchString(path) {
				return false
			}
		}
	}

	if s.filter != nil {
		return s.filter(path)
	}

	return true
}
