package scope

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/pkg/errors"
)

// ErrInvalidConfiguration is returned when a scope is built from a value that
// is neither a Scope, a Config, a configuration map nor nil, or when a
// configuration map holds a value of the wrong type.
var ErrInvalidConfiguration = errors.New("invalid scope configuration")

// ErrUnknownOption is returned when a configuration map holds a key that does
// not name a scope rule.
var ErrUnknownOption = errors.New("unknown scope option")

// Configuration map keys.
const (
	OptionPathStartWith       = "path_start_with"
	OptionPathEndWith         = "path_end_with"
	OptionPathIncludePatterns = "path_include_patterns"
	OptionPathExcludePatterns = "path_exclude_patterns"
)

// New builds a scope from v. v may be a *Scope (returned as is), a Config or
// *Config, a map[string]any keyed by the Option* constants, or nil (the empty
// scope).
func New(v any) (*Scope, error) {
	switch c := v.(type) {
	case nil:
		return Empty(), nil
	case *Scope:
		if c == nil {
			return Empty(), nil
		}

		return c, nil
	case Config:
		return FromConfig(c), nil
	case *Config:
		if c == nil {
			return Empty(), nil
		}

		return FromConfig(*c), nil
	case map[string]any:
		return fromMap(c)
	default:
		return nil, errors.Wrapf(ErrInvalidConfiguration, "unsupported type %T", v)
	}
}

// MustNew is New that panics on error.
func MustNew(v any) *Scope {
	s, err := New(v)
	if err != nil {
		panic(err)
	}

	return s
}

func fromMap(m map[string]any) (*Scope, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	c := Config{}

	for _, k := range keys {
		v := m[k]

		var err error

		switch k {
		case OptionPathStartWith:
			c.PathStartWith, err = stringOption(k, v)
		case OptionPathEndWith:
			c.PathEndWith, err = stringOption(k, v)
		case OptionPathIncludePatterns:
			c.PathIncludePatterns, err = patternsOption(k, v)
		case OptionPathExcludePatterns:
			c.PathExcludePatterns, err = patternsOption(k, v)
		default:
			err = errors.Wrapf(ErrUnknownOption, "%q", k)
		}

		if err != nil {
			return nil, err
		}
	}

	return FromConfig(c), nil
}

func stringOption(key string, v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	default:
		return "", errors.Wrapf(ErrInvalidConfiguration,
			"%s must be a string, got %T", key, v)
	}
}

func patternsOption(key string, v any) ([]*regexp.Regexp, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []*regexp.Regexp:
		return append([]*regexp.Regexp(nil), list...), nil
	case []string:
		items := make([]any, len(list))
		for i, s := range list {
			items[i] = s
		}

		return compileAll(key, items)
	case []any:
		return compileAll(key, list)
	case string, *regexp.Regexp:
		return compileAll(key, []any{list})
	default:
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"%s must be a list of patterns, got %T", key, v)
	}
}

func compileAll(key string, items []any) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(items))

	for i, item := range items {
		switch p := item.(type) {
		case *regexp.Regexp:
			patterns = append(patterns, p)
		case string:
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidConfiguration,
					"%s[%d]: %v", key, i, err)
			}

			patterns = append(patterns, re)
		default:
			return nil, errors.Wrap(ErrInvalidConfiguration,
				fmt.Sprintf("%s[%d] must be a pattern, got %T", key, i, item))
		}
	}

	return patterns, nil
}
