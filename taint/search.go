package taint

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// DefaultMaxDepth is how deep FindTaintInArguments descends into nested
// values.
const DefaultMaxDepth = 64

// A Match is an argument that carries the taint marker.
type Match struct {
	// Index is the position of the top-level argument.
	Index int

	// Value is the string that contains the marker.
	Value string
}

// FindTaintInArguments returns the first string that contains marker,
// searching args left to right and nested maps, sequences, pointers and
// struct fields depth first. Values nested deeper than DefaultMaxDepth are
// not searched.
func FindTaintInArguments(marker string, args []any) (Match, bool) {
	return findTaint(marker, args, DefaultMaxDepth)
}

func findTaint(marker string, args []any, maxDepth int) (Match, bool) {
	if marker == "" {
		return Match{}, false
	}

	for i, arg := range args {
		if value, ok := searchValue(marker, reflect.ValueOf(arg), maxDepth); ok {
			return Match{Index: i, Value: value}, true
		}
	}

	return Match{}, false
}

func searchValue(marker string, v reflect.Value, depth int) (string, bool) {
	if !v.IsValid() || depth < 0 {
		return "", false
	}

	switch v.Kind() {
	case reflect.String:
		s := v.String()
		return s, strings.Contains(s, marker)

	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return "", false
		}

		return searchValue(marker, v.Elem(), depth-1)

	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			s := bytesOf(v)
			return s, strings.Contains(s, marker)
		}

		for i := 0; i < v.Len(); i++ {
			if s, ok := searchValue(marker, v.Index(i), depth-1); ok {
				return s, true
			}
		}

	case reflect.Map:
		for _, k := range sortedKeys(v) {
			if s, ok := searchValue(marker, v.MapIndex(k), depth-1); ok {
				return s, true
			}
		}

	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if s, ok := searchValue(marker, v.Field(i), depth-1); ok {
				return s, true
			}
		}
	}

	return "", false
}

func bytesOf(v reflect.Value) string {
	b := make([]byte, v.Len())
	for i := range b {
		b[i] = byte(v.Index(i).Uint())
	}

	return string(b)
}

// sortedKeys orders map keys by their printed form so that the search order
// does not depend on map iteration.
func sortedKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()

	sort.SliceStable(keys, func(i, j int) bool {
		return keyString(keys[i]) < keyString(keys[j])
	})

	return keys
}

func keyString(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}

	if k.CanInterface() {
		return fmt.Sprint(k.Interface())
	}

	return k.String()
}
