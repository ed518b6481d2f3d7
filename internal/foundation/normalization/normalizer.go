// Package normalization maps loosely typed user input onto closed sets of
// values.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Enum is a closed set of values addressed by case-insensitive keys.
type Enum[T comparable] struct {
	name   string
	values map[string]T
	keys   []string // sorted, for error messages
}

// NewEnum creates an enum named name (used in errors) from key->value pairs.
// Keys are cleaned the same way as input.
func NewEnum[T comparable](name string, values map[string]T) *Enum[T] {
	e := &Enum[T]{name: name, values: make(map[string]T, len(values))}
	for k, v := range values {
		k = Clean(k)
		e.values[k] = v
		e.keys = append(e.keys, k)
	}
	sort.Strings(e.keys)
	return e
}

// Parse returns the value for raw, or the zero value and false.
func (e *Enum[T]) Parse(raw string) (T, bool) {
	v, ok := e.values[Clean(raw)]
	return v, ok
}

// Validate is Parse with an error naming the accepted keys.
func (e *Enum[T]) Validate(raw string) (T, error) {
	if v, ok := e.Parse(raw); ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, valid options: %v", e.name, raw, e.keys)
}

// Keys returns the accepted keys, sorted.
func (e *Enum[T]) Keys() []string {
	return append([]string(nil), e.keys...)
}

// Clean is the normalization applied to keys and input alike.
func Clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
