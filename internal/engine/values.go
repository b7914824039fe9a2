package engine

import "sort"

// =============================================================================
// Run-scoped Values
// =============================================================================

// Key names a typed value stored in a run's Values. Steps declare the keys
// they read and write as struct fields, so the pipeline builder wires
// producers to consumers when the graph is constructed.
type Key[T any] struct {
	name string
}

// NewKey creates a key. Two keys with the same name address the same slot;
// reading it through a key of another type reports the value as missing.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the slot name.
func (k Key[T]) Name() string {
	return k.name
}

// Values is the state store shared by the steps of one run.
type Values struct {
	m map[string]any
}

// NewValues creates an empty store.
func NewValues() *Values {
	return &Values{m: make(map[string]any)}
}

// Get reads a value. ok is false when nothing of type T was stored.
func Get[T any](v *Values, k Key[T]) (T, bool) {
	raw, exists := v.m[k.name]
	if !exists {
		var zero T
		return zero, false
	}
	val, ok := raw.(T)
	return val, ok
}

// Set stores a value, replacing any previous one.
func Set[T any](v *Values, k Key[T], val T) {
	v.m[k.name] = val
}

// Names returns the names of all stored values in sorted order.
func (v *Values) Names() []string {
	names := make([]string, 0, len(v.m))
	for name := range v.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
