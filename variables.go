package flow_go

import (
	"fmt"
	"maps"
	"sync"
)

// DefaultKey is the reserved key behind SetDefault / Default.
const DefaultKey = "__default__"

// Variables is a concurrency-safe key/value bag.
//
// A Variables is either mutable (guarded by mu) or frozen.  A frozen bag owns an
// immutable snapshot and every mutator returns ErrIllegalMutation.  Node parameters
// are frozen when the node is built; RunContext attributes stay mutable for the
// lifetime of the run.
type Variables struct {
	mu     sync.RWMutex
	data   map[string]any
	frozen bool
}

// NewVariables returns an empty, mutable bag.
func NewVariables() *Variables {
	return &Variables{data: make(map[string]any)}
}

// NewVariablesFrom returns a mutable bag holding a copy of m.  Nil values are dropped.
func NewVariablesFrom(m map[string]any) *Variables {
	v := &Variables{data: make(map[string]any, len(m))}
	for k, val := range m {
		if val != nil {
			v.data[k] = val
		}
	}
	return v
}

// Set stores value under key.  A nil value is ignored.
func (v *Variables) Set(key string, value any) error {
	if value == nil {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.frozen {
		return fmt.Errorf("set %q: %w", key, ErrIllegalMutation)
	}
	v.data[key] = value
	return nil
}

// Get returns the value stored under key, or def when the key is absent.
func (v *Variables) Get(key string, def any) any {
	if val, ok := v.Lookup(key); ok {
		return val
	}
	return def
}

// Lookup returns the value stored under key and whether it exists.
func (v *Variables) Lookup(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.data[key]
	return val, ok
}

// Remove deletes the given keys.
func (v *Variables) Remove(keys ...string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.frozen {
		return fmt.Errorf("remove: %w", ErrIllegalMutation)
	}
	for _, k := range keys {
		delete(v.data, k)
	}
	return nil
}

// Exists reports whether key is present.
func (v *Variables) Exists(key string) bool {
	_, ok := v.Lookup(key)
	return ok
}

// Size returns the number of entries.
func (v *Variables) Size() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.data)
}

// Clear removes every entry.
func (v *Variables) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.frozen {
		return fmt.Errorf("clear: %w", ErrIllegalMutation)
	}
	clear(v.data)
	return nil
}

// All returns a copy of every entry.  Changes to the returned map are not reflected
// in the bag.
func (v *Variables) All() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return maps.Clone(v.data)
}

// Freeze returns a read-only snapshot of v.  Freezing an already frozen bag returns
// the receiver.
func (v *Variables) Freeze() *Variables {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.frozen {
		return v
	}
	return &Variables{data: maps.Clone(v.data), frozen: true}
}

// Frozen reports whether the bag is read-only.
func (v *Variables) Frozen() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.frozen
}

// SetDefault stores value under DefaultKey.
func (v *Variables) SetDefault(value any) error {
	return v.Set(DefaultKey, value)
}

// Default returns the value stored under DefaultKey, or nil.
func (v *Variables) Default() any {
	return v.Get(DefaultKey, nil)
}

// GetAs retrieves a typed value from v.
// Returns an error if the key is missing or the type doesn't match.
func GetAs[T any](v *Variables, key string) (T, error) {
	var zero T
	raw, ok := v.Lookup(key)
	if !ok {
		return zero, fmt.Errorf("variables: key %q not found", key)
	}
	val, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("variables: key %q: expected %T, got %T", key, zero, raw)
	}
	return val, nil
}
