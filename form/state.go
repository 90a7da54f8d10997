// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package form

import (
	"maps"
	"reflect"
	"slices"
	"time"
)

// Meta is the derived metadata the engine keeps per state key.
// External consumers may read it; only the engine writes it.
type Meta struct {

	// Validation is the most recent validation result for the element at
	// this key, or nil if it has never been validated.
	Validation *ValidationResult

	// VisibilityCached is the cached effective visibility, or nil if it has
	// not been computed.
	VisibilityCached *bool

	// DefaultsAppliedAt is when a default value was stored for this key,
	// or the zero time if none was.
	DefaultsAppliedAt time.Time

	// DefaultPending is set while an asynchronous default factory for this
	// key is outstanding.
	DefaultPending bool

	// Hydrated is set when the value came from an applied snapshot, in
	// which case mount does not reapply defaults.
	Hydrated bool
}

// PageState is the single source of truth for form values and their derived
// metadata, keyed by element path. All mutation goes through its Set and
// SetIfAbsent methods; elements never write to each other directly.
//
// PageState follows the engine's single-threaded model: it must only be
// accessed from the goroutine driving the page. Background tasks receive a
// read-only snapshot instead (see [PageState.Snapshot]).
type PageState struct {
	values   map[string]any
	meta     map[string]*Meta
	watchers map[string][]*watcher

	// onChange is the engine's hook into every mutation; nil for a
	// standalone store or a snapshot.
	onChange func(key string, old, new any, had bool)
}

type watcher struct {
	fun func(old, new any)
}

// NewPageState returns a new empty state store.
func NewPageState() *PageState {
	return &PageState{
		values:   map[string]any{},
		meta:     map[string]*Meta{},
		watchers: map[string][]*watcher{},
	}
}

// Get returns the value stored under the given key and whether one is
// stored. Reads of values for mounted elements always reflect the latest
// completed write, since all writes happen within engine turns.
func (s *PageState) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Has returns whether a value is stored under the given key.
func (s *PageState) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Set stores the given value under the given key. Setting a value that is
// deeply equal to the stored one is a no-op, which keeps dependency-driven
// recomputation from looping on redundant writes.
func (s *PageState) Set(key string, v any) {
	old, had := s.values[key]
	if had && reflect.DeepEqual(old, v) {
		return
	}
	s.values[key] = v
	s.notify(key, old, v, had)
}

// SetIfAbsent stores the given value only if no value is stored under the
// key, returning whether it stored. It is the primitive behind idempotent
// default application: within the engine's turn model the check and store
// are atomic, so concurrent mounts cannot double-apply.
func (s *PageState) SetIfAbsent(key string, v any) bool {
	if _, had := s.values[key]; had {
		return false
	}
	s.values[key] = v
	s.notify(key, nil, v, false)
	return true
}

// Delete removes the value stored under the given key, if any.
// Metadata for the key is kept.
func (s *PageState) Delete(key string) {
	old, had := s.values[key]
	if !had {
		return
	}
	delete(s.values, key)
	s.notify(key, old, nil, had)
}

func (s *PageState) notify(key string, old, v any, had bool) {
	if s.onChange != nil {
		s.onChange(key, old, v, had)
	}
	for _, w := range s.watchers[key] {
		w.fun(old, v)
	}
}

// Watch registers a function called on every change to the given key, with
// the old and new values. It returns a function that removes the watch.
func (s *PageState) Watch(key string, fun func(old, new any)) func() {
	w := &watcher{fun: fun}
	s.watchers[key] = append(s.watchers[key], w)
	return func() {
		ws := s.watchers[key]
		for i, x := range ws {
			if x == w {
				s.watchers[key] = slices.Delete(ws, i, i+1)
				return
			}
		}
	}
}

// Meta returns the metadata record for the given key, creating it if
// needed.
func (s *PageState) Meta(key string) *Meta {
	m := s.meta[key]
	if m == nil {
		m = &Meta{}
		s.meta[key] = m
	}
	return m
}

// Keys returns all keys with stored values, sorted.
func (s *PageState) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Snapshot returns a read-only copy of the current values, detached from
// watchers and the engine. It is what background validator and factory
// tasks evaluate against, so they never touch the live store.
func (s *PageState) Snapshot() *PageState {
	return &PageState{
		values:   maps.Clone(s.values),
		meta:     map[string]*Meta{},
		watchers: map[string][]*watcher{},
	}
}
