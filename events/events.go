// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package events provides the event system for the Formant form engine:
// typed events scoped to a single page, listener registration, and a
// lock-free queue that carries asynchronous task completions back into the
// engine's single-threaded turn.
package events

// Types determines the type of engine event. Events describe transitions in
// the reactive state engine; they are scoped to one page and never global.
type Types int32

const (
	// UnknownType is the zero value, an unknown event type.
	UnknownType Types = iota

	// StateChanged is sent when a value in page state changes,
	// with Path set to the state key and Old/New to the values.
	StateChanged

	// DependencyChanged is sent to elements that declared a dependency on a
	// state key that changed.
	DependencyChanged

	// VisibilityChanged is sent when the effective visibility of an element
	// transitions, with Old/New set to the previous and new booleans.
	VisibilityChanged

	// Mounted is sent after an element transitions to effectively visible
	// and its default has been applied.
	Mounted

	// Unmounted is sent after an element transitions to effectively
	// invisible. Its state is preserved unless the element is ephemeral.
	Unmounted

	// ValidationRequested is sent when validation has been scheduled for an
	// element; requests within the debounce window coalesce into one run.
	ValidationRequested

	// ValidityChanged is sent when the validation result of an element
	// changes, with the result in Data under "result".
	ValidityChanged

	// DefaultApplied is sent when a literal or factory default value has
	// been stored for an element.
	DefaultApplied

	// DefaultApplyFailed is sent when a default factory returned an error
	// or panicked; no partial state is written.
	DefaultApplyFailed

	// FocusLost is sent to the previously focused element on any focus
	// transition, before FocusGained.
	FocusLost

	// FocusGained is sent to the newly focused element on any focus
	// transition, after FocusLost.
	FocusGained

	// TrapPushed is sent when a focus trap is activated for a scope.
	TrapPushed

	// TrapReleased is sent when a focus trap is released.
	TrapReleased

	// SnapshotApplied is sent after page state has been rehydrated from a
	// snapshot; hydrated elements do not reapply defaults on mount.
	SnapshotApplied

	// Invalidate is sent once per turn, after all other events, when
	// anything changed. It is the coalesced signal the renderer listens to.
	Invalidate

	// TypesN is the number of event types.
	TypesN
)

var typeNames = [TypesN]string{
	"unknown",
	"state.changed",
	"dependency.changed",
	"visibility.changed",
	"mounted",
	"unmounted",
	"validation.requested",
	"validity.changed",
	"default.applied",
	"default.apply-failed",
	"focus.lost",
	"focus.gained",
	"trap.pushed",
	"trap.released",
	"snapshot.applied",
	"invalidate",
}

// String returns the dotted name of the event type.
func (t Types) String() string {
	if t < 0 || t >= TypesN {
		return "invalid"
	}
	return typeNames[t]
}

// Event is one engine event. Fields beyond Type and Path are set only where
// meaningful for the type.
type Event struct {

	// Typ is the type of the event.
	Typ Types

	// Path is the dot-separated path of the element or state key that the
	// event concerns.
	Path string

	// Old is the previous value for change events.
	Old any

	// New is the new value for change events.
	New any

	// Data holds any additional type-specific payload.
	Data map[string]any

	// handled marks the event as processed, stopping further dispatch.
	handled bool
}

// NewEvent returns a new event of the given type for the given path.
func NewEvent(typ Types, path string) *Event {
	return &Event{Typ: typ, Path: path}
}

// Type returns the type of the event.
func (e *Event) Type() Types {
	return e.Typ
}

// SetHandled marks the event as handled, stopping further listener calls.
func (e *Event) SetHandled() {
	e.handled = true
}

// IsHandled returns whether the event has been marked as handled.
func (e *Event) IsHandled() bool {
	return e.handled
}
