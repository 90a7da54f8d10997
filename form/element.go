// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package form implements the reactive state engine of the Formant
// terminal-form framework: a [Page] owns a tree of [Container] and [Field]
// elements and keeps their visibility, validated state, default values, and
// keyboard focus consistent as user input, asynchronous validators, and
// structural tree edits interleave.
//
// The engine is single-threaded and cooperative: all state transitions run
// within one logical turn on the caller's goroutine. Only validator and
// default-factory bodies run in the background; their results come back
// through a lock-free queue and are applied inside a turn, guarded by
// per-element version tokens so that stale results are discarded rather
// than applied out of order. A [Page] must therefore be driven from a
// single goroutine, typically the terminal event loop.
package form

import (
	"github.com/formantui/formant/tree"
)

// Element is the interface satisfied by all form elements. The
// functionality shared by containers and fields is implemented on
// [ElementBase]; call [Element.AsElement] to access it.
type Element interface {
	tree.Node

	// AsElement returns the [ElementBase] of this element.
	AsElement() *ElementBase
}

// Focusable is the capability interface for elements that can receive
// keyboard focus.
type Focusable interface {

	// IsFocusable reports whether the element can currently receive focus.
	IsFocusable() bool
}

// Valuable is the capability interface for leaf elements that hold a value
// in page state under their path. Containers do not implement it.
type Valuable interface {

	// HasValue reports whether the element holds a value in page state.
	HasValue() bool
}

// Validatable is the capability interface for elements that carry
// validators.
type Validatable interface {

	// ElementValidators returns the ordered validator list of the element.
	ElementValidators() []*Validator
}

// Predicate is a visibility condition evaluated against page state.
// Deps must list every state key the function reads; the engine uses them
// to recompute visibility only when a consumed key changes, and to reject
// circular predicate dependencies at registration time.
type Predicate struct {

	// Func returns whether the element should be visible given the current
	// state. A panic inside Func is recovered and resolves to visible.
	Func func(s *PageState) bool

	// Deps are the state keys the predicate reads.
	Deps []string
}

// VisibleWhenEq returns a predicate that makes an element visible while the
// given state key holds the given value.
func VisibleWhenEq(key string, want any) *Predicate {
	return &Predicate{
		Func: func(s *PageState) bool {
			v, _ := s.Get(key)
			return v == want
		},
		Deps: []string{key},
	}
}

// AggregationPolicy controls how a container aggregates the effective
// validity of its children.
type AggregationPolicy struct {

	// IncludeHidden includes effectively invisible children in aggregation.
	// The page-wide [Options.ValidateWhenHidden] has the same effect.
	IncludeHidden bool

	// IncludeDisabled includes disabled children in aggregation.
	// It is set by default in [ElementBase.Init].
	IncludeDisabled bool

	// Inherit makes this element use the policy of its nearest ancestor
	// that does not inherit. It is set by default in [ElementBase.Init];
	// assigning a policy with Inherit false makes it authoritative.
	Inherit bool

	// ShortCircuit stops aggregation at the first invalid child.
	ShortCircuit bool
}

// ElementBase implements the [Element] interface and provides the state
// shared by all form elements. All element types must embed it.
type ElementBase struct {
	tree.NodeBase

	// Visible is the element's own visibility flag. Effective visibility
	// ANDs it with the predicate and with every ancestor's effective
	// visibility. It is set by [ElementBase.Init]; change it through
	// [Page.SetVisible] once the element is on a page.
	Visible bool

	// VisibleWhen is an optional visibility predicate; change it through
	// [Page.SetVisibleWhen] once the element is on a page.
	VisibleWhen *Predicate

	// Validators is the ordered list of validators for this element.
	Validators []*Validator

	// Default is an optional literal default value, applied on mount if no
	// value is stored. It takes precedence over DefaultFactory.
	Default any

	// DefaultFactory is an optional function producing a default value,
	// consulted when Default is nil.
	DefaultFactory FactoryFunc

	// AsyncDefault runs DefaultFactory as a background task instead of
	// synchronously during mount.
	AsyncDefault bool

	// DeferDefault postpones default application until the first read of
	// the element's value through [Page.Get], instead of mount.
	DeferDefault bool

	// Disabled marks the element as non-interactive: it is skipped by focus
	// traversal and, under the default policy, excluded from nothing (see
	// [AggregationPolicy.IncludeDisabled]).
	Disabled bool

	// CanFocus marks the element as a focus stop. It is set by
	// [Field.Init]; containers are not focusable by default.
	CanFocus bool

	// FocusPriority orders focus stops: higher priorities come first,
	// with tree order breaking ties.
	FocusPriority int

	// Policy controls validity aggregation for this element's children.
	Policy AggregationPolicy

	// OnMountFunc is called after the element becomes effectively visible
	// and its default has been applied. A panic is recovered and logged.
	OnMountFunc func() `copier:"-"`

	// OnUnmountFunc is called after the element becomes effectively
	// invisible. A panic is recovered and logged.
	OnUnmountFunc func() `copier:"-"`
}

// AsElement returns the [ElementBase] for this element.
func (e *ElementBase) AsElement() *ElementBase {
	return e
}

// Init sets the defaults that differ from zero values: elements start
// visible, and aggregation includes disabled children and inherits the
// ancestor policy.
func (e *ElementBase) Init() {
	e.Visible = true
	e.Policy = AggregationPolicy{IncludeDisabled: true, Inherit: true}
}

// IsFocusable implements [Focusable].
func (e *ElementBase) IsFocusable() bool {
	return e.CanFocus && !e.Disabled
}

// ElementValidators implements [Validatable].
func (e *ElementBase) ElementValidators() []*Validator {
	return e.Validators
}

// Kind is the variant tag distinguishing containers from leaves.
type Kind int32

const (
	// KindContainer is an element with children and no own value.
	KindContainer Kind = iota

	// KindLeaf is an element holding a value in page state.
	KindLeaf
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if k == KindContainer {
		return "container"
	}
	return "leaf"
}

// Container is a form element that groups children and aggregates their
// validity. It holds no value of its own.
type Container struct {
	ElementBase
}

// Kind returns [KindContainer].
func (c *Container) Kind() Kind { return KindContainer }

// Field is a leaf form element holding a value in page state under its
// path. Fields are focus stops by default.
type Field struct {
	ElementBase

	// Type describes the widget kind for the widget factory,
	// such as "text", "select", or "checkbox".
	Type string

	// Options lists the choices for choice-like field types.
	Options []string
}

// Init makes fields focusable by default, in addition to the
// [ElementBase.Init] defaults.
func (f *Field) Init() {
	f.ElementBase.Init()
	f.CanFocus = true
}

// Kind returns [KindLeaf].
func (f *Field) Kind() Kind { return KindLeaf }

// HasValue implements [Valuable].
func (f *Field) HasValue() bool { return true }

// NewContainer returns a new [Container] with the given name, added to the
// given parent if non-nil. It panics on a duplicate sibling name, which is
// a programming error; use [tree.NodeBase.AddChild] to handle it instead.
func NewContainer(parent Element, name string) *Container {
	c := &Container{}
	return initNamed(c, parent, name).(*Container)
}

// NewField returns a new [Field] with the given name, added to the given
// parent if non-nil. It panics on a duplicate sibling name, which is a
// programming error; use [tree.NodeBase.AddChild] to handle it instead.
func NewField(parent Element, name string) *Field {
	f := &Field{}
	return initNamed(f, parent, name).(*Field)
}

func initNamed(e Element, parent Element, name string) Element {
	tree.InitNode(e)
	e.AsTree().Name = name
	if parent != nil {
		if err := parent.AsTree().AddChild(e); err != nil {
			panic(err)
		}
	}
	return e
}
