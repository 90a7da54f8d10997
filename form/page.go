// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/formantui/formant/events"
	"github.com/formantui/formant/tree"
)

var (
	// ErrCycle is returned when registering a predicate or validator whose
	// declared dependencies form a cycle.
	ErrCycle = errors.New("form: circular dependency")

	// ErrValidationPending blocks submission while asynchronous validation
	// or default work is outstanding.
	ErrValidationPending = errors.New("form: validation pending")

	// ErrInvalid blocks submission while any considered element is invalid.
	ErrInvalid = errors.New("form: form is invalid")
)

// Page is the reactive state engine for one element tree. It owns the
// page state, the visibility and validation engines, and the focus
// registry, and it sequences every transition through single-threaded
// turns: state change, visibility recomputation, mount and unmount,
// default application, validation scheduling, and finally one coalesced
// invalidate signal to the renderer.
//
// A Page must be driven from a single goroutine. Background validator and
// factory tasks communicate with it only through its completion queue.
type Page struct {

	// Root is the root container of the element tree.
	Root *Container

	// State is the single source of truth for values and metadata.
	State *PageState

	// Opts holds the engine configuration. Treat as read-only after
	// [NewPage].
	Opts *Options

	ctx       context.Context
	listeners events.Listeners
	queue     events.Queue[func()]
	renderer  Renderer
	wake      func()

	// elems is the path-indexed arena over the tree, rebuilt on every
	// structural change.
	elems map[string]Element

	// visCache caches effective visibility per path.
	visCache map[string]bool

	// visDeps and valDeps map a state key to the element paths whose
	// predicate or validators consume it.
	visDeps map[string]map[string]struct{}
	valDeps map[string]map[string]struct{}

	// turn bookkeeping
	depth        int
	settling     bool
	changed      bool
	dirty        map[string]struct{}
	validateNow  map[string]struct{}
	pendingAsync map[string]int
	valGen       map[string]uint64
	debounce     map[string]*time.Timer
	submitCB     func(error)

	// focus
	focusOrder []focusEntry
	focused    string
	traps      []trapEntry
	deferred   *deferredFocus
}

// NewPage returns a new page over the given root container, with the given
// options (or defaults). It indexes the tree, rejects circular predicate
// dependencies, computes initial visibility, and mounts the visible
// elements, applying their defaults.
func NewPage(root *Container, opts ...*Options) (*Page, error) {
	if root == nil {
		return nil, errors.New("form: nil root")
	}
	o := NewOptions()
	if len(opts) > 0 && opts[0] != nil {
		o = opts[0]
	}
	o.sanitize()
	p := &Page{
		Root:         root,
		State:        NewPageState(),
		Opts:         o,
		ctx:          context.Background(),
		elems:        map[string]Element{},
		visCache:     map[string]bool{},
		visDeps:      map[string]map[string]struct{}{},
		valDeps:      map[string]map[string]struct{}{},
		dirty:        map[string]struct{}{},
		validateNow:  map[string]struct{}{},
		pendingAsync: map[string]int{},
		valGen:       map[string]uint64{},
		debounce:     map[string]*time.Timer{},
	}
	p.queue.Init()
	p.State.onChange = p.noteChange
	p.reindex()
	for path, el := range p.elems {
		p.registerVisDeps(path, el.AsElement().VisibleWhen)
		p.registerValDeps(path, el)
	}
	if err := p.checkVisibilityCycles(); err != nil {
		return nil, err
	}
	// validator cycles are tolerated: runtime recomputation is bounded by
	// fixed-point passes instead (see runValidations)
	if err := p.checkValidatorCycles(); err != nil {
		slog.Warn("form: validator dependencies are circular; relying on bounded recomputation", "err", err)
	}
	p.rebuildFocus()
	p.start()
	p.updateVisibility(root)
	p.finish()
	return p, nil
}

// SetRenderer attaches the external renderer, which receives the coalesced
// invalidate signal, the focus-transfer calls, and the background tasks.
func (p *Page) SetRenderer(r Renderer) {
	p.renderer = r
}

// OnWake registers a function called, possibly from another goroutine,
// when background work has been queued while the page is idle. The event
// loop should respond by calling [Page.Flush] on the page's goroutine.
func (p *Page) OnWake(fun func()) {
	p.wake = fun
}

// On registers a listener for the given event type. Listeners added last
// are called first, and dispatch stops once an event is marked handled.
func (p *Page) On(typ events.Types, fun func(e *events.Event)) {
	p.listeners.Add(typ, fun)
}

func (p *Page) send(e *events.Event) {
	p.listeners.Call(e)
}

// Flush runs a turn, draining any queued background completions and
// settling all resulting recomputation. It is a no-op inside a turn.
func (p *Page) Flush() {
	if p.depth > 0 {
		return
	}
	p.start()
	p.finish()
}

func (p *Page) wakeUp() {
	if p.wake != nil {
		p.wake()
	}
}

// schedule runs the given function as a background task, through the
// renderer's scheduling primitive when one is attached.
func (p *Page) schedule(fun func()) {
	if p.renderer != nil {
		p.renderer.Go(fun)
		return
	}
	go fun()
}

// Turn machinery:

func (p *Page) start() {
	p.depth++
}

func (p *Page) finish() {
	p.depth--
	if p.depth == 0 && !p.settling {
		p.settle()
	}
}

// settle drives the current turn to quiescence. The ordering guarantee
// within a batch is: visibility recomputation precedes validation
// scheduling, which precedes the coalesced invalidate signal.
func (p *Page) settle() {
	p.settling = true
	defer func() { p.settling = false }()

	const maxRounds = 100 // hard stop against runaway feedback through state writes
	for round := 0; ; round++ {
		progressed := p.drainCompletions()
		progressed = p.processDirty() || progressed
		progressed = p.runValidations() || progressed
		if !progressed {
			break
		}
		if round >= maxRounds {
			slog.Warn("form: turn did not settle; giving up", "rounds", round)
			break
		}
	}

	p.retryDeferredFocus()

	if p.changed {
		p.changed = false
		p.send(events.NewEvent(events.Invalidate, p.Root.Path()))
		if p.renderer != nil {
			p.renderer.Invalidate()
		}
	}

	if p.submitCB != nil && !p.hasPending() {
		cb := p.submitCB
		p.submitCB = nil
		cb(p.submitCheck())
	}
}

// drainCompletions applies queued background completions inside the turn.
func (p *Page) drainCompletions() bool {
	any := false
	for {
		fun, ok := p.queue.Next()
		if !ok {
			return any
		}
		any = true
		fun()
	}
}

// processDirty recomputes visibility for elements whose predicates consume
// changed keys, then schedules validation for the changed elements and
// their declared dependents.
func (p *Page) processDirty() bool {
	if len(p.dirty) == 0 {
		return false
	}
	keys := slices.Sorted(maps.Keys(p.dirty))
	p.dirty = map[string]struct{}{}

	affected := map[string]struct{}{}
	for _, key := range keys {
		for path := range p.visDeps[key] {
			affected[path] = struct{}{}
		}
	}
	for _, path := range slices.Sorted(maps.Keys(affected)) {
		if el := p.elems[path]; el != nil {
			p.updateVisibility(el)
		}
	}

	for _, key := range keys {
		if p.elems[key] != nil {
			p.requestValidation(key)
		}
		for dep := range p.valDeps[key] {
			if dep != key {
				p.send(events.NewEvent(events.DependencyChanged, dep))
				p.requestValidation(dep)
			}
		}
	}
	return true
}

// runValidations runs the coalesced validation requests to a fixed point,
// bounded by [Options.MaxFixedPointPasses]: converging dependency cycles
// stabilize within the bound, diverging ones are reported as unresolved
// and dropped.
func (p *Page) runValidations() bool {
	if len(p.validateNow) == 0 {
		return false
	}
	for pass := 0; len(p.validateNow) > 0; pass++ {
		if pass >= p.Opts.MaxFixedPointPasses {
			paths := slices.Sorted(maps.Keys(p.validateNow))
			p.validateNow = map[string]struct{}{}
			slog.Warn("form: validation did not reach a fixed point", "passes", pass, "paths", paths)
			ev := events.NewEvent(events.ValidityChanged, p.Root.Path())
			ev.Data = map[string]any{"unresolved": paths}
			p.send(ev)
			break
		}
		batch := slices.Sorted(maps.Keys(p.validateNow))
		p.validateNow = map[string]struct{}{}
		for _, path := range batch {
			p.runValidation(path)
		}
	}
	return true
}

// noteChange is the engine hook behind every state mutation: it bumps the
// owning element's version, records the key for this turn, and emits
// state.changed.
func (p *Page) noteChange(key string, old, new any, had bool) {
	if el := p.elems[key]; el != nil {
		el.AsTree().BumpVersion()
	}
	p.dirty[key] = struct{}{}
	p.changed = true
	ev := events.NewEvent(events.StateChanged, key)
	ev.Old = old
	ev.New = new
	p.send(ev)
}

// State API:

// Set stores a value under the given path and settles the resulting turn:
// visibility recomputation, mount and unmount transitions, validation, and
// one coalesced invalidate.
func (p *Page) Set(path string, v any) {
	p.start()
	defer p.finish()
	p.State.Set(path, v)
}

// SetIfAbsent stores a value only if none is stored, returning whether it
// stored, and settles the resulting turn.
func (p *Page) SetIfAbsent(path string, v any) bool {
	p.start()
	defer p.finish()
	return p.State.SetIfAbsent(path, v)
}

// Get returns the value stored under the given path. If the element at the
// path defers its default, the first read applies it.
func (p *Page) Get(path string) (any, bool) {
	if !p.State.Has(path) {
		if el := p.elems[path]; el != nil && el.AsElement().DeferDefault {
			p.start()
			p.applyDefault(el)
			p.finish()
		}
	}
	return p.State.Get(path)
}

// Has returns whether a value is stored under the given path.
func (p *Page) Has(path string) bool {
	return p.State.Has(path)
}

// Watch registers a function called on every change to the given path.
// It returns a function that removes the watch.
func (p *Page) Watch(path string, fun func(old, new any)) func() {
	return p.State.Watch(path, fun)
}

// Structural edits:

// reindex rebuilds the path-indexed arena over the tree.
func (p *Page) reindex() {
	clear(p.elems)
	p.Root.WalkDown(func(n tree.Node) bool {
		if el, ok := n.(Element); ok {
			p.elems[el.AsTree().Path()] = el
		}
		return tree.Continue
	})
}

// Find returns the element at the given path, or nil.
func (p *Page) Find(path string) Element {
	return p.elems[path]
}

// AddElement attaches the given element (and its subtree) under the parent
// at the given path. It fails synchronously on a duplicate sibling name,
// an element that already has a parent, or a dependency cycle introduced
// by the subtree; on success the subtree is indexed, its dependencies
// registered, the focus registry rebuilt, and visibility computed, which
// mounts and applies defaults for the visible parts.
func (p *Page) AddElement(parentPath string, el Element) error {
	parent := p.elems[parentPath]
	if parent == nil {
		return fmt.Errorf("form: no element at path %q", parentPath)
	}
	if err := parent.AsTree().AddChild(el); err != nil {
		return err
	}
	p.reindex()
	el.AsTree().WalkDown(func(n tree.Node) bool {
		if e, ok := n.(Element); ok {
			path := e.AsTree().Path()
			p.registerVisDeps(path, e.AsElement().VisibleWhen)
			p.registerValDeps(path, e)
		}
		return tree.Continue
	})
	if err := p.checkVisibilityCycles(); err != nil {
		p.removeDeps(el)
		el.AsTree().Detach()
		el.Destroy()
		p.reindex()
		return err
	}
	if err := p.checkValidatorCycles(); err != nil {
		slog.Warn("form: validator dependencies are circular; relying on bounded recomputation", "err", err)
	}
	p.rebuildFocus()
	p.start()
	p.changed = true
	p.updateVisibility(el)
	p.finish()
	return nil
}

// Remove detaches and destroys the element at the given path. Focus moves
// to a predictable neighbor if it was inside the removed subtree, mounted
// elements are unmounted child before parent, ephemeral values are
// dropped, and other values persist.
func (p *Page) Remove(path string) error {
	el := p.elems[path]
	if el == nil {
		return fmt.Errorf("form: no element at path %q", path)
	}
	if el.AsTree().Parent == nil {
		return fmt.Errorf("form: cannot remove the root %q", path)
	}
	p.start()
	defer p.finish()

	target, moved := p.focusRemovalTarget(path)

	el.AsTree().WalkDownPost(func(n tree.Node) bool {
		e, ok := n.(Element)
		if !ok {
			return tree.Continue
		}
		epath := e.AsTree().Path()
		if p.visCache[epath] {
			p.unmountElement(e)
		}
		delete(p.visCache, epath)
		if e.AsElement().Ephemeral {
			p.State.Delete(epath)
		}
		return tree.Continue
	})
	p.removeDeps(el)
	el.AsTree().Delete()
	p.reindex()
	p.rebuildFocus()
	if moved {
		p.setFocus(target)
	}
	p.changed = true
	return nil
}

func (p *Page) removeDeps(el Element) {
	el.AsTree().WalkDown(func(n tree.Node) bool {
		if e, ok := n.(Element); ok {
			path := e.AsTree().Path()
			p.unregisterVisDeps(path, e.AsElement().VisibleWhen)
			p.unregisterValDeps(path, e)
		}
		return tree.Continue
	})
}

// Submission:

// Submit checks whether the form can be submitted and calls the given
// function with the outcome. Submission is blocked while any considered
// element is invalid or has validation pending. With
// [Options.SubmitWithPending], a pending form defers the callback until
// the outstanding work resolves, then reports the final outcome.
func (p *Page) Submit(fun func(err error)) {
	p.start()
	defer p.finish()
	err := p.submitCheck()
	if errors.Is(err, ErrValidationPending) && p.Opts.SubmitWithPending {
		p.submitCB = fun
		return
	}
	fun(err)
}

func (p *Page) submitCheck() error {
	for path, m := range p.State.meta {
		if m.DefaultPending {
			return fmt.Errorf("%w: default for %s", ErrValidationPending, path)
		}
	}
	eff := p.effectiveResult(p.Root)
	if eff.Pending {
		return ErrValidationPending
	}
	if !eff.Valid {
		return fmt.Errorf("%w: %d error(s)", ErrInvalid, len(eff.Errors))
	}
	return nil
}

// hasPending reports whether any asynchronous validation or default work
// is still outstanding.
func (p *Page) hasPending() bool {
	if len(p.pendingAsync) > 0 || len(p.validateNow) > 0 || len(p.debounce) > 0 {
		return true
	}
	for _, m := range p.State.meta {
		if m.DefaultPending {
			return true
		}
	}
	return false
}
