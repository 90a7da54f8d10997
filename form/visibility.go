// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package form

import (
	"fmt"
	"log/slog"

	"github.com/formantui/formant/events"
	"github.com/formantui/formant/tree"
)

// IsVisible returns the cached effective visibility of the element at the
// given path: its own flag ANDed with its predicate and with every
// ancestor's effective visibility.
func (p *Page) IsVisible(path string) bool {
	return p.visCache[path]
}

// SetVisible sets the element's own visibility flag and recomputes
// effective visibility for its subtree, running mount and unmount
// transitions as needed.
func (p *Page) SetVisible(path string, visible bool) error {
	el := p.elems[path]
	if el == nil {
		return fmt.Errorf("form: no element at path %q", path)
	}
	p.start()
	defer p.finish()
	eb := el.AsElement()
	if eb.Visible != visible {
		eb.Visible = visible
		eb.BumpVersion()
		p.changed = true
		p.updateVisibility(el)
	}
	return nil
}

// SetVisibleWhen replaces the element's visibility predicate, rejecting it
// if its declared dependencies would create a cycle, and recomputes the
// subtree.
func (p *Page) SetVisibleWhen(path string, pred *Predicate) error {
	el := p.elems[path]
	if el == nil {
		return fmt.Errorf("form: no element at path %q", path)
	}
	eb := el.AsElement()
	old := eb.VisibleWhen
	p.unregisterVisDeps(path, old)
	eb.VisibleWhen = pred
	p.registerVisDeps(path, pred)
	if err := p.checkVisibilityCycles(); err != nil {
		eb.VisibleWhen = old
		p.unregisterVisDeps(path, pred)
		p.registerVisDeps(path, old)
		return err
	}
	p.start()
	defer p.finish()
	eb.BumpVersion()
	p.changed = true
	p.updateVisibility(el)
	return nil
}

// computeEffective evaluates the element's effective visibility from its
// own flag, its predicate, and the cached visibility of its parent.
// A panicking predicate resolves to visible and is logged, never fatal.
func (p *Page) computeEffective(el Element) bool {
	eb := el.AsElement()
	if !eb.Visible {
		return false
	}
	if eb.Parent != nil && !p.visCache[eb.Parent.AsTree().Path()] {
		return false
	}
	if vw := eb.VisibleWhen; vw != nil && vw.Func != nil {
		return safePredicate(eb.Path(), vw, p.State)
	}
	return true
}

func safePredicate(path string, vw *Predicate, s *PageState) (visible bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("form: visibility predicate panicked; treating as visible", "path", path, "err", rec)
			visible = true
		}
	}()
	return vw.Func(s)
}

// updateVisibility recomputes effective visibility for the subtree rooted
// at the given element. Mounts run parent before child, unmounts child
// before parent. On a false to true transition the element's default is
// applied and validation is requested; on true to false its state is
// preserved unless it is ephemeral.
func (p *Page) updateVisibility(el Element) {
	var mounts, unmounts []Element
	el.AsTree().WalkDown(func(n tree.Node) bool {
		e, ok := n.(Element)
		if !ok {
			return tree.Continue
		}
		path := e.AsTree().Path()
		old := p.visCache[path]
		eff := p.computeEffective(e)
		if eff == old {
			return tree.Continue
		}
		p.visCache[path] = eff
		cached := eff
		p.State.Meta(path).VisibilityCached = &cached
		p.changed = true
		ev := events.NewEvent(events.VisibilityChanged, path)
		ev.Old = old
		ev.New = eff
		p.send(ev)
		if eff {
			mounts = append(mounts, e)
		} else {
			unmounts = append(unmounts, e)
		}
		return tree.Continue
	})
	for _, e := range mounts {
		p.mountElement(e)
	}
	for i := len(unmounts) - 1; i >= 0; i-- {
		p.unmountElement(unmounts[i])
	}
}

// mountElement runs the mount transition: apply the default if no value is
// stored, invoke the mount hook, and request validation.
func (p *Page) mountElement(el Element) {
	eb := el.AsElement()
	path := eb.Path()
	if !eb.DeferDefault {
		p.applyDefault(el)
	}
	safeHook(path, "mount", eb.OnMountFunc)
	p.send(events.NewEvent(events.Mounted, path))
	p.requestValidation(path)
}

// unmountElement runs the unmount transition. State is preserved unless
// the element is ephemeral.
func (p *Page) unmountElement(el Element) {
	eb := el.AsElement()
	path := eb.Path()
	safeHook(path, "unmount", eb.OnUnmountFunc)
	p.send(events.NewEvent(events.Unmounted, path))
	if eb.Ephemeral {
		p.State.Delete(path)
	}
}

func safeHook(path, kind string, fun func()) {
	if fun == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("form: element hook panicked", "path", path, "hook", kind, "err", rec)
		}
	}()
	fun()
}

// Dependency map:

func (p *Page) registerVisDeps(path string, pred *Predicate) {
	if pred == nil {
		return
	}
	for _, key := range pred.Deps {
		m := p.visDeps[key]
		if m == nil {
			m = map[string]struct{}{}
			p.visDeps[key] = m
		}
		m[path] = struct{}{}
	}
}

func (p *Page) unregisterVisDeps(path string, pred *Predicate) {
	if pred == nil {
		return
	}
	for _, key := range pred.Deps {
		if m := p.visDeps[key]; m != nil {
			delete(m, path)
			if len(m) == 0 {
				delete(p.visDeps, key)
			}
		}
	}
}

func (p *Page) registerValDeps(path string, el Element) {
	for _, vd := range el.AsElement().Validators {
		for _, key := range vd.Deps {
			m := p.valDeps[key]
			if m == nil {
				m = map[string]struct{}{}
				p.valDeps[key] = m
			}
			m[path] = struct{}{}
		}
	}
}

func (p *Page) unregisterValDeps(path string, el Element) {
	for _, vd := range el.AsElement().Validators {
		for _, key := range vd.Deps {
			if m := p.valDeps[key]; m != nil {
				delete(m, path)
				if len(m) == 0 {
					delete(p.valDeps, key)
				}
			}
		}
	}
}

// checkVisibilityCycles rejects circular visible_when dependencies at
// registration time: an element whose predicate depends, directly or
// through other predicated elements, on itself.
func (p *Page) checkVisibilityCycles() error {
	deps := func(path string) []string {
		if el := p.elems[path]; el != nil {
			if vw := el.AsElement().VisibleWhen; vw != nil {
				return vw.Deps
			}
		}
		return nil
	}
	return findCycle(p.predicatedPaths(), deps, "visible_when")
}

// checkValidatorCycles rejects circular cross-field validator dependencies
// at registration time.
func (p *Page) checkValidatorCycles() error {
	deps := func(path string) []string {
		el := p.elems[path]
		if el == nil {
			return nil
		}
		var out []string
		for _, vd := range el.AsElement().Validators {
			out = append(out, vd.Deps...)
		}
		return out
	}
	var roots []string
	for path, el := range p.elems {
		for _, vd := range el.AsElement().Validators {
			if len(vd.Deps) > 0 {
				roots = append(roots, path)
				break
			}
		}
	}
	return findCycle(roots, deps, "validator")
}

func (p *Page) predicatedPaths() []string {
	var out []string
	for path, el := range p.elems {
		if el.AsElement().VisibleWhen != nil {
			out = append(out, path)
		}
	}
	return out
}

// findCycle runs a colored depth-first search over the dependency graph
// rooted at the given paths and returns an [ErrCycle] error naming the
// first cycle found, or nil.
func findCycle(roots []string, deps func(path string) []string, kind string) error {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current stack
		black = 2 // done
	)
	color := map[string]int{}
	var visit func(path string) error
	visit = func(path string) error {
		color[path] = gray
		for _, dep := range deps(path) {
			switch color[dep] {
			case gray:
				return fmt.Errorf("%w: %s dependency of %q on %q", ErrCycle, kind, path, dep)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[path] = black
		return nil
	}
	for _, r := range roots {
		if color[r] == white {
			if err := visit(r); err != nil {
				return err
			}
		}
	}
	return nil
}
