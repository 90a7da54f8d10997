// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package form

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/formantui/formant/events"
	"github.com/formantui/formant/tree"
)

// focusEntry is one stop in the flat focus registry.
type focusEntry struct {
	path     string
	priority int
}

// trapEntry is one active focus trap. Traps form a stack; only the top one
// constrains traversal.
type trapEntry struct {
	token     string
	scope     string
	prevFocus string
}

// deferredFocus is a focus request made while a mount was still pending,
// retried at the end of the turn against the same element identity.
type deferredFocus struct {
	path string
	el   Element
}

// Focused returns the path of the currently focused element, or the empty
// string. At most one element is focused at any time.
func (p *Page) Focused() string {
	return p.focused
}

// rebuildFocus rebuilds the flat ordered registry of focus stops from the
// tree. It runs on every structural change. Entries are ordered by
// traversal (depth-first) position, with higher priorities hoisted first;
// the sort is stable so equal priorities keep tree order.
func (p *Page) rebuildFocus() {
	p.focusOrder = p.focusOrder[:0]
	p.Root.WalkDown(func(n tree.Node) bool {
		el, ok := n.(Element)
		if !ok {
			return tree.Continue
		}
		eb := el.AsElement()
		if eb.CanFocus {
			p.focusOrder = append(p.focusOrder, focusEntry{path: eb.Path(), priority: eb.FocusPriority})
		}
		return tree.Continue
	})
	sort.SliceStable(p.focusOrder, func(i, j int) bool {
		return p.focusOrder[i].priority > p.focusOrder[j].priority
	})
}

// activeScope returns the scope of the top focus trap, or the empty string
// when no trap is active.
func (p *Page) activeScope() string {
	if len(p.traps) == 0 {
		return ""
	}
	return p.traps[len(p.traps)-1].scope
}

func inScope(path, scope string) bool {
	if scope == "" {
		return true
	}
	return path == scope || strings.HasPrefix(path, scope+".")
}

// focusableNow reports whether the element at the path can receive focus
// right now: registered, enabled, and effectively visible.
func (p *Page) focusableNow(path string) bool {
	el := p.elems[path]
	if el == nil {
		return false
	}
	f, ok := el.(Focusable)
	return ok && f.IsFocusable() && p.IsVisible(path)
}

// candidates returns the traversable focus stops in registry order,
// restricted to the active trap scope and skipping invisible and disabled
// entries.
func (p *Page) candidates() []string {
	scope := p.activeScope()
	out := make([]string, 0, len(p.focusOrder))
	for _, fe := range p.focusOrder {
		if inScope(fe.path, scope) && p.focusableNow(fe.path) {
			out = append(out, fe.path)
		}
	}
	return out
}

// setFocus moves focus to the given path (or clears it if empty), emitting
// focus.lost for the previous element and then focus.gained for the new
// one, and notifying the renderer's focus-transfer primitive.
func (p *Page) setFocus(path string) {
	if p.focused == path {
		return
	}
	old := p.focused
	p.focused = path
	p.changed = true
	if old != "" {
		p.send(events.NewEvent(events.FocusLost, old))
	}
	if path != "" {
		p.send(events.NewEvent(events.FocusGained, path))
		if p.renderer != nil {
			p.renderer.FocusTransfer(path)
		}
	}
}

// RequestFocus asks for focus on the element at the given path. It grants
// synchronously if the element is focusable and visible; otherwise it walks
// to the nearest focusable visible ancestor. A request made while a turn is
// still settling (a pending mount) is deferred and retried at the end of
// the turn against the same element. It returns false if focus cannot be
// granted or deferred.
func (p *Page) RequestFocus(path string) bool {
	el := p.elems[path]
	if el == nil {
		return false
	}
	p.start()
	defer p.finish()
	if p.focusableNow(path) && inScope(path, p.activeScope()) {
		p.setFocus(path)
		return true
	}
	// depth 1 is our own start; anything deeper means we are inside a turn
	// whose visibility recomputation has not run yet
	if (p.depth > 1 || p.settling) && !p.IsVisible(path) {
		p.deferred = &deferredFocus{path: path, el: el}
		return true
	}
	for anc := el.AsTree().Parent; anc != nil; anc = anc.AsTree().Parent {
		apath := anc.AsTree().Path()
		if p.focusableNow(apath) && inScope(apath, p.activeScope()) {
			p.setFocus(apath)
			return true
		}
	}
	return false
}

// retryDeferredFocus re-validates a deferred focus request at the end of a
// turn: it is granted only if the same element is still at the path and has
// become focusable and visible.
func (p *Page) retryDeferredFocus() {
	df := p.deferred
	if df == nil {
		return
	}
	p.deferred = nil
	if p.elems[df.path] != df.el {
		return // removed or replaced while deferred
	}
	if p.focusableNow(df.path) && inScope(df.path, p.activeScope()) {
		p.setFocus(df.path)
	}
}

// FocusNext moves focus to the next traversable stop, wrapping at the end
// when [Options.WrapFocus] is set. Inside an active trap, traversal never
// leaves the trap's scope. It returns whether focus moved.
func (p *Page) FocusNext() bool {
	return p.moveFocus(1)
}

// FocusPrev moves focus to the previous traversable stop, wrapping at the
// start when [Options.WrapFocus] is set. It returns whether focus moved.
func (p *Page) FocusPrev() bool {
	return p.moveFocus(-1)
}

func (p *Page) moveFocus(dir int) bool {
	p.start()
	defer p.finish()
	cands := p.candidates()
	if len(cands) == 0 {
		return false
	}
	cur := -1
	for i, path := range cands {
		if path == p.focused {
			cur = i
			break
		}
	}
	if cur < 0 {
		// no current stop in range: enter at the natural end
		if dir > 0 {
			p.setFocus(cands[0])
		} else {
			p.setFocus(cands[len(cands)-1])
		}
		return true
	}
	next := cur + dir
	if next < 0 || next >= len(cands) {
		if !p.Opts.WrapFocus {
			return false
		}
		next = (next + len(cands)) % len(cands)
	}
	if cands[next] == p.focused {
		return false
	}
	p.setFocus(cands[next])
	return true
}

// TrapFocus constrains focus traversal to the subtree of the given scope
// element until the returned token is released. Traps nest as a stack, with
// only the top trap active. If focus is outside the scope it moves to the
// scope's first traversable stop.
func (p *Page) TrapFocus(scope string) (string, error) {
	if p.elems[scope] == nil {
		return "", fmt.Errorf("form: no element at path %q", scope)
	}
	p.start()
	defer p.finish()
	token := uuid.NewString()
	p.traps = append(p.traps, trapEntry{token: token, scope: scope, prevFocus: p.focused})
	p.send(events.NewEvent(events.TrapPushed, scope))
	if !inScope(p.focused, scope) || p.focused == "" {
		if cands := p.candidates(); len(cands) > 0 {
			p.setFocus(cands[0])
		}
	}
	return token, nil
}

// ReleaseTrap releases the trap identified by the given token, restoring
// the traversal range that was active before it. Focus returns to the
// element focused when the trap was pushed, if it is still reachable. It
// returns false for an unknown token.
func (p *Page) ReleaseTrap(token string) bool {
	idx := -1
	for i, t := range p.traps {
		if t.token == token {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	p.start()
	defer p.finish()
	t := p.traps[idx]
	p.traps = append(p.traps[:idx], p.traps[idx+1:]...)
	p.send(events.NewEvent(events.TrapReleased, t.scope))
	scope := p.activeScope()
	if t.prevFocus != "" && p.focusableNow(t.prevFocus) && inScope(t.prevFocus, scope) {
		p.setFocus(t.prevFocus)
	} else if !inScope(p.focused, scope) || !p.focusableNow(p.focused) {
		if cands := p.candidates(); len(cands) > 0 {
			p.setFocus(cands[0])
		} else {
			p.setFocus("")
		}
	}
	return true
}

// focusRemovalTarget picks the predictable neighbor that receives focus
// when the focused element is removed: the previous registry index, else
// the next, else the nearest focusable ancestor of the removed element.
// It must be called before the removal happens.
func (p *Page) focusRemovalTarget(removedPath string) (string, bool) {
	if p.focused == "" || !inScope(p.focused, removedPath) {
		return "", false
	}
	cands := p.candidates()
	cur := -1
	for i, path := range cands {
		if path == p.focused {
			cur = i
			break
		}
	}
	for i := cur - 1; i >= 0; i-- {
		if !inScope(cands[i], removedPath) {
			return cands[i], true
		}
	}
	for i := cur + 1; i < len(cands); i++ {
		if !inScope(cands[i], removedPath) {
			return cands[i], true
		}
	}
	if el := p.elems[removedPath]; el != nil {
		for anc := el.AsTree().Parent; anc != nil; anc = anc.AsTree().Parent {
			apath := anc.AsTree().Path()
			if p.focusableNow(apath) {
				return apath, true
			}
		}
	}
	return "", true
}
