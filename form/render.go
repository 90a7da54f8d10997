// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package form

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/formantui/formant/tree"
)

// Renderer is the bridge between a [Page] and whatever draws it. The
// engine never draws; it emits at most one Invalidate per settled turn,
// tells the renderer where focus went, and hands it background tasks to
// schedule.
type Renderer interface {

	// Invalidate signals that the page changed and should be redrawn.
	// It is called at most once per settled turn.
	Invalidate()

	// FocusTransfer is called when focus moves to the element at the
	// given path.
	FocusTransfer(path string)

	// Go schedules the given function as a background task. The function
	// never touches the page directly; completions come back through the
	// page's queue.
	Go(fun func())
}

// WidgetFactory maps element descriptors to presentation widgets. The
// engine never inspects the widgets it returns; it only produces
// [Descriptor] values and invokes mount and unmount hooks.
type WidgetFactory interface {

	// Widget returns a presentation widget for the given descriptor.
	Widget(d *Descriptor) any
}

// Descriptor is a renderer-neutral description of one element, produced
// by [Page.Describe] for widget factories.
type Descriptor struct {
	Path    string
	Name    string
	Kind    Kind
	Type    string
	Value   any
	Options []string
	Focused bool
	Invalid bool
	Pending bool
}

// Describe returns a [Descriptor] for the element at the given path, or
// nil if there is none or it is not visible.
func (p *Page) Describe(path string) *Descriptor {
	el := p.elems[path]
	if el == nil || !p.IsVisible(path) {
		return nil
	}
	eb := el.AsElement()
	d := &Descriptor{
		Path:    path,
		Name:    eb.Name,
		Kind:    elementKind(el),
		Focused: p.focused == path,
	}
	if f, ok := el.(*Field); ok {
		d.Type = f.Type
		d.Options = f.Options
	}
	if _, ok := el.(Valuable); ok {
		d.Value, _ = p.State.Get(path)
	}
	if res := p.State.Meta(path).Validation; res != nil {
		d.Invalid = !res.Valid
		d.Pending = res.Pending
	}
	return d
}

// RenderText renders the visible tree as indented plain text lines no
// wider than the given width, for debugging and for headless tests.
// Containers render as a name header, fields as name, value, and any
// validation marker. Output is deterministic for a given page state.
func (p *Page) RenderText(width int) []string {
	if width <= 0 {
		width = 80
	}
	var lines []string
	p.Root.WalkDown(func(n tree.Node) bool {
		el, ok := n.(Element)
		if !ok {
			return tree.Continue
		}
		path := el.AsTree().Path()
		if !p.IsVisible(path) {
			return tree.Break
		}
		eb := el.AsElement()
		indent := strings.Repeat("  ", strings.Count(path, "."))
		var line string
		if elementKind(el) == KindContainer {
			line = indent + eb.Name + ":"
		} else {
			v, _ := p.State.Get(path)
			line = indent + eb.Name + ": " + formatValue(v)
			if p.focused == path {
				line += " <"
			}
			if res := p.State.Meta(path).Validation; res != nil {
				switch {
				case res.Pending:
					line += " [...]"
				case !res.Valid:
					line += " [!" + firstMessage(res) + "]"
				}
			}
		}
		lines = append(lines, runewidth.Truncate(line, width, "…"))
		return tree.Continue
	})
	return lines
}

// elementKind resolves the element's kind, treating anything without a
// value as a container.
func elementKind(el Element) Kind {
	if k, ok := el.(interface{ Kind() Kind }); ok {
		return k.Kind()
	}
	if _, ok := el.(Valuable); ok {
		return KindLeaf
	}
	return KindContainer
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func firstMessage(res *ValidationResult) string {
	if len(res.Errors) == 0 {
		return ""
	}
	return res.Errors[0].Message
}
