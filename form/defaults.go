// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package form

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/formantui/formant/events"
)

// FactoryFunc produces a default value for an element. Synchronous
// factories complete before mount finishes; factories marked async (see
// [ElementBase.AsyncDefault]) run as background tasks against a state
// snapshot and store their value through set-if-absent on completion, only
// if the element still exists at the same path.
type FactoryFunc func(ctx context.Context, s *PageState) (any, error)

// applyDefault applies the element's default value if no value is stored.
// Precedence, high to low: explicit user value, existing stored value,
// literal default, factory result, none. Application is idempotent through
// [PageState.SetIfAbsent], and hydrated paths never receive defaults.
func (p *Page) applyDefault(el Element) {
	if _, ok := el.(Valuable); !ok {
		return
	}
	eb := el.AsElement()
	path := eb.Path()
	m := p.State.Meta(path)
	if m.Hydrated || p.State.Has(path) {
		return
	}
	if eb.Default != nil {
		if p.State.SetIfAbsent(path, eb.Default) {
			m.DefaultsAppliedAt = time.Now()
			p.send(events.NewEvent(events.DefaultApplied, path))
		}
		return
	}
	if eb.DefaultFactory == nil {
		return
	}
	if !eb.AsyncDefault {
		v, err := safeFactory(path, eb.DefaultFactory, p.ctx, p.State)
		p.completeDefault(path, el, v, err)
		return
	}
	m.DefaultPending = true
	factory := eb.DefaultFactory
	snap := p.State.Snapshot()
	p.schedule(func() {
		v, err := safeFactory(path, factory, p.ctx, snap)
		p.queue.Send(func() {
			p.State.Meta(path).DefaultPending = false
			// apply only if the element still exists at an unchanged path
			if cur := p.elems[path]; cur == el {
				p.completeDefault(path, el, v, err)
			}
		})
		p.wakeUp()
	})
}

// completeDefault stores a factory result through set-if-absent, emitting
// default.applied or default.apply-failed. A failing factory never leaves
// partial state: nothing is written unless the factory returned cleanly.
func (p *Page) completeDefault(path string, el Element, v any, err error) {
	m := p.State.Meta(path)
	m.DefaultPending = false
	if err != nil {
		p.changed = true
		ev := events.NewEvent(events.DefaultApplyFailed, path)
		ev.Data = map[string]any{"err": err}
		p.send(ev)
		return
	}
	if p.State.SetIfAbsent(path, v) {
		m.DefaultsAppliedAt = time.Now()
		p.send(events.NewEvent(events.DefaultApplied, path))
	}
}

func safeFactory(path string, factory FactoryFunc, ctx context.Context, s *PageState) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("form: default factory panicked", "path", path, "err", rec)
			v = nil
			err = fmt.Errorf("default factory for %s: %v", path, rec)
		}
	}()
	return factory(ctx, s)
}
