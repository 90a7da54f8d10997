// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package events

// Listeners registers lists of event listener functions to receive
// different event types. Listeners are closure methods with all context
// captured, registered on a specific page.
type Listeners map[Types][]func(e *Event)

// Init ensures that the map is constructed.
func (ls *Listeners) Init() {
	if *ls != nil {
		return
	}
	*ls = make(map[Types][]func(*Event))
}

// Add adds a function for the given type.
func (ls *Listeners) Add(typ Types, fun func(e *Event)) {
	ls.Init()
	(*ls)[typ] = append((*ls)[typ], fun)
}

// Call calls all functions for the given event. It goes in reverse order so
// the last functions added are the first called, and it stops when the
// event is marked as handled. This allows for a natural and optional
// override behavior without priority mechanisms.
func (ls *Listeners) Call(e *Event) {
	if e.IsHandled() {
		return
	}
	ets := (*ls)[e.Type()]
	for i := len(ets) - 1; i >= 0; i-- {
		ets[i](e)
		if e.IsHandled() {
			break
		}
	}
}
