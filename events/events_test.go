// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package events_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/formantui/formant/events"
)

func TestTypesString(t *testing.T) {
	assert.Equal(t, "validity.changed", ValidityChanged.String())
	assert.Equal(t, "focus.gained", FocusGained.String())
	assert.Equal(t, "invalid", Types(-1).String())
	assert.Equal(t, "invalid", TypesN.String())
}

func TestListenersReverseOrder(t *testing.T) {
	var ls Listeners
	var got []int
	ls.Add(StateChanged, func(e *Event) { got = append(got, 1) })
	ls.Add(StateChanged, func(e *Event) { got = append(got, 2) })
	ls.Call(NewEvent(StateChanged, "form.email"))
	// last added is called first, enabling override behavior
	assert.Equal(t, []int{2, 1}, got)
}

func TestListenersHandled(t *testing.T) {
	var ls Listeners
	var got []int
	ls.Add(StateChanged, func(e *Event) { got = append(got, 1) })
	ls.Add(StateChanged, func(e *Event) {
		got = append(got, 2)
		e.SetHandled()
	})
	ev := NewEvent(StateChanged, "form.email")
	ls.Call(ev)
	assert.Equal(t, []int{2}, got)

	// an already-handled event is not dispatched at all
	ls.Call(ev)
	assert.Equal(t, []int{2}, got)
}

func TestListenersOtherType(t *testing.T) {
	var ls Listeners
	called := false
	ls.Add(FocusGained, func(e *Event) { called = true })
	ls.Call(NewEvent(FocusLost, "form.email"))
	assert.False(t, called)
}

func TestQueueFIFO(t *testing.T) {
	q := &Queue[int]{}
	q.Init()

	_, ok := q.Next()
	assert.False(t, ok)

	for i := range 5 {
		q.Send(i)
	}
	assert.Equal(t, uint64(5), q.Len())
	for i := range 5 {
		v, ok := q.Next()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok = q.Next()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), q.Len())
}

func TestQueueConcurrentSend(t *testing.T) {
	q := &Queue[int]{}
	q.Init()

	const senders = 8
	const per = 100
	var wg sync.WaitGroup
	for s := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range per {
				q.Send(s*per + i)
			}
		}()
	}
	wg.Wait()

	seen := map[int]bool{}
	for {
		v, ok := q.Next()
		if !ok {
			break
		}
		assert.False(t, seen[v])
		seen[v] = true
	}
	assert.Len(t, seen, senders*per)
}
