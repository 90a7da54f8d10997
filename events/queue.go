// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// based on golang.org/x/exp/shiny:
// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package events

import (
	"sync/atomic"
)

// Queue is a lock-free FIFO queue. The engine uses it to
// pass completed asynchronous validator and default-factory work back into
// its single-threaded turn: background tasks only ever Send, and the engine
// drains with Next at turn boundaries. It must be initialized using
// [Queue.Init] before use.
type Queue[T any] struct {
	head atomic.Pointer[queueItem[T]]
	tail atomic.Pointer[queueItem[T]]
	len  atomic.Uint64
}

// Init initializes the queue.
func (q *Queue[T]) Init() {
	head := &queueItem[T]{}
	q.head.Store(head)
	q.tail.Store(head)
}

type queueItem[T any] struct {
	next atomic.Pointer[queueItem[T]]
	v    T
}

// Next removes and returns the next item in the queue.
// It returns the zero value and false if the queue is empty.
func (q *Queue[T]) Next() (T, bool) {
	var zero T
	for {
		first := q.head.Load()
		last := q.tail.Load()
		firstnext := first.next.Load()
		if first != q.head.Load() {
			continue
		}
		if first == last {
			if firstnext == nil {
				return zero, false
			}
			q.tail.CompareAndSwap(last, firstnext)
			continue
		}
		v := firstnext.v
		if q.head.CompareAndSwap(first, firstnext) {
			q.len.Add(^uint64(0))
			first.v = zero
			return v, true
		}
	}
}

// Send adds an item to the end of the queue.
func (q *Queue[T]) Send(v T) {
	i := &queueItem[T]{}
	i.v = v

	for {
		last := q.tail.Load()
		lastnext := last.next.Load()
		if q.tail.Load() != last {
			continue
		}
		if lastnext == nil {
			if last.next.CompareAndSwap(lastnext, i) {
				q.tail.CompareAndSwap(last, i)
				q.len.Add(1)
				return
			}
		} else {
			q.tail.CompareAndSwap(last, lastnext)
		}
	}
}

// Len returns the length of the queue.
func (q *Queue[T]) Len() uint64 {
	return q.len.Load()
}
