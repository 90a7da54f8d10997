// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tree

// WalkUp calls the given function on this node and all of its parents,
// stopping if the function returns [Break]. It returns whether the walk
// finished without being aborted.
func (n *NodeBase) WalkUp(fun func(n Node) bool) bool {
	cur := n.This
	for cur != nil {
		if !fun(cur) {
			return false
		}
		parent := cur.AsTree().Parent
		if parent == cur { // defend against degenerate self-parents
			return true
		}
		cur = parent
	}
	return true
}

// WalkUpParent calls the given function on all of this node's parents (but
// not the node itself), stopping if the function returns [Break]. It returns
// whether the walk finished without being aborted.
func (n *NodeBase) WalkUpParent(fun func(n Node) bool) bool {
	if n.Parent == nil {
		return true
	}
	return n.Parent.AsTree().WalkUp(fun)
}

// WalkDown calls the given function on this node and all of its children
// in depth-first pre order. If the function returns [Break] for a node, that
// node's children are not visited. The walk is non-recursive; the function
// may destroy the node it is called on.
func (n *NodeBase) WalkDown(fun func(n Node) bool) {
	if n.This == nil {
		return
	}
	stack := []Node{n.This}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cb := cur.AsTree()
		if cb == nil || cb.This == nil {
			continue
		}
		if !fun(cur) {
			continue
		}
		if cb.This == nil { // fun destroyed the node
			continue
		}
		for i := cb.NumChildren() - 1; i >= 0; i-- {
			if kid := cb.Child(i); kid != nil {
				stack = append(stack, kid)
			}
		}
	}
}

// WalkDownPost calls the given function on this node and all of its
// children in depth-first post order, so deeper nodes are processed first.
// This is the order required for unmounting, where children must go before
// their parents.
func (n *NodeBase) WalkDownPost(fun func(n Node) bool) {
	if n.This == nil {
		return
	}
	walkDownPost(n.This, fun)
}

func walkDownPost(cur Node, fun func(n Node) bool) {
	cb := cur.AsTree()
	kids := make([]Node, len(cb.Children))
	copy(kids, cb.Children) // fun may edit the tree
	for _, kid := range kids {
		if kid != nil && kid.AsTree().This != nil {
			walkDownPost(kid, fun)
		}
	}
	if cb.This != nil {
		fun(cur)
	}
}

// WalkDownBreadth calls the given function on this node and all of its
// children in breadth-first order. If the function returns [Break] for a
// node, that node's children are not visited.
func (n *NodeBase) WalkDownBreadth(fun func(n Node) bool) {
	if n.This == nil {
		return
	}
	queue := []Node{n.This}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		cb := cur.AsTree()
		if cb == nil || cb.This == nil {
			continue
		}
		if !fun(cur) {
			continue
		}
		for _, kid := range cb.Children {
			if kid != nil && kid.AsTree().This != nil {
				queue = append(queue, kid)
			}
		}
	}
}
