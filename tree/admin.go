// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tree

import (
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// New returns a new node of the given type. If a parent is given, the node
// is added to it with an automatically generated unique name; use
// [NodeBase.AddChild] directly if you need to control the name or handle
// attachment errors.
func New[T Node](parent ...Node) T {
	var n T
	n = reflect.New(reflect.TypeFor[T]().Elem()).Interface().(T)
	InitNode(n)
	if len(parent) == 0 {
		nb := n.AsTree()
		nb.Name = typeName(n)
		return n
	}
	pb := parent[0].AsTree()
	nb := n.AsTree()
	nb.Name = autoName(n, pb)
	pb.Children = append(pb.Children, n)
	pb.numLifetimeChildren++
	pb.BumpVersion()
	setParent(n, pb.This)
	return n
}

// InitNode initializes the node: it sets the node's [NodeBase.This] to
// itself and calls [Node.Init] if it has not yet been initialized.
func InitNode(n Node) {
	nb := n.AsTree()
	if nb.This != n {
		nb.This = n
		n.Init()
	}
}

// autoName returns a unique name for a new child of the given parent,
// combining the kebab-case type name with the parent's lifetime child count.
func autoName(n Node, parent *NodeBase) string {
	return typeName(n) + "-" + strconv.FormatUint(parent.numLifetimeChildren, 10)
}

// typeName returns the kebab-case name of the underlying type of the node.
func typeName(n Node) string {
	name := reflect.TypeOf(n).Elem().Name()
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
