// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tree provides the element tree underlying the Formant form engine:
// containers and leaves identified by stable dot-separated paths, with
// exclusive parent ownership and monotonic per-node versioning.
package tree

// Node is the interface that all tree nodes satisfy. The core functionality
// is defined on [NodeBase], which all higher-level node types must embed.
// Call [Node.AsTree] to access it. A node is owned by exactly one parent at
// a time; attaching an owned node elsewhere is an error.
type Node interface {

	// AsTree returns the [NodeBase] of this Node. Most core
	// tree functionality is implemented on [NodeBase].
	AsTree() *NodeBase

	// Init is called when the node is first initialized.
	// It is called before the node is added to the tree, so it will
	// not have any parents or siblings. It is called exactly once
	// in the lifetime of the node.
	Init()

	// OnAdd is called when the node is added to a parent.
	// It is not called on root nodes, as they are never added to a parent.
	OnAdd()

	// Destroy recursively deletes and destroys the node and all of its
	// children. Node types can implement this to do additional cleanup;
	// if they do, they must call [NodeBase.Destroy] at the end.
	Destroy()

	// CopyFieldsFrom copies the fields of the node from the given node.
	// The default implementation is [NodeBase.CopyFieldsFrom]; custom
	// implementations must call it first and then handle only the fields
	// that cannot be copied automatically.
	CopyFieldsFrom(from Node)
}

const (
	// Continue can be returned from tree walking functions to continue
	// processing down the tree.
	Continue = true

	// Break can be returned from tree walking functions to stop processing
	// the current branch of the tree.
	Break = false
)
