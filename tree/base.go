// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tree

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"

	"github.com/jinzhu/copier"
)

// Errors returned for malformed structural edits. These are the only
// failures in the engine that are reported synchronously to the caller;
// everything else is recovered and surfaced as events.
var (
	// ErrNilNode is returned when a nil node is passed to a structural edit.
	ErrNilNode = errors.New("tree: nil node")

	// ErrHasParent is returned when attaching a node that is already
	// owned by another parent.
	ErrHasParent = errors.New("tree: node already has a parent")

	// ErrDuplicateName is returned when attaching a node whose name is
	// already taken by a sibling, which would make its path ambiguous.
	ErrDuplicateName = errors.New("tree: sibling with this name already exists")
)

// NodeBase implements the [Node] interface and provides the core
// functionality for the Formant tree system. All higher-level node types
// must embed it.
//
// All nodes must be initialized through [New], [InitNode], or one of the
// child-creation helpers so that the [NodeBase.This] field is set correctly
// and [Node.Init] is called.
type NodeBase struct {

	// Name is the name of this node, unique among the children of the same
	// parent. It is the last segment of the node's [NodeBase.Path].
	Name string `copier:"-"`

	// This is the value of this node as its true underlying type, so that
	// methods defined on base types can call methods defined on higher-level
	// types. It is set to nil when the node is destroyed.
	This Node `copier:"-" json:"-"`

	// Parent is the parent of this node. It is a non-owning back-reference
	// used only for lookup; ownership always runs parent to child. It is set
	// automatically when this node is added as a child and must not be set
	// directly.
	Parent Node `copier:"-" json:"-"`

	// Children is the ordered list of children of this node, all of which
	// have this node as their parent. Use the structural edit methods rather
	// than modifying this list directly so that versions and parent
	// references stay consistent.
	Children []Node `copier:"-" json:",omitempty"`

	// Ephemeral indicates that any state stored for this node should be
	// dropped when it is unmounted or detached, instead of persisting.
	Ephemeral bool

	// version is a monotonic counter incremented on any value or structural
	// change involving this node. Asynchronous work captures it at dispatch
	// and is discarded if it no longer matches at completion.
	version uint64

	// numLifetimeChildren is the number of children ever added to this node,
	// used for automatic unique naming.
	numLifetimeChildren uint64

	// index is the last known index of this node in its parent, used as a
	// starting hint by [NodeBase.IndexInParent].
	index int
}

// String implements [fmt.Stringer] by returning the path of the node.
func (n *NodeBase) String() string {
	if n == nil || n.This == nil {
		return "nil"
	}
	return n.Path()
}

// AsTree returns the [NodeBase] for this Node.
func (n *NodeBase) AsTree() *NodeBase {
	return n
}

// Version returns the current version counter of this node.
func (n *NodeBase) Version() uint64 {
	return n.version
}

// BumpVersion increments the version counter of this node, invalidating
// any outstanding asynchronous work that captured the previous value.
// It returns the new version.
func (n *NodeBase) BumpVersion() uint64 {
	n.version++
	return n.version
}

// NewInstance returns a new instance of this node's underlying type.
func (n *NodeBase) NewInstance() Node {
	return reflect.New(reflect.TypeOf(n.This).Elem()).Interface().(Node)
}

// Parents:

// IsRoot returns whether the given node has no parent.
func IsRoot(n Node) bool {
	return n.AsTree().Parent == nil
}

// Root returns the root node of the tree that the given node is part of.
func Root(n Node) Node {
	for !IsRoot(n) {
		n = n.AsTree().Parent
	}
	return n.AsTree().This
}

// IndexInParent returns our index within our parent node, using the cached
// last value as a starting hint. It returns -1 if we have no parent.
func (n *NodeBase) IndexInParent() int {
	if n.Parent == nil {
		return -1
	}
	idx := indexOf(n.Parent.AsTree().Children, n.This, n.index)
	n.index = idx
	return idx
}

// indexOf returns the index of the given child in the given slice, using the
// given index as a starting point for a bidirectional search. It returns -1
// if the child is not found.
func indexOf(children []Node, child Node, start int) int {
	nk := len(children)
	if nk == 0 {
		return -1
	}
	if start >= nk {
		start = nk - 1
	}
	if start < 0 {
		start = 0
	}
	for up, down := start, start-1; up < nk || down >= 0; up, down = up+1, down-1 {
		if up < nk && children[up] == child {
			return up
		}
		if down >= 0 && children[down] == child {
			return down
		}
	}
	return -1
}

// ParentByName returns the first parent up the hierarchy with the given
// name, or nil if there is none.
func (n *NodeBase) ParentByName(name string) Node {
	if n.Parent == nil {
		return nil
	}
	if n.Parent.AsTree().Name == name {
		return n.Parent
	}
	return n.Parent.AsTree().ParentByName(name)
}

// Children:

// HasChildren returns whether this node has any children.
func (n *NodeBase) HasChildren() bool {
	return len(n.Children) > 0
}

// NumChildren returns the number of children this node has.
func (n *NodeBase) NumChildren() int {
	return len(n.Children)
}

// Child returns the child at the given index, or nil if the index is out
// of range.
func (n *NodeBase) Child(i int) Node {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// ChildByName returns the first child with the given name, or nil if there
// is none.
func (n *NodeBase) ChildByName(name string) Node {
	for _, kid := range n.Children {
		if kid.AsTree().Name == name {
			return kid
		}
	}
	return nil
}

// Paths:

// EscapePathName returns the given name with any path separator dots
// replaced so that it forms a single path segment.
func EscapePathName(name string) string {
	return strings.ReplaceAll(name, ".", `\,`)
}

// UnescapePathName reverses [EscapePathName].
func UnescapePathName(name string) string {
	return strings.ReplaceAll(name, `\,`, ".")
}

// Path returns the dot-separated path to this node from the tree root,
// including the root's name. Paths are the stable identifiers used as keys
// into page state and all engine caches.
func (n *NodeBase) Path() string {
	if n.Parent != nil {
		return n.Parent.AsTree().Path() + "." + EscapePathName(n.Name)
	}
	return EscapePathName(n.Name)
}

// PathFrom returns the dot-separated path to this node from the given
// parent node, excluding the parent's own name. It returns the empty string
// if the given node is this node.
func (n *NodeBase) PathFrom(parent Node) string {
	if n.This == parent.AsTree().This {
		return ""
	}
	if n.Parent == nil || n.Parent.AsTree().This == parent.AsTree().This {
		return EscapePathName(n.Name)
	}
	return n.Parent.AsTree().PathFrom(parent) + "." + EscapePathName(n.Name)
}

// FindPath returns the node at the given dot-separated path relative to
// this node (so the path does not include this node's name). It returns nil
// if no node exists at the path. FindPath only works correctly when sibling
// names are unique, which the structural edit methods enforce.
func (n *NodeBase) FindPath(path string) Node {
	cur := n.This
	for seg := range strings.SplitSeq(path, ".") {
		if seg == "" {
			continue
		}
		kid := cur.AsTree().ChildByName(UnescapePathName(seg))
		if kid == nil {
			return nil
		}
		cur = kid
	}
	return cur
}

// Adding and inserting children:

// AddChild adds the given child at the end of the children list.
// The child must not already be on another tree, and its name must be
// unique among its new siblings; otherwise an error is returned and the
// tree is unchanged.
func (n *NodeBase) AddChild(kid Node) error {
	return n.InsertChild(kid, len(n.Children))
}

// InsertChild adds the given child at the given position in the children
// list, under the same constraints as [NodeBase.AddChild].
func (n *NodeBase) InsertChild(kid Node, i int) error {
	if kid == nil || kid.AsTree() == nil {
		return ErrNilNode
	}
	kb := kid.AsTree()
	if kb.Parent != nil {
		return fmt.Errorf("%w: %q is owned by %q", ErrHasParent, kb.Name, kb.Parent.AsTree().Path())
	}
	InitNode(kid)
	if kb.Name == "" {
		kb.Name = autoName(kid, n)
	}
	if n.ChildByName(kb.Name) != nil {
		return fmt.Errorf("%w: %q under %q", ErrDuplicateName, kb.Name, n.Path())
	}
	if i < 0 {
		i = 0
	}
	if i > len(n.Children) {
		i = len(n.Children)
	}
	n.Children = slices.Insert(n.Children, i, kid)
	n.numLifetimeChildren++
	n.BumpVersion()
	setParent(kid, n.This)
	return nil
}

// setParent sets the parent back-reference, bumps the child version, and
// runs the OnAdd notification.
func setParent(kid Node, parent Node) {
	kb := kid.AsTree()
	kb.Parent = parent
	kb.BumpVersion()
	kid.OnAdd()
}

// Deleting children:

// DeleteChildAt deletes and destroys the child at the given index,
// returning false if there is no child there.
func (n *NodeBase) DeleteChildAt(i int) bool {
	kid := n.Child(i)
	if kid == nil {
		return false
	}
	n.Children = slices.Delete(n.Children, i, i+1)
	n.BumpVersion()
	kid.Destroy()
	return true
}

// DeleteChild deletes and destroys the given child node, returning false
// if it is not actually a child of this node.
func (n *NodeBase) DeleteChild(kid Node) bool {
	if kid == nil {
		return false
	}
	idx := indexOf(n.Children, kid, kid.AsTree().index)
	if idx < 0 {
		return false
	}
	return n.DeleteChildAt(idx)
}

// DeleteChildByName deletes and destroys the child with the given name,
// returning false if there is none.
func (n *NodeBase) DeleteChildByName(name string) bool {
	kid := n.ChildByName(name)
	if kid == nil {
		return false
	}
	return n.DeleteChild(kid)
}

// DeleteChildren deletes and destroys all children of this node.
func (n *NodeBase) DeleteChildren() {
	kids := n.Children
	n.Children = n.Children[:0]
	if len(kids) > 0 {
		n.BumpVersion()
	}
	for _, kid := range kids {
		if kid != nil {
			kid.Destroy()
		}
	}
}

// Detach removes this node from its parent's children list without
// destroying it, releasing ownership to the caller. It is a no-op on roots.
func (n *NodeBase) Detach() {
	if n.Parent == nil {
		return
	}
	pb := n.Parent.AsTree()
	idx := indexOf(pb.Children, n.This, n.index)
	if idx >= 0 {
		pb.Children = slices.Delete(pb.Children, idx, idx+1)
		pb.BumpVersion()
	}
	n.Parent = nil
	n.BumpVersion()
}

// Delete deletes this node from its parent's children list and destroys it.
func (n *NodeBase) Delete() {
	if n.Parent == nil {
		n.This.Destroy()
		return
	}
	n.Parent.AsTree().DeleteChild(n.This)
}

// Destroy recursively deletes and destroys this node and all of its
// children. A destroyed node must not be reused.
func (n *NodeBase) Destroy() {
	if n.This == nil { // already destroyed
		return
	}
	n.DeleteChildren()
	n.Parent = nil
	n.This = nil
}

// Deep copy:

// CopyFrom copies the fields and children of the given node to this node.
// The source tree must have unique names. Only copying from the same
// underlying type is supported. Fields tagged `copier:"-"` are not copied.
func (n *NodeBase) CopyFrom(from Node) {
	if from == nil {
		slog.Error("tree.NodeBase.CopyFrom: nil source", "destination", n.Path())
		return
	}
	copyFrom(n.This, from)
}

func copyFrom(to, from Node) {
	tb := to.AsTree()
	fb := from.AsTree()
	tb.DeleteChildren()
	tb.This.CopyFieldsFrom(from)
	for _, fk := range fb.Children {
		nk := fk.AsTree().NewInstance()
		InitNode(nk)
		nk.AsTree().Name = fk.AsTree().Name
		tb.Children = append(tb.Children, nk)
		setParent(nk, tb.This)
		copyFrom(nk, fk)
	}
}

// Clone creates and returns a deep copy of the tree from this node down.
func (n *NodeBase) Clone() Node {
	nc := n.NewInstance()
	InitNode(nc)
	nc.AsTree().Name = n.Name
	nc.AsTree().CopyFrom(n.This)
	return nc
}

// CopyFieldsFrom copies the fields of the node from the given node using
// a deep copy of all fields that do not have a `copier:"-"` struct tag.
// Custom implementations must call this first.
func (n *NodeBase) CopyFieldsFrom(from Node) {
	err := copier.CopyWithOption(n.This, from.AsTree().This, copier.Option{CaseSensitive: true, DeepCopy: true})
	if err != nil {
		slog.Error("tree.NodeBase.CopyFieldsFrom", "err", err)
	}
}

// Init is a placeholder implementation of [Node.Init] that does nothing.
func (n *NodeBase) Init() {}

// OnAdd is a placeholder implementation of [Node.OnAdd] that does nothing.
func (n *NodeBase) OnAdd() {}
