// File: internal/store/tree.go
// Package store owns the global hierarchical XenStore tree: path
// resolution, create-on-write, and recursive remove, all under one
// mutex held for the full duration of each operation (spec §4.3).
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The single-mutex-over-the-whole-subsystem shape is generalized from
// the teacher's internal/session/context_store.go (a flat map guarded
// by one sync.RWMutex) to a tree, since an ordered hierarchy with
// stable child iteration order cannot be represented as a map.
package store

import (
	"strings"
	"sync"

	"github.com/momentics/xenstore-go/internal/xserr"
)

// AbsPathMax bounds the total absolute path length, including the
// trailing NUL, per spec §6.
const AbsPathMax = 3072

// Node is one tree node: a path segment, an optional value, and an
// ordered list of uniquely-named children.
type Node struct {
	Name     string
	Value    []byte
	HasValue bool
	Children []*Node
}

func newNode(name string) *Node {
	return &Node{Name: name}
}

func (n *Node) child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (n *Node) removeChild(name string) {
	for i, c := range n.Children {
		if c.Name == name {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return
		}
	}
}

// Tree is the process-wide hierarchical store. The zero value is not
// ready to use; construct with New.
type Tree struct {
	mu   sync.Mutex
	root *Node
}

// New builds an empty tree containing only the root node.
func New() *Tree {
	return &Tree{root: newNode("")}
}

// splitPath validates and splits an absolute path into segments. The
// root path "/" yields a zero-length segment slice.
func splitPath(path string) ([]string, error) {
	if path == "" || path[0] != '/' {
		return nil, xserr.New(xserr.CodeEINVAL, "path must be absolute")
	}
	if path == "/" {
		return nil, nil
	}
	segs := strings.Split(path[1:], "/")
	for _, s := range segs {
		if s == "" {
			return nil, xserr.New(xserr.CodeEINVAL, "empty path segment")
		}
	}
	return segs, nil
}

// Lookup walks the tree from root, returning the node whose path
// exactly matches path, or (nil, false) if absent. The root path "/"
// returns the root node.
func (t *Tree) Lookup(path string) (*Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookupLocked(path)
}

func (t *Tree) lookupLocked(path string) (*Node, bool) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	cur := t.root
	for _, s := range segs {
		cur = cur.child(s)
		if cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// Write walks the tree, creating missing intermediate nodes with an
// empty (unset) value, and sets the terminal node's value to a fresh
// copy of value. A zero-length value leaves an existing terminal's
// value untouched, per spec §4.3; it still creates the node if absent,
// but does not mark the freshly created node HasValue in that case.
func (t *Tree) Write(path string, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		// Writing to "/" touches only the root's value.
		return t.setValueLocked(t.root, value)
	}

	cur := t.root
	var created []*Node
	for _, s := range segs[:len(segs)-1] {
		next := cur.child(s)
		if next == nil {
			next = newNode(s)
			cur.Children = append(cur.Children, next)
			created = append(created, next)
		}
		cur = next
	}

	last := segs[len(segs)-1]
	terminal := cur.child(last)
	if terminal == nil {
		terminal = newNode(last)
		cur.Children = append(cur.Children, terminal)
		created = append(created, terminal)
	}

	if err := t.setValueLocked(terminal, value); err != nil {
		// Unwind: free the first intermediate we created so no partial
		// subtree is left behind, per spec §4.3/§7.
		if len(created) > 0 {
			t.unwindLocked(created[0])
		}
		return err
	}
	return nil
}

func (t *Tree) setValueLocked(n *Node, value []byte) error {
	if len(value) == 0 {
		if !n.HasValue {
			// Leave as a valueless intermediate; nothing to copy.
			return nil
		}
		// A zero-length write to an existing value leaves it untouched.
		return nil
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	n.Value = cp
	n.HasValue = true
	return nil
}

// unwindLocked detaches first (an intermediate created during a failed
// write) from its parent. Since Go allocation failures aren't modeled
// as recoverable errors in practice, this exists to satisfy the
// invariant structurally should setValueLocked ever fail.
func (t *Tree) unwindLocked(first *Node) {
	var detach func(n *Node) bool
	detach = func(n *Node) bool {
		for i, c := range n.Children {
			if c == first {
				n.Children = append(n.Children[:i], n.Children[i+1:]...)
				return true
			}
			if detach(c) {
				return true
			}
		}
		return false
	}
	detach(t.root)
}

// Remove looks up path and destroys it and its entire subtree.
// Removing the root is not permitted.
func (t *Tree) Remove(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return xserr.New(xserr.CodeEINVAL, "cannot remove root")
	}

	cur := t.root
	for _, s := range segs[:len(segs)-1] {
		cur = cur.child(s)
		if cur == nil {
			return xserr.New(xserr.CodeENOENT, "no such path")
		}
	}
	last := segs[len(segs)-1]
	if cur.child(last) == nil {
		return xserr.New(xserr.CodeENOENT, "no such path")
	}
	cur.removeChild(last)
	return nil
}

// Directory returns the ordered child names of the node at path, or
// nil if the node is absent or childless.
func (t *Tree) Directory(path string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.lookupLocked(path)
	if !ok || len(n.Children) == 0 {
		return nil
	}
	names := make([]string, len(n.Children))
	for i, c := range n.Children {
		names[i] = c.Name
	}
	return names
}

// Snapshot returns a deep copy of the tree rooted at root, for tests
// and debug dumps that must not observe concurrent mutation.
func (t *Tree) Snapshot() *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneNode(t.root)
}

func cloneNode(n *Node) *Node {
	cp := &Node{Name: n.Name, HasValue: n.HasValue}
	if n.HasValue {
		cp.Value = append([]byte(nil), n.Value...)
	}
	for _, c := range n.Children {
		cp.Children = append(cp.Children, cloneNode(c))
	}
	return cp
}

// Read returns a copy of the value at path, whether the node exists,
// and whether it has a value set.
func (t *Tree) Read(path string) (value []byte, exists bool, hasValue bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.lookupLocked(path)
	if !ok {
		return nil, false, false
	}
	if !n.HasValue {
		return nil, true, false
	}
	cp := make([]byte, len(n.Value))
	copy(cp, n.Value)
	return cp, true, true
}
