// File: internal/control/debug.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package control

import (
	"github.com/davecgh/go-spew/spew"

	"github.com/momentics/xenstore-go/internal/store"
)

// Debug exposes operator-facing introspection over the live tree,
// modeled on the teacher's api/debug.go probe surface.
type Debug struct {
	tree *store.Tree
}

// NewDebug builds a Debug probe over tree.
func NewDebug(tree *store.Tree) *Debug {
	return &Debug{tree: tree}
}

// DumpTree renders a pretty-printed snapshot of the live store.
func (d *Debug) DumpTree() string {
	snap := d.tree.Snapshot()
	return spew.Sdump(snap)
}
