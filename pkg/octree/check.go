package octree

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Stats summarizes the tree.
type Stats struct {
	Nodes        int
	Leaves       int
	Solid        int
	Empty        int
	Boundary     int
	Invalid      int
	MaxLeafDepth int
}

// Stats counts nodes and leaves by state.
func (t *Octree) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st := Stats{Nodes: t.live}
	t.walk(t.root, func(id NodeID, n *node) {
		if !n.isLeaf() {
			return
		}
		st.Leaves++
		switch n.state {
		case Solid:
			st.Solid++
		case Empty:
			st.Empty++
		case Boundary:
			st.Boundary++
		}
		if _, ok := t.dirty[id]; ok {
			st.Invalid++
		}
		if n.depth > st.MaxLeafDepth {
			st.MaxLeafDepth = n.depth
		}
	})
	return st
}

// Check verifies the structural invariants of the tree and returns every
// violation found.
func (t *Octree) Check() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var errs error
	fail := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, errors.Errorf(format, args...))
	}
	if t.nodes[t.root].parent != NoNode {
		fail("root %d has parent %d", t.root, t.nodes[t.root].parent)
	}
	seen := 0
	t.walk(t.root, func(id NodeID, n *node) {
		seen++
		if n.free {
			fail("node %d is reachable but free", id)
			return
		}
		if n.depth > t.maxDepth {
			fail("node %d at depth %d exceeds max depth %d", id, n.depth, t.maxDepth)
		}
		if n.isLeaf() {
			for i, c := range n.children {
				if c != NoNode {
					fail("leaf %d has child %d in slot %d", id, c, i)
				}
			}
			if n.state == Boundary && n.depth != t.maxDepth {
				fail("boundary leaf %d at depth %d", id, n.depth)
			}
			return
		}
		quarter := t.side(n.depth) / 4
		for i, c := range n.children {
			if !t.validID(c) {
				fail("node %d has invalid child %d in slot %d", id, c, i)
				continue
			}
			child := &t.nodes[c]
			if child.parent != id {
				fail("child %d of %d points to parent %d", c, id, child.parent)
			}
			if child.depth != n.depth+1 {
				fail("child %d of %d has depth %d, want %d", c, id, child.depth, n.depth+1)
			}
			want := n.center.Add(octant(i).MulScalar(quarter))
			if child.center.Sub(want).Length() > 1e-9*t.rootScale {
				fail("child %d of %d centered at %v, want %v", c, id, child.center, want)
			}
		}
	})
	if seen != t.live {
		fail("%d nodes reachable, %d live", seen, t.live)
	}
	if t.maxNodes > 0 && t.live > t.maxNodes {
		fail("%d live nodes exceed budget %d", t.live, t.maxNodes)
	}
	return errs
}

// String renders the tree one node per line, indented by depth.
func (t *Octree) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var b strings.Builder
	fmt.Fprintf(&b, "octree scale=%g depth=%d center=(%g, %g, %g) nodes=%d\n",
		t.rootScale, t.maxDepth, t.center.X, t.center.Y, t.center.Z, t.live)
	t.walk(t.root, func(id NodeID, n *node) {
		kind := "node"
		if n.isLeaf() {
			kind = n.state.String()
		}
		fmt.Fprintf(&b, "%s%d %s c=(%g, %g, %g) side=%g\n",
			strings.Repeat("  ", n.depth), id, kind,
			n.center.X, n.center.Y, n.center.Z, t.side(n.depth))
	})
	return b.String()
}
