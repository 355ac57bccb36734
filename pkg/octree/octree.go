// Package octree holds the workpiece as a surface-adaptive octree.
//
// The tree starts as a single empty cube and is modified by boolean
// operations against volume.Volume solids: Sum adds material, Diff removes
// it and Intersect keeps only the common part. Nodes are refined only where
// the surface passes, down to a fixed maximum depth, and uniform subtrees
// are merged back into single leaves.
//
// Nodes live in an arena and are addressed by NodeID. Leaves whose state or
// corner values change are recorded in a dirty set so a renderer can remesh
// incrementally; see InvalidLeafNodes, MarkValid and TakeRemoved.
//
// An Octree is safe for concurrent use: operations take a write lock on the
// whole tree and queries take a read lock.
package octree

import (
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/chazu/cutsim/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// MaxSupportedDepth bounds the maximum depth of a tree.
const MaxSupportedDepth = 16

var (
	// ErrInvalidScale is returned for a non-positive or non-finite root scale.
	ErrInvalidScale = errors.New("octree: invalid root scale")
	// ErrInvalidDepth is returned for a maximum depth outside [1, MaxSupportedDepth].
	ErrInvalidDepth = errors.New("octree: invalid maximum depth")
	// ErrDegenerateVolume is returned for a nil volume or one whose bounding
	// box is empty or flat.
	ErrDegenerateVolume = errors.New("octree: degenerate volume")
	// ErrNodeBudget is returned when an operation would exceed the node budget.
	ErrNodeBudget = errors.New("octree: node budget exhausted")
	// ErrMaxDepth is returned when asked to subdivide past the maximum depth.
	ErrMaxDepth = errors.New("octree: maximum depth reached")
)

// Option configures an Octree.
type Option func(*Octree)

// WithNodeBudget caps the number of live nodes. Zero means no limit.
func WithNodeBudget(n int) Option {
	return func(t *Octree) {
		t.maxNodes = n
	}
}

// Octree is the workpiece model.
type Octree struct {
	mu sync.RWMutex

	nodes []node
	free  []NodeID
	live  int
	root  NodeID

	rootScale float64
	maxDepth  int
	center    v3.Vec
	maxNodes  int

	dirty   map[NodeID]struct{}
	removed map[NodeID]struct{}
}

// New returns an empty tree: one cube of side rootScale around center that
// may be refined maxDepth times.
func New(rootScale float64, maxDepth int, center v3.Vec, opts ...Option) (*Octree, error) {
	if !(rootScale > 0) || math.IsInf(rootScale, 0) {
		return nil, errors.Wrapf(ErrInvalidScale, "root scale %g", rootScale)
	}
	if maxDepth < 1 || maxDepth > MaxSupportedDepth {
		return nil, errors.Wrapf(ErrInvalidDepth, "max depth %d", maxDepth)
	}
	for _, c := range []float64{center.X, center.Y, center.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, errors.Errorf("octree: invalid center %v", center)
		}
	}
	t := &Octree{
		rootScale: rootScale,
		maxDepth:  maxDepth,
		center:    center,
		dirty:     make(map[NodeID]struct{}),
		removed:   make(map[NodeID]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.maxNodes < 0 {
		return nil, errors.Errorf("octree: negative node budget %d", t.maxNodes)
	}
	t.root = t.alloc(center, 0, NoNode)
	n := &t.nodes[t.root]
	n.state = Empty
	for i := range n.corners {
		n.corners[i] = -rootScale
	}
	return t, nil
}

// RootScale returns the side length of the root cube.
func (t *Octree) RootScale() float64 { return t.rootScale }

// MaxDepth returns the maximum leaf depth.
func (t *Octree) MaxDepth() int { return t.maxDepth }

// Center returns the center of the root cube.
func (t *Octree) Center() v3.Vec { return t.center }

// Root returns the ID of the root node.
func (t *Octree) Root() NodeID { return t.root }

// LeafScale returns the side length of a leaf at the maximum depth, the
// smallest feature the tree can represent.
func (t *Octree) LeafScale() float64 {
	return t.side(t.maxDepth)
}

// NodeCount returns the number of live nodes.
func (t *Octree) NodeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// BoundingBox returns the root cube.
func (t *Octree) BoundingBox() bbox.BoundingBox {
	return bbox.NewCube(t.center, t.rootScale)
}

func (t *Octree) side(depth int) float64 {
	return t.rootScale / float64(uint64(1)<<uint(depth))
}

func (t *Octree) cube(id NodeID) bbox.BoundingBox {
	n := &t.nodes[id]
	return bbox.NewCube(n.center, t.side(n.depth))
}

func (t *Octree) corner(id NodeID, i int) v3.Vec {
	n := &t.nodes[id]
	return n.center.Add(octant(i).MulScalar(t.side(n.depth) / 2))
}

func (t *Octree) markDirty(id NodeID) {
	t.dirty[id] = struct{}{}
}

// alloc takes a node from the free list or grows the arena. The new node
// is a dirty leaf. Pointers into t.nodes are invalid after alloc.
func (t *Octree) alloc(center v3.Vec, depth int, parent NodeID) NodeID {
	var id NodeID
	if k := len(t.free); k > 0 {
		id = t.free[k-1]
		t.free = t.free[:k-1]
	} else {
		id = NodeID(len(t.nodes))
		t.nodes = append(t.nodes, node{})
	}
	t.nodes[id] = node{
		center:   center,
		depth:    depth,
		parent:   parent,
		children: [8]NodeID{NoNode, NoNode, NoNode, NoNode, NoNode, NoNode, NoNode, NoNode},
	}
	t.live++
	t.markDirty(id)
	return id
}

// release frees id and its whole subtree.
func (t *Octree) release(id NodeID) {
	n := &t.nodes[id]
	if !n.isLeaf() {
		for _, c := range n.children {
			t.release(c)
		}
	}
	t.nodes[id] = node{free: true, parent: NoNode}
	t.free = append(t.free, id)
	t.live--
	delete(t.dirty, id)
	t.removed[id] = struct{}{}
}

// split turns leaf id into an internal node with 8 children that inherit
// its state and interpolated corner values.
func (t *Octree) split(id NodeID) error {
	n := &t.nodes[id]
	if !n.isLeaf() {
		panic("octree: split of internal node")
	}
	if n.depth >= t.maxDepth {
		return errors.Wrapf(ErrMaxDepth, "node %d at depth %d", id, n.depth)
	}
	if t.maxNodes > 0 && t.live+8 > t.maxNodes {
		return errors.Wrapf(ErrNodeBudget, "%d live nodes, budget %d", t.live, t.maxNodes)
	}
	center, depth, state, corners := n.center, n.depth, n.state, n.corners
	quarter := t.side(depth) / 4
	var kids [8]NodeID
	for i := 0; i < 8; i++ {
		c := t.alloc(center.Add(octant(i).MulScalar(quarter)), depth+1, id)
		t.nodes[c].state = state
		t.nodes[c].corners = childCorners(corners, i)
		kids[i] = c
	}
	t.nodes[id].children = kids
	delete(t.dirty, id)
	t.removed[id] = struct{}{}
	return nil
}

// Init subdivides every leaf until all leaves are at depth n. It is meant
// to pre-seed a coarse grid before any operation is applied.
func (t *Octree) Init(n int) error {
	if n < 0 {
		return errors.Errorf("octree: negative init depth %d", n)
	}
	if n > t.maxDepth {
		return errors.Wrapf(ErrMaxDepth, "init depth %d exceeds max depth %d", n, t.maxDepth)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initNode(t.root, n)
}

func (t *Octree) initNode(id NodeID, n int) error {
	if t.nodes[id].depth >= n {
		return nil
	}
	if t.nodes[id].isLeaf() {
		if err := t.split(id); err != nil {
			return err
		}
	}
	for i := 0; i < 8; i++ {
		if err := t.initNode(t.nodes[id].children[i], n); err != nil {
			return err
		}
	}
	return nil
}

// Parent returns the parent of id, or NoNode for the root.
func (t *Octree) Parent(id NodeID) (NodeID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.validID(id) {
		return NoNode, errors.Errorf("octree: no node %d", id)
	}
	return t.nodes[id].parent, nil
}

func (t *Octree) validID(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes) && !t.nodes[id].free
}

func (t *Octree) snapshot(id NodeID) Leaf {
	n := &t.nodes[id]
	_, dirty := t.dirty[id]
	return Leaf{
		ID:      id,
		Center:  n.center,
		Side:    t.side(n.depth),
		Depth:   n.depth,
		State:   n.state,
		Corners: n.corners,
		Valid:   !dirty,
	}
}

// walk visits nodes depth first in child order 0..7.
func (t *Octree) walk(id NodeID, fn func(id NodeID, n *node)) {
	n := &t.nodes[id]
	fn(id, n)
	if n.isLeaf() {
		return
	}
	for _, c := range n.children {
		t.walk(c, fn)
	}
}

// LeafNodes returns all leaves, depth first in child order 0..7.
func (t *Octree) LeafNodes() []Leaf {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Leaf
	t.walk(t.root, func(id NodeID, n *node) {
		if n.isLeaf() {
			out = append(out, t.snapshot(id))
		}
	})
	return out
}

// InvalidLeafNodes returns the leaves in the dirty set, in the same order
// as LeafNodes.
func (t *Octree) InvalidLeafNodes() []Leaf {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Leaf
	if len(t.dirty) == 0 {
		return out
	}
	t.walk(t.root, func(id NodeID, n *node) {
		if _, ok := t.dirty[id]; ok && n.isLeaf() {
			out = append(out, t.snapshot(id))
		}
	})
	return out
}

// AllNodes returns every node in pre-order. Internal nodes are reported
// with the state of their last merge or split.
func (t *Octree) AllNodes() []Leaf {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Leaf, 0, t.live)
	t.walk(t.root, func(id NodeID, _ *node) {
		out = append(out, t.snapshot(id))
	})
	return out
}

// MarkValid removes ids from the dirty set. Unknown ids are ignored.
func (t *Octree) MarkValid(ids ...NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		delete(t.dirty, id)
	}
}

// MarkAllValid empties the dirty set.
func (t *Octree) MarkAllValid() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dirty = make(map[NodeID]struct{})
}

// TakeRemoved returns, in ascending order, the ids that stopped being
// leaves since the last call (freed or split) and resets the set. A
// renderer drops the fragments of these ids before rebuilding the invalid
// leaves; an id may appear in both lists when it was reused.
func (t *Octree) TakeRemoved() []NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]NodeID, 0, len(t.removed))
	for id := range t.removed {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	t.removed = make(map[NodeID]struct{})
	return out
}
