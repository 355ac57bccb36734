package octree

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/chazu/cutsim/pkg/bbox"
	"github.com/chazu/cutsim/pkg/volume"
)

// Op is a boolean operator between the workpiece and a volume.
type Op int

const (
	// OpSum adds the volume to the workpiece (union).
	OpSum Op = iota
	// OpDiff removes the volume from the workpiece (subtraction).
	OpDiff
	// OpIntersect keeps only material inside the volume.
	OpIntersect
)

func (op Op) String() string {
	switch op {
	case OpSum:
		return "sum"
	case OpDiff:
		return "diff"
	case OpIntersect:
		return "intersect"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// combine merges the workpiece distance f with the volume distance v.
func (op Op) combine(f, v float64) float64 {
	switch op {
	case OpSum:
		return math.Max(f, v)
	case OpDiff:
		return math.Min(f, -v)
	case OpIntersect:
		return math.Min(f, v)
	}
	panic(fmt.Sprintf("octree: unknown operator %d", int(op)))
}

// noop reports whether op cannot change a leaf in state s.
func (op Op) noop(s State) bool {
	switch op {
	case OpSum:
		return s == Solid
	case OpDiff, OpIntersect:
		return s == Empty
	}
	panic(fmt.Sprintf("octree: unknown operator %d", int(op)))
}

// class is the relation of a node cube to a volume.
type class int

const (
	classOutside class = iota
	classInside
	classMixed
)

// Sum adds v to the workpiece.
func (t *Octree) Sum(v volume.Volume) error { return t.Apply(OpSum, v) }

// Diff removes v from the workpiece.
func (t *Octree) Diff(v volume.Volume) error { return t.Apply(OpDiff, v) }

// Intersect keeps only the part of the workpiece inside v.
func (t *Octree) Intersect(v volume.Volume) error { return t.Apply(OpIntersect, v) }

// Apply combines v with the workpiece using op.
//
// A volume with a degenerate bounding box is rejected before the tree is
// touched. If the node budget runs out midway the operation stops and
// returns ErrNodeBudget; the tree is left structurally valid but only
// partly updated. A tree cannot be combined with itself.
func (t *Octree) Apply(op Op, v volume.Volume) error {
	if op < OpSum || op > OpIntersect {
		return errors.Errorf("octree: unknown operator %d", int(op))
	}
	if v == nil {
		return errors.Wrap(ErrDegenerateVolume, "nil volume")
	}
	if o, ok := v.(*Octree); ok && o == t {
		return errors.New("octree: cannot combine a tree with itself")
	}
	vb := v.BoundingBox()
	if vb.Degenerate() {
		return errors.Wrapf(ErrDegenerateVolume, "bounding box %v", vb)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.apply(t.root, v, vb, op)
}

func (t *Octree) apply(id NodeID, v volume.Volume, vb bbox.BoundingBox, op Op) error {
	leaf := t.nodes[id].isLeaf()
	if leaf && op.noop(t.nodes[id].state) {
		return nil
	}
	if !t.cube(id).Overlaps(vb) {
		if op == OpIntersect {
			t.collapse(id, Empty, t.combine(id, t.sample(id, v), op))
		}
		return nil
	}

	vals := t.sample(id, v)
	switch cls := t.classify(id, v, vals); {
	case cls == classInside && op == OpSum:
		t.collapse(id, Solid, t.combine(id, vals, op))
		return nil
	case cls == classInside && op == OpDiff,
		cls == classOutside && op == OpIntersect:
		t.collapse(id, Empty, t.combine(id, vals, op))
		return nil
	case cls != classMixed:
		return nil
	}

	if t.nodes[id].depth >= t.maxDepth {
		t.settle(id, t.combine(id, vals, op))
		return nil
	}

	var before node
	var wasDirty, wasRemoved bool
	if leaf {
		before = t.nodes[id]
		_, wasDirty = t.dirty[id]
		_, wasRemoved = t.removed[id]
		if err := t.split(id); err != nil {
			return err
		}
	}
	var err error
	for i := 0; i < 8; i++ {
		if err = t.apply(t.nodes[id].children[i], v, vb, op); err != nil {
			break
		}
	}
	t.merge(id)

	// A split that merged back to the same leaf leaves nothing to remesh.
	n := &t.nodes[id]
	if leaf && n.isLeaf() && n.state == before.state && n.corners == before.corners {
		if !wasDirty {
			delete(t.dirty, id)
		}
		if !wasRemoved {
			delete(t.removed, id)
		}
	}
	return err
}

// sample evaluates v at the corners of id.
func (t *Octree) sample(id NodeID, v volume.Volume) [8]float64 {
	var vals [8]float64
	for i := range vals {
		vals[i] = v.Dist(t.corner(id, i))
	}
	return vals
}

// classify decides how the cube of id relates to v, given v at its corners.
//
// A center distance beyond the half diagonal settles the cube outright.
// Otherwise mixed corner signs mean the surface crosses the cube. Uniform
// corners close to the surface still count as mixed above the maximum
// depth, since a thin feature may pass between them; at the maximum depth
// the corners decide.
func (t *Octree) classify(id NodeID, v volume.Volume, vals [8]float64) class {
	n := &t.nodes[id]
	h := t.side(n.depth) / 2 * math.Sqrt(3)
	c := v.Dist(n.center)
	switch {
	case c >= h:
		return classInside
	case c <= -h:
		return classOutside
	}
	switch stateOf(vals) {
	case Solid:
		if n.depth < t.maxDepth {
			return classMixed
		}
		return classInside
	case Empty:
		if n.depth < t.maxDepth {
			return classMixed
		}
		return classOutside
	}
	return classMixed
}

func (t *Octree) combine(id NodeID, vals [8]float64, op Op) [8]float64 {
	var out [8]float64
	f := &t.nodes[id].corners
	for i := range out {
		out[i] = op.combine(f[i], vals[i])
	}
	return out
}

// collapse makes id a leaf with the given state and corners, freeing any
// subtree.
func (t *Octree) collapse(id NodeID, s State, corners [8]float64) {
	n := &t.nodes[id]
	if !n.isLeaf() {
		for _, c := range n.children {
			t.release(c)
		}
		for i := range n.children {
			n.children[i] = NoNode
		}
		t.markDirty(id)
	}
	if n.state != s || n.corners != corners {
		n.state = s
		n.corners = corners
		t.markDirty(id)
	}
}

// settle updates a leaf at the maximum depth from its combined corners.
func (t *Octree) settle(id NodeID, corners [8]float64) {
	t.collapse(id, stateOf(corners), corners)
}

// merge folds the children of id back into it when they are all leaves of
// one non-boundary state. Otherwise it refreshes the corner values of id
// from its children.
func (t *Octree) merge(id NodeID) {
	n := &t.nodes[id]
	if n.isLeaf() {
		return
	}
	var corners [8]float64
	uniform := true
	first := t.nodes[n.children[0]].state
	for i, c := range n.children {
		child := &t.nodes[c]
		corners[i] = child.corners[i]
		if !child.isLeaf() || child.state != first || first == Boundary {
			uniform = false
		}
	}
	if !uniform {
		n.corners = corners
		return
	}
	t.collapse(id, first, corners)
	t.markDirty(id)
}
