// Package tessellate turns the workpiece octree into triangle meshes.
//
// Remesher keeps one mesh fragment per boundary leaf and rebuilds only the
// leaves the tree reports as invalid, so the cost of an update follows the
// size of the last cut rather than the size of the part. Smooth meshes the
// whole tree through a geometry kernel instead.
package tessellate

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/cutsim/pkg/kernel"
	"github.com/chazu/cutsim/pkg/octree"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Source is the part of the octree a remesher reads.
type Source interface {
	InvalidLeafNodes() []octree.Leaf
	LeafNodes() []octree.Leaf
	TakeRemoved() []octree.NodeID
	MarkValid(ids ...octree.NodeID)
}

var _ Source = (*octree.Octree)(nil)

// UpdateStats describes one incremental update.
type UpdateStats struct {
	Dropped   int // fragments discarded for ids that stopped being leaves
	Rebuilt   int // invalid leaves reprocessed
	Fragments int // fragments held after the update
	Triangles int // triangles held after the update
}

// Remesher incrementally maintains a surface mesh of an octree.
//
// Update must not run concurrently with a boolean operation on the tree:
// it reads the removed and invalid sets as one batch.
type Remesher struct {
	src       Source
	name      string
	fragments map[octree.NodeID]*kernel.Mesh
	triangles int
}

// NewRemesher returns a remesher for src. The first Update meshes every
// leaf the tree reports as invalid, which for a fresh tree is all of them.
func NewRemesher(src Source, name string) *Remesher {
	return &Remesher{
		src:       src,
		name:      name,
		fragments: make(map[octree.NodeID]*kernel.Mesh),
	}
}

// Update drops fragments of removed leaves, rebuilds invalid leaves and
// marks them valid.
func (r *Remesher) Update() UpdateStats {
	var st UpdateStats
	for _, id := range r.src.TakeRemoved() {
		if r.drop(id) {
			st.Dropped++
		}
	}
	invalid := r.src.InvalidLeafNodes()
	ids := make([]octree.NodeID, 0, len(invalid))
	for _, l := range invalid {
		r.drop(l.ID)
		if m := LeafMesh(l); !m.IsEmpty() {
			r.fragments[l.ID] = m
			r.triangles += m.TriangleCount()
		}
		ids = append(ids, l.ID)
	}
	r.src.MarkValid(ids...)
	st.Rebuilt = len(invalid)
	st.Fragments = len(r.fragments)
	st.Triangles = r.triangles
	return st
}

func (r *Remesher) drop(id octree.NodeID) bool {
	m, ok := r.fragments[id]
	if !ok {
		return false
	}
	r.triangles -= m.TriangleCount()
	delete(r.fragments, id)
	return true
}

// TriangleCount returns the number of triangles currently held.
func (r *Remesher) TriangleCount() int {
	return r.triangles
}

// Mesh concatenates all fragments in node id order.
func (r *Remesher) Mesh() *kernel.Mesh {
	ids := make([]octree.NodeID, 0, len(r.fragments))
	for id := range r.fragments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := &kernel.Mesh{Name: r.name}
	for _, id := range ids {
		out.Append(r.fragments[id])
	}
	return out
}

// Tessellate meshes every leaf of the tree from scratch. It does not touch
// the tree's dirty set.
func Tessellate(src Source, name string) *kernel.Mesh {
	out := &kernel.Mesh{Name: name}
	for _, l := range src.LeafNodes() {
		out.Append(LeafMesh(l))
	}
	return out
}

// Smooth meshes the tree's interpolated distance field with the kernel.
func Smooth(k kernel.Kernel, tree *octree.Octree, name string) (*kernel.Mesh, error) {
	m, err := k.ToMesh(tree)
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for %s: %w", name, err)
	}
	m.Name = name
	return m, nil
}

// tets splits a cube into six tetrahedra around the 0-7 diagonal.
var tets = [6][4]int{
	{0, 1, 3, 7},
	{0, 3, 2, 7},
	{0, 2, 6, 7},
	{0, 6, 4, 7},
	{0, 4, 5, 7},
	{0, 5, 1, 7},
}

// LeafMesh extracts the surface crossing a leaf from its corner values by
// marching tetrahedra. Leaves without a sign change yield an empty mesh.
//
// Every vertex lies on an edge of the leaf cube or of its six tetrahedra, so
// fragments of neighbouring leaves never overlap. sdfx's renderers sample a
// padded grid around the bounding box and so cannot be confined to one leaf.
func LeafMesh(l octree.Leaf) *kernel.Mesh {
	m := &kernel.Mesh{}
	if l.State != octree.Boundary {
		return m
	}
	var pos [8]v3.Vec
	for i := range pos {
		pos[i] = l.Corner(i)
	}
	for _, tet := range tets {
		var in, out []int
		for _, c := range tet {
			if l.Corners[c] >= 0 {
				in = append(in, c)
			} else {
				out = append(out, c)
			}
		}
		cross := func(a, b int) v3.Vec {
			return interpolate(pos[a], pos[b], l.Corners[a], l.Corners[b])
		}
		outward := centroid(pos, out).Sub(centroid(pos, in))
		switch len(in) {
		case 1:
			emit(m, cross(in[0], out[0]), cross(in[0], out[1]), cross(in[0], out[2]), outward)
		case 3:
			emit(m, cross(out[0], in[0]), cross(out[0], in[1]), cross(out[0], in[2]), outward)
		case 2:
			a := cross(in[0], out[0])
			b := cross(in[0], out[1])
			c := cross(in[1], out[1])
			d := cross(in[1], out[0])
			emit(m, a, b, c, outward)
			emit(m, a, c, d, outward)
		}
	}
	return m
}

// interpolate returns the zero crossing on edge ab.
func interpolate(a, b v3.Vec, da, db float64) v3.Vec {
	t := 0.5
	if den := da - db; den != 0 {
		t = math.Max(0, math.Min(1, da/den))
	}
	return a.Add(b.Sub(a).MulScalar(t))
}

func centroid(pos [8]v3.Vec, idx []int) v3.Vec {
	var c v3.Vec
	for _, i := range idx {
		c = c.Add(pos[i])
	}
	return c.MulScalar(1 / float64(len(idx)))
}

// emit adds triangle abc wound so its normal points along outward.
// Degenerate triangles are skipped.
func emit(m *kernel.Mesh, a, b, c, outward v3.Vec) {
	t := sdf.Triangle3{a, b, c}
	if t.Degenerate(1e-9) || b.Sub(a).Cross(c.Sub(a)).Length() < 1e-12 {
		return
	}
	if t.Normal().Dot(outward) < 0 {
		t[1], t[2] = t[2], t[1]
	}
	m.AddTriangle(f32(t[0]), f32(t[1]), f32(t[2]), f32(t.Normal()))
}

func f32(v v3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
