package octree

import (
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/cutsim/pkg/bbox"
	"github.com/chazu/cutsim/pkg/volume"
)

// Collides reports whether v overlaps the material of the tree. The test
// is sampled: each material leaf whose cube meets the bounding box of v is
// probed at its center, its corners and the center of the overlap of the
// two boxes. A point collides when it lies strictly inside v and inside
// the material. Thin contacts between sample points can be missed.
func (t *Octree) Collides(v volume.Volume) bool {
	if v == nil {
		return false
	}
	vb := v.BoundingBox()
	if vb.IsEmpty() {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.collides(t.root, v, vb)
}

func (t *Octree) collides(id NodeID, v volume.Volume, vb bbox.BoundingBox) bool {
	cube := t.cube(id)
	if !cube.Overlaps(vb) {
		return false
	}
	n := &t.nodes[id]
	if !n.isLeaf() {
		for _, c := range n.children {
			if t.collides(c, v, vb) {
				return true
			}
		}
		return false
	}
	if n.state == Empty {
		return false
	}
	probes := make([]v3.Vec, 0, 10)
	probes = append(probes, n.center, overlapCenter(cube, vb))
	for i := 0; i < 8; i++ {
		probes = append(probes, t.corner(id, i))
	}
	for _, p := range probes {
		if v.Dist(p) <= 0 {
			continue
		}
		if n.state == Solid || t.interpolate(id, p) >= 0 {
			return true
		}
	}
	return false
}

func overlapCenter(a, b bbox.BoundingBox) v3.Vec {
	lo := v3.Vec{X: max(a.Min.X, b.Min.X), Y: max(a.Min.Y, b.Min.Y), Z: max(a.Min.Z, b.Min.Z)}
	hi := v3.Vec{X: min(a.Max.X, b.Max.X), Y: min(a.Max.Y, b.Max.Y), Z: min(a.Max.Z, b.Max.Z)}
	return lo.Add(hi).MulScalar(0.5)
}
