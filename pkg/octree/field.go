package octree

import (
	"math"

	"github.com/chazu/cutsim/pkg/volume"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var _ volume.Volume = (*Octree)(nil)

// Dist implements volume.Volume by interpolating the corner values of the
// leaf containing p. Outside the root cube it is minus the distance to the
// cube. The result has the right sign but is not a distance bound, so it
// suits meshing rather than use as an operand of another tree.
func (t *Octree) Dist(p v3.Vec) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	half := t.rootScale / 2
	d := p.Sub(t.center)
	var out float64
	for _, c := range []float64{d.X, d.Y, d.Z} {
		if e := math.Abs(c) - half; e > 0 {
			out += e * e
		}
	}
	if out > 0 {
		return -math.Sqrt(out)
	}

	id := t.root
	for !t.nodes[id].isLeaf() {
		n := &t.nodes[id]
		i := 0
		if p.X >= n.center.X {
			i |= 1
		}
		if p.Y >= n.center.Y {
			i |= 2
		}
		if p.Z >= n.center.Z {
			i |= 4
		}
		id = n.children[i]
	}
	return t.interpolate(id, p)
}

// interpolate evaluates the corner values of id at p, clamped to its cube.
func (t *Octree) interpolate(id NodeID, p v3.Vec) float64 {
	n := &t.nodes[id]
	s := t.side(n.depth)
	lo := n.center.Sub(v3.Vec{X: s / 2, Y: s / 2, Z: s / 2})
	u := clamp01((p.X - lo.X) / s)
	v := clamp01((p.Y - lo.Y) / s)
	w := clamp01((p.Z - lo.Z) / s)
	return trilinear(n.corners, u, v, w)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
