package volume

import (
	"math"

	"github.com/pkg/errors"

	"github.com/chazu/cutsim/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// orthoTolerance bounds the cosine between two edge vectors of a Rect.
const orthoTolerance = 1e-9

// Rect is a rectangular box spanned from a corner by three mutually
// orthogonal edge vectors. Axis-aligned edges are the common case.
//
// Distance is computed in the box frame: the point is projected onto the
// three edges and clamped to the box. Outside, the result is minus the
// distance to the clamped point (face, edge or corner alike). Inside, it is
// the smallest clearance to a face, with ties going to the first edge.
type Rect struct {
	corner v3.Vec
	edges  [3]v3.Vec
	axes   [3]v3.Vec
	extent [3]float64
	bb     bbox.BoundingBox
}

// NewRect returns the box corner + a*e1 + b*e2 + c*e3, a, b, c in [0, 1].
func NewRect(corner, e1, e2, e3 v3.Vec) (*Rect, error) {
	r := &Rect{}
	edges := [3]v3.Vec{e1, e2, e3}
	for i, e := range edges {
		l := e.Length()
		if !(l > 0) || !finite(l) {
			return nil, errors.Wrapf(ErrInvalidParameter, "rect edge %d has length %g", i+1, l)
		}
		r.axes[i] = e.MulScalar(1 / l)
		r.extent[i] = l
	}
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if math.Abs(r.axes[i].Dot(r.axes[j])) > orthoTolerance {
				return nil, errors.Wrapf(ErrInvalidParameter, "rect edges %d and %d are not orthogonal", i+1, j+1)
			}
		}
	}
	if !finiteVec(corner) {
		return nil, errors.Wrapf(ErrInvalidParameter, "rect corner %v", corner)
	}
	r.edges = edges
	r.SetCorner(corner)
	return r, nil
}

// NewAxisBox returns the axis-aligned box between min and max.
func NewAxisBox(min, max v3.Vec) (*Rect, error) {
	d := max.Sub(min)
	return NewRect(min, v3.Vec{X: d.X}, v3.Vec{Y: d.Y}, v3.Vec{Z: d.Z})
}

// Corner returns the origin corner.
func (r *Rect) Corner() v3.Vec { return r.corner }

// Edges returns the three edge vectors.
func (r *Rect) Edges() [3]v3.Vec { return r.edges }

// SetCorner moves the box.
func (r *Rect) SetCorner(c v3.Vec) {
	r.corner = c
	r.calcBB()
}

// local returns p in box coordinates.
func (r *Rect) local(p v3.Vec) [3]float64 {
	d := p.Sub(r.corner)
	return [3]float64{d.Dot(r.axes[0]), d.Dot(r.axes[1]), d.Dot(r.axes[2])}
}

// NearestFace returns the edge index (0, 1, 2) whose face pair is closest
// to p and the clearance to it. Only meaningful for points inside.
func (r *Rect) NearestFace(p v3.Vec) (int, float64) {
	q := r.local(p)
	axis, best := 0, math.Inf(1)
	for i := 0; i < 3; i++ {
		c := math.Min(q[i], r.extent[i]-q[i])
		if c < best {
			axis, best = i, c
		}
	}
	return axis, best
}

// Dist implements Volume.
func (r *Rect) Dist(p v3.Vec) float64 {
	q := r.local(p)
	var out float64
	inside := true
	for i := 0; i < 3; i++ {
		var d float64
		switch {
		case q[i] < 0:
			d = -q[i]
		case q[i] > r.extent[i]:
			d = q[i] - r.extent[i]
		default:
			continue
		}
		inside = false
		out += d * d
	}
	if !inside {
		return -math.Sqrt(out)
	}
	_, clearance := r.NearestFace(p)
	return clearance
}

// BoundingBox implements Volume.
func (r *Rect) BoundingBox() bbox.BoundingBox {
	return r.bb
}

func (r *Rect) calcBB() {
	r.bb.Clear()
	for i := 0; i < 8; i++ {
		p := r.corner
		for axis := 0; axis < 3; axis++ {
			if i&(1<<axis) != 0 {
				p = p.Add(r.edges[axis])
			}
		}
		r.bb.AddPoint(p)
	}
}
