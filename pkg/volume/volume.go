// Package volume defines the signed-distance solids that are combined with
// an octree workpiece. A Volume reports a signed distance and a bounding box;
// nothing else is required, so new cutter shapes plug in without touching
// the tree.
//
// Sign convention: Dist is positive (or zero) inside the solid and negative
// outside. Dist must be exact or a conservative bound: its magnitude never
// exceeds the true distance to the surface.
package volume

import (
	"math"

	"github.com/pkg/errors"

	"github.com/chazu/cutsim/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrInvalidParameter is returned by constructors given a non-positive,
// non-finite or otherwise unusable shape parameter.
var ErrInvalidParameter = errors.New("invalid volume parameter")

// Volume is a solid described by a signed distance field.
type Volume interface {
	// Dist returns the signed distance from p to the surface,
	// positive inside and negative outside.
	Dist(p v3.Vec) float64
	// BoundingBox returns a box enclosing every point with Dist >= 0.
	BoundingBox() bbox.BoundingBox
}

// Inside reports whether p is inside or on the surface of v.
func Inside(v Volume, p v3.Vec) bool {
	return v.Dist(p) >= 0
}

// Translated is a Volume shifted by a fixed offset.
type Translated struct {
	v      Volume
	offset v3.Vec
	bb     bbox.BoundingBox
}

// Translate returns v moved by offset.
func Translate(v Volume, offset v3.Vec) *Translated {
	return &Translated{v: v, offset: offset, bb: v.BoundingBox().Translate(offset)}
}

// Dist implements Volume.
func (t *Translated) Dist(p v3.Vec) float64 {
	return t.v.Dist(p.Sub(t.offset))
}

// BoundingBox implements Volume.
func (t *Translated) BoundingBox() bbox.BoundingBox {
	return t.bb
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func finiteVec(p v3.Vec) bool {
	return finite(p.X, p.Y, p.Z)
}
