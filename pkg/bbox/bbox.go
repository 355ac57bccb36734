// Package bbox provides the axis-aligned bounding box used to reject
// octree nodes before any distance evaluation takes place.
package bbox

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// BoundingBox is an axis-aligned min/max extent in world units.
// The zero value is the empty box: the first added point becomes both
// Min and Max.
type BoundingBox struct {
	Min v3.Vec
	Max v3.Vec

	populated bool
}

// New returns the smallest box containing all of pts.
func New(pts ...v3.Vec) BoundingBox {
	var b BoundingBox
	for _, p := range pts {
		b.AddPoint(p)
	}
	return b
}

// NewCube returns the box of an axis-aligned cube.
func NewCube(center v3.Vec, side float64) BoundingBox {
	h := side / 2
	return New(
		v3.Vec{X: center.X - h, Y: center.Y - h, Z: center.Z - h},
		v3.Vec{X: center.X + h, Y: center.Y + h, Z: center.Z + h},
	)
}

// FromSDF converts an sdfx box.
func FromSDF(b sdf.Box3) BoundingBox {
	return New(b.Min, b.Max)
}

// ToSDF converts to an sdfx box. The empty box maps to a zero box.
func (b BoundingBox) ToSDF() sdf.Box3 {
	return sdf.Box3{Min: b.Min, Max: b.Max}
}

// Clear resets the box to the empty state.
func (b *BoundingBox) Clear() {
	*b = BoundingBox{}
}

// AddPoint extends the box to include p.
func (b *BoundingBox) AddPoint(p v3.Vec) {
	if !b.populated {
		b.Min, b.Max = p, p
		b.populated = true
		return
	}
	b.Min = v3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = v3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
}

// AddBox extends the box to include all of other.
func (b *BoundingBox) AddBox(other BoundingBox) {
	if other.IsEmpty() {
		return
	}
	b.AddPoint(other.Min)
	b.AddPoint(other.Max)
}

// IsEmpty reports whether no point has been added.
func (b BoundingBox) IsEmpty() bool {
	return !b.populated
}

// Contains reports whether p lies inside or on the box.
func (b BoundingBox) Contains(p v3.Vec) bool {
	if b.IsEmpty() {
		return false
	}
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Overlaps reports whether the two boxes intersect on all three axes.
// Touching boxes overlap. An empty box overlaps nothing.
func (b BoundingBox) Overlaps(other BoundingBox) bool {
	if b.IsEmpty() || other.IsEmpty() {
		return false
	}
	return b.Max.X >= other.Min.X && b.Min.X <= other.Max.X &&
		b.Max.Y >= other.Min.Y && b.Min.Y <= other.Max.Y &&
		b.Max.Z >= other.Min.Z && b.Min.Z <= other.Max.Z
}

// Size returns the extent along each axis.
func (b BoundingBox) Size() v3.Vec {
	if b.IsEmpty() {
		return v3.Vec{}
	}
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() v3.Vec {
	return b.Min.Add(b.Max).MulScalar(0.5)
}

// Enlarge grows the box by d on every side.
func (b BoundingBox) Enlarge(d float64) BoundingBox {
	if b.IsEmpty() {
		return b
	}
	b.Min = v3.Vec{X: b.Min.X - d, Y: b.Min.Y - d, Z: b.Min.Z - d}
	b.Max = v3.Vec{X: b.Max.X + d, Y: b.Max.Y + d, Z: b.Max.Z + d}
	return b
}

// Translate shifts the box by d.
func (b BoundingBox) Translate(d v3.Vec) BoundingBox {
	if b.IsEmpty() {
		return b
	}
	b.Min = b.Min.Add(d)
	b.Max = b.Max.Add(d)
	return b
}

// Degenerate reports whether the box is empty, has zero extent on some
// axis, or holds a NaN bound. Such a box cannot bound a solid.
func (b BoundingBox) Degenerate() bool {
	if b.IsEmpty() {
		return true
	}
	for _, v := range []float64{b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z} {
		if math.IsNaN(v) {
			return true
		}
	}
	return !(b.Max.X > b.Min.X && b.Max.Y > b.Min.Y && b.Max.Z > b.Min.Z)
}

func (b BoundingBox) String() string {
	if b.IsEmpty() {
		return "bbox(empty)"
	}
	return fmt.Sprintf("bbox(min=(%g, %g, %g) max=(%g, %g, %g))",
		b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
}
