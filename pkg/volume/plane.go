package volume

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/chazu/cutsim/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Axis selects a world axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

func (a Axis) component(p v3.Vec) float64 {
	switch a {
	case AxisX:
		return p.X
	case AxisY:
		return p.Y
	default:
		return p.Z
	}
}

// Plane is the half-space on one side of an axis-aligned plane. Used with
// intersect it faces stock down to a height.
type Plane struct {
	axis      Axis
	position  float64
	keepBelow bool
	bb        bbox.BoundingBox
}

// NewPlane returns the half-space coord <= position (keepBelow) or
// coord >= position along axis.
func NewPlane(axis Axis, position float64, keepBelow bool) (*Plane, error) {
	if axis < AxisX || axis > AxisZ {
		return nil, errors.Wrapf(ErrInvalidParameter, "plane axis %v", axis)
	}
	if !finite(position) {
		return nil, errors.Wrapf(ErrInvalidParameter, "plane position %g", position)
	}
	pl := &Plane{axis: axis, position: position, keepBelow: keepBelow}
	pl.calcBB()
	return pl, nil
}

// Dist implements Volume.
func (pl *Plane) Dist(p v3.Vec) float64 {
	c := pl.axis.component(p)
	if pl.keepBelow {
		return pl.position - c
	}
	return c - pl.position
}

// BoundingBox implements Volume. It is infinite on the open side.
func (pl *Plane) BoundingBox() bbox.BoundingBox {
	return pl.bb
}

func (pl *Plane) calcBB() {
	inf := math.Inf(1)
	lo := [3]float64{-inf, -inf, -inf}
	hi := [3]float64{inf, inf, inf}
	if pl.keepBelow {
		hi[pl.axis] = pl.position
	} else {
		lo[pl.axis] = pl.position
	}
	pl.bb = bbox.New(v3.Vec{X: lo[0], Y: lo[1], Z: lo[2]}, v3.Vec{X: hi[0], Y: hi[1], Z: hi[2]})
}
