package volume

import (
	"github.com/pkg/errors"

	"github.com/chazu/cutsim/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Sphere is a solid ball. Its distance is exact.
type Sphere struct {
	center v3.Vec
	radius float64
	bb     bbox.BoundingBox
}

// NewSphere returns a sphere of the given center and radius.
func NewSphere(center v3.Vec, radius float64) (*Sphere, error) {
	s := &Sphere{center: center}
	if !finiteVec(center) {
		return nil, errors.Wrapf(ErrInvalidParameter, "sphere center %v", center)
	}
	if err := s.SetRadius(radius); err != nil {
		return nil, err
	}
	return s, nil
}

// Center returns the sphere center.
func (s *Sphere) Center() v3.Vec { return s.center }

// Radius returns the sphere radius.
func (s *Sphere) Radius() float64 { return s.radius }

// SetCenter moves the sphere.
func (s *Sphere) SetCenter(c v3.Vec) {
	s.center = c
	s.calcBB()
}

// SetRadius changes the radius, which must be positive.
func (s *Sphere) SetRadius(r float64) error {
	if !(r > 0) || !finite(r) {
		return errors.Wrapf(ErrInvalidParameter, "sphere radius %g", r)
	}
	s.radius = r
	s.calcBB()
	return nil
}

// Dist implements Volume.
func (s *Sphere) Dist(p v3.Vec) float64 {
	return s.radius - p.Sub(s.center).Length()
}

// BoundingBox implements Volume.
func (s *Sphere) BoundingBox() bbox.BoundingBox {
	return s.bb
}

func (s *Sphere) calcBB() {
	r := v3.Vec{X: s.radius, Y: s.radius, Z: s.radius}
	s.bb.Clear()
	s.bb.AddPoint(s.center.Sub(r))
	s.bb.AddPoint(s.center.Add(r))
}
