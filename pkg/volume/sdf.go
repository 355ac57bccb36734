package volume

import (
	"github.com/chazu/cutsim/pkg/bbox"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface checks.
var (
	_ Volume   = (*sdfVolume)(nil)
	_ sdf.SDF3 = (*sdfField)(nil)
)

// sdfVolume adapts an sdfx solid. sdfx is negative inside, so the
// distance is negated.
type sdfVolume struct {
	s  sdf.SDF3
	bb bbox.BoundingBox
}

// FromSDF wraps any sdfx solid as a Volume.
func FromSDF(s sdf.SDF3) Volume {
	if f, ok := s.(*sdfField); ok {
		return f.v
	}
	return &sdfVolume{s: s, bb: bbox.FromSDF(s.BoundingBox())}
}

func (v *sdfVolume) Dist(p v3.Vec) float64 {
	return -v.s.Evaluate(p)
}

func (v *sdfVolume) BoundingBox() bbox.BoundingBox {
	return v.bb
}

// sdfField exposes a Volume to sdfx.
type sdfField struct {
	v Volume
}

// ToSDF returns v as an sdfx solid, unwrapping FromSDF adapters.
func ToSDF(v Volume) sdf.SDF3 {
	if sv, ok := v.(*sdfVolume); ok {
		return sv.s
	}
	return &sdfField{v: v}
}

func (f *sdfField) Evaluate(p v3.Vec) float64 {
	return -f.v.Dist(p)
}

func (f *sdfField) BoundingBox() sdf.Box3 {
	return f.v.BoundingBox().ToSDF()
}
