package volume

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/chazu/cutsim/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// CutterKind names the common revolved tool profiles.
type CutterKind int

const (
	CutterFlat CutterKind = iota // square end mill
	CutterBall                   // ball nose
	CutterBull                   // bull nose (toroidal corner)
)

func (k CutterKind) String() string {
	switch k {
	case CutterFlat:
		return "flat"
	case CutterBall:
		return "ball"
	case CutterBull:
		return "bull"
	default:
		return fmt.Sprintf("CutterKind(%d)", int(k))
	}
}

// Profile is the 2-D outline of a revolved cutter: a rectangle of the given
// radius and length whose bottom outer corner is rounded by CornerRadius.
// CornerRadius 0 gives a flat end mill, CornerRadius == Radius a ball nose.
type Profile struct {
	Radius       float64
	CornerRadius float64
	Length       float64
}

// Kind classifies the profile.
func (pr Profile) Kind() CutterKind {
	switch {
	case pr.CornerRadius <= 0:
		return CutterFlat
	case pr.CornerRadius >= pr.Radius:
		return CutterBall
	default:
		return CutterBull
	}
}

// Validate checks the profile parameters.
func (pr Profile) Validate() error {
	if !(pr.Radius > 0) || !finite(pr.Radius) {
		return errors.Wrapf(ErrInvalidParameter, "cutter radius %g", pr.Radius)
	}
	if pr.CornerRadius < 0 || pr.CornerRadius > pr.Radius || !finite(pr.CornerRadius) {
		return errors.Wrapf(ErrInvalidParameter, "cutter corner radius %g with radius %g", pr.CornerRadius, pr.Radius)
	}
	if !(pr.Length >= pr.CornerRadius) || !(pr.Length > 0) || !finite(pr.Length) {
		return errors.Wrapf(ErrInvalidParameter, "cutter length %g", pr.Length)
	}
	return nil
}

// dist returns the signed distance of the profile at radial distance
// rho >= 0 and height h above the tip.
func (pr Profile) dist(rho, h float64) float64 {
	r, rc, l := pr.Radius, pr.CornerRadius, pr.Length
	corner := rc > 0 && rho > r-rc && h < rc
	arc := 0.0
	if corner {
		arc = rc - math.Hypot(rho-(r-rc), h-rc)
	}
	if rho > r || h < 0 || h > l || (corner && arc < 0) {
		if corner {
			return arc
		}
		return -rectDist2(rho, h-l/2, r, l/2)
	}

	// Inside: nearest of the top face, the straight side, the flat bottom
	// and the corner arc. The axis is not a boundary.
	d := math.Min(l-h, math.Hypot(r-rho, math.Max(rc-h, 0)))
	d = math.Min(d, math.Hypot(math.Max(rho-(r-rc), 0), h))
	if corner {
		d = math.Min(d, arc)
	}
	return d
}

// rectDist2 is the exact distance to a centered 2-D rectangle with the given
// half extents, negative inside.
func rectDist2(x, y, hx, hy float64) float64 {
	dx := math.Abs(x) - hx
	dy := math.Abs(y) - hy
	outside := math.Hypot(math.Max(dx, 0), math.Max(dy, 0))
	inside := math.Min(math.Max(dx, dy), 0)
	return outside + inside
}

// Cutter is a revolved tool standing on its tip at Pos with the axis along +Z.
type Cutter struct {
	profile Profile
	pos     v3.Vec
	bb      bbox.BoundingBox
}

// NewCutter returns a cutter with its tip at pos.
func NewCutter(pr Profile, pos v3.Vec) (*Cutter, error) {
	if err := pr.Validate(); err != nil {
		return nil, err
	}
	if !finiteVec(pos) {
		return nil, errors.Wrapf(ErrInvalidParameter, "cutter position %v", pos)
	}
	c := &Cutter{profile: pr}
	c.SetPos(pos)
	return c, nil
}

// Profile returns the cutter profile.
func (c *Cutter) Profile() Profile { return c.profile }

// Pos returns the tip position.
func (c *Cutter) Pos() v3.Vec { return c.pos }

// SetPos moves the cutter tip to p.
func (c *Cutter) SetPos(p v3.Vec) {
	c.pos = p
	c.calcBB()
}

// Dist implements Volume.
func (c *Cutter) Dist(p v3.Vec) float64 {
	d := p.Sub(c.pos)
	return c.profile.dist(math.Hypot(d.X, d.Y), d.Z)
}

// BoundingBox implements Volume.
func (c *Cutter) BoundingBox() bbox.BoundingBox {
	return c.bb
}

func (c *Cutter) calcBB() {
	r := c.profile.Radius
	c.bb.Clear()
	c.bb.AddPoint(c.pos.Sub(v3.Vec{X: r, Y: r}))
	c.bb.AddPoint(c.pos.Add(v3.Vec{X: r, Y: r, Z: c.profile.Length}))
}
