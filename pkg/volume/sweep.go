package volume

import (
	"math"

	"github.com/pkg/errors"

	"github.com/chazu/cutsim/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

const (
	// levelTolerance decides when a move counts as horizontal or vertical.
	levelTolerance = 1e-9
	// maxStamps caps the cutter positions sampled along a 3-D move.
	maxStamps = 4096
)

// Sweep is the solid swept by a cutter moving in a straight line from
// start to end.
//
// Horizontal and vertical moves are exact. Other moves are the union of
// cutter positions sampled at most step apart; the union never covers more
// than the true swept solid.
type Sweep struct {
	profile Profile
	start   v3.Vec
	end     v3.Vec
	step    float64
	bb      bbox.BoundingBox
}

// NewSweep returns the volume swept by a cutter of profile pr from start to
// end. step bounds the sample spacing for inclined moves; zero selects a
// quarter of the cutter radius.
func NewSweep(pr Profile, start, end v3.Vec, step float64) (*Sweep, error) {
	if err := pr.Validate(); err != nil {
		return nil, err
	}
	if !finiteVec(start) || !finiteVec(end) {
		return nil, errors.Wrapf(ErrInvalidParameter, "sweep from %v to %v", start, end)
	}
	if step < 0 || !finite(step) {
		return nil, errors.Wrapf(ErrInvalidParameter, "sweep step %g", step)
	}
	if step == 0 {
		step = pr.Radius / 4
	}
	s := &Sweep{profile: pr, start: start, end: end, step: step}
	s.calcBB()
	return s, nil
}

// Start returns the tip position at the start of the move.
func (s *Sweep) Start() v3.Vec { return s.start }

// End returns the tip position at the end of the move.
func (s *Sweep) End() v3.Vec { return s.end }

// Horizontal reports whether the move stays at one height.
func (s *Sweep) Horizontal() bool {
	return math.Abs(s.end.Z-s.start.Z) <= levelTolerance
}

// Vertical reports whether the move is a pure plunge or retract.
func (s *Sweep) Vertical() bool {
	return math.Hypot(s.end.X-s.start.X, s.end.Y-s.start.Y) <= levelTolerance
}

// Dist implements Volume.
func (s *Sweep) Dist(p v3.Vec) float64 {
	switch {
	case s.Vertical():
		low := math.Min(s.start.Z, s.end.Z)
		pr := s.profile
		pr.Length += math.Abs(s.end.Z - s.start.Z)
		return pr.dist(math.Hypot(p.X-s.start.X, p.Y-s.start.Y), p.Z-low)
	case s.Horizontal():
		rho := segmentDistXY(p, s.start, s.end)
		return s.profile.dist(rho, p.Z-s.start.Z)
	}
	return s.stampDist(p)
}

// stampDist is the union of cutter positions along the move.
func (s *Sweep) stampDist(p v3.Vec) float64 {
	move := s.end.Sub(s.start)
	n := int(math.Ceil(move.Length() / s.step))
	if n > maxStamps {
		n = maxStamps
	}
	if n < 1 {
		n = 1
	}
	best := math.Inf(-1)
	for i := 0; i <= n; i++ {
		tip := s.start.Add(move.MulScalar(float64(i) / float64(n)))
		d := p.Sub(tip)
		if v := s.profile.dist(math.Hypot(d.X, d.Y), d.Z); v > best {
			best = v
		}
	}
	return best
}

// BoundingBox implements Volume.
func (s *Sweep) BoundingBox() bbox.BoundingBox {
	return s.bb
}

func (s *Sweep) calcBB() {
	r := s.profile.Radius
	s.bb.Clear()
	for _, tip := range []v3.Vec{s.start, s.end} {
		s.bb.AddPoint(tip.Sub(v3.Vec{X: r, Y: r}))
		s.bb.AddPoint(tip.Add(v3.Vec{X: r, Y: r, Z: s.profile.Length}))
	}
}

// segmentDistXY is the distance from p to segment ab, projected on the XY plane.
func segmentDistXY(p, a, b v3.Vec) float64 {
	abx, aby := b.X-a.X, b.Y-a.Y
	apx, apy := p.X-a.X, p.Y-a.Y
	l2 := abx*abx + aby*aby
	t := 0.0
	if l2 > 0 {
		t = math.Max(0, math.Min(1, (apx*abx+apy*aby)/l2))
	}
	return math.Hypot(apx-t*abx, apy-t*aby)
}
