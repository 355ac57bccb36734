package toolpath

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"

	"github.com/chazu/cutsim/pkg/volume"
)

// ShapeData is the interface for step payloads.
type ShapeData interface {
	shapeData() // marker method restricting implementations to this package
}

// SphereData is a ball.
type SphereData struct {
	Center v3.Vec  `json:"center"`
	Radius float64 `json:"radius"`
}

func (SphereData) shapeData() {}

// BoxData is an axis-aligned box.
type BoxData struct {
	Min v3.Vec `json:"min"`
	Max v3.Vec `json:"max"`
}

func (BoxData) shapeData() {}

// PlaneData is a half-space bounded by an axis-aligned plane.
type PlaneData struct {
	Axis      volume.Axis `json:"axis"`
	Position  float64     `json:"position"`
	KeepBelow bool        `json:"keep_below"`
}

func (PlaneData) shapeData() {}

// CylinderData is an upright cylinder standing on Base.
type CylinderData struct {
	Base   v3.Vec  `json:"base"`
	Radius float64 `json:"radius"`
	Height float64 `json:"height"`
}

func (CylinderData) shapeData() {}

// MoveData is a straight move of the tip of a tool.
type MoveData struct {
	Tool int    `json:"tool"`
	From v3.Vec `json:"from"`
	To   v3.Vec `json:"to"`
}

func (MoveData) shapeData() {}

// SolidData carries a volume built elsewhere, typically by a geometry
// kernel from CSG primitives.
type SolidData struct {
	Volume      volume.Volume `json:"-"`
	Description string        `json:"description"`
}

func (SolidData) shapeData() {}

// ErrUnknownTool is returned for a move that names a tool missing from the
// tool table.
var ErrUnknownTool = errors.New("unknown tool")

// Volume builds the volume of step s. sweepStep bounds the sample spacing
// of inclined moves; zero selects the default.
func (p *Program) Volume(s Step, sweepStep float64) (volume.Volume, error) {
	switch d := s.Shape.(type) {
	case SphereData:
		return volume.NewSphere(d.Center, d.Radius)
	case BoxData:
		return volume.NewAxisBox(d.Min, d.Max)
	case PlaneData:
		return volume.NewPlane(d.Axis, d.Position, d.KeepBelow)
	case CylinderData:
		return volume.NewCutter(volume.Profile{Radius: d.Radius, Length: d.Height}, d.Base)
	case MoveData:
		t, ok := p.Tools[d.Tool]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownTool, "T%d", d.Tool)
		}
		return volume.NewSweep(t.Profile, d.From, d.To, sweepStep)
	case SolidData:
		if d.Volume == nil {
			return nil, errors.New("solid step has no volume")
		}
		return d.Volume, nil
	case nil:
		return nil, errors.New("step has no shape")
	}
	return nil, errors.Errorf("unsupported shape %T", s.Shape)
}

// Describe returns a short human-readable description of a shape.
func Describe(d ShapeData) string {
	switch d := d.(type) {
	case SphereData:
		return fmt.Sprintf("sphere r=%g at %s", d.Radius, fmtVec(d.Center))
	case BoxData:
		return fmt.Sprintf("box %s-%s", fmtVec(d.Min), fmtVec(d.Max))
	case PlaneData:
		side := ">="
		if d.KeepBelow {
			side = "<="
		}
		return fmt.Sprintf("plane %s %s %g", d.Axis, side, d.Position)
	case CylinderData:
		return fmt.Sprintf("cylinder r=%g h=%g at %s", d.Radius, d.Height, fmtVec(d.Base))
	case MoveData:
		return fmt.Sprintf("T%d %s->%s", d.Tool, fmtVec(d.From), fmtVec(d.To))
	case SolidData:
		return "solid " + d.Description
	}
	return fmt.Sprintf("%T", d)
}

func fmtVec(v v3.Vec) string {
	return fmt.Sprintf("(%g %g %g)", v.X, v.Y, v.Z)
}
