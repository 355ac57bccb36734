// Package toolpath defines the machining program applied to the stock: the
// stock block, the tool table and an ordered list of steps. Steps are
// explicit boolean operations with a shape, or straight tool moves whose
// swept volume is removed from the stock.
//
// A Program is plain data. The script engine produces it, the simulator
// consumes it in order.
package toolpath

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/cutsim/pkg/octree"
	"github.com/chazu/cutsim/pkg/volume"
)

// Stock describes the workpiece octree.
type Stock struct {
	RootScale float64 `json:"root_scale"` // side of the root cube
	MaxDepth  int     `json:"max_depth"`
	Center    v3.Vec  `json:"center"`
	InitDepth int     `json:"init_depth,omitempty"` // uniform pre-subdivision
}

// DefaultStock is used when a program does not declare its stock.
func DefaultStock() Stock {
	return Stock{RootScale: 100, MaxDepth: 6}
}

// Tool is an entry in the tool table.
type Tool struct {
	Number  int            `json:"number"`
	Name    string         `json:"name,omitempty"`
	Profile volume.Profile `json:"profile"`
}

// StepKind enumerates program steps.
type StepKind int

const (
	StepSum       StepKind = iota // add material
	StepDiff                      // remove material
	StepIntersect                 // keep material inside the shape
	StepRapid                     // traverse move, never cuts
	StepFeed                      // cutting move
)

func (k StepKind) String() string {
	switch k {
	case StepSum:
		return "sum"
	case StepDiff:
		return "diff"
	case StepIntersect:
		return "intersect"
	case StepRapid:
		return "rapid"
	case StepFeed:
		return "feed"
	default:
		return "unknown"
	}
}

// Op returns the tree operation of a step. Rapid moves have none.
func (k StepKind) Op() (octree.Op, bool) {
	switch k {
	case StepSum:
		return octree.OpSum, true
	case StepDiff, StepFeed:
		return octree.OpDiff, true
	case StepIntersect:
		return octree.OpIntersect, true
	}
	return 0, false
}

// IsMove reports whether the step is a tool move.
func (k StepKind) IsMove() bool {
	return k == StepRapid || k == StepFeed
}

// Step is one program instruction.
type Step struct {
	Kind  StepKind  `json:"kind"`
	Shape ShapeData `json:"shape"`
	Line  int       `json:"line,omitempty"` // source line, 0 if unknown
}

func (s Step) String() string {
	if s.Line > 0 {
		return fmt.Sprintf("%s %s (line %d)", s.Kind, Describe(s.Shape), s.Line)
	}
	return fmt.Sprintf("%s %s", s.Kind, Describe(s.Shape))
}

// Program is a complete machining job.
type Program struct {
	Stock Stock        `json:"stock"`
	Tools map[int]Tool `json:"tools"`
	Steps []Step       `json:"steps"`
}

// New returns an empty program with the default stock.
func New() *Program {
	return &Program{
		Stock: DefaultStock(),
		Tools: make(map[int]Tool),
	}
}

// AddTool registers t, replacing any tool with the same number.
func (p *Program) AddTool(t Tool) {
	p.Tools[t.Number] = t
}

// AddStep appends a step.
func (p *Program) AddStep(s Step) {
	p.Steps = append(p.Steps, s)
}

// Moves returns the number of move steps.
func (p *Program) Moves() int {
	n := 0
	for _, s := range p.Steps {
		if s.Kind.IsMove() {
			n++
		}
	}
	return n
}

// NewTree builds the empty stock tree for the program.
func (p *Program) NewTree(opts ...octree.Option) (*octree.Octree, error) {
	t, err := octree.New(p.Stock.RootScale, p.Stock.MaxDepth, p.Stock.Center, opts...)
	if err != nil {
		return nil, err
	}
	if p.Stock.InitDepth > 0 {
		if err := t.Init(p.Stock.InitDepth); err != nil {
			return nil, err
		}
	}
	return t, nil
}
