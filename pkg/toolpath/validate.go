package toolpath

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/multierr"

	"github.com/chazu/cutsim/pkg/bbox"
	"github.com/chazu/cutsim/pkg/octree"
)

// ValidationSeverity indicates how serious a validation issue is.
type ValidationSeverity int

const (
	SeverityError ValidationSeverity = iota
	SeverityWarning
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// ValidationError describes a problem with a program. Step is the index of
// the offending step, or -1 for stock and tool table problems.
type ValidationError struct {
	Step     int
	Line     int
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	where := "program"
	if e.Step >= 0 {
		where = fmt.Sprintf("step %d", e.Step)
	}
	if e.Line > 0 {
		where += fmt.Sprintf(" (line %d)", e.Line)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, where, e.Message)
}

// ValidationResult splits issues by severity.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether the program can be simulated.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Err combines the errors into one, or returns nil.
func (r ValidationResult) Err() error {
	var err error
	for _, e := range r.Errors {
		err = multierr.Append(err, e)
	}
	return err
}

// Validate checks a program before simulation: the stock must build a
// tree, every move must reference a known tool, and every step must have a
// well-formed shape. Steps that cannot touch the stock are reported as
// warnings.
func Validate(p *Program) ValidationResult {
	var res ValidationResult
	add := func(step, line int, sev ValidationSeverity, format string, args ...any) {
		e := ValidationError{Step: step, Line: line, Message: fmt.Sprintf(format, args...), Severity: sev}
		if sev == SeverityError {
			res.Errors = append(res.Errors, e)
		} else {
			res.Warnings = append(res.Warnings, e)
		}
	}

	st := p.Stock
	stockOK := true
	if !(st.RootScale > 0) || math.IsInf(st.RootScale, 0) {
		add(-1, 0, SeverityError, "stock scale must be positive, got %g", st.RootScale)
		stockOK = false
	}
	if st.MaxDepth < 1 || st.MaxDepth > octree.MaxSupportedDepth {
		add(-1, 0, SeverityError, "stock depth must be in [1, %d], got %d", octree.MaxSupportedDepth, st.MaxDepth)
		stockOK = false
	}
	if st.InitDepth < 0 || st.InitDepth > st.MaxDepth {
		add(-1, 0, SeverityError, "init depth %d outside [0, %d]", st.InitDepth, st.MaxDepth)
	} else if st.InitDepth > 6 {
		add(-1, 0, SeverityWarning, "init depth %d creates %d leaves", st.InitDepth, 1<<(3*st.InitDepth))
	}

	nums := make([]int, 0, len(p.Tools))
	for n := range p.Tools {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		t := p.Tools[n]
		if n != t.Number {
			add(-1, 0, SeverityError, "tool table key %d holds tool T%d", n, t.Number)
		}
		if err := t.Profile.Validate(); err != nil {
			add(-1, 0, SeverityError, "T%d: %v", t.Number, err)
		}
	}

	stock := bbox.NewCube(st.Center, st.RootScale)

	for i, s := range p.Steps {
		if s.Kind.IsMove() {
			if _, ok := s.Shape.(MoveData); !ok {
				add(i, s.Line, SeverityError, "%s step needs a move, got %T", s.Kind, s.Shape)
				continue
			}
		} else if _, ok := s.Shape.(MoveData); ok {
			add(i, s.Line, SeverityError, "%s step cannot take a tool move", s.Kind)
			continue
		}
		if _, ok := s.Kind.Op(); !ok && s.Kind != StepRapid {
			add(i, s.Line, SeverityError, "unknown step kind %d", int(s.Kind))
			continue
		}
		v, err := p.Volume(s, 0)
		if err != nil {
			add(i, s.Line, SeverityError, "%v", err)
			continue
		}
		if !stockOK {
			continue
		}
		if s.Kind != StepIntersect && !stock.Overlaps(v.BoundingBox()) {
			add(i, s.Line, SeverityWarning, "%s lies outside the stock", Describe(s.Shape))
		}
		if m, ok := s.Shape.(MoveData); ok && s.Kind == StepFeed && m.From == m.To {
			add(i, s.Line, SeverityWarning, "zero-length feed")
		}
	}
	return res
}
