package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/cutsim/pkg/kernel"
	"github.com/chazu/cutsim/pkg/toolpath"
	"github.com/chazu/cutsim/pkg/volume"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms cutsim Lisp source code before passing it to
// zygomys:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal), so
//     keywords never collide with user variables.
//
//  2. Kebab-case to underscore: use-tool -> use_tool. zygomys reads a
//     hyphen inside an identifier as subtraction.
//
//  3. ; line comments become // comments.
//
// String literals are left alone.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// := is assignment.
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// A hyphen between identifier characters is part of a name, not a minus.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types
// ---------------------------------------------------------------------------

// sexpVec3 wraps a point.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpShape wraps a shape so it can be passed from a constructor such as
// `sphere` to an operation such as `cut`.
type sexpShape struct {
	data toolpath.ShapeData
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	return "(" + toolpath.Describe(s.data) + ")"
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW returns the keyword name of a preprocessed keyword string.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds a mixed positional and keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. A
// trailing keyword without a value maps to SexpNull and reads as a flag.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		if name, ok := isKW(args[i]); ok {
			if i+1 < len(args) {
				if _, next := isKW(args[i+1]); !next {
					result.kw[name] = args[i+1]
					i += 2
					continue
				}
			}
			result.kw[name] = zygo.SexpNull
			i++
			continue
		}
		result.positional = append(result.positional, args[i])
		i++
	}
	return result
}

// float reads an optional numeric keyword into dst.
func (a kwArgs) float(key string, dst *float64) error {
	v, ok := a.kw[key]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

// vec reads an optional vec3 keyword into dst.
func (a kwArgs) vec(key string, dst *v3.Vec) error {
	v, ok := a.kw[key]
	if !ok {
		return nil
	}
	p, err := toVec3(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = p
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer from a SexpInt.
func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toBool accepts true, false, or a bare keyword flag.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a point from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toShape extracts a shape from a sexpShape.
func toShape(s zygo.Sexp) (toolpath.ShapeData, error) {
	if sh, ok := s.(*sexpShape); ok {
		return sh.data, nil
	}
	return nil, fmt.Errorf("expected shape, got %T (%s)", s, s.SexpString(nil))
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builder accumulates a program while a script runs. It tracks the active
// tool and the tool tip position between moves.
type builder struct {
	prog   *toolpath.Program
	kernel kernel.Kernel
	tool   int
	hasPos bool
	pos    v3.Vec
}

func newBuilder(k kernel.Kernel) *builder {
	return &builder{prog: toolpath.New(), kernel: k, tool: -1}
}

// volumeOf builds the volume of a non-move shape for kernel CSG.
func (b *builder) volumeOf(d toolpath.ShapeData) (volume.Volume, error) {
	if _, ok := d.(toolpath.MoveData); ok {
		return nil, fmt.Errorf("tool moves cannot be combined")
	}
	return b.prog.Volume(toolpath.Step{Shape: d}, 0)
}

// solid wraps a kernel result as a shape.
func solid(v volume.Volume, desc string) *sexpShape {
	return &sexpShape{data: toolpath.SolidData{Volume: v, Description: desc}}
}

// registerBuiltins installs the cutsim DSL into a zygomys environment. Forms
// that declare stock, tools or steps write to b.prog.
//
// Source code must be preprocessed with preprocessSource() first so that
// :keyword tokens become recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}
		return &sexpVec3{vec: v3.Vec{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (stock :scale 100 :depth 6 :center (vec3 0 0 0) :init 2)
	// -----------------------------------------------------------------------
	env.AddFunction("stock", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		st := b.prog.Stock
		if err := pa.float("scale", &st.RootScale); err != nil {
			return zygo.SexpNull, fmt.Errorf("stock: %w", err)
		}
		if err := pa.vec("center", &st.Center); err != nil {
			return zygo.SexpNull, fmt.Errorf("stock: %w", err)
		}
		if v, ok := pa.kw["depth"]; ok {
			d, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("stock: depth: %w", err)
			}
			st.MaxDepth = d
		}
		if v, ok := pa.kw["init"]; ok {
			d, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("stock: init: %w", err)
			}
			st.InitDepth = d
		}
		b.prog.Stock = st
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (subdivide 3)
	// -----------------------------------------------------------------------
	env.AddFunction("subdivide", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("subdivide requires a depth")
		}
		d, err := toInt(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("subdivide: %w", err)
		}
		if d < 0 {
			return zygo.SexpNull, fmt.Errorf("subdivide: negative depth %d", d)
		}
		b.prog.Stock.InitDepth = d
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (tool 1 :radius 3 :corner 3 :length 30 :name "6mm ball")
	// -----------------------------------------------------------------------
	env.AddFunction("tool", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("tool requires a tool number")
		}
		n, err := toInt(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("tool: number: %w", err)
		}
		t := toolpath.Tool{Number: n}
		if err := pa.float("radius", &t.Profile.Radius); err != nil {
			return zygo.SexpNull, fmt.Errorf("tool: %w", err)
		}
		if err := pa.float("corner", &t.Profile.CornerRadius); err != nil {
			return zygo.SexpNull, fmt.Errorf("tool: %w", err)
		}
		if err := pa.float("length", &t.Profile.Length); err != nil {
			return zygo.SexpNull, fmt.Errorf("tool: %w", err)
		}
		if v, ok := pa.kw["name"]; ok {
			s, err := toString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("tool: name: %w", err)
			}
			t.Name = s
		}
		if err := t.Profile.Validate(); err != nil {
			return zygo.SexpNull, fmt.Errorf("tool: T%d: %w", n, err)
		}
		b.prog.AddTool(t)
		if b.tool < 0 {
			b.tool = n
		}
		return &zygo.SexpInt{Val: int64(n)}, nil
	})

	// -----------------------------------------------------------------------
	// (use-tool 2)
	// -----------------------------------------------------------------------
	env.AddFunction("use_tool", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("use-tool requires a tool number")
		}
		n, err := toInt(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("use-tool: %w", err)
		}
		if _, ok := b.prog.Tools[n]; !ok {
			return zygo.SexpNull, fmt.Errorf("use-tool: no tool T%d", n)
		}
		b.tool = n
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// Shapes
	// -----------------------------------------------------------------------

	// (sphere :center (vec3 0 0 0) :radius 5)
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var d toolpath.SphereData
		if err := pa.vec("center", &d.Center); err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: %w", err)
		}
		if err := pa.float("radius", &d.Radius); err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: %w", err)
		}
		return &sexpShape{data: d}, nil
	})

	// (box :min (vec3 0 0 0) :max (vec3 10 10 10))
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var d toolpath.BoxData
		if err := pa.vec("min", &d.Min); err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		if err := pa.vec("max", &d.Max); err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		return &sexpShape{data: d}, nil
	})

	// (cylinder :base (vec3 0 0 -5) :radius 4 :height 10)
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var d toolpath.CylinderData
		if err := pa.vec("base", &d.Base); err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		if err := pa.float("radius", &d.Radius); err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		if err := pa.float("height", &d.Height); err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		return &sexpShape{data: d}, nil
	})

	// (plane :z 5 :below true)
	env.AddFunction("plane", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var d toolpath.PlaneData
		found := 0
		for key, axis := range map[string]volume.Axis{"x": volume.AxisX, "y": volume.AxisY, "z": volume.AxisZ} {
			if v, ok := pa.kw[key]; ok {
				f, err := toFloat64(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("plane: %s: %w", key, err)
				}
				d.Axis, d.Position = axis, f
				found++
			}
		}
		if found != 1 {
			return zygo.SexpNull, fmt.Errorf("plane requires exactly one of :x, :y or :z")
		}
		if v, ok := pa.kw["below"]; ok {
			below, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("plane: below: %w", err)
			}
			d.KeepBelow = below
		}
		return &sexpShape{data: d}, nil
	})

	// -----------------------------------------------------------------------
	// Kernel CSG: (union a b ...), (difference a b ...), (intersection a b ...),
	// (translate shape (vec3 ...)), (rotate shape :x 0 :y 0 :z 90)
	// -----------------------------------------------------------------------
	csg := func(form string, fold func(a, c volume.Volume) volume.Volume) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least two shapes", form)
			}
			var acc volume.Volume
			parts := make([]string, 0, len(args))
			for i, a := range args {
				d, err := toShape(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", form, i, err)
				}
				v, err := b.volumeOf(d)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", form, i, err)
				}
				if acc == nil {
					acc = v
				} else {
					acc = fold(acc, v)
				}
				parts = append(parts, toolpath.Describe(d))
			}
			return solid(acc, form+"("+strings.Join(parts, ", ")+")"), nil
		}
	}
	env.AddFunction("union", csg("union", b.kernel.Union))
	env.AddFunction("difference", csg("difference", b.kernel.Difference))
	env.AddFunction("intersection", csg("intersection", b.kernel.Intersection))

	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("translate requires a shape and an offset")
		}
		d, err := toShape(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		off, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: offset: %w", err)
		}
		v, err := b.volumeOf(d)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		return solid(b.kernel.Translate(v, off.X, off.Y, off.Z), "translated"), nil
	})

	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("rotate requires a shape")
		}
		d, err := toShape(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		var x, y, z float64
		for key, dst := range map[string]*float64{"x": &x, "y": &y, "z": &z} {
			if err := pa.float(key, dst); err != nil {
				return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
			}
		}
		v, err := b.volumeOf(d)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		return solid(b.kernel.Rotate(v, x, y, z), "rotated"), nil
	})

	// -----------------------------------------------------------------------
	// Boolean steps: (add shape), (cut shape), (keep shape)
	// -----------------------------------------------------------------------
	step := func(form string, kind toolpath.StepKind) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires one shape", form)
			}
			d, err := toShape(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
			}
			b.prog.AddStep(toolpath.Step{Kind: kind, Shape: d})
			return zygo.SexpNull, nil
		}
	}
	env.AddFunction("add", step("add", toolpath.StepSum))
	env.AddFunction("cut", step("cut", toolpath.StepDiff))
	env.AddFunction("keep", step("keep", toolpath.StepIntersect))

	// -----------------------------------------------------------------------
	// Moves: (rapid (vec3 0 0 30)), (feed :x 10 :z -2)
	//
	// Keywords override single axes of the current position. The first move
	// of a program only positions the tool.
	// -----------------------------------------------------------------------
	move := func(form string, kind toolpath.StepKind) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if b.tool < 0 {
				return zygo.SexpNull, fmt.Errorf("%s: no tool defined", form)
			}
			target := b.pos
			switch len(pa.positional) {
			case 0:
			case 1:
				p, err := toVec3(pa.positional[0])
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
				}
				target = p
			default:
				return zygo.SexpNull, fmt.Errorf("%s takes at most one position", form)
			}
			for key, dst := range map[string]*float64{"x": &target.X, "y": &target.Y, "z": &target.Z} {
				if err := pa.float(key, dst); err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: %w", form, err)
				}
			}
			if !b.hasPos {
				if kind == toolpath.StepFeed {
					return zygo.SexpNull, fmt.Errorf("%s: tool position unknown, start with rapid", form)
				}
				b.pos, b.hasPos = target, true
			}
			b.prog.AddStep(toolpath.Step{Kind: kind, Shape: toolpath.MoveData{Tool: b.tool, From: b.pos, To: target}})
			b.pos = target
			return &sexpVec3{vec: target}, nil
		}
	}
	env.AddFunction("rapid", move("rapid", toolpath.StepRapid))
	env.AddFunction("feed", move("feed", toolpath.StepFeed))
}
