package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chazu/cutsim/pkg/engine"
	"github.com/chazu/cutsim/pkg/kernel"
	"github.com/chazu/cutsim/pkg/kernel/sdfx"
	"github.com/chazu/cutsim/pkg/sim"
	"github.com/chazu/cutsim/pkg/toolpath"
)

// colorPalette is a default palette used to assign distinct colors to meshes.
// The stock always takes the first entry.
var colorPalette = []string{
	"#4A90D9", "#E74C3C", "#E67E22", "#9B59B6",
	"#2ECC71", "#1ABC9C", "#F39C12", "#3498DB",
}

// App ties the script engine, the simulator and the mesh export together.
type App struct {
	cfg      sim.Config
	engine   *engine.Engine
	kernel   kernel.Kernel
	logger   *zap.SugaredLogger
	registry *prometheus.Registry
	metrics  *sim.Metrics
}

// MeshData is the JSON-serializable mesh format written by the CLI.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Step    int    `json:"step"`
	Message string `json:"message"`
}

// ReportData summarizes a simulation run.
type ReportData struct {
	Steps      int   `json:"steps"`
	Cuts       int   `json:"cuts"`
	Rapids     int   `json:"rapids"`
	Collisions []int `json:"collisions"`
	Nodes      int   `json:"nodes"`
	Leaves     int   `json:"leaves"`
	Triangles  int   `json:"triangles"`
	ElapsedMS  int64 `json:"elapsedMs"`
}

// EvalResult is the full result of a script run.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
	Report   *ReportData     `json:"report,omitempty"`
}

// NewApp creates an App from a validated config. A nil logger discards
// everything.
func NewApp(cfg sim.Config, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	k := sdfx.NewWithCells(cfg.MeshCells)
	reg := prometheus.NewRegistry()
	return &App{
		cfg:      cfg,
		engine:   engine.NewEngine(engine.WithKernel(k), engine.WithTimeout(cfg.EvalTimeout)),
		kernel:   k,
		logger:   logger,
		registry: reg,
		metrics:  sim.NewMetrics(reg),
	}
}

// Registry returns the registry holding the simulator metrics of every
// run made through this App.
func (a *App) Registry() *prometheus.Registry { return a.registry }

func newResult() EvalResult {
	return EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}
}

// Validate evaluates and validates source without simulating it.
func (a *App) Validate(source string) (EvalResult, *toolpath.Program) {
	result := newResult()

	res, err := a.engine.Run(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		a.logger.Errorw("evaluation failed", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Step: -1, Message: err.Error()})
		return result, nil
	}
	for _, e := range res.Errors {
		result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Step: -1, Message: e.Message})
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{Line: w.Line, Col: w.Col, Step: w.Step, Message: w.Message})
	}
	return result, res.Program
}

// Evaluate runs source through the simulator and returns the stock mesh,
// unless it is empty, followed by one mesh per colliding rapid move. With
// smooth set the stock is meshed from the interpolated field instead of
// the leaf cells.
func (a *App) Evaluate(ctx context.Context, source string, smooth bool) EvalResult {
	result, prog := a.Validate(source)
	if prog == nil {
		return result
	}

	s, err := sim.New(a.cfg, prog, sim.WithLogger(a.logger), sim.WithMetrics(a.metrics))
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Step: -1, Message: err.Error()})
		return result
	}
	rep, err := s.Run(ctx)
	result.Report = &ReportData{
		Steps:      rep.Steps,
		Cuts:       rep.Cuts,
		Rapids:     rep.Rapids,
		Collisions: rep.Collisions,
		Nodes:      rep.Tree.Nodes,
		Leaves:     rep.Tree.Leaves,
		Triangles:  rep.Triangles,
		ElapsedMS:  rep.Elapsed.Milliseconds(),
	}
	if err != nil {
		a.logger.Errorw("simulation stopped", "step", rep.Steps-1, "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Step: rep.Steps - 1, Message: err.Error()})
		return result
	}
	for _, i := range rep.Collisions {
		result.Warnings = append(result.Warnings, EvalErrorData{
			Line:    prog.Steps[i].Line,
			Step:    i,
			Message: "rapid move collides with stock: " + toolpath.Describe(prog.Steps[i].Shape),
		})
	}

	stock := s.Mesh()
	if smooth {
		stock, err = s.SmoothMesh(a.kernel)
		if err != nil {
			a.logger.Errorw("smooth meshing failed", "error", err)
			result.Errors = append(result.Errors, EvalErrorData{Step: -1, Message: "meshing failed: " + err.Error()})
			return result
		}
	}
	if !stock.IsEmpty() {
		result.Meshes = append(result.Meshes, meshData(stock, 0))
	}

	for n, i := range rep.Collisions {
		v, err := prog.Volume(prog.Steps[i], a.cfg.SweepStep)
		if err != nil {
			continue
		}
		m, err := a.kernel.ToMesh(v)
		if err != nil {
			a.logger.Warnw("could not mesh colliding move", "step", i, "error", err)
			continue
		}
		m.Name = fmt.Sprintf("rapid %d", i)
		result.Meshes = append(result.Meshes, meshData(m, n+1))
	}
	return result
}

func meshData(m *kernel.Mesh, i int) MeshData {
	return MeshData{
		Vertices: m.Vertices,
		Normals:  m.Normals,
		Indices:  m.Indices,
		Name:     m.Name,
		Color:    colorPalette[i%len(colorPalette)],
	}
}
