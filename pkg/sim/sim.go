// Package sim drives a toolpath program through the stock octree.
//
// A Simulator applies the steps of a program in order: boolean steps and
// feed moves modify the tree, rapid moves are only checked for contact
// with the stock. After each step (or every few steps) the incremental
// remesher picks up the leaves the step invalidated.
package sim

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/chazu/cutsim/pkg/kernel"
	"github.com/chazu/cutsim/pkg/octree"
	"github.com/chazu/cutsim/pkg/tessellate"
	"github.com/chazu/cutsim/pkg/toolpath"
)

var (
	// ErrDone is returned by Step once every step has been applied.
	ErrDone = errors.New("sim: program finished")
	// ErrCollision is returned for a colliding rapid when the config asks
	// to fail on collisions.
	ErrCollision = errors.New("sim: rapid move collides with stock")
)

// StepResult describes one applied step.
type StepResult struct {
	Index     int
	Step      toolpath.Step
	Collision bool
	Duration  time.Duration
	// Remesh is set when the step triggered a mesh update.
	Remesh *tessellate.UpdateStats
}

// Report summarizes a run.
type Report struct {
	Steps      int
	Cuts       int
	Rapids     int
	Collisions []int // indices of colliding rapid moves
	Tree       octree.Stats
	Triangles  int
	Elapsed    time.Duration
}

// Simulator applies a program to a tree. It is not safe for concurrent use;
// readers of Tree() may run alongside Step.
type Simulator struct {
	cfg     Config
	prog    *toolpath.Program
	tree    *octree.Octree
	mesher  *tessellate.Remesher
	logger  *zap.SugaredLogger
	metrics *Metrics

	next       int
	sinceMesh  int
	collisions []int
	cuts       int
	rapids     int
	elapsed    time.Duration
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Simulator) {
		s.logger = l
	}
}

// WithMetrics sets the metrics. The default registers with a private registry.
func WithMetrics(m *Metrics) Option {
	return func(s *Simulator) {
		s.metrics = m
	}
}

// New validates cfg and p and builds the stock tree.
func New(cfg Config, p *toolpath.Program, opts ...Option) (*Simulator, error) {
	if p == nil {
		return nil, errors.New("sim: nil program")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := toolpath.Validate(p).Err(); err != nil {
		return nil, errors.Wrap(err, "sim: invalid program")
	}
	s := &Simulator{cfg: cfg, prog: p}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	tree, err := p.NewTree(octree.WithNodeBudget(cfg.NodeBudget))
	if err != nil {
		return nil, errors.Wrap(err, "sim: stock")
	}
	s.tree = tree
	s.mesher = tessellate.NewRemesher(tree, "stock")
	s.metrics.Nodes.Set(float64(tree.NodeCount()))
	return s, nil
}

// Tree returns the stock tree.
func (s *Simulator) Tree() *octree.Octree { return s.tree }

// Program returns the program being simulated.
func (s *Simulator) Program() *toolpath.Program { return s.prog }

// Done reports whether every step has been applied.
func (s *Simulator) Done() bool { return s.next >= len(s.prog.Steps) }

// Position returns the index of the next step.
func (s *Simulator) Position() int { return s.next }

// Step applies the next step. It returns ErrDone when the program is
// finished. A failed step is not retried; the tree may be partly updated
// when the node budget ran out.
func (s *Simulator) Step(ctx context.Context) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	if s.Done() {
		return StepResult{}, ErrDone
	}
	i := s.next
	step := s.prog.Steps[i]
	s.next++
	res := StepResult{Index: i, Step: step}

	start := time.Now()
	v, err := s.prog.Volume(step, s.cfg.SweepStep)
	if err != nil {
		return res, errors.Wrapf(err, "step %d (%s)", i, step)
	}
	kind := step.Kind.String()
	if op, ok := step.Kind.Op(); ok {
		if err := s.tree.Apply(op, v); err != nil {
			return res, errors.Wrapf(err, "step %d (%s)", i, step)
		}
		s.cuts++
	} else {
		s.rapids++
		if s.cfg.CheckRapids && s.tree.Collides(v) {
			res.Collision = true
			s.collisions = append(s.collisions, i)
			s.metrics.CollisionsTotal.Inc()
			s.logger.Warnw("rapid move collides with stock", "step", i, "line", step.Line, "move", toolpath.Describe(step.Shape))
			if s.cfg.FailOnCollision {
				return res, errors.Wrapf(ErrCollision, "step %d (%s)", i, step)
			}
		}
	}
	res.Duration = time.Since(start)
	s.elapsed += res.Duration
	s.metrics.StepsTotal.WithLabelValues(kind).Inc()
	s.metrics.StepDurationSeconds.WithLabelValues(kind).Observe(res.Duration.Seconds())
	s.metrics.Nodes.Set(float64(s.tree.NodeCount()))

	if s.cfg.Verify {
		if err := s.tree.Check(); err != nil {
			return res, errors.Wrapf(err, "step %d left an inconsistent tree", i)
		}
	}

	s.sinceMesh++
	if s.cfg.RemeshEvery > 0 && s.sinceMesh >= s.cfg.RemeshEvery {
		st := s.remesh()
		res.Remesh = &st
	}
	s.logger.Debugw("step applied", "step", i, "kind", kind, "nodes", s.tree.NodeCount(), "elapsed", res.Duration)
	return res, nil
}

func (s *Simulator) remesh() tessellate.UpdateStats {
	st := s.mesher.Update()
	s.sinceMesh = 0
	s.metrics.RemeshedLeavesTotal.Add(float64(st.Rebuilt))
	s.metrics.Triangles.Set(float64(st.Triangles))
	return st
}

// Run applies the remaining steps, checking ctx between steps, and
// brings the mesh up to date.
func (s *Simulator) Run(ctx context.Context) (Report, error) {
	for {
		_, err := s.Step(ctx)
		if errors.Is(err, ErrDone) {
			break
		}
		if err != nil {
			return s.report(), err
		}
	}
	if s.sinceMesh > 0 || s.next == 0 {
		s.remesh()
	}
	rep := s.report()
	s.logger.Infow("simulation finished",
		"steps", rep.Steps,
		"cuts", rep.Cuts,
		"rapids", rep.Rapids,
		"collisions", len(rep.Collisions),
		"nodes", rep.Tree.Nodes,
		"leaves", rep.Tree.Leaves,
		"triangles", rep.Triangles,
		"elapsed", rep.Elapsed,
	)
	return rep, nil
}

func (s *Simulator) report() Report {
	return Report{
		Steps:      s.next,
		Cuts:       s.cuts,
		Rapids:     s.rapids,
		Collisions: append([]int(nil), s.collisions...),
		Tree:       s.tree.Stats(),
		Triangles:  s.mesher.TriangleCount(),
		Elapsed:    s.elapsed,
	}
}

// Mesh returns the incrementally maintained surface mesh as of the last
// update.
func (s *Simulator) Mesh() *kernel.Mesh {
	return s.mesher.Mesh()
}

// SmoothMesh meshes the tree's interpolated field through k.
func (s *Simulator) SmoothMesh(k kernel.Kernel) (*kernel.Mesh, error) {
	return tessellate.Smooth(k, s.tree, "stock")
}
