package sim

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/cutsim/pkg/kernel/sdfx"
	"github.com/chazu/cutsim/pkg/logging"
	"github.com/chazu/cutsim/pkg/octree"
	"github.com/chazu/cutsim/pkg/tessellate"
	"github.com/chazu/cutsim/pkg/toolpath"
	"github.com/chazu/cutsim/pkg/volume"
)

var ballMill = volume.Profile{Radius: 4, CornerRadius: 4, Length: 40}

func move(kind toolpath.StepKind, from, to v3.Vec) toolpath.Step {
	return toolpath.Step{Kind: kind, Shape: toolpath.MoveData{Tool: 1, From: from, To: to}}
}

// slotProgram cuts a slot along x through the top of a 60mm block.
func slotProgram() *toolpath.Program {
	p := toolpath.New()
	p.Stock = toolpath.Stock{RootScale: 100, MaxDepth: 5}
	p.AddTool(toolpath.Tool{Number: 1, Profile: ballMill})
	p.AddStep(toolpath.Step{Kind: toolpath.StepSum, Shape: toolpath.BoxData{
		Min: v3.Vec{X: -30, Y: -30, Z: -30}, Max: v3.Vec{X: 30, Y: 30},
	}})
	p.AddStep(move(toolpath.StepRapid, v3.Vec{X: -40, Z: 10}, v3.Vec{X: -40, Z: -4}))
	p.AddStep(move(toolpath.StepFeed, v3.Vec{X: -40, Z: -4}, v3.Vec{X: 40, Z: -4}))
	p.AddStep(move(toolpath.StepRapid, v3.Vec{X: 40, Z: -4}, v3.Vec{X: 40, Z: 10}))
	return p
}

func newSim(t *testing.T, cfg Config, p *toolpath.Program, opts ...Option) *Simulator {
	t.Helper()
	s, err := New(cfg, p, opts...)
	require.NoError(t, err)
	return s
}

func TestRunSlot(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	m := NewMetrics(prometheus.NewRegistry())
	cfg := DefaultConfig()
	cfg.Verify = true
	s := newSim(t, cfg, slotProgram(), WithLogger(logger), WithMetrics(m))

	rep, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Steps)
	assert.Equal(t, 2, rep.Cuts)
	assert.Equal(t, 2, rep.Rapids)
	assert.Empty(t, rep.Collisions)
	assert.True(t, s.Done())

	tree := s.Tree()
	require.NoError(t, tree.Check())
	assert.Less(t, tree.Dist(v3.Vec{Z: -2}), 0.0, "slot is cut")
	assert.Greater(t, tree.Dist(v3.Vec{Y: 15, Z: -2}), 0.0, "material beside the slot remains")
	assert.Greater(t, tree.Dist(v3.Vec{Z: -10}), 0.0, "material below the slot remains")

	full := tessellate.Tessellate(tree, "full")
	assert.Equal(t, full.TriangleCount(), rep.Triangles)
	assert.Equal(t, rep.Triangles, s.Mesh().TriangleCount())
	assert.Zero(t, rep.Tree.Invalid)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsTotal.WithLabelValues("feed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StepsTotal.WithLabelValues("rapid")))
	assert.Equal(t, float64(tree.NodeCount()), testutil.ToFloat64(m.Nodes))
	assert.Equal(t, float64(rep.Triangles), testutil.ToFloat64(m.Triangles))
	assert.Zero(t, testutil.ToFloat64(m.CollisionsTotal))

	assert.Equal(t, 4, logs.FilterMessage("step applied").Len())
	assert.Equal(t, 1, logs.FilterMessage("simulation finished").Len())
}

func TestRapidCollision(t *testing.T) {
	p := slotProgram()
	// A rapid straight through the block.
	p.Steps[1] = move(toolpath.StepRapid, v3.Vec{X: -40, Z: -5}, v3.Vec{X: 40, Z: -5})

	logger, logs := logging.NewObservedTestLogger(t)
	m := NewMetrics(nil)
	s := newSim(t, DefaultConfig(), p, WithLogger(logger), WithMetrics(m))
	ctx := context.Background()

	_, err := s.Step(ctx)
	require.NoError(t, err)
	before := s.Tree().Stats()

	res, err := s.Step(ctx)
	require.NoError(t, err)
	assert.True(t, res.Collision)
	assert.Equal(t, before, s.Tree().Stats(), "rapid moves never cut")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CollisionsTotal))
	warns := logs.FilterMessage("rapid move collides with stock").All()
	require.Len(t, warns, 1)
	assert.EqualValues(t, 1, warns[0].ContextMap()["step"])

	rep, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, rep.Collisions)

	cfg := DefaultConfig()
	cfg.FailOnCollision = true
	s = newSim(t, cfg, p)
	_, err = s.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollision))

	cfg = DefaultConfig()
	cfg.CheckRapids = false
	s = newSim(t, cfg, p)
	rep, err = s.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, rep.Collisions)
}

func TestStepwise(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RemeshEvery = 2
	s := newSim(t, cfg, slotProgram())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		assert.Equal(t, i, s.Position())
		res, err := s.Step(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, res.Index)
		if i%2 == 1 {
			assert.NotNil(t, res.Remesh, "step %d should remesh", i)
		} else {
			assert.Nil(t, res.Remesh, "step %d should not remesh", i)
		}
	}
	_, err := s.Step(ctx)
	assert.ErrorIs(t, err, ErrDone)
}

func TestRemeshAtEnd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RemeshEvery = 0
	s := newSim(t, cfg, slotProgram())
	res, err := s.Step(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Remesh)
	assert.True(t, s.Mesh().IsEmpty())

	rep, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Positive(t, rep.Triangles)
	assert.Equal(t, tessellate.Tessellate(s.Tree(), "full").TriangleCount(), rep.Triangles)
}

func TestCancel(t *testing.T) {
	s := newSim(t, DefaultConfig(), slotProgram())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Position())
}

func TestNodeBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NodeBudget = 50
	s := newSim(t, cfg, slotProgram())
	rep, err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, octree.ErrNodeBudget), "err = %v", err)
	assert.Equal(t, 1, rep.Steps)
	assert.LessOrEqual(t, s.Tree().NodeCount(), 50)
	assert.NoError(t, s.Tree().Check())
}

func TestNewRejects(t *testing.T) {
	_, err := New(DefaultConfig(), nil)
	assert.Error(t, err)

	p := slotProgram()
	p.AddStep(move(toolpath.StepFeed, v3.Vec{}, v3.Vec{X: 1}))
	p.Steps[len(p.Steps)-1].Shape = toolpath.MoveData{Tool: 9}
	_, err = New(DefaultConfig(), p)
	assert.ErrorContains(t, err, "invalid program")

	cfg := DefaultConfig()
	cfg.MeshCells = 2
	_, err = New(cfg, slotProgram())
	assert.ErrorContains(t, err, "invalid config")
}

func TestInitDepth(t *testing.T) {
	p := toolpath.New()
	p.Stock = toolpath.Stock{RootScale: 8, MaxDepth: 3, InitDepth: 2}
	s := newSim(t, DefaultConfig(), p)
	assert.Len(t, s.Tree().LeafNodes(), 64)
	rep, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Steps)
	assert.Zero(t, rep.Tree.Invalid)
}

func TestSmoothMesh(t *testing.T) {
	p := toolpath.New()
	p.Stock = toolpath.Stock{RootScale: 20, MaxDepth: 4}
	p.AddStep(toolpath.Step{Kind: toolpath.StepSum, Shape: toolpath.SphereData{Radius: 6}})
	s := newSim(t, DefaultConfig(), p)
	_, err := s.Run(context.Background())
	require.NoError(t, err)
	m, err := s.SmoothMesh(sdfx.NewWithCells(20))
	require.NoError(t, err)
	assert.False(t, m.IsEmpty())
	assert.Equal(t, "stock", m.Name)
}

func TestConfigValidation(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cases := []struct {
		name string
		mod  func(*Config)
	}{
		{"negative budget", func(c *Config) { c.NodeBudget = -1 }},
		{"negative sweep step", func(c *Config) { c.SweepStep = -0.1 }},
		{"mesh cells too small", func(c *Config) { c.MeshCells = 4 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
		{"negative timeout", func(c *Config) { c.EvalTimeout = -time.Second }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mod(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cutsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
node_budget: 200000
sweep_step: 0.5
remesh_every: 10
check_rapids: false
eval_timeout: 2s
log_level: debug
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 200000, cfg.NodeBudget)
	assert.Equal(t, 0.5, cfg.SweepStep)
	assert.Equal(t, 10, cfg.RemeshEvery)
	assert.False(t, cfg.CheckRapids)
	assert.Equal(t, 2*time.Second, cfg.EvalTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DefaultConfig().MeshCells, cfg.MeshCells, "unset fields keep their defaults")

	t.Setenv("CUTSIM_LOG_LEVEL", "warn")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.NodeBudget)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("mesh_cells: 3\n"), 0o644))
	_, err = LoadConfig(bad)
	assert.ErrorContains(t, err, "invalid config")
}
