package main

import (
	"context"
	"os"
	"testing"

	"github.com/chazu/cutsim/pkg/sim"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	return NewApp(sim.DefaultConfig(), nil)
}

// TestE2EPocketExample exercises the full pipeline: Lisp source → engine →
// program → simulator → meshes.
func TestE2EPocketExample(t *testing.T) {
	app := newTestApp(t)

	source, err := os.ReadFile("examples/pocket.lisp")
	if err != nil {
		t.Fatalf("failed to read pocket.lisp: %v", err)
	}

	result := app.Evaluate(context.Background(), string(source), false)

	// No errors expected.
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d, step %d): %s", e.Line, e.Step, e.Message)
		}
		t.FailNow()
	}

	r := result.Report
	if r == nil {
		t.Fatal("expected a report")
	}
	if r.Steps != 27 || r.Cuts != 21 || r.Rapids != 6 {
		t.Errorf("report = %+v, want 27 steps (21 cuts, 6 rapids)", r)
	}
	if len(result.Meshes) == 0 {
		t.Fatal("expected at least the stock mesh")
	}
	m := result.Meshes[0]
	if m.Name != "stock" {
		t.Errorf("first mesh = %q, want stock", m.Name)
	}
	if len(m.Vertices) == 0 || len(m.Normals) == 0 || len(m.Indices) == 0 {
		t.Error("stock mesh has no geometry")
	}
	if len(m.Indices)/3 != r.Triangles {
		t.Errorf("stock mesh has %d triangles, report says %d", len(m.Indices)/3, r.Triangles)
	}
	if m.Color != colorPalette[0] {
		t.Errorf("stock color = %q, want %q", m.Color, colorPalette[0])
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate(context.Background(), "", false)

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
	if result.Report == nil || result.Report.Steps != 0 {
		t.Errorf("expected an empty report, got %+v", result.Report)
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate(context.Background(), "(stock :scale 10", false)

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
	if result.Report != nil {
		t.Error("no simulation should run after an eval error")
	}
}

// TestE2ESingleCut ensures a minimal block renders one mesh.
func TestE2ESingleCut(t *testing.T) {
	app := newTestApp(t)
	source := `
(stock :scale 20 :depth 4)
(add (box :min (vec3 -5 -5 -5) :max (vec3 5 5 5)))
(cut (sphere :center (vec3 5 5 5) :radius 4))
`
	result := app.Evaluate(context.Background(), source, false)

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error: %s", e.Message)
		}
		t.FailNow()
	}
	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	if result.Report.Cuts != 2 || result.Report.Rapids != 0 {
		t.Errorf("report = %+v, want 2 cuts", result.Report)
	}
}
