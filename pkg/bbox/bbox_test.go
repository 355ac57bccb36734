package bbox

import (
	"math"
	"testing"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyBox(t *testing.T) {
	var b BoundingBox
	assert.True(t, b.IsEmpty())
	assert.True(t, b.Degenerate())
	assert.False(t, b.Contains(v3.Vec{}))
	assert.False(t, b.Overlaps(NewCube(v3.Vec{}, 1)))
	assert.Equal(t, "bbox(empty)", b.String())
}

func TestAddPoint(t *testing.T) {
	var b BoundingBox
	b.AddPoint(v3.Vec{X: 1, Y: 2, Z: 3})
	require.False(t, b.IsEmpty())
	assert.Equal(t, v3.Vec{X: 1, Y: 2, Z: 3}, b.Min)
	assert.Equal(t, v3.Vec{X: 1, Y: 2, Z: 3}, b.Max)
	assert.True(t, b.Degenerate(), "a single point has zero extent")

	b.AddPoint(v3.Vec{X: -1, Y: 5, Z: 0})
	assert.Equal(t, v3.Vec{X: -1, Y: 2, Z: 0}, b.Min)
	assert.Equal(t, v3.Vec{X: 1, Y: 5, Z: 3}, b.Max)
	assert.False(t, b.Degenerate())

	b.Clear()
	assert.True(t, b.IsEmpty())
}

func TestOverlaps(t *testing.T) {
	unit := New(v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
	tests := []struct {
		name  string
		other BoundingBox
		want  bool
	}{
		{"identical", unit, true},
		{"contained", New(v3.Vec{X: 0.25, Y: 0.25, Z: 0.25}, v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}), true},
		{"partial", New(v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, v3.Vec{X: 2, Y: 2, Z: 2}), true},
		{"touching face", New(v3.Vec{X: 1}, v3.Vec{X: 2, Y: 1, Z: 1}), true},
		{"separated on x", New(v3.Vec{X: 2}, v3.Vec{X: 3, Y: 1, Z: 1}), false},
		{"separated on y", New(v3.Vec{Y: -3}, v3.Vec{X: 1, Y: -2, Z: 1}), false},
		{"separated on z", New(v3.Vec{Z: 2}, v3.Vec{X: 1, Y: 1, Z: 3}), false},
		{"overlap on two axes only", New(v3.Vec{X: 0.5, Y: 0.5, Z: 5}, v3.Vec{X: 2, Y: 2, Z: 6}), false},
		{"empty", BoundingBox{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unit.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(unit), "overlap must be symmetric")
		})
	}
}

func TestOverlapsInfinite(t *testing.T) {
	halfSpace := New(
		v3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
		v3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: 2},
	)
	assert.True(t, halfSpace.Overlaps(NewCube(v3.Vec{}, 1)))
	assert.False(t, halfSpace.Overlaps(NewCube(v3.Vec{Z: 10}, 1)))
	assert.False(t, halfSpace.Degenerate())
}

func TestContains(t *testing.T) {
	b := NewCube(v3.Vec{X: 1, Y: 1, Z: 1}, 2)
	assert.True(t, b.Contains(v3.Vec{X: 1, Y: 1, Z: 1}))
	assert.True(t, b.Contains(v3.Vec{X: 0, Y: 2, Z: 1}), "boundary is inside")
	assert.False(t, b.Contains(v3.Vec{X: -0.01, Y: 1, Z: 1}))
}

func TestSizeCenterEnlarge(t *testing.T) {
	b := New(v3.Vec{X: -1, Y: -2, Z: -3}, v3.Vec{X: 1, Y: 2, Z: 3})
	assert.Equal(t, v3.Vec{X: 2, Y: 4, Z: 6}, b.Size())
	assert.Equal(t, v3.Vec{}, b.Center())

	e := b.Enlarge(1)
	assert.Equal(t, v3.Vec{X: -2, Y: -3, Z: -4}, e.Min)
	assert.Equal(t, v3.Vec{X: 2, Y: 3, Z: 4}, e.Max)

	moved := b.Translate(v3.Vec{X: 10})
	assert.Equal(t, v3.Vec{X: 9, Y: -2, Z: -3}, moved.Min)
}

func TestAddBox(t *testing.T) {
	var b BoundingBox
	b.AddBox(BoundingBox{})
	assert.True(t, b.IsEmpty())
	b.AddBox(NewCube(v3.Vec{}, 2))
	b.AddBox(NewCube(v3.Vec{X: 4}, 2))
	assert.Equal(t, v3.Vec{X: -1, Y: -1, Z: -1}, b.Min)
	assert.Equal(t, v3.Vec{X: 5, Y: 1, Z: 1}, b.Max)
}

func TestSDFConversion(t *testing.T) {
	sb := sdf.Box3{Min: v3.Vec{X: -1, Y: -1, Z: -1}, Max: v3.Vec{X: 2, Y: 2, Z: 2}}
	b := FromSDF(sb)
	assert.False(t, b.IsEmpty())
	assert.Equal(t, sb, b.ToSDF())
}

func TestDegenerateNaN(t *testing.T) {
	b := New(v3.Vec{}, v3.Vec{X: math.NaN(), Y: 1, Z: 1})
	assert.True(t, b.Degenerate())
}
