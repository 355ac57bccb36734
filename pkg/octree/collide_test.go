package octree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/cutsim/pkg/volume"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func TestCollides(t *testing.T) {
	tree := newTree(t, 20, 4)
	ball := func(c v3.Vec) *volume.Sphere {
		s, err := volume.NewSphere(c, 1)
		require.NoError(t, err)
		return s
	}

	assert.False(t, tree.Collides(ball(v3.Vec{})), "empty tree")

	// Material fills the lower half of the root cube.
	require.NoError(t, tree.Sum(axisBox(t, v3.Vec{X: -20, Y: -20, Z: -20}, v3.Vec{X: 20, Y: 20})))
	before := tree.NodeCount()

	cases := []struct {
		name   string
		center v3.Vec
		want   bool
	}{
		{"above", v3.Vec{Z: 2}, false},
		{"grazing", v3.Vec{Z: 0.5}, true},
		{"buried", v3.Vec{X: 3, Y: -4, Z: -6}, true},
		{"outside root", v3.Vec{X: 50}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tree.Collides(ball(tc.center)))
		})
	}

	below, err := volume.NewPlane(volume.AxisZ, -5, true)
	require.NoError(t, err)
	assert.True(t, tree.Collides(below))
	above, err := volume.NewPlane(volume.AxisZ, 5, false)
	require.NoError(t, err)
	assert.False(t, tree.Collides(above))

	assert.False(t, tree.Collides(nil))
	assert.Equal(t, before, tree.NodeCount(), "collision test must not modify the tree")
	assert.NoError(t, tree.Check())
}
