// Package kernel defines the geometry kernel interface used to build
// cutter and stock volumes from CSG primitives and to mesh any volume,
// the workpiece octree included. The kernel abstraction allows swapping
// backends without changing the rest of the system.
package kernel

import "github.com/chazu/cutsim/pkg/volume"

// Kernel builds volumes from primitives and turns volumes into meshes.
// Primitives are centered on the origin unless noted otherwise.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) (volume.Volume, error) // min corner at the origin
	Cylinder(height, radius float64) (volume.Volume, error)
	Sphere(radius float64) (volume.Volume, error)

	// Boolean operations
	Union(a, b volume.Volume) volume.Volume
	Difference(a, b volume.Volume) volume.Volume
	Intersection(a, b volume.Volume) volume.Volume

	// Transforms
	Translate(v volume.Volume, x, y, z float64) volume.Volume
	Rotate(v volume.Volume, x, y, z float64) volume.Volume // Euler angles in degrees

	// Mesh output
	ToMesh(v volume.Volume) (*Mesh, error)
}
