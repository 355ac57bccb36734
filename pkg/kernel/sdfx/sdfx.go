// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/cutsim/pkg/kernel"
	"github.com/chazu/cutsim/pkg/volume"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution along
// the longest axis of the meshed volume.
const DefaultMeshCells = 200

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cells int
}

// New returns a new SdfxKernel meshing at DefaultMeshCells.
func New() *SdfxKernel {
	return &SdfxKernel{cells: DefaultMeshCells}
}

// NewWithCells returns a kernel meshing with the given number of marching
// cubes cells along the longest axis.
func NewWithCells(cells int) *SdfxKernel {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	return &SdfxKernel{cells: cells}
}

// Box creates a box with the given dimensions. The resulting volume has its
// minimum corner at the origin (0,0,0) so that placement translations work
// intuitively: translating by (10, 0, 0) puts the stock corner at x=10.
// sdf.Box3D centers the box at the origin, so we translate by half-dimensions.
func (k *SdfxKernel) Box(x, y, z float64) (volume.Volume, error) {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: box %gx%gx%g: %w", x, y, z, err)
	}
	m := sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})
	return volume.FromSDF(sdf.Transform3D(s, m)), nil
}

// Cylinder creates a cylinder along Z centered at the origin.
func (k *SdfxKernel) Cylinder(height, radius float64) (volume.Volume, error) {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: cylinder h=%g r=%g: %w", height, radius, err)
	}
	return volume.FromSDF(s), nil
}

// Sphere creates a sphere centered at the origin.
func (k *SdfxKernel) Sphere(radius float64) (volume.Volume, error) {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("sdfx: sphere r=%g: %w", radius, err)
	}
	return volume.FromSDF(s), nil
}

// Union returns the union of two volumes.
func (k *SdfxKernel) Union(a, b volume.Volume) volume.Volume {
	return volume.FromSDF(sdf.Union3D(volume.ToSDF(a), volume.ToSDF(b)))
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b volume.Volume) volume.Volume {
	return volume.FromSDF(sdf.Difference3D(volume.ToSDF(a), volume.ToSDF(b)))
}

// Intersection returns the intersection of two volumes.
func (k *SdfxKernel) Intersection(a, b volume.Volume) volume.Volume {
	return volume.FromSDF(sdf.Intersect3D(volume.ToSDF(a), volume.ToSDF(b)))
}

// Translate moves a volume by (x, y, z).
func (k *SdfxKernel) Translate(v volume.Volume, x, y, z float64) volume.Volume {
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return volume.FromSDF(sdf.Transform3D(volume.ToSDF(v), m))
}

// Rotate rotates a volume by Euler angles (degrees) around X, Y, Z axes.
func (k *SdfxKernel) Rotate(v volume.Volume, x, y, z float64) volume.Volume {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return volume.FromSDF(sdf.Transform3D(volume.ToSDF(v), m))
}

// ToMesh converts a volume to a triangle mesh using marching cubes. The
// volume must have a finite bounding box.
func (k *SdfxKernel) ToMesh(v volume.Volume) (*kernel.Mesh, error) {
	bb := v.BoundingBox()
	if bb.Degenerate() {
		return nil, fmt.Errorf("sdfx: cannot mesh volume with bounding box %v", bb)
	}
	for _, c := range []float64{bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z} {
		if math.IsInf(c, 0) {
			return nil, fmt.Errorf("sdfx: cannot mesh unbounded volume %v", bb)
		}
	}
	sdf3 := volume.ToSDF(v)

	renderer := render.NewMarchingCubesUniform(k.cells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Compute face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
