package octree

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// NodeID identifies a node in the tree's arena. IDs are stable for the
// lifetime of a node; a freed ID may be reused by a later subdivision.
type NodeID int32

// NoNode marks an absent child or the root's parent.
const NoNode NodeID = -1

// State is the material state of a leaf.
type State uint8

const (
	// Empty leaves contain no material.
	Empty State = iota
	// Solid leaves are entirely material.
	Solid
	// Boundary leaves are crossed by the surface. They only occur at the
	// maximum depth.
	Boundary
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Solid:
		return "solid"
	case Boundary:
		return "boundary"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// stateOf classifies a set of corner distances. Zero counts as inside.
func stateOf(corners [8]float64) State {
	in := 0
	for _, c := range corners {
		if c >= 0 {
			in++
		}
	}
	switch in {
	case 8:
		return Solid
	case 0:
		return Empty
	default:
		return Boundary
	}
}

// node is one cube cell. Children and corners are indexed so that bit 0
// selects +x, bit 1 +y and bit 2 +z.
type node struct {
	center   v3.Vec
	depth    int
	parent   NodeID
	children [8]NodeID
	state    State
	// corners holds the signed distance of the current solid at the
	// cube corners, positive inside.
	corners [8]float64
	free    bool
}

func (n *node) isLeaf() bool {
	return n.children[0] == NoNode
}

// octant returns the unit direction (+1 or -1 per axis) of index i.
func octant(i int) v3.Vec {
	d := v3.Vec{X: -1, Y: -1, Z: -1}
	if i&1 != 0 {
		d.X = 1
	}
	if i&2 != 0 {
		d.Y = 1
	}
	if i&4 != 0 {
		d.Z = 1
	}
	return d
}

// childCorners interpolates the parent's corner values at the corners of
// child octant i.
func childCorners(parent [8]float64, i int) [8]float64 {
	var out [8]float64
	for j := 0; j < 8; j++ {
		// Child corner j sits at (bit_i + bit_j) / 2 in parent-local [0,1] coordinates.
		u := float64((i&1)+(j&1)) / 2
		v := float64((i>>1&1)+(j>>1&1)) / 2
		w := float64((i>>2&1)+(j>>2&1)) / 2
		out[j] = trilinear(parent, u, v, w)
	}
	return out
}

// trilinear interpolates corner values at local coordinates in [0,1].
func trilinear(c [8]float64, u, v, w float64) float64 {
	x00 := c[0]*(1-u) + c[1]*u
	x10 := c[2]*(1-u) + c[3]*u
	x01 := c[4]*(1-u) + c[5]*u
	x11 := c[6]*(1-u) + c[7]*u
	y0 := x00*(1-v) + x10*v
	y1 := x01*(1-v) + x11*v
	return y0*(1-w) + y1*w
}

// Leaf is a value snapshot of a leaf node, as handed to renderers.
type Leaf struct {
	ID      NodeID
	Center  v3.Vec
	Side    float64
	Depth   int
	State   State
	Corners [8]float64
	// Valid is false while the leaf is in the dirty set.
	Valid bool
}

// Corner returns the world position of corner i.
func (l Leaf) Corner(i int) v3.Vec {
	return l.Center.Add(octant(i).MulScalar(l.Side / 2))
}

// HalfDiagonal returns the distance from the center to any corner.
func (l Leaf) HalfDiagonal() float64 {
	return l.Side / 2 * math.Sqrt(3)
}
