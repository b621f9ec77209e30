package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Ordered list of box vertices, as signs applied to the half size.
var boxVertices = [8]r3.Vector{
	{X: 1, Y: 1, Z: 1},
	{X: 1, Y: 1, Z: -1},
	{X: 1, Y: -1, Z: 1},
	{X: 1, Y: -1, Z: -1},
	{X: -1, Y: 1, Z: 1},
	{X: -1, Y: 1, Z: -1},
	{X: -1, Y: -1, Z: 1},
	{X: -1, Y: -1, Z: -1},
}

// The 12 edges of a box, as pairs of vertex indices (vertices differing in exactly one coordinate).
var boxEdgeIndices = [12][2]int{
	{0, 1}, {0, 2}, {0, 4},
	{1, 3}, {1, 5},
	{2, 3}, {2, 6},
	{3, 7},
	{4, 5}, {4, 6},
	{5, 7},
	{6, 7},
}

// Box is an axis aligned 3D extent.
type Box struct {
	Min r3.Vector `json:"min"`
	Max r3.Vector `json:"max"`
}

// NewBox returns the box spanning min to max. Every coordinate of min must not exceed max.
func NewBox(minPt, maxPt r3.Vector) (Box, error) {
	if minPt.X > maxPt.X || minPt.Y > maxPt.Y || minPt.Z > maxPt.Z {
		return Box{}, errors.Errorf("box min %v exceeds max %v", minPt, maxPt)
	}
	return Box{Min: minPt, Max: maxPt}, nil
}

// NewEmptyBox returns a box containing nothing, ready to be grown with Update.
func NewEmptyBox() Box {
	inf := math.Inf(1)
	return Box{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// Update grows the box to include p.
func (b *Box) Update(p r3.Vector) {
	b.Min = r3.Vector{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = r3.Vector{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
}

// IsEmpty reports whether the box contains no points.
func (b Box) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Center returns the middle of the box.
func (b Box) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Dims returns the side lengths of the box.
func (b Box) Dims() r3.Vector {
	return b.Max.Sub(b.Min)
}

// Contains reports whether p lies inside the box or on its boundary.
func (b Box) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Vertices returns the eight corners of the box.
func (b Box) Vertices() [8]r3.Vector {
	c := b.Center()
	half := b.Dims().Mul(0.5)
	var verts [8]r3.Vector
	for i, v := range boxVertices {
		verts[i] = c.Add(r3.Vector{X: v.X * half.X, Y: v.Y * half.Y, Z: v.Z * half.Z})
	}
	return verts
}

// Edges returns the twelve edges of the box, each placed into the frame of pose.
func (b Box) Edges(pose Pose) [12][2]r3.Vector {
	verts := b.Vertices()
	var edges [12][2]r3.Vector
	for i, e := range boxEdgeIndices {
		edges[i] = [2]r3.Vector{TransformPoint(pose, verts[e[0]]), TransformPoint(pose, verts[e[1]])}
	}
	return edges
}

// String returns a human readable string that represents the box.
func (b Box) String() string {
	return fmt.Sprintf("Box | Min: X:%.3f, Y:%.3f, Z:%.3f | Max: X:%.3f, Y:%.3f, Z:%.3f",
		b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
}
