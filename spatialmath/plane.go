package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Plane is a plane through Center with unit Normal.
type Plane struct {
	Center r3.Vector
	Normal r3.Vector
}

// Line is a segment between two points, extended infinitely for intersections.
type Line struct {
	P1 r3.Vector
	P2 r3.Vector
}

// Direction returns the unit direction from P1 to P2.
func (l Line) Direction() r3.Vector {
	return l.P2.Sub(l.P1).Normalize()
}

// FitPlane fits a least squares plane to the points. The normal is the singular vector of the
// centered points with the smallest singular value, oriented to face the origin (the camera).
func FitPlane(points []r3.Vector) (Plane, error) {
	if len(points) < 3 {
		return Plane{}, errors.Errorf("need at least 3 points to fit a plane, got %d", len(points))
	}
	var center r3.Vector
	for _, p := range points {
		center = center.Add(p)
	}
	center = center.Mul(1 / float64(len(points)))

	centered := mat.NewDense(len(points), 3, nil)
	for i, p := range points {
		d := p.Sub(center)
		centered.SetRow(i, []float64{d.X, d.Y, d.Z})
	}
	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDFull); !ok {
		return Plane{}, errors.New("failed to factorize points")
	}
	values := svd.Values(nil)
	if values[1] < 1e-9*math.Max(1, values[0]) {
		return Plane{}, errors.New("points are collinear, plane is undefined")
	}
	var v mat.Dense
	svd.VTo(&v)
	normal := r3.Vector{X: v.At(0, 2), Y: v.At(1, 2), Z: v.At(2, 2)}.Normalize()
	if normal.Dot(center) > 0 {
		normal = normal.Mul(-1)
	}
	return Plane{Center: center, Normal: normal}, nil
}

// Project returns the orthogonal projection of p onto the plane.
func (pl Plane) Project(p r3.Vector) r3.Vector {
	return p.Sub(pl.Normal.Mul(pl.Normal.Dot(p.Sub(pl.Center))))
}

// Distance returns the signed distance of p from the plane along the normal.
func (pl Plane) Distance(p r3.Vector) float64 {
	return pl.Normal.Dot(p.Sub(pl.Center))
}

// Intersect returns where the line crosses the plane. It is false when the line is parallel.
func (pl Plane) Intersect(l Line) (r3.Vector, bool) {
	dir := l.P2.Sub(l.P1)
	denom := pl.Normal.Dot(dir)
	if math.Abs(denom) < 1e-12 {
		return r3.Vector{}, false
	}
	t := pl.Normal.Dot(pl.Center.Sub(l.P1)) / denom
	return l.P1.Add(dir.Mul(t)), true
}

// Pose returns a pose at the plane center whose z axis is the plane normal.
func (pl Plane) Pose() Pose {
	return NewPoseFromQuaternion(pl.Center, QuatBetween(r3.Vector{Z: 1}, pl.Normal))
}
