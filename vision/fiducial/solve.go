package fiducial

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"go.viam.com/fiducial/rimage/transform"
	"go.viam.com/fiducial/spatialmath"
)

// collinearTolerance bounds the sine of the angle at which three corners count as collinear.
const collinearTolerance = 1e-6

// MarkerSolution is the pose of one marker relative to the camera.
type MarkerSolution struct {
	Pose spatialmath.Pose
	// ReprojectionError is the RMS distance in pixels between the observed corners and the
	// corners of the solved marker projected back through the camera model.
	ReprojectionError float64
}

// MarkerCorners returns the corners of a marker of the given width in its own frame, ordered
// top-left, top-right, bottom-right, bottom-left.
func MarkerCorners(width float64) [4]r3.Vector {
	h := width / 2
	return [4]r3.Vector{
		{X: -h, Y: h},
		{X: h, Y: h},
		{X: h, Y: -h},
		{X: -h, Y: -h},
	}
}

// SolveMarkerPose finds the camera-relative pose of a square marker of the given width from its four
// image corners. Corners that are repeated or collinear give an error wrapping ErrPoseSolveFailed; an
// unusable camera model gives an error wrapping transform.ErrInvalidCameraModel.
func SolveMarkerPose(model *transform.PinholeCameraModel, corners [4]r2.Point, width float64) (*MarkerSolution, error) {
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	if !validWidth(width) {
		return nil, errors.Wrapf(ErrPoseSolveFailed, "marker width must be positive, got %v", width)
	}
	if err := checkCorners(corners); err != nil {
		return nil, errors.Wrap(ErrPoseSolveFailed, err.Error())
	}
	normalized, err := model.UndistortNormalized(corners[:])
	if err != nil {
		return nil, err
	}
	local := MarkerCorners(width)

	pose, err := planarPose(local, normalized)
	if err != nil {
		return nil, errors.Wrap(ErrPoseSolveFailed, err.Error())
	}
	pose = refinePose(pose, local, normalized)
	if !pose.IsFinite() {
		return nil, errors.Wrap(ErrPoseSolveFailed, "marker pose is not finite")
	}
	if pose.Point().Z <= 0 {
		return nil, errors.Wrap(ErrPoseSolveFailed, "marker solved behind the camera")
	}

	rms, err := reprojectionError(model, pose, local, corners)
	if err != nil {
		return nil, errors.Wrap(ErrPoseSolveFailed, err.Error())
	}
	return &MarkerSolution{Pose: pose, ReprojectionError: rms}, nil
}

// checkCorners rejects corner sets that cannot span a square.
func checkCorners(corners [4]r2.Point) error {
	for i, c := range corners {
		if math.IsNaN(c.X) || math.IsNaN(c.Y) || math.IsInf(c.X, 0) || math.IsInf(c.Y, 0) {
			return errors.Errorf("corner %d is not finite", i)
		}
	}
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if corners[i].Sub(corners[j]).Norm() < 1e-9 {
				return errors.Errorf("corners %d and %d coincide", i, j)
			}
		}
	}
	for skip := 0; skip < 4; skip++ {
		var tri []r2.Point
		for i, c := range corners {
			if i != skip {
				tri = append(tri, c)
			}
		}
		a, b := tri[1].Sub(tri[0]), tri[2].Sub(tri[0])
		if math.Abs(a.Cross(b)) <= collinearTolerance*a.Norm()*b.Norm() {
			return errors.Errorf("corners other than %d are collinear", skip)
		}
	}
	return nil
}

// planarPose decomposes the homography from the marker plane onto the z=1 focal plane into a rotation
// and translation.
func planarPose(local [4]r3.Vector, normalized []r2.Point) (spatialmath.Pose, error) {
	src := make([]r2.Point, len(local))
	for i, p := range local {
		src[i] = r2.Point{X: p.X, Y: p.Y}
	}
	h, err := transform.EstimatePlanarHomography(src, normalized)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	h1 := r3.Vector{X: h.At(0, 0), Y: h.At(1, 0), Z: h.At(2, 0)}
	h2 := r3.Vector{X: h.At(0, 1), Y: h.At(1, 1), Z: h.At(2, 1)}
	h3 := r3.Vector{X: h.At(0, 2), Y: h.At(1, 2), Z: h.At(2, 2)}
	n1, n2 := h1.Norm(), h2.Norm()
	if n1 < 1e-12 || n2 < 1e-12 {
		return spatialmath.Pose{}, errors.New("homography does not span the marker plane")
	}
	scale := 2 / (n1 + n2)
	if h3.Z < 0 {
		scale = -scale
	}
	r1, r2v := h1.Mul(scale), h2.Mul(scale)
	r3v := r1.Cross(r2v)
	rot := mat.NewDense(3, 3, []float64{
		r1.X, r2v.X, r3v.X,
		r1.Y, r2v.Y, r3v.Y,
		r1.Z, r2v.Z, r3v.Z,
	})
	rm, err := spatialmath.NewRotationMatrixFromDense(rot)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return spatialmath.NewPose(h3.Mul(scale), rm), nil
}

// refinePose minimizes the focal plane reprojection error starting from the closed form pose. The
// starting pose is kept if the search does not improve on it.
func refinePose(start spatialmath.Pose, local [4]r3.Vector, normalized []r2.Point) spatialmath.Pose {
	toPose := func(x []float64) spatialmath.Pose {
		rv := r3.Vector{X: x[0], Y: x[1], Z: x[2]}
		theta := rv.Norm()
		q := spatialmath.QuatFromAxisAngle(rv, theta)
		return spatialmath.NewPoseFromQuaternion(r3.Vector{X: x[3], Y: x[4], Z: x[5]}, q)
	}
	cost := func(x []float64) float64 {
		pose := toPose(x)
		var sum float64
		for i, p := range local {
			c := spatialmath.TransformPoint(pose, p)
			if c.Z <= 0 {
				return math.Inf(1)
			}
			d := r2.Point{X: c.X / c.Z, Y: c.Y / c.Z}.Sub(normalized[i])
			sum += d.Dot(d)
		}
		return sum
	}

	aa := start.Orientation().AxisAngles().ToR3()
	t := start.Point()
	init := []float64{aa.X, aa.Y, aa.Z, t.X, t.Y, t.Z}
	f0 := cost(init)

	problem := optimize.Problem{Func: cost}
	settings := &optimize.Settings{
		MajorIterations: 2000,
		Converger:       &optimize.FunctionConverge{Absolute: 1e-16, Iterations: 50},
	}
	result, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
	if result == nil || (err != nil && result.F >= f0) || !(result.F <= f0) {
		return start
	}
	return toPose(result.X)
}

// reprojectionError is the RMS pixel distance between the observed corners and the corners of the
// posed marker projected through the full camera model.
func reprojectionError(
	model *transform.PinholeCameraModel, pose spatialmath.Pose, local [4]r3.Vector, observed [4]r2.Point,
) (float64, error) {
	squared := make(stats.Float64Data, 0, len(local))
	for i, p := range local {
		px, err := model.ProjectDistorted(spatialmath.TransformPoint(pose, p))
		if err != nil {
			return 0, err
		}
		d := px.Sub(observed[i])
		squared = append(squared, d.Dot(d))
	}
	mean, err := stats.Mean(squared)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mean), nil
}
