package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/fiducial/utils"
)

// Pose is a rigid transform: a rotation followed by a translation. Poses are plain values; every
// operation returns a new Pose and never aliases its inputs.
type Pose struct {
	point       r3.Vector
	orientation quat.Number
}

// NewZeroPose returns a pose at (0,0,0) with same orientation as whatever frame it is placed in.
func NewZeroPose() Pose {
	return Pose{orientation: quat.Number{Real: 1}}
}

// NewPose returns a pose with the given translation and orientation. A nil orientation is the
// identity rotation.
func NewPose(point r3.Vector, o Orientation) Pose {
	if o == nil {
		return NewPoseFromPoint(point)
	}
	return Pose{point: point, orientation: normalizeQuat(o.Quaternion())}
}

// NewPoseFromOrientation is an alias of NewPose kept for symmetry with NewPoseFromPoint.
func NewPoseFromOrientation(point r3.Vector, o Orientation) Pose {
	return NewPose(point, o)
}

// NewPoseFromPoint returns a pose with the given translation and no rotation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return Pose{point: point, orientation: quat.Number{Real: 1}}
}

// NewPoseFromQuaternion returns a pose with the given translation and rotation quaternion, which is
// normalized. A non-finite quaternion gives a pose for which IsFinite is false.
func NewPoseFromQuaternion(point r3.Vector, q quat.Number) Pose {
	return Pose{point: point, orientation: normalizeQuat(q)}
}

// Point returns the translation of the pose.
func (p Pose) Point() r3.Vector {
	return p.point
}

// Orientation returns the rotation of the pose.
func (p Pose) Orientation() Orientation {
	q := p.quat()
	return (*quaternion)(&q)
}

// Quaternion returns the unit rotation quaternion of the pose.
func (p Pose) Quaternion() quat.Number {
	return p.quat()
}

// RotationMatrix returns the rotation of the pose as a matrix.
func (p Pose) RotationMatrix() *RotationMatrix {
	return QuatToRotationMatrix(p.quat())
}

// IsFinite reports whether every component of the translation and rotation is finite.
func (p Pose) IsFinite() bool {
	q := p.quat()
	return utils.IsFinite(p.point.X, p.point.Y, p.point.Z, q.Real, q.Imag, q.Jmag, q.Kmag)
}

// the zero value Pose{} behaves as the identity
func (p Pose) quat() quat.Number {
	if p.orientation == (quat.Number{}) {
		return quat.Number{Real: 1}
	}
	return p.orientation
}

func (p Pose) String() string {
	q := p.quat()
	return fmt.Sprintf("{t:[%.3f,%.3f,%.3f], q:[%.4f,%.4f,%.4f,%.4f]}",
		p.point.X, p.point.Y, p.point.Z, q.Real, q.Imag, q.Jmag, q.Kmag)
}

// Compose returns the pose that first applies b then a. Its rotation is a·b and its translation
// is a.R·b.t + a.t.
func Compose(a, b Pose) Pose {
	return Pose{
		point:       QuatRotate(a.quat(), b.point).Add(a.point),
		orientation: normalizeQuat(quat.Mul(a.quat(), b.quat())),
	}
}

// PoseInverse returns the inverse of the pose: rotation R⁻¹ and translation -R⁻¹·t.
func PoseInverse(p Pose) Pose {
	inv := quat.Conj(p.quat())
	return Pose{
		point:       QuatRotate(inv, p.point).Mul(-1),
		orientation: inv,
	}
}

// PoseBetween returns the pose that takes a to b, so Compose(a, PoseBetween(a, b)) == b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// TransformPoint maps p through the pose: R·p + t.
func TransformPoint(pose Pose, p r3.Vector) r3.Vector {
	return QuatRotate(pose.quat(), p).Add(pose.point)
}

// RotateX rotates the pose by rad radians about its own x axis.
func RotateX(p Pose, rad float64) Pose {
	return rotateLocal(p, r3.Vector{X: 1}, rad)
}

// RotateY rotates the pose by rad radians about its own y axis.
func RotateY(p Pose, rad float64) Pose {
	return rotateLocal(p, r3.Vector{Y: 1}, rad)
}

// RotateZ rotates the pose by rad radians about its own z axis.
func RotateZ(p Pose, rad float64) Pose {
	return rotateLocal(p, r3.Vector{Z: 1}, rad)
}

func rotateLocal(p Pose, axis r3.Vector, rad float64) Pose {
	return Pose{
		point:       p.point,
		orientation: normalizeQuat(quat.Mul(p.quat(), QuatFromAxisAngle(axis, rad))),
	}
}

// PoseDelta returns the translation distance and the rotation angle in radians between two poses.
func PoseDelta(a, b Pose) (float64, float64) {
	d := math.Min(1, math.Abs(QuatDot(a.quat(), b.quat())))
	return a.point.Distance(b.point), 2 * math.Acos(d)
}

// PoseAlmostEqual will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, 1e-6)
}

// PoseAlmostEqualEps will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqualEps(a, b Pose, epsilon float64) bool {
	return a.point.Distance(b.point) <= epsilon && QuaternionAlmostEqual(a.quat(), b.quat(), epsilon)
}

// AlmostCoincident will return a bool describing whether 2 poses approximately are at the same 3D coordinate location.
func AlmostCoincident(a, b Pose) bool {
	return AlmostCoincidentEps(a, b, 1e-6)
}

// AlmostCoincidentEps will return a bool describing whether 2 poses approximately are at the same 3D coordinate location.
func AlmostCoincidentEps(a, b Pose, epsilon float64) bool {
	return a.point.Distance(b.point) < epsilon
}
