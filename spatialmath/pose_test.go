package spatialmath

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func randomPose(rnd *rand.Rand) Pose {
	axis := r3.Vector{X: rnd.Float64() - 0.5, Y: rnd.Float64() - 0.5, Z: rnd.Float64() - 0.5}
	theta := (rnd.Float64()*2 - 1) * math.Pi
	pt := r3.Vector{X: rnd.Float64()*10 - 5, Y: rnd.Float64()*10 - 5, Z: rnd.Float64() * 10}
	return NewPose(pt, &R4AA{Theta: theta, RX: axis.X, RY: axis.Y, RZ: axis.Z})
}

func TestZeroPose(t *testing.T) {
	var zero Pose
	test.That(t, zero.Quaternion(), test.ShouldResemble, quat.Number{Real: 1})
	test.That(t, PoseAlmostEqual(zero, NewZeroPose()), test.ShouldBeTrue)
	test.That(t, TransformPoint(zero, r3.Vector{X: 1, Y: 2, Z: 3}), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
}

func TestComposeInverseRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		p := randomPose(rnd)
		id := Compose(p, PoseInverse(p))
		test.That(t, id.Point().Norm(), test.ShouldBeLessThan, 1e-9)
		test.That(t, QuaternionAlmostEqual(id.Quaternion(), quat.Number{Real: 1}, 1e-9), test.ShouldBeTrue)

		id = Compose(PoseInverse(p), p)
		test.That(t, PoseAlmostEqualEps(id, NewZeroPose(), 1e-9), test.ShouldBeTrue)
	}
}

func TestComposeOrder(t *testing.T) {
	// a rotates 90 degrees about z, b translates along x
	a := NewPose(r3.Vector{Z: 1}, &R4AA{Theta: math.Pi / 2, RZ: 1})
	b := NewPoseFromPoint(r3.Vector{X: 1})

	ab := Compose(a, b)
	test.That(t, ab.Point().X, test.ShouldAlmostEqual, 0)
	test.That(t, ab.Point().Y, test.ShouldAlmostEqual, 1)
	test.That(t, ab.Point().Z, test.ShouldAlmostEqual, 1)

	// applying the composed pose is applying b then a
	p := r3.Vector{X: 0.3, Y: -2, Z: 4}
	got := TransformPoint(ab, p)
	want := TransformPoint(a, TransformPoint(b, p))
	test.That(t, got.Distance(want), test.ShouldBeLessThan, 1e-12)
}

func TestTransformPoint(t *testing.T) {
	p := NewPose(r3.Vector{X: 1, Y: 2, Z: 3}, &R4AA{Theta: math.Pi, RX: 1})
	got := TransformPoint(p, r3.Vector{X: 1, Y: 1, Z: 1})
	test.That(t, got.X, test.ShouldAlmostEqual, 2)
	test.That(t, got.Y, test.ShouldAlmostEqual, 1)
	test.That(t, got.Z, test.ShouldAlmostEqual, 2)

	// the rotation matrix agrees with the quaternion
	rm := p.RotationMatrix()
	test.That(t, rm.Mul(r3.Vector{X: 1, Y: 1, Z: 1}).Add(p.Point()).Distance(got), test.ShouldBeLessThan, 1e-12)
}

func TestPoseBetween(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	a, b := randomPose(rnd), randomPose(rnd)
	test.That(t, PoseAlmostEqualEps(Compose(a, PoseBetween(a, b)), b, 1e-9), test.ShouldBeTrue)
}

func TestLocalRotations(t *testing.T) {
	p := NewPoseFromPoint(r3.Vector{X: 1})
	p = RotateZ(p, math.Pi/2)
	test.That(t, p.Point(), test.ShouldResemble, r3.Vector{X: 1})
	x := TransformPoint(p, r3.Vector{X: 1})
	test.That(t, x.X, test.ShouldAlmostEqual, 1)
	test.That(t, x.Y, test.ShouldAlmostEqual, 1)

	// rotations apply on the pose's own axes
	p = RotateX(p, math.Pi/2)
	z := QuatRotate(p.Quaternion(), r3.Vector{Z: 1})
	test.That(t, z.X, test.ShouldAlmostEqual, 1)
	test.That(t, z.Y, test.ShouldAlmostEqual, 0)
	test.That(t, z.Z, test.ShouldAlmostEqual, 0)

	p = RotateY(NewZeroPose(), math.Pi)
	test.That(t, QuatRotate(p.Quaternion(), r3.Vector{Z: 1}).Z, test.ShouldAlmostEqual, -1)
}

func TestPoseDelta(t *testing.T) {
	a := NewZeroPose()
	b := NewPose(r3.Vector{X: 3, Y: 4}, &R4AA{Theta: 0.5, RY: 1})
	dist, angle := PoseDelta(a, b)
	test.That(t, dist, test.ShouldAlmostEqual, 5)
	test.That(t, angle, test.ShouldAlmostEqual, 0.5)

	// the double cover does not count as a rotation
	neg := NewPoseFromQuaternion(r3.Vector{}, quat.Scale(-1, b.Quaternion()))
	_, angle = PoseDelta(NewPoseFromQuaternion(r3.Vector{}, b.Quaternion()), neg)
	test.That(t, angle, test.ShouldAlmostEqual, 0)
}

func TestPoseString(t *testing.T) {
	p := NewPoseFromPoint(r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, p.String(), test.ShouldEqual, "{t:[1.000,2.000,3.000], q:[1.0000,0.0000,0.0000,0.0000]}")
}

func TestPoseJSON(t *testing.T) {
	p := NewPose(r3.Vector{X: 1, Y: -2, Z: 3.5}, &R4AA{Theta: 0.3, RY: 1})
	data, err := json.Marshal(p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, `"translation":{"x":1,"y":-2,"z":3.5}`)

	var back Pose
	test.That(t, json.Unmarshal(data, &back), test.ShouldBeNil)
	test.That(t, PoseAlmostEqual(p, back), test.ShouldBeTrue)
}

func TestPoseIsFinite(t *testing.T) {
	test.That(t, NewZeroPose().IsFinite(), test.ShouldBeTrue)
	test.That(t, Pose{}.IsFinite(), test.ShouldBeTrue)

	zeroRot := NewPoseFromQuaternion(r3.Vector{X: 1}, quat.Number{})
	test.That(t, zeroRot.IsFinite(), test.ShouldBeTrue)
	test.That(t, zeroRot.Quaternion(), test.ShouldResemble, quat.Number{Real: 1})

	nanRot := NewPoseFromQuaternion(r3.Vector{X: 1}, quat.Number{Real: math.NaN(), Imag: 1})
	test.That(t, nanRot.IsFinite(), test.ShouldBeFalse)
	test.That(t, math.IsNaN(nanRot.Quaternion().Real), test.ShouldBeTrue)

	infRot := NewPoseFromQuaternion(r3.Vector{}, quat.Number{Real: math.Inf(1)})
	test.That(t, infRot.IsFinite(), test.ShouldBeFalse)

	test.That(t, NewPoseFromPoint(r3.Vector{Z: math.NaN()}).IsFinite(), test.ShouldBeFalse)
}
