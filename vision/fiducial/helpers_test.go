package fiducial

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/fiducial/rimage/transform"
	"go.viam.com/fiducial/spatialmath"
)

func newTestModel(t *testing.T, distortion []float64) *transform.PinholeCameraModel {
	t.Helper()
	model, err := transform.NewPinholeCameraModelFromMatrix(
		[]float64{800, 0, 640, 0, 800, 360, 0, 0, 1},
		distortion,
		1280, 720,
	)
	test.That(t, err, test.ShouldBeNil)
	return model
}

// facingCamera is a marker pose at point whose printed face points back at the camera.
func facingCamera(point r3.Vector) spatialmath.Pose {
	return spatialmath.NewPose(point, &spatialmath.R4AA{Theta: math.Pi, RX: 1})
}

// projectMarker renders the corners a marker with the given pose and width would have in the image.
func projectMarker(t *testing.T, model *transform.PinholeCameraModel, pose spatialmath.Pose, width float64) [4]r2.Point {
	t.Helper()
	var corners [4]r2.Point
	for i, c := range MarkerCorners(width) {
		px, err := model.ProjectDistorted(spatialmath.TransformPoint(pose, c))
		test.That(t, err, test.ShouldBeNil)
		corners[i] = px
	}
	return corners
}

func synthDetection(t *testing.T, model *transform.PinholeCameraModel, id int, pose spatialmath.Pose, width float64) Detection {
	t.Helper()
	return Detection{ID: id, DictionaryID: DefaultDictionaryID, Corners: projectMarker(t, model, pose, width)}
}

func collinearDetection(id int) Detection {
	return Detection{ID: id, Corners: [4]r2.Point{{X: 100, Y: 100}, {X: 200, Y: 100}, {X: 300, Y: 100}, {X: 300, Y: 200}}}
}

func shouldBeNearPose(t *testing.T, got, want spatialmath.Pose, tol float64) {
	t.Helper()
	dist, angle := spatialmath.PoseDelta(got, want)
	test.That(t, dist, test.ShouldBeLessThan, tol)
	test.That(t, angle, test.ShouldBeLessThan, tol)
}
