package rimage

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/fiducial/rimage/transform"
	"go.viam.com/fiducial/spatialmath"
	"go.viam.com/fiducial/vision/fiducial"
)

func TestAnnotate(t *testing.T) {
	model, err := transform.NewPinholeCameraModelFromMatrix([]float64{200, 0, 100, 0, 200, 100, 0, 0, 1}, nil, 200, 200)
	test.That(t, err, test.ShouldBeNil)

	pose := spatialmath.NewPose(r3.Vector{Z: 1}, &spatialmath.R4AA{Theta: math.Pi, RX: 1})
	var corners [4]r2.Point
	for i, c := range fiducial.MarkerCorners(0.2) {
		px, err := model.Project(spatialmath.TransformPoint(pose, c))
		test.That(t, err, test.ShouldBeNil)
		corners[i] = px
	}
	bounds, err := spatialmath.NewBox(r3.Vector{X: -0.3, Y: -0.3}, r3.Vector{X: 0.3, Y: 0.3, Z: 0.1})
	test.That(t, err, test.ShouldBeNil)
	res := &fiducial.Result{
		Observations: []fiducial.Observation{
			{ID: 3, Width: 0.2, Corners: corners, Pose: &pose},
			{ID: 4, Width: 0.2, Corners: [4]r2.Point{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 30, Y: 10}, {X: 10, Y: 20}}},
		},
		Boards: []fiducial.BoardResult{{Name: "b", Pose: pose, MemberCount: 1, MemberIDs: []int{3}, Bounds: &bounds}},
	}

	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	out := NewAnnotator(model).Annotate(img, res)
	test.That(t, out.Bounds(), test.ShouldResemble, img.Bounds())

	// the input is left untouched
	test.That(t, img.NRGBAAt(80, 100), test.ShouldResemble, color.NRGBA{})
	// the left edge of the posed marker runs along x=80
	r, g, _, _ := out.At(80, 100).RGBA()
	test.That(t, g, test.ShouldBeGreaterThan, r)
	// the failed marker is outlined in red
	r, g, _, _ = out.At(15, 10).RGBA()
	test.That(t, r, test.ShouldBeGreaterThan, g)
}
