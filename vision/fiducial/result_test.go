package fiducial

import (
	"encoding/json"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/fiducial/spatialmath"
)

func boardAt(name string, x float64) BoardResult {
	return BoardResult{Name: name, Pose: spatialmath.NewPoseFromPoint(r3.Vector{X: x}), MemberCount: 1}
}

func TestNearestBoard(t *testing.T) {
	res := &Result{Boards: []BoardResult{boardAt("A", 0), boardAt("B", 10), boardAt("C", 1)}}

	b, ok := res.NearestBoard(r3.Vector{})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, b.Name, test.ShouldEqual, "A")

	b, ok = res.NearestBoard(r3.Vector{X: 2})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, b.Name, test.ShouldEqual, "C")

	b, ok = res.NearestBoard(r3.Vector{X: 7, Y: 1})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, b.Name, test.ShouldEqual, "B")

	// equidistant from A and C, A is listed first
	b, ok = res.NearestBoard(r3.Vector{X: 0.5})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, b.Name, test.ShouldEqual, "A")

	// the returned board is the one held by the result
	test.That(t, b == &res.Boards[0], test.ShouldBeTrue)
}

func TestNearestBoardTo(t *testing.T) {
	res := &Result{Boards: []BoardResult{boardAt("A", 0), boardAt("B", 10), boardAt("C", 1)}}

	for _, name := range []string{"A", "B", "C"} {
		b, ok := res.NearestBoardTo(name)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, b.Name, test.ShouldEqual, name)
	}

	_, ok := res.NearestBoardTo("missing")
	test.That(t, ok, test.ShouldBeFalse)

	lonely := &Result{Boards: []BoardResult{boardAt("A", 0)}}
	b, ok := lonely.NearestBoardTo("A")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, b.Name, test.ShouldEqual, "A")

	// a board sharing the reference origin but listed first wins the tie
	shared := &Result{Boards: []BoardResult{boardAt("X", 3), boardAt("A", 3)}}
	b, ok = shared.NearestBoardTo("A")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, b.Name, test.ShouldEqual, "X")

	_, ok = (&Result{}).NearestBoardTo("A")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestNearestOtherBoard(t *testing.T) {
	res := &Result{Boards: []BoardResult{boardAt("A", 0), boardAt("B", 10), boardAt("C", 1)}}

	b, ok := res.NearestOtherBoard("A")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, b.Name, test.ShouldEqual, "C")

	b, ok = res.NearestOtherBoard("B")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, b.Name, test.ShouldEqual, "C")

	_, ok = res.NearestOtherBoard("missing")
	test.That(t, ok, test.ShouldBeFalse)

	lonely := &Result{Boards: []BoardResult{boardAt("A", 0)}}
	_, ok = lonely.NearestOtherBoard("A")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestNearestBoardEmpty(t *testing.T) {
	res := &Result{}
	b, ok := res.NearestBoard(r3.Vector{})
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, b, test.ShouldBeNil)
	_, ok = res.Board("A")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestResultFitPlane(t *testing.T) {
	_, err := (&Result{}).FitPlane()
	test.That(t, err, test.ShouldNotBeNil)

	// two markers lying on the plane z = 2 facing the camera
	a := facingCamera(r3.Vector{X: -0.3, Z: 2})
	b := facingCamera(r3.Vector{X: 0.4, Y: 0.1, Z: 2})
	res := &Result{Observations: []Observation{
		{ID: 1, Width: 0.1, Pose: &a},
		{ID: 2, Width: 0.2, Pose: &b},
		{ID: 3, Width: 0.2, SolveErr: ErrPoseSolveFailed},
	}}
	plane, err := res.FitPlane()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, plane.Center.Z, test.ShouldAlmostEqual, 2)
	test.That(t, plane.Normal.Z, test.ShouldAlmostEqual, -1)
}

func TestObservationString(t *testing.T) {
	p := spatialmath.NewPoseFromPoint(r3.Vector{X: 1, Y: 2, Z: 3})
	obs := Observation{ID: 4, DictionaryID: 6, Width: 0.1, Corners: [4]r2.Point{{X: 1, Y: 2}}, Pose: &p}
	test.That(t, obs.Posed(), test.ShouldBeTrue)
	test.That(t, obs.String(), test.ShouldContainSubstring, "marker id=4 dict=6 w=0.1 corners=[(1.0,2.0) (0.0,0.0)")
	test.That(t, obs.String(), test.ShouldContainSubstring, "pose={t:[1.000,2.000,3.000]")

	obs.Pose = nil
	obs.SolveErr = errors.Wrap(ErrPoseSolveFailed, "corners coincide")
	test.That(t, obs.String(), test.ShouldEndWith, "pose=none (corners coincide: marker pose solve failed)")
}

func TestResultJSON(t *testing.T) {
	p := spatialmath.NewPoseFromPoint(r3.Vector{Z: 3})
	res := &Result{
		Observations: []Observation{{ID: 4, Width: 0.1, Pose: &p}, {ID: 5, SolveErr: ErrPoseSolveFailed}},
		Boards:       []BoardResult{boardAt("A", 1)},
	}
	data, err := json.Marshal(res)
	test.That(t, err, test.ShouldBeNil)
	s := string(data)
	test.That(t, s, test.ShouldContainSubstring, `"translation":{"x":0,"y":0,"z":3}`)
	test.That(t, s, test.ShouldContainSubstring, `"name":"A"`)
	test.That(t, s, test.ShouldNotContainSubstring, "solve failed")
}
