package fiducial

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/fiducial/spatialmath"
)

// BoardResult is the fused pose of a board for one frame.
type BoardResult struct {
	Name string `json:"name"`
	// Pose is the board frame relative to the camera.
	Pose        spatialmath.Pose `json:"pose"`
	MemberCount int              `json:"member_count"`
	MemberIDs   []int            `json:"member_ids"`
	// Spread is the RMS distance between the fused origin and the origin implied by each member.
	Spread float64          `json:"spread"`
	Bounds *spatialmath.Box `json:"bounds,omitempty"`
}

// Result holds everything estimated from one frame. Nothing in it is shared with other frames.
type Result struct {
	Observations []Observation `json:"observations"`
	Boards       []BoardResult `json:"boards"`
}

// Posed returns the observations that have a pose.
func (r *Result) Posed() []Observation {
	return lo.Filter(r.Observations, func(o Observation, _ int) bool { return o.Pose != nil })
}

// Failed returns the observations whose pose could not be solved.
func (r *Result) Failed() []Observation {
	return lo.Filter(r.Observations, func(o Observation, _ int) bool { return o.Pose == nil })
}

// Board returns the board with the given name if it was seen in the frame.
func (r *Result) Board(name string) (*BoardResult, bool) {
	for i := range r.Boards {
		if r.Boards[i].Name == name {
			return &r.Boards[i], true
		}
	}
	return nil, false
}

// NearestBoard returns the board whose origin is closest to point. Ties go to the board listed
// first in the config.
func (r *Result) NearestBoard(point r3.Vector) (*BoardResult, bool) {
	return r.nearest(point, "")
}

// NearestBoardTo returns the board closest to the fused origin of the named board. The named board
// is a candidate too, so it is its own answer unless another board shares its origin earlier in
// config order. It returns false when the named board was not seen in the frame.
func (r *Result) NearestBoardTo(name string) (*BoardResult, bool) {
	ref, ok := r.Board(name)
	if !ok {
		return nil, false
	}
	return r.nearest(ref.Pose.Point(), "")
}

// NearestOtherBoard is like NearestBoardTo but never returns the named board. It returns false
// when the named board was not seen or no other board was.
func (r *Result) NearestOtherBoard(name string) (*BoardResult, bool) {
	ref, ok := r.Board(name)
	if !ok {
		return nil, false
	}
	return r.nearest(ref.Pose.Point(), name)
}

func (r *Result) nearest(point r3.Vector, exclude string) (*BoardResult, bool) {
	var best *BoardResult
	bestDist := math.Inf(1)
	for i := range r.Boards {
		b := &r.Boards[i]
		if exclude != "" && b.Name == exclude {
			continue
		}
		if d := b.Pose.Point().Distance(point); d < bestDist {
			best, bestDist = b, d
		}
	}
	return best, best != nil
}

// FitPlane fits a plane through the corners of every posed marker, in the camera frame.
func (r *Result) FitPlane() (spatialmath.Plane, error) {
	var pts []r3.Vector
	for _, obs := range r.Posed() {
		for _, c := range MarkerCorners(obs.Width) {
			pts = append(pts, spatialmath.TransformPoint(*obs.Pose, c))
		}
	}
	if len(pts) == 0 {
		return spatialmath.Plane{}, errors.New("no posed markers to fit a plane to")
	}
	return spatialmath.FitPlane(pts)
}
