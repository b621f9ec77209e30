package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// ErrEmptyPoseSet is returned when averaging zero poses.
var ErrEmptyPoseSet = errors.New("cannot average an empty set of poses")

// AveragePoses returns the weighted mean of the poses. A nil weights slice weighs every pose
// equally. The translation is the weighted arithmetic mean. The rotation is the normalized
// weighted sum of the quaternions after flipping each one into the hemisphere of the first,
// so that q and -q (the same rotation) do not cancel.
//
// A single pose is returned unchanged. Poses that are not finite are rejected with an error.
func AveragePoses(poses []Pose, weights []float64) (Pose, error) {
	if len(poses) == 0 {
		return Pose{}, ErrEmptyPoseSet
	}
	if weights != nil && len(weights) != len(poses) {
		return Pose{}, errors.Errorf("got %d weights for %d poses", len(weights), len(poses))
	}
	for i, p := range poses {
		if !p.IsFinite() {
			return Pose{}, errors.Errorf("pose %d is not finite: %v", i, p)
		}
	}
	if len(poses) == 1 {
		return poses[0], nil
	}

	var total float64
	var point r3.Vector
	var sum quat.Number
	ref := poses[0].quat()
	for i, p := range poses {
		w := 1.
		if weights != nil {
			w = weights[i]
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return Pose{}, errors.Errorf("invalid pose weight %v at index %d", w, i)
		}
		total += w
		point = point.Add(p.point.Mul(w))

		q := p.quat()
		if QuatDot(q, ref) < 0 {
			q = quat.Scale(-1, q)
		}
		sum = quat.Add(sum, quat.Scale(w, q))
	}
	if total <= 0 {
		return Pose{}, errors.New("pose weights sum to zero")
	}
	if quat.Abs(sum) < 1e-12 {
		return Pose{}, errors.New("rotations cancel out, average is undefined")
	}
	return Pose{
		point:       point.Mul(1 / total),
		orientation: normalizeQuat(sum),
	}, nil
}
