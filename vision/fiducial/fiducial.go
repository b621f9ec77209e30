// Package fiducial estimates camera-relative poses of square fiducial markers and fuses markers
// that belong to the same rigid board into a single board pose.
//
// Frames follow the usual camera convention: z points out of the lens, x to the right and y down.
// A marker's local frame has its origin at the marker centre with the marker lying in its XY plane.
package fiducial

import (
	"context"
	"fmt"
	"image"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/fiducial/spatialmath"
)

// DefaultMarkerWidth is used when neither the configuration nor the detection gives a width.
const DefaultMarkerWidth = 1.0

var (
	// ErrPoseSolveFailed is returned for a single marker whose corners do not determine a pose.
	ErrPoseSolveFailed = errors.New("marker pose solve failed")
	// ErrAmbiguousMarkerAssignment is returned when a marker id is assigned to more than one board.
	ErrAmbiguousMarkerAssignment = errors.New("marker assigned to more than one board")
)

// Detection is a raw marker found in an image. Corners are pixels ordered top-left, top-right,
// bottom-right, bottom-left as seen on the printed marker. Width is optional, zero means unset.
type Detection struct {
	ID           int         `json:"id"`
	DictionaryID int         `json:"dictionary_id"`
	Corners      [4]r2.Point `json:"corners"`
	Width        float64     `json:"width,omitempty"`
}

// Observation is a detection whose width has been resolved and whose pose has been solved.
// Pose is nil when the solve failed, in which case SolveErr says why.
type Observation struct {
	ID                int               `json:"id"`
	DictionaryID      int               `json:"dictionary_id"`
	Corners           [4]r2.Point       `json:"corners"`
	Width             float64           `json:"width"`
	Pose              *spatialmath.Pose `json:"pose,omitempty"`
	ReprojectionError float64           `json:"reprojection_error,omitempty"`
	SolveErr          error             `json:"-"`
}

// Posed reports whether the observation has a pose.
func (o *Observation) Posed() bool {
	return o.Pose != nil
}

func (o *Observation) String() string {
	s := fmt.Sprintf("marker id=%d dict=%d w=%g corners=[", o.ID, o.DictionaryID, o.Width)
	for i, c := range o.Corners {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("(%.1f,%.1f)", c.X, c.Y)
	}
	s += "]"
	if o.Pose == nil {
		if o.SolveErr != nil {
			return s + " pose=none (" + o.SolveErr.Error() + ")"
		}
		return s + " pose=none"
	}
	return s + " pose=" + o.Pose.String()
}

// A Detector finds markers in an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// DetectorFunc adapts a function to a Detector.
type DetectorFunc func(ctx context.Context, img image.Image) ([]Detection, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	return f(ctx, img)
}
