//go:build no_cgo

package aruco

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"go.viam.com/fiducial/vision/fiducial"
)

var errNoCgo = errors.New("marker detection needs OpenCV and is unavailable in no_cgo builds")

// Detector is unavailable without cgo.
type Detector struct{}

// NewDetector always fails without cgo.
func NewDetector(dictionaryID int) (*Detector, error) {
	return nil, errNoCgo
}

// Detect always fails without cgo.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]fiducial.Detection, error) {
	return nil, errNoCgo
}

// Close does nothing.
func (d *Detector) Close() error {
	return nil
}
