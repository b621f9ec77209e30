//go:build !no_cgo

package aruco

import (
	"context"
	"image"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"go.viam.com/fiducial/vision/fiducial"
)

// Detector finds markers of a single dictionary. It is safe for concurrent use.
type Detector struct {
	mu           sync.Mutex
	dictionaryID int
	detector     gocv.ArucoDetector
	closed       bool
}

// NewDetector creates a detector for the given predefined dictionary id.
func NewDetector(dictionaryID int) (*Detector, error) {
	if _, ok := DictionaryName(dictionaryID); !ok {
		return nil, errors.Errorf("unknown dictionary id %d", dictionaryID)
	}
	dict := gocv.GetPredefinedDictionary(gocv.ArucoDictionaryCode(dictionaryID))
	params := gocv.NewArucoDetectorParameters()
	return &Detector{
		dictionaryID: dictionaryID,
		detector:     gocv.NewArucoDetectorWithParams(dict, params),
	}, nil
}

// Detect returns the markers found in img with corners in the order OpenCV reports them.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]fiducial.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "cannot convert image for marker detection")
	}
	defer mat.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("detector is closed")
	}
	corners, ids, _ := d.detector.DetectMarkers(mat)
	if len(corners) != len(ids) {
		return nil, errors.Errorf("detector returned %d corner sets for %d ids", len(corners), len(ids))
	}
	detections := make([]fiducial.Detection, 0, len(ids))
	for i, id := range ids {
		if len(corners[i]) != 4 {
			continue
		}
		det := fiducial.Detection{ID: id, DictionaryID: d.dictionaryID}
		for j, c := range corners[i] {
			det.Corners[j] = r2.Point{X: float64(c.X), Y: float64(c.Y)}
		}
		detections = append(detections, det)
	}
	return detections, nil
}

// Close releases the OpenCV detector.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.detector.Close()
}
