package transform

import (
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	fmath "go.viam.com/fiducial/utils"
)

// ErrInvalidCameraModel is returned when the camera matrix cannot be inverted or the image size is empty.
var ErrInvalidCameraModel = errors.New("invalid camera model")

// ErrUnsupportedSkew is returned for a camera matrix with a non-zero skew term. The model has no skew
// parameter, so such a calibration is usable in principle but cannot be represented.
var ErrUnsupportedSkew = errors.New("camera matrix skew is not supported")

// PinholeCameraModel is the model of a pinhole camera with lens distortion. It is immutable once
// loaded and may be shared by any number of readers.
type PinholeCameraModel struct {
	*PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion               *BrownConrady `json:"distortion_parameters,omitempty"`
}

// Lens summarizes the optics of a camera model. Angles are in degrees.
type Lens struct {
	Fx      float64 `json:"fx"`
	Fy      float64 `json:"fy"`
	Cx      float64 `json:"cx"`
	Cy      float64 `json:"cy"`
	FovH    float64 `json:"fov_h"`
	FovV    float64 `json:"fov_v"`
	FovDiag float64 `json:"fov_diag"`
}

// NewPinholeCameraModelFromMatrix builds a camera model from a row-major 3x3 camera matrix, the
// distortion parameters k1, k2, p1, p2, k3 and the image size. A matrix with a non-zero skew term
// gives ErrUnsupportedSkew.
func NewPinholeCameraModelFromMatrix(k, d []float64, width, height int) (*PinholeCameraModel, error) {
	if len(k) != 9 {
		return nil, errors.Wrapf(ErrInvalidCameraModel, "camera matrix needs 9 values, got %d", len(k))
	}
	if k[1] != 0 {
		return nil, errors.Wrapf(ErrUnsupportedSkew, "skew %v in camera matrix %v", k[1], k)
	}
	if k[3] != 0 || k[6] != 0 || k[7] != 0 || k[8] != 1 {
		return nil, errors.Wrapf(ErrInvalidCameraModel, "camera matrix %v is not of the form [fx 0 cx 0 fy cy 0 0 1]", k)
	}
	dist, err := NewBrownConrady(d)
	if err != nil {
		return nil, err
	}
	model := &PinholeCameraModel{
		PinholeCameraIntrinsics: &PinholeCameraIntrinsics{
			Width:  width,
			Height: height,
			Fx:     k[0],
			Fy:     k[4],
			Ppx:    k[2],
			Ppy:    k[5],
		},
		Distortion: dist,
	}
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	return model, nil
}

// NewPinholeCameraModelFromJSONFile reads a camera model from a JSON calibration file.
func NewPinholeCameraModelFromJSONFile(jsonPath string) (*PinholeCameraModel, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	return ReadPinholeCameraModel(jsonFile)
}

// ReadPinholeCameraModel decodes and validates a camera model.
func ReadPinholeCameraModel(r io.Reader) (*PinholeCameraModel, error) {
	byteValue, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	model := &PinholeCameraModel{}
	if err := json.Unmarshal(byteValue, model); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	return model, nil
}

// cameraModelJSON accepts both the named field layout and the raw K/D/size layout.
type cameraModelJSON struct {
	Intrinsics *PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion *BrownConrady            `json:"distortion_parameters"`
	K          []float64                `json:"K"`
	D          []float64                `json:"D"`
	Size       []int                    `json:"size"`
}

// UnmarshalJSON decodes either layout of a camera model.
func (params *PinholeCameraModel) UnmarshalJSON(data []byte) error {
	var raw cameraModelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Intrinsics != nil {
		params.PinholeCameraIntrinsics = raw.Intrinsics
		params.Distortion = raw.Distortion
		return nil
	}
	if raw.K == nil {
		return errors.New("camera model needs either intrinsic_parameters or K")
	}
	if len(raw.Size) != 2 {
		return errors.Errorf("camera model size needs [width, height], got %v", raw.Size)
	}
	model, err := NewPinholeCameraModelFromMatrix(raw.K, raw.D, raw.Size[0], raw.Size[1])
	if err != nil {
		return err
	}
	*params = *model
	return nil
}

// CheckValid returns an error wrapping ErrInvalidCameraModel if the camera matrix is singular or the
// distortion parameters are unusable.
func (params *PinholeCameraModel) CheckValid() error {
	if params == nil {
		return errors.Wrap(ErrInvalidCameraModel, "camera model is nil")
	}
	if err := params.PinholeCameraIntrinsics.CheckValid(); err != nil {
		return errors.Wrap(ErrInvalidCameraModel, err.Error())
	}
	if params.Distortion != nil {
		if err := params.Distortion.CheckValid(); err != nil {
			return errors.Wrap(ErrInvalidCameraModel, err.Error())
		}
	}
	return nil
}

// Project maps a camera-frame point to a pixel ignoring lens distortion.
func (params *PinholeCameraModel) Project(p r3.Vector) (r2.Point, error) {
	if err := params.CheckValid(); err != nil {
		return r2.Point{}, err
	}
	if p.Z == 0 {
		return r2.Point{}, errors.Errorf("cannot project point %v with zero depth", p)
	}
	x, y := params.PointToPixel(p.X, p.Y, p.Z)
	return r2.Point{X: x, Y: y}, nil
}

// ProjectDistorted maps a camera-frame point to the pixel it appears at in the raw image.
func (params *PinholeCameraModel) ProjectDistorted(p r3.Vector) (r2.Point, error) {
	if err := params.CheckValid(); err != nil {
		return r2.Point{}, err
	}
	if p.Z == 0 {
		return r2.Point{}, errors.Errorf("cannot project point %v with zero depth", p)
	}
	x, y := params.Distortion.Transform(p.X/p.Z, p.Y/p.Z)
	return params.denormalize(r2.Point{X: x, Y: y}), nil
}

// ProjectToPlane maps a pixel to the ray direction that hits the z=1 focal plane.
func (params *PinholeCameraModel) ProjectToPlane(px r2.Point) (r3.Vector, error) {
	if err := params.CheckValid(); err != nil {
		return r3.Vector{}, err
	}
	pt := params.normalize(px)
	return r3.Vector{X: pt.X, Y: pt.Y, Z: 1}, nil
}

// UndistortNormalized removes lens distortion from pixels and returns their z=1 focal plane coordinates.
func (params *PinholeCameraModel) UndistortNormalized(pts []r2.Point) ([]r2.Point, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	inv := params.Distortion.Inverse()
	out := make([]r2.Point, len(pts))
	for i, px := range pts {
		pt := params.normalize(px)
		x, y := inv.Transform(pt.X, pt.Y)
		out[i] = r2.Point{X: x, Y: y}
	}
	return out, nil
}

// Undistort removes lens distortion from pixels. The result has the same length and order as the input.
func (params *PinholeCameraModel) Undistort(pts []r2.Point) ([]r2.Point, error) {
	normalized, err := params.UndistortNormalized(pts)
	if err != nil {
		return nil, err
	}
	for i, pt := range normalized {
		normalized[i] = params.denormalize(pt)
	}
	return normalized, nil
}

// Distort applies lens distortion to ideal pixels.
func (params *PinholeCameraModel) Distort(pts []r2.Point) ([]r2.Point, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	out := make([]r2.Point, len(pts))
	for i, px := range pts {
		pt := params.normalize(px)
		x, y := params.Distortion.Transform(pt.X, pt.Y)
		out[i] = params.denormalize(r2.Point{X: x, Y: y})
	}
	return out, nil
}

// Lens returns the focal lengths, principal point and fields of view of the model.
func (params *PinholeCameraModel) Lens() (Lens, error) {
	if err := params.CheckValid(); err != nil {
		return Lens{}, err
	}
	w, h := float64(params.Width), float64(params.Height)
	fovH := 2 * math.Atan2(w, 2*params.Fx)
	fovV := 2 * math.Atan2(h, 2*params.Fy)
	// diagonal through normalized half extents
	hx, hy := w/(2*params.Fx), h/(2*params.Fy)
	fovDiag := 2 * math.Atan(math.Hypot(hx, hy))
	return Lens{
		Fx:      params.Fx,
		Fy:      params.Fy,
		Cx:      params.Ppx,
		Cy:      params.Ppy,
		FovH:    fmath.RadToDeg(fovH),
		FovV:    fmath.RadToDeg(fovV),
		FovDiag: fmath.RadToDeg(fovDiag),
	}, nil
}
