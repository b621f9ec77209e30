package spatialmath

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/fiducial/utils"
)

// EulerAngles are three angles in radians following the camera frame convention: z forward,
// y down, x right. The rotation is applied as yaw about y, then pitch about x, then roll about z,
// i.e. R = Ry(yaw)·Rx(pitch)·Rz(roll).
type EulerAngles struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// NewEulerAngles creates an empty EulerAngles struct.
func NewEulerAngles() *EulerAngles {
	return &EulerAngles{}
}

// ParseEulerAngles reads "yaw,pitch,roll" in degrees.
func ParseEulerAngles(s string) (*EulerAngles, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return nil, errors.Errorf("expected yaw,pitch,roll but got %q", s)
	}
	var vals [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad euler angle %q", f)
		}
		vals[i] = utils.DegToRad(v)
	}
	return &EulerAngles{Yaw: vals[0], Pitch: vals[1], Roll: vals[2]}, nil
}

// EulerAngles returns orientation in Euler angle representation.
func (ea *EulerAngles) EulerAngles() *EulerAngles {
	return ea
}

// Quaternion returns orientation in quaternion representation.
func (ea *EulerAngles) Quaternion() quat.Number {
	qy := QuatFromAxisAngle(r3.Vector{Y: 1}, ea.Yaw)
	qx := QuatFromAxisAngle(r3.Vector{X: 1}, ea.Pitch)
	qz := QuatFromAxisAngle(r3.Vector{Z: 1}, ea.Roll)
	return normalizeQuat(quat.Mul(quat.Mul(qy, qx), qz))
}

// AxisAngles returns the orientation in axis angle representation.
func (ea *EulerAngles) AxisAngles() *R4AA {
	aa := QuatToR4AA(ea.Quaternion())
	return &aa
}

// RotationMatrix returns the orientation in rotation matrix representation.
func (ea *EulerAngles) RotationMatrix() *RotationMatrix {
	return QuatToRotationMatrix(ea.Quaternion())
}

func (ea *EulerAngles) String() string {
	return fmt.Sprintf("%.2f,%.2f,%.2f", utils.RadToDeg(ea.Yaw), utils.RadToDeg(ea.Pitch), utils.RadToDeg(ea.Roll))
}

// QuatToEulerAngles converts a quaternion to the yaw, pitch, roll decomposition of EulerAngles.
func QuatToEulerAngles(q quat.Number) *EulerAngles {
	rm := QuatToRotationMatrix(q)
	sinPitch := -rm.At(1, 2)
	sinPitch = math.Max(-1, math.Min(1, sinPitch))
	pitch := math.Asin(sinPitch)

	// gimbal lock, roll and yaw share an axis so fold everything into yaw
	if math.Abs(sinPitch) > 1-1e-9 {
		return &EulerAngles{Yaw: math.Atan2(-rm.At(2, 0), rm.At(0, 0)), Pitch: pitch}
	}
	return &EulerAngles{
		Yaw:   math.Atan2(rm.At(0, 2), rm.At(2, 2)),
		Pitch: pitch,
		Roll:  math.Atan2(rm.At(1, 0), rm.At(1, 1)),
	}
}
