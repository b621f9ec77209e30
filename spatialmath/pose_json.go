package spatialmath

import (
	"encoding/json"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

type vectorJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type quatJSON struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type poseJSON struct {
	Translation vectorJSON `json:"translation"`
	Quaternion  quatJSON   `json:"quaternion"`
	// Euler is informational only and ignored when decoding.
	Euler string `json:"euler_deg,omitempty"`
}

// MarshalJSON encodes the pose as a translation and a unit quaternion.
func (p Pose) MarshalJSON() ([]byte, error) {
	q := p.quat()
	return json.Marshal(poseJSON{
		Translation: vectorJSON{p.point.X, p.point.Y, p.point.Z},
		Quaternion:  quatJSON{q.Real, q.Imag, q.Jmag, q.Kmag},
		Euler:       QuatToEulerAngles(q).String(),
	})
}

// UnmarshalJSON decodes a pose written by MarshalJSON.
func (p *Pose) UnmarshalJSON(data []byte) error {
	var raw poseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NewPoseFromQuaternion(
		r3.Vector{X: raw.Translation.X, Y: raw.Translation.Y, Z: raw.Translation.Z},
		quat.Number{Real: raw.Quaternion.W, Imag: raw.Quaternion.X, Jmag: raw.Quaternion.Y, Kmag: raw.Quaternion.Z},
	)
	return nil
}
