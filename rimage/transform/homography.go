package transform

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// rankTolerance is the smallest ratio of the last to the first singular value of the DLT system
// for which the homography is considered determined.
const rankTolerance = 1e-10

// Homography is a 3x3 projective map between two planes, stored row-major.
type Homography [9]float64

// NewHomography creates a homography from 9 row-major values.
func NewHomography(vals []float64) (*Homography, error) {
	if len(vals) != 9 {
		return nil, errors.Errorf("input slice has %d values, need exactly 9", len(vals))
	}
	var h Homography
	copy(h[:], vals)
	return &h, nil
}

// At returns the value of the homography at the given row and column.
func (h *Homography) At(row, col int) float64 {
	return h[3*row+col]
}

// Dense returns the homography as a gonum matrix.
func (h *Homography) Dense() *mat.Dense {
	vals := make([]float64, 9)
	copy(vals, h[:])
	return mat.NewDense(3, 3, vals)
}

// Apply maps a point through the homography. The second return is false when the point maps to infinity.
func (h *Homography) Apply(pt r2.Point) (r2.Point, bool) {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	z := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	if math.Abs(z) < 1e-15 {
		return r2.Point{}, false
	}
	return r2.Point{X: x / z, Y: y / z}, true
}

// Inverse returns the homography mapping in the other direction.
func (h *Homography) Inverse() (*Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.Dense()); err != nil {
		return nil, errors.Wrap(err, "homography is not invertible")
	}
	return homographyFromDense(&inv), nil
}

func (h *Homography) String() string {
	return fmt.Sprintf("[[%.6g %.6g %.6g] [%.6g %.6g %.6g] [%.6g %.6g %.6g]]",
		h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], h[8])
}

func homographyFromDense(m mat.Matrix) *Homography {
	var h Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h[3*i+j] = m.At(i, j)
		}
	}
	return &h
}

// EstimatePlanarHomography computes the homography mapping src onto dst with the normalized direct linear
// transform. At least 4 correspondences are needed; an underdetermined system is an error.
func EstimatePlanarHomography(src, dst []r2.Point) (*Homography, error) {
	if len(src) != len(dst) {
		return nil, errors.Errorf("point sets have different sizes %d and %d", len(src), len(dst))
	}
	if len(src) < 4 {
		return nil, errors.Errorf("need at least 4 correspondences, got %d", len(src))
	}
	srcN, t1 := normalizePoints(src)
	dstN, t2 := normalizePoints(dst)

	a := mat.NewDense(2*len(src), 9, nil)
	for i := range srcN {
		x, y := srcN[i].X, srcN[i].Y
		u, v := dstN[i].X, dstN[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}
	mats := performSVD(a)
	if mats == nil {
		return nil, errors.New("homography SVD did not converge")
	}
	// the solution is one dimensional only if the 8 leading singular values are non zero
	if mats.Values[7] <= rankTolerance*mats.Values[0] {
		return nil, errors.New("homography is underdetermined by the given points")
	}
	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, mats.V.At(i, 8))
	}

	// hn has unit norm so its determinant is scale free
	if math.Abs(mat.Det(hn)) < 1e-9 {
		return nil, errors.New("homography is singular")
	}

	// H = T2^-1 * Hn * T1
	var t2Inv, h mat.Dense
	if err := t2Inv.Inverse(t2); err != nil {
		return nil, errors.Wrap(err, "degenerate destination points")
	}
	h.Mul(&t2Inv, hn)
	h.Mul(&h, t1)
	if s := h.At(2, 2); math.Abs(s) > 1e-15 {
		h.Scale(1/s, &h)
	}
	return homographyFromDense(&h), nil
}
