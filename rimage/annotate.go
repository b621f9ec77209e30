package rimage

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/fiducial/rimage/transform"
	"go.viam.com/fiducial/spatialmath"
	"go.viam.com/fiducial/vision/fiducial"
)

var (
	posedColor  = color.NRGBA{0, 255, 0, 255}
	failedColor = color.NRGBA{255, 0, 0, 255}
	boardColor  = color.NRGBA{255, 200, 0, 255}
	labelColor  = color.NRGBA{255, 255, 255, 255}
	axisColors  = [3]color.Color{
		color.NRGBA{255, 0, 0, 255},
		color.NRGBA{0, 255, 0, 255},
		color.NRGBA{0, 0, 255, 255},
	}
)

// Annotator draws marker and board results on top of the frame they came from.
type Annotator struct {
	Model     *transform.PinholeCameraModel
	LineWidth float64
	FontSize  float64
}

// NewAnnotator returns an Annotator with default line and label sizes.
func NewAnnotator(model *transform.PinholeCameraModel) *Annotator {
	return &Annotator{Model: model, LineWidth: 2, FontSize: 14}
}

// Annotate returns a copy of img with every observation outlined and labelled, an axis triad on each
// posed marker and the bounds of each seen board.
func (a *Annotator) Annotate(img image.Image, res *fiducial.Result) image.Image {
	dc := gg.NewContextForImage(img)
	for _, obs := range res.Observations {
		a.drawObservation(dc, obs)
	}
	for _, board := range res.Boards {
		a.drawBoard(dc, board)
	}
	return dc.Image()
}

func (a *Annotator) drawObservation(dc *gg.Context, obs fiducial.Observation) {
	c := failedColor
	if obs.Pose != nil {
		c = posedColor
	}
	DrawPolygonEmpty(dc, obs.Corners[:], c, a.LineWidth)

	label := fmt.Sprintf("id=%d", obs.ID)
	if obs.Pose != nil {
		t := obs.Pose.Point()
		label += fmt.Sprintf(" t=(%.2f,%.2f,%.2f)", t.X, t.Y, t.Z)
		a.drawAxes(dc, *obs.Pose, obs.Width/2)
	}
	corner := obs.Corners[0]
	DrawString(dc, label, image.Point{X: int(corner.X), Y: int(corner.Y - 2*a.FontSize)}, labelColor, a.FontSize)
}

func (a *Annotator) drawBoard(dc *gg.Context, board fiducial.BoardResult) {
	if board.Bounds != nil && !board.Bounds.IsEmpty() {
		for _, edge := range board.Bounds.Edges(board.Pose) {
			a.drawSegment(dc, edge[0], edge[1], boardColor)
		}
	}
	a.drawAxes(dc, board.Pose, a.axisLength(board))
	if origin, ok := a.project(board.Pose.Point()); ok {
		DrawString(dc, board.Name, image.Point{X: int(origin.X), Y: int(origin.Y)}, boardColor, a.FontSize)
	}
}

func (a *Annotator) axisLength(board fiducial.BoardResult) float64 {
	if board.Bounds != nil && !board.Bounds.IsEmpty() {
		dims := board.Bounds.Dims()
		return dims.Norm() / 4
	}
	return 0.1
}

// drawAxes draws the x, y and z axes of pose in red, green and blue.
func (a *Annotator) drawAxes(dc *gg.Context, pose spatialmath.Pose, length float64) {
	origin := pose.Point()
	for i, dir := range []r3.Vector{{X: length}, {Y: length}, {Z: length}} {
		a.drawSegment(dc, origin, spatialmath.TransformPoint(pose, dir), axisColors[i])
	}
}

func (a *Annotator) drawSegment(dc *gg.Context, from, to r3.Vector, c color.Color) {
	p0, ok0 := a.project(from)
	p1, ok1 := a.project(to)
	if ok0 && ok1 {
		DrawLine(dc, p0, p1, c, a.LineWidth)
	}
}

// project maps a camera-frame point into the raw image, skipping points behind the camera.
func (a *Annotator) project(p r3.Vector) (r2.Point, bool) {
	if p.Z <= 0 {
		return r2.Point{}, false
	}
	px, err := a.Model.ProjectDistorted(p)
	if err != nil {
		return r2.Point{}, false
	}
	return px, true
}
