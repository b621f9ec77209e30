package fiducial

import (
	"context"
	"image"
	"math"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/fiducial/logging"
	"go.viam.com/fiducial/rimage/transform"
	"go.viam.com/fiducial/spatialmath"
)

// PoseEstimator turns frames into marker and board poses. It processes one frame at a time and is
// not safe for concurrent use; the camera model and config it holds are never modified.
type PoseEstimator struct {
	model    *transform.PinholeCameraModel
	cfg      *MarkerConfig
	detector Detector
	logger   logging.Logger
}

// NewPoseEstimator checks the camera model and marker config and returns an estimator using them.
// The config is copied. A nil config means no width groups and no boards; a nil detector limits
// the estimator to Process.
func NewPoseEstimator(
	model *transform.PinholeCameraModel,
	cfg *MarkerConfig,
	detector Detector,
	logger logging.Logger,
) (*PoseEstimator, error) {
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &MarkerConfig{DictionaryID: DefaultDictionaryID}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewBlankLogger("fiducial")
	}
	return &PoseEstimator{
		model:    model,
		cfg:      cfg.Clone(),
		detector: detector,
		logger:   logger,
	}, nil
}

// Config returns a copy of the marker config in use.
func (pe *PoseEstimator) Config() *MarkerConfig {
	return pe.cfg.Clone()
}

// CameraModel returns the camera model in use. It must not be modified.
func (pe *PoseEstimator) CameraModel() *transform.PinholeCameraModel {
	return pe.model
}

// OnImg detects markers in img and estimates their poses and the poses of the boards they are on.
// Only a failing detector makes the frame fail; markers whose pose cannot be solved are reported
// without a pose.
func (pe *PoseEstimator) OnImg(ctx context.Context, img image.Image) (*Result, error) {
	if pe.detector == nil {
		return nil, errors.New("pose estimator has no marker detector")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	detections, err := pe.detector.Detect(ctx, img)
	if err != nil {
		return nil, errors.Wrap(err, "marker detection failed")
	}
	return pe.Process(detections), nil
}

// Process estimates poses for markers that were already detected.
func (pe *PoseEstimator) Process(detections []Detection) *Result {
	res := &Result{Observations: make([]Observation, 0, len(detections))}
	for _, det := range detections {
		obs := Observation{
			ID:           det.ID,
			DictionaryID: det.DictionaryID,
			Corners:      det.Corners,
			Width:        pe.cfg.ResolveWidth(det.ID, det.Width),
		}
		sol, err := SolveMarkerPose(pe.model, det.Corners, obs.Width)
		if err != nil {
			obs.SolveErr = err
			pe.logger.Debugw("marker pose solve failed", "id", det.ID, "error", err)
		} else {
			pose := sol.Pose
			obs.Pose = &pose
			obs.ReprojectionError = sol.ReprojectionError
		}
		res.Observations = append(res.Observations, obs)
	}
	res.Boards = pe.fuseBoards(res.Observations)
	pe.logger.Debugw("processed frame",
		"markers", len(res.Observations),
		"posed", len(res.Posed()),
		"boards", len(res.Boards))
	return res
}

// fuseBoards averages the board origin implied by every posed member marker. Boards are reported
// in config order and only when at least one member was posed.
func (pe *PoseEstimator) fuseBoards(observations []Observation) []BoardResult {
	members := make([][]*Observation, len(pe.cfg.Boards))
	for i := range observations {
		obs := &observations[i]
		if obs.Pose == nil {
			continue
		}
		if bi, _, ok := pe.cfg.BoardFor(obs.ID); ok {
			members[bi] = append(members[bi], obs)
		}
	}

	boards := []BoardResult{}
	for bi, board := range pe.cfg.Boards {
		if len(members[bi]) == 0 {
			continue
		}
		estimates := make([]spatialmath.Pose, 0, len(members[bi]))
		for _, obs := range members[bi] {
			_, mark, _ := pe.cfg.BoardFor(obs.ID)
			estimates = append(estimates, spatialmath.Compose(*obs.Pose, spatialmath.PoseInverse(markOffset(mark))))
		}
		fused, err := spatialmath.AveragePoses(estimates, nil)
		if err != nil {
			// only reachable with non-finite member poses
			pe.logger.Warnw("board fusion failed", "board", board.Name, "error", err)
			continue
		}
		result := BoardResult{
			Name:        board.Name,
			Pose:        fused,
			MemberCount: len(estimates),
			MemberIDs:   lo.Map(members[bi], func(o *Observation, _ int) int { return o.ID }),
			Spread:      spread(fused, estimates),
		}
		if board.Bounds != nil {
			bounds := *board.Bounds
			result.Bounds = &bounds
		}
		boards = append(boards, result)
	}
	return boards
}

// markOffset is the pose of a marker in its board's frame.
func markOffset(mark Mark) spatialmath.Pose {
	return spatialmath.NewPoseFromPoint(r3.Vector{X: mark.Position[0], Y: mark.Position[1]})
}

// spread is the RMS distance between the fused board origin and each member's estimate of it.
func spread(fused spatialmath.Pose, estimates []spatialmath.Pose) float64 {
	squared := lo.Map(estimates, func(p spatialmath.Pose, _ int) float64 {
		return p.Point().Sub(fused.Point()).Norm2()
	})
	mean, err := stats.Mean(squared)
	if err != nil {
		return 0
	}
	return math.Sqrt(mean)
}
