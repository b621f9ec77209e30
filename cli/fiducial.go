package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/fiducial/logging"
	"go.viam.com/fiducial/rimage"
	"go.viam.com/fiducial/rimage/transform"
	"go.viam.com/fiducial/rimage/videosource"
	"go.viam.com/fiducial/vision/fiducial"
	"go.viam.com/fiducial/vision/fiducial/aruco"
)

const logFileMaxSizeMB = 100

// newDetector is replaced in tests to run without OpenCV.
var newDetector = func(dictionaryID int) (fiducial.Detector, io.Closer, error) {
	det, err := aruco.NewDetector(dictionaryID)
	if err != nil {
		return nil, nil, err
	}
	return det, det, nil
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// newLogger builds the command logger. Logs go to ErrWriter so that Writer carries only results.
func newLogger(c *cli.Context) (logging.Logger, func()) {
	logger := logging.NewBlankLogger("fiducial")
	logger.SetLevel(logging.INFO)
	if c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))

	path := c.String(generalFlagLogFile)
	if path == "" {
		return logger, func() {}
	}
	appender, closer := logging.NewFileAppender(path, logFileMaxSizeMB)
	logger.AddAppender(appender)
	return logger, func() {
		utils.UncheckedError(logger.Sync())
		utils.UncheckedError(closer.Close())
	}
}

func inputPath(c *cli.Context) (string, error) {
	if c.Args().Len() != 1 {
		return "", errors.Errorf("expected one image or video file, got %d arguments", c.Args().Len())
	}
	return c.Args().First(), nil
}

func loadConfig(c *cli.Context, logger logging.Logger) (*fiducial.MarkerConfig, error) {
	path := c.String(poseFlagConfig)
	if path == "" {
		return &fiducial.MarkerConfig{DictionaryID: fiducial.DefaultDictionaryID}, nil
	}
	cfg, err := fiducial.LoadMarkerConfig(path)
	if err != nil {
		return nil, err
	}
	logger.Infow("loaded marker config", "path", path, "width_groups", len(cfg.WidthGroups), "boards", len(cfg.Boards))
	return cfg, nil
}

// resolveDictionary prefers the flag, then the config's dictionary name, then its id.
func resolveDictionary(c *cli.Context, cfg *fiducial.MarkerConfig) (int, error) {
	if name := c.String(poseFlagDictionary); name != "" {
		return aruco.ParseDictionary(name)
	}
	if cfg.Dictionary != "" {
		return aruco.ParseDictionary(cfg.Dictionary)
	}
	return cfg.DictionaryID, nil
}

// openFrames opens the input with the rotate and skip flags applied. fps is zero for images.
func openFrames(c *cli.Context, path string) (videosource.Source, float64, error) {
	src, err := videosource.Open(path)
	if err != nil {
		return nil, 0, err
	}
	var fps float64
	skip := c.Int(poseFlagSkipFrames)
	if skip < 0 {
		utils.UncheckedError(src.Close())
		return nil, 0, errors.Errorf("--%s must not be negative", poseFlagSkipFrames)
	}
	if vs, ok := src.(*videosource.VideoFileSource); ok {
		fps = vs.FPS() / float64(skip+1)
	}
	if skip > 0 {
		src = &videosource.SkipSource{Original: src, Skip: skip}
	}
	if deg := c.Float64(poseFlagRotate); deg != 0 {
		src = &videosource.RotateSource{Original: src, Degrees: deg}
	}
	return src, fps, nil
}

// eachFrame calls fn with every frame of src and its index in the input.
func eachFrame(ctx context.Context, src videosource.Source, stride int, fn func(frame int, img image.Image) error) error {
	for n := 0; ; n++ {
		img, release, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		err = fn(n*stride, img)
		release()
		if err != nil {
			return err
		}
	}
}

func formatCorners(corners [4]r2.Point) string {
	return "[" + strings.Join(lo.Map(corners[:], func(p r2.Point, _ int) string {
		return fmt.Sprintf("(%.1f,%.1f)", p.X, p.Y)
	}), " ") + "]"
}

// DetectAction lists the markers found in every frame of the input.
func DetectAction(c *cli.Context) error {
	logger, cleanup := newLogger(c)
	defer cleanup()

	path, err := inputPath(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	dictID, err := resolveDictionary(c, cfg)
	if err != nil {
		return err
	}
	detector, closer, err := newDetector(dictID)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(closer.Close)

	src, _, err := openFrames(c, path)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(src.Close)

	total := 0
	err = eachFrame(c.Context, src, c.Int(poseFlagSkipFrames)+1, func(frame int, img image.Image) error {
		detections, err := detector.Detect(c.Context, img)
		if err != nil {
			return errors.Wrapf(err, "frame %d", frame)
		}
		total += len(detections)
		printf(c.App.Writer, "frame %d: %d markers", frame, len(detections))
		for _, det := range detections {
			printf(c.App.Writer, "\tid=%d dict=%d corners=%s", det.ID, det.DictionaryID, formatCorners(det.Corners))
		}
		return nil
	})
	logger.Debugw("detection finished", "input", path, "markers", total)
	return err
}

// frameOutput is one line of pose output.
type frameOutput struct {
	Frame int `json:"frame"`
	*fiducial.Result
	Nearest string `json:"nearest,omitempty"`
}

// PoseAction estimates marker and board poses in every frame and prints one JSON line per frame.
func PoseAction(c *cli.Context) error {
	logger, cleanup := newLogger(c)
	defer cleanup()

	path, err := inputPath(c)
	if err != nil {
		return err
	}
	model, err := transform.NewPinholeCameraModelFromJSONFile(c.String(poseFlagCamera))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	reference := c.String(poseFlagReference)
	if reference != "" && !lo.ContainsBy(cfg.Boards, func(b fiducial.BoardConfig) bool { return b.Name == reference }) {
		return errors.Errorf("reference board %q is not in the marker config", reference)
	}
	dictID, err := resolveDictionary(c, cfg)
	if err != nil {
		return err
	}
	detector, closer, err := newDetector(dictID)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(closer.Close)

	estimator, err := fiducial.NewPoseEstimator(model, cfg, detector, logger.Sublogger("estimator"))
	if err != nil {
		return err
	}

	src, fps, err := openFrames(c, path)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(src.Close)

	sink, err := newSink(c.String(poseFlagOutDir), path, fps)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(sink.Close)
	annotator := rimage.NewAnnotator(model)

	enc := json.NewEncoder(c.App.Writer)
	frames := 0
	err = eachFrame(c.Context, src, c.Int(poseFlagSkipFrames)+1, func(frame int, img image.Image) error {
		res, err := estimator.OnImg(c.Context, img)
		if err != nil {
			return errors.Wrapf(err, "frame %d", frame)
		}
		frames++
		out := frameOutput{Frame: frame, Result: res}
		if reference != "" {
			if nearest, ok := res.NearestOtherBoard(reference); ok {
				out.Nearest = nearest.Name
			}
		}
		for _, obs := range res.Failed() {
			logger.Debugf("frame %d: %s", frame, obs.String())
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
		return sink.Write(c.Context, annotator.Annotate(img, res))
	})
	logger.Infow("pose estimation finished", "input", path, "frames", frames)
	return err
}

type discardSink struct{}

func (discardSink) Write(ctx context.Context, img image.Image) error { return nil }

func (discardSink) Close() error { return nil }

// newSink picks where annotated frames go: nowhere without an output directory, numbered images for
// image input, and a video for video input.
func newSink(outDir, input string, fps float64) (videosource.Sink, error) {
	if outDir == "" {
		return discardSink{}, nil
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, errors.Wrap(err, "cannot create output directory")
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if fps == 0 {
		return &videosource.ImageDirSink{Dir: outDir, Prefix: base + "_pose"}, nil
	}
	return &videosource.VideoFileSink{Path: filepath.Join(outDir, base+"_pose.avi"), FPS: fps}, nil
}

// LensAction prints the lens summary of a camera model.
func LensAction(c *cli.Context) error {
	model, err := transform.NewPinholeCameraModelFromJSONFile(c.String(poseFlagCamera))
	if err != nil {
		return err
	}
	lens, err := model.Lens()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "size:      %dx%d", model.Width, model.Height)
	printf(c.App.Writer, "focal:     fx=%.2f fy=%.2f", lens.Fx, lens.Fy)
	printf(c.App.Writer, "principal: cx=%.2f cy=%.2f", lens.Cx, lens.Cy)
	printf(c.App.Writer, "fov:       h=%.2f v=%.2f diag=%.2f deg", lens.FovH, lens.FovV, lens.FovDiag)
	return nil
}

// SchemaAction prints the marker config JSON schema.
func SchemaAction(c *cli.Context) error {
	data, err := json.MarshalIndent(fiducial.JSONSchema(), "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", data)
	return nil
}
