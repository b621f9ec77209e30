package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/fiducial/rimage"
	"go.viam.com/fiducial/rimage/transform"
	"go.viam.com/fiducial/spatialmath"
	"go.viam.com/fiducial/vision/fiducial"
)

const (
	testCamera = `{"K": [800, 0, 640, 0, 800, 360, 0, 0, 1], "D": [0, 0, 0, 0, 0], "size": [1280, 720]}`
	testConfig = `{
		"dictionary": "DICT_5X5_250",
		"width_groups": [{"ids": [1, 2], "width": 0.1}],
		"boards": [
			{"name": "table", "marks": [{"id": 1, "position": [0, 0]}, {"id": 2, "position": [0.4, 0]}]},
			{"name": "door", "marks": [{"id": 20, "width": 0.2, "position": [0, 0]}]}
		]
	}`
)

type testFiles struct {
	dir, camera, config, image string
}

func writeTestFiles(t *testing.T) testFiles {
	t.Helper()
	dir := t.TempDir()
	files := testFiles{
		dir:    dir,
		camera: filepath.Join(dir, "camera.json"),
		config: filepath.Join(dir, "markers.json"),
		image:  filepath.Join(dir, "scene.png"),
	}
	test.That(t, os.WriteFile(files.camera, []byte(testCamera), 0o600), test.ShouldBeNil)
	test.That(t, os.WriteFile(files.config, []byte(testConfig), 0o600), test.ShouldBeNil)
	test.That(t, rimage.WriteImageToFile(files.image, image.NewNRGBA(image.Rect(0, 0, 128, 72))), test.ShouldBeNil)
	return files
}

func facingCamera(point r3.Vector) spatialmath.Pose {
	return spatialmath.NewPose(point, &spatialmath.R4AA{Theta: math.Pi, RX: 1})
}

var tablePose = facingCamera(r3.Vector{Y: 0.1, Z: 2})

// useSyntheticDetector makes every frame show markers 1 and 2 of the table and marker 20 of the door.
func useSyntheticDetector(t *testing.T) *int {
	t.Helper()
	model, err := transform.NewPinholeCameraModelFromMatrix(
		[]float64{800, 0, 640, 0, 800, 360, 0, 0, 1}, nil, 1280, 720)
	test.That(t, err, test.ShouldBeNil)

	project := func(id int, pose spatialmath.Pose, width float64) fiducial.Detection {
		det := fiducial.Detection{ID: id, DictionaryID: fiducial.DefaultDictionaryID}
		for i, c := range fiducial.MarkerCorners(width) {
			px, err := model.Project(spatialmath.TransformPoint(pose, c))
			test.That(t, err, test.ShouldBeNil)
			det.Corners[i] = px
		}
		return det
	}
	detections := []fiducial.Detection{
		project(1, tablePose, 0.1),
		project(2, spatialmath.Compose(tablePose, spatialmath.NewPoseFromPoint(r3.Vector{X: 0.4})), 0.1),
		project(20, facingCamera(r3.Vector{X: -0.5, Z: 3}), 0.2),
	}

	requested := -1
	orig := newDetector
	newDetector = func(dictionaryID int) (fiducial.Detector, io.Closer, error) {
		requested = dictionaryID
		return fiducial.DetectorFunc(func(ctx context.Context, img image.Image) ([]fiducial.Detection, error) {
			return append([]fiducial.Detection(nil), detections...), nil
		}), io.NopCloser(nil), nil
	}
	t.Cleanup(func() { newDetector = orig })
	return &requested
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(&out, &errOut)
	err := app.Run(append([]string{"fiducial"}, args...))
	return out.String(), err
}

type poseLine struct {
	Frame  int `json:"frame"`
	Boards []struct {
		Name        string `json:"name"`
		MemberCount int    `json:"member_count"`
		Pose        struct {
			Translation struct {
				X, Y, Z float64
			} `json:"translation"`
		} `json:"pose"`
	} `json:"boards"`
	Observations []struct {
		ID    int             `json:"id"`
		Width float64         `json:"width"`
		Pose  json.RawMessage `json:"pose"`
	} `json:"observations"`
	Nearest string `json:"nearest"`
}

func TestPoseAction(t *testing.T) {
	files := writeTestFiles(t)
	requested := useSyntheticDetector(t)
	outDir := filepath.Join(files.dir, "out")
	logFile := filepath.Join(files.dir, "fiducial.log")

	out, err := runApp(t,
		"--log-file", logFile,
		"pose",
		"--camera", files.camera,
		"--config", files.config,
		"--out-dir", outDir,
		"--reference", "table",
		files.image,
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *requested, test.ShouldEqual, 6)

	scanner := bufio.NewScanner(bytes.NewBufferString(out))
	var lines []poseLine
	for scanner.Scan() {
		var line poseLine
		test.That(t, json.Unmarshal(scanner.Bytes(), &line), test.ShouldBeNil)
		lines = append(lines, line)
	}
	test.That(t, lines, test.ShouldHaveLength, 1)
	line := lines[0]
	test.That(t, line.Frame, test.ShouldEqual, 0)
	test.That(t, line.Observations, test.ShouldHaveLength, 3)
	test.That(t, line.Observations[0].Width, test.ShouldEqual, 0.1)
	test.That(t, line.Observations[2].Width, test.ShouldEqual, 0.2)
	test.That(t, line.Nearest, test.ShouldEqual, "door")

	test.That(t, line.Boards, test.ShouldHaveLength, 2)
	table := line.Boards[0]
	test.That(t, table.Name, test.ShouldEqual, "table")
	test.That(t, table.MemberCount, test.ShouldEqual, 2)
	test.That(t, table.Pose.Translation.X, test.ShouldAlmostEqual, 0, 1e-3)
	test.That(t, table.Pose.Translation.Y, test.ShouldAlmostEqual, 0.1, 1e-3)
	test.That(t, table.Pose.Translation.Z, test.ShouldAlmostEqual, 2, 1e-3)
	test.That(t, line.Boards[1].Name, test.ShouldEqual, "door")

	_, err = os.Stat(filepath.Join(outDir, "scene_pose-000000.png"))
	test.That(t, err, test.ShouldBeNil)

	logs, err := os.ReadFile(logFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(logs), test.ShouldContainSubstring, "loaded marker config")
}

func TestPoseActionErrors(t *testing.T) {
	files := writeTestFiles(t)
	useSyntheticDetector(t)

	_, err := runApp(t, "pose", "--camera", files.camera)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected one image or video file")

	_, err = runApp(t, "pose", "--camera", files.camera, "--config", files.config, "--reference", "wall", files.image)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"wall"`)

	_, err = runApp(t, "pose", "--camera", files.camera, "--dictionary", "DICT_9X9_1", files.image)
	test.That(t, err, test.ShouldNotBeNil)

	bad := filepath.Join(files.dir, "bad_camera.json")
	test.That(t, os.WriteFile(bad, []byte(`{"K": [0, 0, 640, 0, 800, 360, 0, 0, 1], "size": [1280, 720]}`), 0o600), test.ShouldBeNil)
	_, err = runApp(t, "pose", "--camera", bad, files.image)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDetectAction(t *testing.T) {
	files := writeTestFiles(t)
	requested := useSyntheticDetector(t)

	out, err := runApp(t, "det", "--dictionary", "4x4_50", "--rotate", "90", files.image)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *requested, test.ShouldEqual, 0)
	test.That(t, out, test.ShouldContainSubstring, "frame 0: 3 markers")
	test.That(t, out, test.ShouldContainSubstring, "id=20 dict=6")
}

func TestLensAction(t *testing.T) {
	files := writeTestFiles(t)
	out, err := runApp(t, "lens", "--camera", files.camera)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "size:      1280x720")
	test.That(t, out, test.ShouldContainSubstring, "fx=800.00 fy=800.00")
	test.That(t, out, test.ShouldContainSubstring, "h=77.32")
}

func TestSchemaAction(t *testing.T) {
	out, err := runApp(t, "schema")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "width_groups")
	test.That(t, out, test.ShouldContainSubstring, "dictionary_id")
}

func TestFormatCorners(t *testing.T) {
	got := formatCorners([4]r2.Point{{X: 1, Y: 2}, {X: 3.3, Y: 4}, {X: 5, Y: 6}, {X: 7, Y: 8}})
	test.That(t, got, test.ShouldEqual, "[(1.0,2.0) (3.3,4.0) (5.0,6.0) (7.0,8.0)]")
}
