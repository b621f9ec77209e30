//go:build !no_cgo

package videosource

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultFPS is used for written video when the input rate is unknown.
const DefaultFPS = 30.0

// VideoFileSource reads frames from a video file.
type VideoFileSource struct {
	mu      sync.Mutex
	path    string
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// NewVideoFileSource opens the video at path.
func NewVideoFileSource(path string) (*VideoFileSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open video %q", path)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("cannot open video %q", path)
	}
	return &VideoFileSource{path: path, capture: capture, frame: gocv.NewMat()}, nil
}

// FPS returns the frame rate the file declares, or DefaultFPS.
func (vs *VideoFileSource) FPS() float64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if fps := vs.capture.Get(gocv.VideoCaptureFPS); fps > 0 {
		return fps
	}
	return DefaultFPS
}

// Next decodes the next frame, returning io.EOF at the end of the file.
func (vs *VideoFileSource) Next(ctx context.Context) (image.Image, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.capture == nil {
		return nil, nil, errors.New("video source is closed")
	}
	if ok := vs.capture.Read(&vs.frame); !ok || vs.frame.Empty() {
		return nil, nil, io.EOF
	}
	img, err := vs.frame.ToImage()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cannot decode frame of %q", vs.path)
	}
	return img, noopRelease, nil
}

// Close releases the capture.
func (vs *VideoFileSource) Close() error {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.capture == nil {
		return nil
	}
	err := vs.capture.Close()
	vs.capture = nil
	if ferr := vs.frame.Close(); err == nil {
		err = ferr
	}
	return err
}

// VideoFileSink writes frames to a video file. The writer is opened on the first frame so its size
// follows the input.
type VideoFileSink struct {
	Path  string
	Codec string
	FPS   float64

	writer *gocv.VideoWriter
	size   image.Point
}

// Write appends the frame to the video.
func (s *VideoFileSink) Write(ctx context.Context, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	size := img.Bounds().Size()
	if s.writer == nil {
		codec, fps := s.Codec, s.FPS
		if codec == "" {
			codec = "MJPG"
		}
		if fps <= 0 {
			fps = DefaultFPS
		}
		writer, err := gocv.VideoWriterFile(s.Path, codec, fps, size.X, size.Y, true)
		if err != nil {
			return errors.Wrapf(err, "cannot create video %q", s.Path)
		}
		s.writer, s.size = writer, size
	}
	if size != s.size {
		return errors.Errorf("frame size %v does not match video size %v", size, s.size)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return err
	}
	defer mat.Close()
	return s.writer.Write(mat)
}

// Close finishes the video file.
func (s *VideoFileSink) Close() error {
	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	return err
}
