//go:build no_cgo

package videosource

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

// DefaultFPS is used for written video when the input rate is unknown.
const DefaultFPS = 30.0

var errNoCgo = errors.New("video files need OpenCV and are unavailable in no_cgo builds")

// VideoFileSource is unavailable without cgo.
type VideoFileSource struct{}

// NewVideoFileSource always fails without cgo.
func NewVideoFileSource(path string) (*VideoFileSource, error) {
	return nil, errNoCgo
}

// FPS returns DefaultFPS.
func (vs *VideoFileSource) FPS() float64 {
	return DefaultFPS
}

// Next always fails without cgo.
func (vs *VideoFileSource) Next(ctx context.Context) (image.Image, func(), error) {
	return nil, nil, errNoCgo
}

// Close does nothing.
func (vs *VideoFileSource) Close() error {
	return nil
}

// VideoFileSink is unavailable without cgo.
type VideoFileSink struct {
	Path  string
	Codec string
	FPS   float64
}

// Write always fails without cgo.
func (s *VideoFileSink) Write(ctx context.Context, img image.Image) error {
	return errNoCgo
}

// Close does nothing.
func (s *VideoFileSink) Close() error {
	return nil
}
