// Package videosource reads frames from image and video files and writes annotated frames back out.
package videosource

import (
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/fiducial/rimage"
)

// A Source produces frames one at a time. Next returns io.EOF once the source is exhausted.
// The release function must be called once the caller is done with the image.
type Source interface {
	Next(ctx context.Context) (image.Image, func(), error)
	Close() error
}

// A Sink consumes frames.
type Sink interface {
	Write(ctx context.Context, img image.Image) error
	Close() error
}

func noopRelease() {}

// Open returns a source for the file at path. Image files yield a single frame and anything else is
// opened as a video.
func Open(path string) (Source, error) {
	if rimage.IsImageFile(path) {
		return NewImageFileSource(path), nil
	}
	vs, err := NewVideoFileSource(path)
	if err != nil {
		return nil, err
	}
	return vs, nil
}

// ImageFileSource yields one image from disk.
type ImageFileSource struct {
	mu   sync.Mutex
	path string
	done bool
}

// NewImageFileSource returns a source for a single image file.
func NewImageFileSource(path string) *ImageFileSource {
	return &ImageFileSource{path: path}
}

// Next reads the image the first time and returns io.EOF afterwards.
func (s *ImageFileSource) Next(ctx context.Context) (image.Image, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil, nil, io.EOF
	}
	s.done = true
	img, err := rimage.ReadImageFromFile(s.path)
	if err != nil {
		return nil, nil, err
	}
	return img, noopRelease, nil
}

// Close does nothing.
func (s *ImageFileSource) Close() error {
	return nil
}

// RotateSource rotates every frame of the original source counterclockwise by Degrees.
type RotateSource struct {
	Original Source
	Degrees  float64
}

// Next returns the rotated next frame.
func (rs *RotateSource) Next(ctx context.Context) (image.Image, func(), error) {
	img, release, err := rs.Original.Next(ctx)
	if err != nil {
		return nil, nil, err
	}
	rotated := rimage.Rotate(img, rs.Degrees)
	release()
	return rotated, noopRelease, nil
}

// Close closes the original source.
func (rs *RotateSource) Close() error {
	return rs.Original.Close()
}

// SkipSource drops Skip frames of the original source after every frame it returns.
type SkipSource struct {
	Original Source
	Skip     int

	started bool
}

// Next returns the next frame that is not skipped.
func (ss *SkipSource) Next(ctx context.Context) (image.Image, func(), error) {
	if ss.started {
		for i := 0; i < ss.Skip; i++ {
			_, release, err := ss.Original.Next(ctx)
			if err != nil {
				return nil, nil, err
			}
			release()
		}
	}
	ss.started = true
	return ss.Original.Next(ctx)
}

// Close closes the original source.
func (ss *SkipSource) Close() error {
	return ss.Original.Close()
}

// ImageDirSink writes each frame as a numbered image file in a directory.
type ImageDirSink struct {
	Dir    string
	Prefix string
	Ext    string

	count int
}

// Write saves the frame to the next numbered file.
func (s *ImageDirSink) Write(ctx context.Context, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ext := s.Ext
	if ext == "" {
		ext = ".png"
	}
	path := filepath.Join(s.Dir, frameName(s.Prefix, s.count, ext))
	s.count++
	return errors.Wrapf(rimage.WriteImageToFile(path, img), "cannot write frame to %q", path)
}

// Count returns the number of frames written.
func (s *ImageDirSink) Count() int {
	return s.count
}

// Close does nothing.
func (s *ImageDirSink) Close() error {
	return nil
}

func frameName(prefix string, n int, ext string) string {
	if prefix == "" {
		prefix = "frame"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s-%06d%s", prefix, n, ext)
}
