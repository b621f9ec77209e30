package rimage

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func checkerboard(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/4+y/4)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestImageFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.png")
	img := checkerboard(32, 16)
	test.That(t, WriteImageToFile(path, img), test.ShouldBeNil)

	back, err := ReadImageFromFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Bounds(), test.ShouldResemble, img.Bounds())
	r, g, b, _ := back.At(5, 0).RGBA()
	test.That(t, r+g+b, test.ShouldEqual, 0)

	_, err = ReadImageFromFile(filepath.Join(t.TempDir(), "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, WriteImageToFile(filepath.Join(t.TempDir(), "out.unknown"), img), test.ShouldNotBeNil)
}

func TestIsImageFile(t *testing.T) {
	test.That(t, IsImageFile("a/b/frame.PNG"), test.ShouldBeTrue)
	test.That(t, IsImageFile("frame.jpeg"), test.ShouldBeTrue)
	test.That(t, IsImageFile("clip.mp4"), test.ShouldBeFalse)
	test.That(t, IsImageFile("noext"), test.ShouldBeFalse)
}

func TestRotate(t *testing.T) {
	img := checkerboard(32, 16)
	test.That(t, Rotate(img, 0), test.ShouldEqual, img)
	test.That(t, Rotate(img, 360), test.ShouldEqual, img)
	test.That(t, Rotate(img, 90).Bounds().Dx(), test.ShouldEqual, 16)
	test.That(t, Rotate(img, -90).Bounds().Dy(), test.ShouldEqual, 32)
	test.That(t, Rotate(img, 180).Bounds().Dx(), test.ShouldEqual, 32)
	// arbitrary angles grow the canvas to fit
	test.That(t, Rotate(img, 45).Bounds().Dx(), test.ShouldBeGreaterThan, 32)
}
