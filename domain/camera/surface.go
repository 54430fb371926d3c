package camera

import (
	"errors"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

const (
	fallbackWidth  = 640
	fallbackHeight = 480

	// JPEGQuality is the fixed quality used for captured frames.
	JPEGQuality = 95
)

// Encoder writes img to w in the artifact's wire format.
type Encoder func(w io.Writer, img image.Image) error

// JPEGEncoder encodes at JPEGQuality.
func JPEGEncoder(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality))
}

// RGBASurface is the default capture Surface. The zero value is usable and
// sized on the first Resize.
type RGBASurface struct {
	img *image.RGBA
}

// NewRGBASurface returns a surface with the fallback 640x480 raster.
func NewRGBASurface() *RGBASurface {
	s := &RGBASurface{}
	s.Resize(fallbackWidth, fallbackHeight)
	return s
}

func (s *RGBASurface) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		width, height = fallbackWidth, fallbackHeight
	}
	if s.img != nil && s.img.Rect.Dx() == width && s.img.Rect.Dy() == height {
		return
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Draw scales src onto the whole raster.
func (s *RGBASurface) Draw(src image.Image) error {
	if src == nil {
		return errors.New("surface: nil frame")
	}
	if src.Bounds().Empty() {
		return errors.New("surface: empty frame")
	}
	if s.img == nil {
		s.Resize(fallbackWidth, fallbackHeight)
	}
	draw.ApproxBiLinear.Scale(s.img, s.img.Bounds(), src, src.Bounds(), draw.Src, nil)
	return nil
}

func (s *RGBASurface) Image() image.Image {
	if s.img == nil {
		return nil
	}
	return s.img
}
