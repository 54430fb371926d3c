package images

import (
	"bytes"
	"errors"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// EncodePNG encodes an image to PNG bytes. Errors are ignored and may return an empty slice.
func EncodePNG(img image.Image) []byte {
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	_ = imaging.Encode(&buf, img, imaging.PNG)
	return buf.Bytes()
}

// ScaleToFit downsizes src so that it fits within maxW x maxH preserving aspect
// ratio. If the source already fits, the original is returned.
func ScaleToFit(src image.Image, maxW, maxH int) image.Image {
	if src == nil {
		return nil
	}
	if maxW < 1 {
		maxW = 1
	}
	if maxH < 1 {
		maxH = 1
	}
	b := src.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return src
	}
	return imaging.Fit(src, maxW, maxH, imaging.Box)
}

// DecodeFit decodes an encoded image payload (JPEG, PNG, GIF or WebP),
// honouring EXIF orientation, and fits it within maxW x maxH.
func DecodeFit(data []byte, maxW, maxH int) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("images: empty payload")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return ScaleToFit(img, maxW, maxH), nil
}
