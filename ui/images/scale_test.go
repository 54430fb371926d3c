package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 40, G: 160, B: 60, A: 255})
		}
	}
	return img
}

func TestScaleToFit(t *testing.T) {
	cases := []struct {
		name       string
		w, h       int
		maxW, maxH int
		wantW      int
		wantH      int
	}{
		{"fits", 100, 50, 400, 225, 100, 50},
		{"wide", 1024, 512, 256, 256, 256, 128},
		{"tall", 300, 600, 400, 200, 100, 200},
		{"clamped", 10, 10, 0, 0, 1, 1},
	}
	for _, tc := range cases {
		got := ScaleToFit(solid(tc.w, tc.h), tc.maxW, tc.maxH)
		b := got.Bounds()
		if b.Dx() != tc.wantW || b.Dy() != tc.wantH {
			t.Fatalf("%s: got %dx%d want %dx%d", tc.name, b.Dx(), b.Dy(), tc.wantW, tc.wantH)
		}
	}
	if ScaleToFit(nil, 10, 10) != nil {
		t.Fatalf("nil source should yield nil")
	}
}

func TestDecodeFit(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(640, 320), nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := DecodeFit(buf.Bytes(), 320, 320)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 160 {
		t.Fatalf("got %dx%d want 320x160", b.Dx(), b.Dy())
	}
	if _, err := DecodeFit(nil, 10, 10); err == nil {
		t.Fatalf("expected error for empty payload")
	}
	if _, err := DecodeFit([]byte("not an image"), 10, 10); err == nil {
		t.Fatalf("expected error for garbage payload")
	}
}

func TestEncodePNG(t *testing.T) {
	data := EncodePNG(solid(4, 4))
	if len(data) < 8 || !bytes.Equal(data[:4], []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatalf("not a png: % x", data[:min(len(data), 8)])
	}
	if EncodePNG(nil) != nil {
		t.Fatalf("nil image should yield nil")
	}
}
