// Package cameratest provides an in-memory camera.Device for tests.
package cameratest

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"

	"github.com/soocke/leafscan-go/domain/camera"
)

// Device is a scriptable camera.Device that counts open streams.
type Device struct {
	mu sync.Mutex

	OpenErr  error
	PlayErr  error
	FrameErr error
	// Frame is returned by every stream; a 320x240 green frame when nil.
	Frame image.Image
	// Width and Height override the reported native size.
	Width, Height int
	// Gate, when set, blocks Open until it receives or is closed.
	Gate chan struct{}
	// PlayGate, when set, blocks Play until it is closed or the context ends,
	// like a camera that opens but never delivers a frame.
	PlayGate chan struct{}
	// Entered receives (non-blocking) each time Open is called.
	Entered chan struct{}
	// OnOpen, when set, runs at the start of every Open.
	OnOpen func()

	opens   int
	live    int
	maxLive int
	last    camera.Constraints
}

var _ camera.Device = (*Device)(nil)

func (d *Device) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	d.mu.Lock()
	d.opens++
	d.last = c
	gate, entered, onOpen := d.Gate, d.Entered, d.OnOpen
	d.mu.Unlock()

	if onOpen != nil {
		onOpen()
	}
	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	d.live++
	d.maxLive = max(d.maxLive, d.live)
	return &Stream{d: d}, nil
}

// SetOpenErr changes the error returned by subsequent Open calls.
func (d *Device) SetOpenErr(err error) {
	d.mu.Lock()
	d.OpenErr = err
	d.mu.Unlock()
}

// MaxLive returns the largest number of streams that were open at once.
func (d *Device) MaxLive() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxLive
}

// Opens returns how many times Open was called.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Live returns the number of streams opened and not yet closed.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// LastConstraints returns the constraints of the most recent Open.
func (d *Device) LastConstraints() camera.Constraints {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Stream is the stream handed out by Device.
type Stream struct {
	d      *Device
	closed bool
}

func (s *Stream) Play(ctx context.Context) error {
	s.d.mu.Lock()
	gate, err := s.d.PlayGate, s.d.PlayErr
	s.d.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *Stream) Frame() (image.Image, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.closed {
		return nil, errors.New("cameratest: stream closed")
	}
	if s.d.FrameErr != nil {
		return nil, s.d.FrameErr
	}
	if s.d.Frame != nil {
		return s.d.Frame, nil
	}
	return Solid(320, 240, color.RGBA{G: 160, A: 255}), nil
}

func (s *Stream) Size() (int, int) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.d.Width > 0 || s.d.Height > 0 {
		return s.d.Width, s.d.Height
	}
	if s.d.Frame != nil {
		b := s.d.Frame.Bounds()
		return b.Dx(), b.Dy()
	}
	return 320, 240
}

func (s *Stream) Close() error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.d.live--
	}
	return nil
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	r, g, b, a := c.RGBA()
	px := []uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:i+4], px)
	}
	return img
}

// Sink records preview attach and detach calls.
type Sink struct {
	mu       sync.Mutex
	attached camera.Stream
	attaches int
	detaches int
}

var _ camera.PreviewSink = (*Sink)(nil)

func (s *Sink) Attach(st camera.Stream) {
	s.mu.Lock()
	s.attached = st
	s.attaches++
	s.mu.Unlock()
}

func (s *Sink) Detach() {
	s.mu.Lock()
	s.attached = nil
	s.detaches++
	s.mu.Unlock()
}

// Attached reports whether a stream is currently attached.
func (s *Sink) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached != nil
}

// Counts returns the number of Attach and Detach calls.
func (s *Sink) Counts() (attaches, detaches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attaches, s.detaches
}
