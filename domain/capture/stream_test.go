package capture

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soocke/leafscan-go/domain/camera"
)

func fakeGrabber(w, h int, calls *atomic.Int64) Grabber {
	return func() (image.Image, error) {
		calls.Add(1)
		return image.NewRGBA(image.Rect(0, 0, w, h)), nil
	}
}

func TestPumpStream_PlayWaitsForFirstFrame(t *testing.T) {
	var calls atomic.Int64
	var released atomic.Bool
	s := newPumpStream(fakeGrabber(64, 48, &calls), time.Millisecond, func() error {
		released.Store(true)
		return nil
	}, nil)

	if _, err := s.Frame(); err == nil {
		t.Fatalf("expected error before play")
	}
	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	img, err := s.Frame()
	if err != nil || img.Bounds().Dx() != 64 {
		t.Fatalf("frame: %v %v", img, err)
	}
	if w, h := s.Size(); w != 64 || h != 48 {
		t.Fatalf("expected 64x48, got %dx%d", w, h)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !released.Load() || s.Running() {
		t.Fatalf("close should release the backend and stop the pump")
	}
	n := calls.Load()
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != n {
		t.Fatalf("pump kept grabbing after close")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := s.Play(context.Background()); !errors.Is(err, errStreamClosed) {
		t.Fatalf("expected errStreamClosed, got %v", err)
	}
	if st := s.Stats(); st.Captures == 0 || st.Sequence == 0 {
		t.Fatalf("expected captures in stats, got %+v", st)
	}
}

func TestPumpStream_PlayHonoursContext(t *testing.T) {
	s := newPumpStream(func() (image.Image, error) { return nil, errors.New("black screen") }, time.Millisecond, nil, nil)
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Play(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if s.Stats().Skipped == 0 {
		t.Fatalf("expected skipped grabs")
	}
}

func TestScreenDevice_OpenFailureIsUnavailable(t *testing.T) {
	d := &ScreenDevice{grab: func() (image.Image, error) { return nil, errors.New("no display") }}
	if _, err := d.Open(context.Background(), camera.DefaultConstraints()); !errors.Is(err, camera.ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable, got %v", err)
	}
}

func TestScreenDevice_WithSession(t *testing.T) {
	var calls atomic.Int64
	d := &ScreenDevice{Interval: time.Millisecond, grab: fakeGrabber(200, 100, &calls)}
	s := camera.NewSession(camera.Options{Device: d})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	art, err := s.Capture(ctx)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if art.Width != 200 || art.Height != 100 {
		t.Fatalf("expected 200x100 capture, got %dx%d", art.Width, art.Height)
	}
}

func TestGuard_MissingNode(t *testing.T) {
	g := &Guard{Node: "/nonexistent/video99", Device: &ScreenDevice{}}
	if _, err := g.Open(context.Background(), camera.DefaultConstraints()); !errors.Is(err, camera.ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable, got %v", err)
	}
	if _, err := (&Guard{}).Open(context.Background(), camera.DefaultConstraints()); !errors.Is(err, camera.ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable without device, got %v", err)
	}
}

func TestCVDevice_WithoutOpenCV(t *testing.T) {
	if CVAvailable {
		t.Skip("built with opencv")
	}
	if _, err := NewCVDevice(nil, 0).Open(context.Background(), camera.DefaultConstraints()); !errors.Is(err, camera.ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable, got %v", err)
	}
}
